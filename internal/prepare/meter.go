package prepare

import (
	"math"

	"github.com/tetratelabs/wabin/leb128"
	"github.com/tetratelabs/wabin/wasm"
)

// frameOverhead is the stack height every frame costs on top of its
// parameters and locals.
const frameOverhead = 16

// patch is an insertion into a function body. Gas charges are sized once the
// whole body was walked, so they refer to their counter by index.
type patch struct {
	offset int
	charge int // index into the charge counters, or -1
	data   []byte
}

// rewriter instruments function bodies with gas charges and stack-height
// accounting around calls.
type rewriter struct {
	opCost    uint64
	gasFunc   uint32
	enterFunc uint32
	leaveFunc uint32

	imported  uint32
	types     []*wasm.FunctionType
	frameCost []uint32          // per defined function
	sigCost   map[string]uint32 // highest frame cost per signature
}

func frameCost(ft *wasm.FunctionType, c *wasm.Code, limit uint32) uint32 {
	cost := uint64(frameOverhead) + uint64(len(ft.Params)) + uint64(len(c.LocalTypes))
	return uint32(min(cost, uint64(limit)+1))
}

// callCost is the stack height a direct call to idx adds. Host functions
// never re-enter the guest, so calls to imports are not accounted.
func (w *rewriter) callCost(idx uint32) (uint32, bool) {
	if idx < w.imported {
		return 0, false
	}
	local := uint64(idx - w.imported)
	if local >= uint64(len(w.frameCost)) {
		return 0, false
	}
	return w.frameCost[local], true
}

// indirectCost bounds the stack height of a call_indirect by the largest
// frame of any defined function with a matching signature.
func (w *rewriter) indirectCost(typeIdx uint32) uint32 {
	if uint64(typeIdx) < uint64(len(w.types)) {
		if cost, ok := w.sigCost[funcType(w.types[typeIdx]).String()]; ok {
			return cost
		}
	}
	return frameOverhead
}

func (w *rewriter) stackCall(fn, cost uint32) []byte {
	b := append([]byte{wasm.OpcodeI32Const}, leb128.EncodeInt32(int32(cost))...)
	b = append(b, wasm.OpcodeCall)
	return append(b, leb128.EncodeUint32(fn)...)
}

// instrument returns a copy of body with a gas charge at the function entry
// and at every loop header, and every call to guest code bracketed by the
// stack-height helpers.
func (w *rewriter) instrument(body []byte) ([]byte, error) {
	c := newCursor(body)
	charges := []uint64{0}
	patches := []patch{{offset: 0, charge: 0}}
	// parents[i] is the charge active outside the i-th open block.
	var parents []int
	current := 0
	for {
		if c.done() {
			return nil, errorf(Deserialization, "function body ends without end")
		}
		start := c.pos()
		op := c.u8()
		charges[current]++
		closed := false
		switch op {
		case wasm.OpcodeBlock, wasm.OpcodeIf:
			c.blockType()
			parents = append(parents, current)
		case wasm.OpcodeLoop:
			c.blockType()
			parents = append(parents, current)
			charges = append(charges, 0)
			current = len(charges) - 1
			patches = append(patches, patch{offset: c.pos(), charge: current})
		case wasm.OpcodeEnd:
			if len(parents) == 0 {
				closed = true
				break
			}
			current = parents[len(parents)-1]
			parents = parents[:len(parents)-1]
		case wasm.OpcodeCall:
			if cost, ok := w.callCost(c.u32()); ok {
				patches = append(patches,
					patch{offset: start, charge: -1, data: w.stackCall(w.enterFunc, cost)},
					patch{offset: c.pos(), charge: -1, data: w.stackCall(w.leaveFunc, cost)})
			}
		case wasm.OpcodeCallIndirect:
			cost := w.indirectCost(c.u32())
			c.u32()
			patches = append(patches,
				patch{offset: start, charge: -1, data: w.stackCall(w.enterFunc, cost)},
				patch{offset: c.pos(), charge: -1, data: w.stackCall(w.leaveFunc, cost)})
		default:
			if err := skipImmediates(c, op); err != nil {
				return nil, err
			}
		}
		if c.err != nil {
			return nil, errorf(Deserialization, "truncated instruction")
		}
		if closed {
			break
		}
	}
	if c.pos() != len(body) {
		return nil, errorf(Deserialization, "trailing bytes after function end")
	}

	out := make([]byte, 0, len(body)+len(patches)*12)
	prev := 0
	for _, p := range patches {
		out = append(out, body[prev:p.offset]...)
		if p.charge >= 0 {
			out = appendCharge(out, charges[p.charge], w.opCost, w.gasFunc)
		} else {
			out = append(out, p.data...)
		}
		prev = p.offset
	}
	return append(out, body[prev:]...), nil
}

func appendCharge(b []byte, ops, opCost uint64, gasFunc uint32) []byte {
	cost := ops * opCost
	if opCost != 0 && cost/opCost != ops {
		cost = math.MaxUint64
	}
	if cost == 0 {
		return b
	}
	b = append(b, wasm.OpcodeI64Const)
	b = append(b, leb128.EncodeInt64(int64(cost))...)
	b = append(b, wasm.OpcodeCall)
	return append(b, leb128.EncodeUint32(gasFunc)...)
}

// gasFuncBody is the body of $gas(i64): trap with the sentinel when the
// remaining gas in global g is below the charge, otherwise subtract it.
func gasFuncBody(g uint32) []byte {
	gi := leb128.EncodeUint32(g)
	var b []byte
	b = append(append(b, wasm.OpcodeGlobalGet), gi...)
	b = append(b, wasm.OpcodeLocalGet, 0x00, wasm.OpcodeI64LtU, wasm.OpcodeIf, blockEmpty)
	b = append(b, wasm.OpcodeI64Const, 0x7f) // -1
	b = append(append(b, wasm.OpcodeGlobalSet), gi...)
	b = append(b, wasm.OpcodeUnreachable, wasm.OpcodeEnd)
	b = append(append(b, wasm.OpcodeGlobalGet), gi...)
	b = append(b, wasm.OpcodeLocalGet, 0x00, wasm.OpcodeI64Sub)
	b = append(append(b, wasm.OpcodeGlobalSet), gi...)
	return append(b, wasm.OpcodeEnd)
}

// stackEnterBody is the body of $stack_enter(i32): add the frame cost to the
// height in global s, and trap with the sentinel once it passes limit.
func stackEnterBody(s, limit uint32) []byte {
	si := leb128.EncodeUint32(s)
	var b []byte
	b = append(append(b, wasm.OpcodeGlobalGet), si...)
	b = append(b, wasm.OpcodeLocalGet, 0x00, wasm.OpcodeI32Add)
	b = append(append(b, wasm.OpcodeGlobalSet), si...)
	b = append(append(b, wasm.OpcodeGlobalGet), si...)
	b = append(append(b, wasm.OpcodeI32Const), leb128.EncodeInt32(int32(limit))...)
	b = append(b, wasm.OpcodeI32GtU, wasm.OpcodeIf, blockEmpty)
	b = append(b, wasm.OpcodeI32Const, 0x7f) // -1
	b = append(append(b, wasm.OpcodeGlobalSet), si...)
	b = append(b, wasm.OpcodeUnreachable, wasm.OpcodeEnd)
	return append(b, wasm.OpcodeEnd)
}

// stackLeaveBody is the body of $stack_leave(i32).
func stackLeaveBody(s uint32) []byte {
	si := leb128.EncodeUint32(s)
	var b []byte
	b = append(append(b, wasm.OpcodeGlobalGet), si...)
	b = append(b, wasm.OpcodeLocalGet, 0x00, wasm.OpcodeI32Sub)
	b = append(append(b, wasm.OpcodeGlobalSet), si...)
	return append(b, wasm.OpcodeEnd)
}
