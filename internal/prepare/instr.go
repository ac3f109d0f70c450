package prepare

import (
	"bytes"
	"errors"
	"io"

	"github.com/tetratelabs/wabin/leb128"
	"github.com/tetratelabs/wabin/wasm"
)

const (
	opPrefixAtomic = 0xfe
	opTailCall     = 0x12

	blockEmpty = 0x40
)

var errTruncated = errors.New("truncated instruction")

// cursor walks an instruction sequence. After the first failed read every
// read returns zero values and err stays set.
type cursor struct {
	r   *bytes.Reader
	err error
}

func newCursor(b []byte) *cursor {
	return &cursor{r: bytes.NewReader(b)}
}

func (c *cursor) pos() int {
	return int(c.r.Size()) - c.r.Len()
}

func (c *cursor) done() bool {
	return c.err != nil || c.r.Len() == 0
}

func (c *cursor) fail(err error) {
	if c.err == nil && err != nil {
		c.err = err
	}
}

func (c *cursor) u8() byte {
	if c.err != nil {
		return 0
	}
	b, err := c.r.ReadByte()
	c.fail(err)
	return b
}

func (c *cursor) u32() uint32 {
	if c.err != nil {
		return 0
	}
	v, _, err := leb128.DecodeUint32(c.r)
	c.fail(err)
	return v
}

func (c *cursor) s32() {
	if c.err == nil {
		_, _, err := leb128.DecodeInt32(c.r)
		c.fail(err)
	}
}

func (c *cursor) s33() {
	if c.err == nil {
		_, _, err := leb128.DecodeInt33AsInt64(c.r)
		c.fail(err)
	}
}

func (c *cursor) s64() {
	if c.err == nil {
		_, _, err := leb128.DecodeInt64(c.r)
		c.fail(err)
	}
}

func (c *cursor) skip(n int) {
	if c.err != nil {
		return
	}
	if c.r.Len() < n {
		c.fail(errTruncated)
		return
	}
	_, _ = c.r.Seek(int64(n), io.SeekCurrent)
}

// blockType consumes a block type: empty, a value type, or an s33 type index.
func (c *cursor) blockType() {
	if c.err != nil {
		return
	}
	b, err := c.r.ReadByte()
	if err != nil {
		c.fail(errTruncated)
		return
	}
	if b == blockEmpty || ValType(b).valid() || b == wasm.ValueTypeV128 {
		return
	}
	_ = c.r.UnreadByte()
	c.s33()
}

// skipImmediates consumes the immediates of op. Block-structured opcodes are
// expected to be handled by the caller. A non-nil *Error reports an opcode
// outside the supported instruction set.
func skipImmediates(c *cursor, op wasm.Opcode) *Error {
	switch {
	case op == wasm.OpcodeUnreachable || op == wasm.OpcodeNop || op == wasm.OpcodeElse ||
		op == wasm.OpcodeEnd || op == wasm.OpcodeReturn:
	case op == wasm.OpcodeBlock || op == wasm.OpcodeLoop || op == wasm.OpcodeIf:
		c.blockType()
	case op == wasm.OpcodeBr || op == wasm.OpcodeBrIf:
		c.u32()
	case op == wasm.OpcodeBrTable:
		n := c.u32()
		for i := uint32(0); i <= n && c.err == nil; i++ {
			c.u32()
		}
	case op == wasm.OpcodeCall:
		c.u32()
	case op == wasm.OpcodeCallIndirect:
		c.u32()
		c.u32()
	case op == wasm.OpcodeDrop || op == wasm.OpcodeSelect:
	case op == wasm.OpcodeTypedSelect:
		n := c.u32()
		for i := uint32(0); i < n && c.err == nil; i++ {
			c.u8()
		}
	case op >= wasm.OpcodeLocalGet && op <= wasm.OpcodeTableSet:
		c.u32()
	case op >= wasm.OpcodeI32Load && op <= wasm.OpcodeI64Store32:
		// memarg: align, offset
		c.u32()
		c.u32()
	case op == wasm.OpcodeMemorySize || op == wasm.OpcodeMemoryGrow:
		c.u8()
	case op == wasm.OpcodeI32Const:
		c.s32()
	case op == wasm.OpcodeI64Const:
		c.s64()
	case op == wasm.OpcodeF32Const:
		c.skip(4)
	case op == wasm.OpcodeF64Const:
		c.skip(8)
	case op >= wasm.OpcodeI32Eqz && op <= wasm.OpcodeI64Extend32S:
	case op == wasm.OpcodeRefNull:
		c.u8()
	case op == wasm.OpcodeRefIsNull:
	case op == wasm.OpcodeRefFunc:
		c.u32()
	case op == wasm.OpcodeMiscPrefix:
		return skipMisc(c)
	case op == wasm.OpcodeVecPrefix:
		return errorf(UnsupportedInstruction, "simd opcode at offset %d", c.pos()-1)
	case op == opPrefixAtomic:
		return errorf(UnsupportedInstruction, "atomic opcode at offset %d", c.pos()-1)
	default:
		return errorf(UnsupportedInstruction, "opcode 0x%02x at offset %d", op, c.pos()-1)
	}
	return nil
}

func skipMisc(c *cursor) *Error {
	sub := c.u32()
	switch {
	case sub <= 7:
		// saturating truncation
	case sub == 8:
		// memory.init
		c.u32()
		c.u8()
	case sub == 9:
		// data.drop
		c.u32()
	case sub == 10:
		// memory.copy
		c.u8()
		c.u8()
	case sub == 11:
		// memory.fill
		c.u8()
	case sub == 12 || sub == 14:
		// table.init, table.copy
		c.u32()
		c.u32()
	case sub == 13 || (sub >= 15 && sub <= 17):
		// elem.drop, table.grow, table.size, table.fill
		c.u32()
	default:
		return errorf(UnsupportedInstruction, "misc opcode 0xfc %d", sub)
	}
	return nil
}
