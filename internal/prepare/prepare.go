package prepare

import (
	"fmt"
	"math"
	"strings"

	"github.com/tetratelabs/wabin/leb128"
	"github.com/tetratelabs/wabin/wasm"

	"github.com/roach88/vmparity/internal/config"
)

const (
	// GasGlobalExport names the exported global holding the remaining gas.
	GasGlobalExport = "__vmparity_gas"
	// StackGlobalExport names the exported global holding the stack height.
	StackGlobalExport = "__vmparity_stack"
	// MemoryExport names the exported linear memory.
	MemoryExport = "__vmparity_memory"

	reservedPrefix = "__vmparity"
)

// GasExhausted is the value the gas global holds after $gas trapped.
const GasExhausted = ^uint64(0)

// StackExhausted is the value the stack global holds after $stack_enter
// trapped.
const StackExhausted = ^uint32(0)

func hasReservedPrefix(name string) bool {
	return strings.HasPrefix(name, reservedPrefix)
}

// Prepare validates code against cfg and returns the instrumented module.
// Rejections are reported as *Error; any other error means cfg itself is
// unusable.
func Prepare(code []byte, cfg *config.WasmConfig) (*Module, error) {
	version := cfg.Limits.PrepareVersion
	if version != config.PrepareV1 && version != config.PrepareV2 {
		return nil, fmt.Errorf("unsupported prepare version %s", version)
	}
	stackLimit := cfg.Limits.MaxStackHeight
	if stackLimit == 0 || stackLimit > math.MaxInt32 {
		return nil, fmt.Errorf("max_stack_height %d out of range", stackLimit)
	}
	if uint64(len(code)) > cfg.Limits.MaxContractSize {
		return nil, errorf(ContractSizeExceeded, "%d bytes, limit %d", len(code), cfg.Limits.MaxContractSize)
	}

	m, err := decode(code)
	if err != nil {
		return nil, err
	}
	if total := uint64(len(m.ImportSection)) + uint64(len(m.FunctionSection)); total > cfg.Limits.MaxFunctionsNumber {
		return nil, errorf(TooManyFunctions, "%d functions, limit %d", total, cfg.Limits.MaxFunctionsNumber)
	}
	if m.MemorySection != nil {
		if err := checkMemory(m.MemorySection, cfg.Limits.MaxMemoryPages, version); err != nil {
			return nil, err
		}
	}

	exports := make(map[string]FuncType)
	for _, e := range m.ExportSection {
		if e.Type != wasm.ExternTypeFunc {
			continue
		}
		ft, ok := signature(m, e.Index)
		if !ok {
			return nil, errorf(Deserialization, "export %q references function %d", e.Name, e.Index)
		}
		exports[e.Name] = funcType(ft)
	}
	imports := make([]Import, len(m.ImportSection))
	for i, imp := range m.ImportSection {
		imports[i] = Import{Module: imp.Module, Name: imp.Name, Type: funcType(m.TypeSection[imp.DescFunc])}
	}

	if err := instrumentModule(m, cfg.RegularOpCost, uint32(stackLimit)); err != nil {
		return nil, err
	}

	return &Module{
		Code:      encode(m),
		Version:   version,
		Imports:   imports,
		HasMemory: m.MemorySection != nil,
		exports:   exports,
	}, nil
}

func checkMemory(mem *wasm.Memory, maxPages uint32, version config.PrepareVersion) error {
	if mem.Min > maxPages {
		return errorf(Memory, "initial %d pages, limit %d", mem.Min, maxPages)
	}
	if version >= config.PrepareV2 && (!mem.IsMaxEncoded || mem.Max > maxPages) {
		mem.Max = maxPages
		mem.IsMaxEncoded = true
	}
	return nil
}

// instrumentModule rewrites every body and appends the metering globals and
// helper functions. Everything is appended, so no existing index moves.
func instrumentModule(m *wasm.Module, opCost uint64, stackLimit uint32) error {
	imported := uint32(len(m.ImportSection))
	defined := uint32(len(m.FunctionSection))
	w := &rewriter{
		opCost:    opCost,
		gasFunc:   imported + defined,
		enterFunc: imported + defined + 1,
		leaveFunc: imported + defined + 2,
		imported:  imported,
		types:     m.TypeSection,
		frameCost: make([]uint32, defined),
		sigCost:   make(map[string]uint32),
	}
	for i, typeIdx := range m.FunctionSection {
		ft := m.TypeSection[typeIdx]
		cost := frameCost(ft, m.CodeSection[i], stackLimit)
		w.frameCost[i] = cost
		sig := funcType(ft).String()
		w.sigCost[sig] = max(w.sigCost[sig], cost)
	}
	for i, c := range m.CodeSection {
		body, err := w.instrument(c.Body)
		if err != nil {
			return err
		}
		m.CodeSection[i] = &wasm.Code{LocalTypes: c.LocalTypes, Body: body}
	}

	gasType := uint32(len(m.TypeSection))
	stackType := gasType + 1
	gasGlobal := uint32(len(m.GlobalSection))
	stackGlobal := gasGlobal + 1

	m.TypeSection = append(m.TypeSection,
		&wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI64}},
		&wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}})
	m.FunctionSection = append(m.FunctionSection, gasType, stackType, stackType)
	m.GlobalSection = append(m.GlobalSection,
		mutableGlobal(wasm.ValueTypeI64, wasm.OpcodeI64Const, leb128.EncodeInt64(0)),
		mutableGlobal(wasm.ValueTypeI32, wasm.OpcodeI32Const, leb128.EncodeInt32(0)))
	m.CodeSection = append(m.CodeSection,
		&wasm.Code{Body: gasFuncBody(gasGlobal)},
		&wasm.Code{Body: stackEnterBody(stackGlobal, stackLimit)},
		&wasm.Code{Body: stackLeaveBody(stackGlobal)})

	m.ExportSection = append(m.ExportSection,
		&wasm.Export{Type: wasm.ExternTypeGlobal, Name: GasGlobalExport, Index: gasGlobal},
		&wasm.Export{Type: wasm.ExternTypeGlobal, Name: StackGlobalExport, Index: stackGlobal})
	if m.MemorySection != nil {
		m.ExportSection = append(m.ExportSection,
			&wasm.Export{Type: wasm.ExternTypeMemory, Name: MemoryExport, Index: 0})
	}
	return nil
}

func mutableGlobal(t wasm.ValueType, op wasm.Opcode, init []byte) *wasm.Global {
	return &wasm.Global{
		Type: &wasm.GlobalType{ValType: t, Mutable: true},
		Init: &wasm.ConstantExpression{Opcode: op, Data: init},
	}
}
