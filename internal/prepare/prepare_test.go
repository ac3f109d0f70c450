package prepare

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wabin/binary"
	"github.com/tetratelabs/wabin/leb128"
	"github.com/tetratelabs/wabin/wasm"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/roach88/vmparity/internal/config"
	"github.com/roach88/vmparity/internal/contract"
)

func section(id wasm.SectionID, payload ...byte) []byte {
	return append(append([]byte{id}, leb128.EncodeUint32(uint32(len(payload)))...), payload...)
}

func buildModule(sections ...[]byte) []byte {
	out := append([]byte{}, header...)
	for _, s := range sections {
		out = append(out, s...)
	}
	return out
}

func vec(items ...[]byte) []byte {
	out := leb128.EncodeUint32(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func wasmName(s string) []byte {
	return append(leb128.EncodeUint32(uint32(len(s))), s...)
}

func codeEntry(body ...byte) []byte {
	return append(leb128.EncodeUint32(uint32(len(body))), body...)
}

var (
	nullaryType = []byte{0x60, 0x00, 0x00}
	mainExport  = []byte{0x04, 'm', 'a', 'i', 'n', wasm.ExternTypeFunc, 0x00}
)

// loopModule counts local 0 up to 3 in a loop: 2 ops at entry, 8 per iteration.
func loopModule() []byte {
	return buildModule(
		section(wasm.SectionIDType, vec(nullaryType)...),
		section(wasm.SectionIDFunction, 0x01, 0x00),
		section(wasm.SectionIDExport, vec(mainExport)...),
		section(wasm.SectionIDCode, vec(codeEntry(
			0x01, 0x01, byte(I32),
			wasm.OpcodeLoop, blockEmpty,
			0x20, 0x00,
			0x41, 0x01,
			0x6a,
			0x22, 0x00,
			0x41, 0x03,
			0x49,
			0x0d, 0x00,
			wasm.OpcodeEnd,
			wasm.OpcodeEnd,
		))...),
	)
}

func wasmConfig(t *testing.T, version config.PrepareVersion) *config.WasmConfig {
	t.Helper()
	cfg := config.Default().Config(config.Newest).Wasm
	cfg.RegularOpCost = 1
	cfg.Limits.PrepareVersion = version
	return &cfg
}

// runMain instantiates a prepared module, funds it with gas and calls main.
func runMain(t *testing.T, m *Module, gas uint64) (remaining uint64, callErr error) {
	t.Helper()
	remaining, _, callErr = runMainHeight(t, m, gas)
	return remaining, callErr
}

// runMainHeight is runMain that also reports the stack height left behind.
func runMainHeight(t *testing.T, m *Module, gas uint64) (remaining uint64, height uint32, callErr error) {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer rt.Close(ctx)

	mod, err := rt.Instantiate(ctx, m.Code)
	require.NoError(t, err)
	g, ok := mod.ExportedGlobal(GasGlobalExport).(api.MutableGlobal)
	require.True(t, ok, "gas global must be mutable")
	g.Set(gas)
	s := mod.ExportedGlobal(StackGlobalExport)
	require.NotNil(t, s, "stack global must be exported")

	_, callErr = mod.ExportedFunction("main").Call(ctx)
	return g.Get(), uint32(s.Get()), callErr
}

func TestPrepare_ChargesFunctionEntry(t *testing.T) {
	code, err := contract.FromWAT(`(module (func (export "main") nop nop))`)
	require.NoError(t, err)

	m, err := Prepare(code.Bytes(), wasmConfig(t, config.PrepareV2))
	require.NoError(t, err)

	remaining, err := runMain(t, m, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), remaining, "nop, nop and end cost one each")
}

func TestPrepare_ChargesCalledFunctions(t *testing.T) {
	code, err := contract.FromWAT(`(module
  (func $helper nop)
  (func (export "main") call $helper))`)
	require.NoError(t, err)

	m, err := Prepare(code.Bytes(), wasmConfig(t, config.PrepareV2))
	require.NoError(t, err)

	remaining, err := runMain(t, m, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(96), remaining)
}

func TestPrepare_ChargesEveryLoopIteration(t *testing.T) {
	m, err := Prepare(loopModule(), wasmConfig(t, config.PrepareV1))
	require.NoError(t, err)

	remaining, err := runMain(t, m, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(100-2-3*8), remaining)
}

func TestPrepare_ScalesWithRegularOpCost(t *testing.T) {
	cfg := wasmConfig(t, config.PrepareV1)
	cfg.RegularOpCost = 1000

	m, err := Prepare(loopModule(), cfg)
	require.NoError(t, err)

	remaining, err := runMain(t, m, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000-26*1000), remaining)
}

func TestPrepare_ExhaustionSetsSentinel(t *testing.T) {
	m, err := Prepare(loopModule(), wasmConfig(t, config.PrepareV1))
	require.NoError(t, err)

	// entry 2, two iterations of 8, third iteration does not fit
	remaining, err := runMain(t, m, 20)
	require.Error(t, err)
	assert.Equal(t, GasExhausted, remaining)
}

func TestPrepare_ExportTable(t *testing.T) {
	code, err := contract.FromWAT(`(module
  (import "env" "input" (func $input (param i64)))
  (func (export "main"))
  (func (export "add") (param i32 i32) (result i32) local.get 0 local.get 1 i32.add)
  (memory 1))`)
	require.NoError(t, err)

	m, err := Prepare(code.Bytes(), wasmConfig(t, config.PrepareV2))
	require.NoError(t, err)

	main, ok := m.Export("main")
	require.True(t, ok)
	assert.True(t, main.Nullary())

	add, ok := m.Export("add")
	require.True(t, ok)
	assert.False(t, add.Nullary())
	assert.Equal(t, "(i32, i32) -> (i32)", add.String())

	_, ok = m.Export("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"add", "main"}, m.Exports())

	require.Len(t, m.Imports, 1)
	assert.Equal(t, Import{Module: "env", Name: "input", Type: FuncType{Params: []ValType{I64}, Results: []ValType{}}}, m.Imports[0])
	assert.True(t, m.HasMemory)
	assert.Equal(t, config.PrepareV2, m.Version)
}

func TestPrepare_OutputIsValidForEngines(t *testing.T) {
	code, err := contract.FromWAT(`(module
  (global $g (mut i32) (i32.const 7))
  (func (export "main") (local i64)
    i64.const 5
    local.set 0
    global.get $g
    drop)
  (memory 1 2))`)
	require.NoError(t, err)

	for _, version := range []config.PrepareVersion{config.PrepareV1, config.PrepareV2} {
		t.Run(version.String(), func(t *testing.T) {
			m, err := Prepare(code.Bytes(), wasmConfig(t, version))
			require.NoError(t, err)

			ctx := context.Background()
			rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
			defer rt.Close(ctx)
			compiled, err := rt.CompileModule(ctx, m.Code)
			require.NoError(t, err)

			exports := compiled.ExportedMemories()
			assert.Contains(t, exports, MemoryExport)
			assert.Contains(t, compiled.ExportedFunctions(), "main")
		})
	}
}

func TestPrepare_MemoryMaximum(t *testing.T) {
	mem := func(payload ...byte) []byte {
		return buildModule(section(wasm.SectionIDMemory, payload...))
	}

	t.Run("V1 keeps an unbounded memory", func(t *testing.T) {
		m, err := Prepare(mem(0x01, 0x00, 0x01), wasmConfig(t, config.PrepareV1))
		require.NoError(t, err)
		decoded, err := binary.DecodeModule(m.Code, wasm.CoreFeaturesV2)
		require.NoError(t, err)
		assert.False(t, decoded.MemorySection.IsMaxEncoded)
	})

	t.Run("V2 clamps an unbounded memory", func(t *testing.T) {
		cfg := wasmConfig(t, config.PrepareV2)
		m, err := Prepare(mem(0x01, 0x00, 0x01), cfg)
		require.NoError(t, err)
		decoded, err := binary.DecodeModule(m.Code, wasm.CoreFeaturesV2)
		require.NoError(t, err)
		require.True(t, decoded.MemorySection.IsMaxEncoded)
		assert.Equal(t, cfg.Limits.MaxMemoryPages, decoded.MemorySection.Max)
	})

	t.Run("V2 keeps a smaller maximum", func(t *testing.T) {
		m, err := Prepare(mem(0x01, 0x01, 0x01, 0x02), wasmConfig(t, config.PrepareV2))
		require.NoError(t, err)
		decoded, err := binary.DecodeModule(m.Code, wasm.CoreFeaturesV2)
		require.NoError(t, err)
		assert.Equal(t, uint32(2), decoded.MemorySection.Max)
	})
}

func TestPrepare_StripsCustomSections(t *testing.T) {
	code := buildModule(
		section(wasm.SectionIDCustom, append(wasmName("note"), "secret-payload"...)...),
		section(wasm.SectionIDType, vec(nullaryType)...),
		section(wasm.SectionIDFunction, 0x01, 0x00),
		section(wasm.SectionIDExport, vec(mainExport)...),
		section(wasm.SectionIDCode, vec(codeEntry(0x00, wasm.OpcodeEnd))...),
	)

	m, err := Prepare(code, wasmConfig(t, config.PrepareV1))
	require.NoError(t, err)
	assert.NotContains(t, string(m.Code), "secret-payload")
}

func TestPrepare_Rejections(t *testing.T) {
	oneFunc := func(body ...byte) []byte {
		return buildModule(
			section(wasm.SectionIDType, vec(nullaryType)...),
			section(wasm.SectionIDFunction, 0x01, 0x00),
			section(wasm.SectionIDCode, vec(codeEntry(body...))...),
		)
	}

	tests := []struct {
		name   string
		code   []byte
		adjust func(*config.WasmConfig)
		want   ErrorKind
	}{
		{name: "bad magic", code: []byte("not wasm"), want: Deserialization},
		{name: "truncated section", code: append(buildModule(), wasm.SectionIDType, 0x05, 0x01), want: Deserialization},
		{name: "unknown section", code: buildModule(section(13)), want: Deserialization},
		{
			name: "sections out of order",
			code: buildModule(section(wasm.SectionIDFunction, 0x00), section(wasm.SectionIDType, 0x00)),
			want: Deserialization,
		},
		{
			name:   "contract too large",
			code:   oneFunc(0x00, wasm.OpcodeEnd),
			adjust: func(c *config.WasmConfig) { c.Limits.MaxContractSize = 8 },
			want:   ContractSizeExceeded,
		},
		{
			name:   "too many functions",
			code:   oneFunc(0x00, wasm.OpcodeEnd),
			adjust: func(c *config.WasmConfig) { c.Limits.MaxFunctionsNumber = 0 },
			want:   TooManyFunctions,
		},
		{
			name: "start function",
			code: buildModule(
				section(wasm.SectionIDType, vec(nullaryType)...),
				section(wasm.SectionIDFunction, 0x01, 0x00),
				section(wasm.SectionIDStart, 0x00),
				section(wasm.SectionIDCode, vec(codeEntry(0x00, wasm.OpcodeEnd))...),
			),
			want: StartFunction,
		},
		{
			name: "memory import",
			code: buildModule(section(wasm.SectionIDImport, vec(append(append(wasmName("env"), wasmName("memory")...), wasm.ExternTypeMemory, 0x00, 0x01))...)),
			want: Memory,
		},
		{
			name: "global import",
			code: buildModule(section(wasm.SectionIDImport, vec(append(append(wasmName("env"), wasmName("g")...), wasm.ExternTypeGlobal, byte(I32), 0x00))...)),
			want: Instantiate,
		},
		{name: "two memories", code: buildModule(section(wasm.SectionIDMemory, 0x02, 0x00, 0x01, 0x00, 0x01)), want: Memory},
		{name: "shared memory", code: buildModule(section(wasm.SectionIDMemory, 0x01, 0x03, 0x01, 0x01)), want: Memory},
		{
			name:   "initial memory above limit",
			code:   buildModule(section(wasm.SectionIDMemory, 0x01, 0x00, 0x05)),
			adjust: func(c *config.WasmConfig) { c.Limits.MaxMemoryPages = 4 },
			want:   Memory,
		},
		{
			name: "reserved export",
			code: buildModule(
				section(wasm.SectionIDType, vec(nullaryType)...),
				section(wasm.SectionIDFunction, 0x01, 0x00),
				section(wasm.SectionIDExport, vec(append(name(GasGlobalExport), wasm.ExternTypeFunc, 0x00))...),
				section(wasm.SectionIDCode, vec(codeEntry(0x00, wasm.OpcodeEnd))...),
			),
			want: ReservedExport,
		},
		{name: "simd", code: oneFunc(0x00, wasm.OpcodeVecPrefix, 0x0c, wasm.OpcodeEnd), want: UnsupportedInstruction},
		{name: "atomics", code: oneFunc(0x00, opPrefixAtomic, 0x03, 0x00, wasm.OpcodeEnd), want: UnsupportedInstruction},
		{name: "tail call", code: oneFunc(0x00, opTailCall, 0x00, wasm.OpcodeEnd), want: UnsupportedInstruction},
		{name: "unknown misc opcode", code: oneFunc(0x00, wasm.OpcodeMiscPrefix, 0x20, wasm.OpcodeEnd), want: UnsupportedInstruction},
		{name: "missing end", code: oneFunc(0x00, 0x01), want: Deserialization},
		{name: "bytes after end", code: oneFunc(0x00, wasm.OpcodeEnd, 0x01), want: Deserialization},
		{
			name: "bodies do not match declarations",
			code: buildModule(section(wasm.SectionIDType, vec(nullaryType)...), section(wasm.SectionIDFunction, 0x01, 0x00)),
			want: Deserialization,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := wasmConfig(t, config.PrepareV2)
			if tt.adjust != nil {
				tt.adjust(cfg)
			}
			_, err := Prepare(tt.code, cfg)
			var perr *Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.want, perr.Kind, "detail: %s", perr.Detail)
		})
	}
}

func TestPrepare_UnknownVersionIsNotARejection(t *testing.T) {
	_, err := Prepare(buildModule(), wasmConfig(t, config.PrepareAny))
	require.Error(t, err)
	var perr *Error
	assert.False(t, errors.As(err, &perr))
}

func TestPrepare_StackHeightBoundsRecursion(t *testing.T) {
	code, err := contract.FromWAT(`(module (func $f (export "main") call $f))`)
	require.NoError(t, err)

	cfg := wasmConfig(t, config.PrepareV2)
	cfg.Limits.MaxStackHeight = 4 * frameOverhead
	m, err := Prepare(code.Bytes(), cfg)
	require.NoError(t, err)

	// the outermost frame and four nested ones run, each charging call and end
	remaining, height, err := runMainHeight(t, m, 1000)
	require.Error(t, err)
	assert.Equal(t, StackExhausted, height)
	assert.Equal(t, uint64(1000-5*2), remaining)
}

func TestPrepare_StackHeightRestoredAfterCalls(t *testing.T) {
	code, err := contract.FromWAT(`(module
  (func $helper nop)
  (func (export "main") call $helper call $helper call $helper))`)
	require.NoError(t, err)

	cfg := wasmConfig(t, config.PrepareV2)
	cfg.Limits.MaxStackHeight = frameOverhead
	m, err := Prepare(code.Bytes(), cfg)
	require.NoError(t, err)

	_, height, err := runMainHeight(t, m, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), height)
}

func TestPrepare_FrameCostCountsParamsAndLocals(t *testing.T) {
	code, err := contract.FromWAT(`(module
  (func $wide (param i64 i64) (local i32 i32 i32 i32 i32 i32) nop)
  (func (export "main") i64.const 0 i64.const 0 call $wide))`)
	require.NoError(t, err)
	frame := uint64(frameOverhead + 2 + 6)

	for _, tt := range []struct {
		limit uint64
		fits  bool
	}{
		{limit: frame, fits: true},
		{limit: frame - 1, fits: false},
	} {
		cfg := wasmConfig(t, config.PrepareV2)
		cfg.Limits.MaxStackHeight = tt.limit
		m, err := Prepare(code.Bytes(), cfg)
		require.NoError(t, err)

		_, height, err := runMainHeight(t, m, 1000)
		if tt.fits {
			require.NoError(t, err, "limit %d", tt.limit)
			assert.Equal(t, uint32(0), height)
		} else {
			require.Error(t, err, "limit %d", tt.limit)
			assert.Equal(t, StackExhausted, height)
		}
	}
}

func TestPrepare_HostCallsAreNotStackAccounted(t *testing.T) {
	code, err := contract.FromWAT(`(module
  (import "env" "block_index" (func $idx (result i64)))
  (func (export "main") call $idx drop))`)
	require.NoError(t, err)

	m, err := Prepare(code.Bytes(), wasmConfig(t, config.PrepareV2))
	require.NoError(t, err)

	decoded, err := binary.DecodeModule(m.Code, wasm.CoreFeaturesV2)
	require.NoError(t, err)
	// main is the first defined function; its body calls only the gas helper
	// and the import, never the stack helpers
	body := decoded.CodeSection[0].Body
	enter := byte(len(decoded.ImportSection) + 2)
	assert.NotContains(t, string(body), string([]byte{wasm.OpcodeCall, enter}))
}

func TestPrepare_RejectsInvalidStackLimit(t *testing.T) {
	cfg := wasmConfig(t, config.PrepareV2)
	cfg.Limits.MaxStackHeight = 0
	_, err := Prepare(buildModule(), cfg)
	require.Error(t, err)
	var perr *Error
	assert.False(t, errors.As(err, &perr))
}

func TestPrepare_KeepsDataCountSection(t *testing.T) {
	code := buildModule(
		section(wasm.SectionIDType, vec(nullaryType)...),
		section(wasm.SectionIDFunction, 0x01, 0x00),
		section(wasm.SectionIDMemory, 0x01, 0x00, 0x01),
		section(wasm.SectionIDExport, vec(mainExport)...),
		section(wasm.SectionIDDataCount, 0x01),
		section(wasm.SectionIDCode, vec(codeEntry(
			0x00,
			wasm.OpcodeI32Const, 0x00,
			wasm.OpcodeI32Const, 0x00,
			wasm.OpcodeI32Const, 0x01,
			wasm.OpcodeMiscPrefix, 0x08, 0x00, 0x00, // memory.init 0
			wasm.OpcodeEnd,
		))...),
		section(wasm.SectionIDData, vec([]byte{0x01, 0x01, 'x'})...),
	)

	m, err := Prepare(code, wasmConfig(t, config.PrepareV2))
	require.NoError(t, err)

	decoded, err := binary.DecodeModule(m.Code, wasm.CoreFeaturesV2)
	require.NoError(t, err)
	require.NotNil(t, decoded.DataCountSection)
	assert.Equal(t, uint32(1), *decoded.DataCountSection)

	_, err = runMain(t, m, 1000)
	require.NoError(t, err)
}
