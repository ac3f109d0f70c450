package runner

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/roach88/vmparity/internal/logic"
	"github.com/roach88/vmparity/internal/prepare"
)

// wazeroEngine runs contracts on wazero, compiled ahead of time or
// interpreted. Each execution gets a fresh runtime.
type wazeroEngine struct {
	compiler bool
}

func (e *wazeroEngine) runtimeConfig() wazero.RuntimeConfig {
	if e.compiler {
		return wazero.NewRuntimeConfigCompiler()
	}
	return wazero.NewRuntimeConfigInterpreter()
}

func (e *wazeroEngine) execute(m *prepare.Module, method string, l *logic.Logic) (error, error) {
	ctx := context.Background()
	rt := wazero.NewRuntimeWithConfig(ctx, e.runtimeConfig())
	defer rt.Close(ctx)

	if err := instantiateWazeroHost(ctx, rt, l); err != nil {
		return nil, fmt.Errorf("instantiate host module: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, m.Code)
	if err != nil {
		return &logic.CompilationError{Detail: err.Error()}, nil
	}
	// no start functions: prepared modules never run code on instantiation
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithStartFunctions())
	if err != nil {
		return &logic.PrepareError{Kind: string(prepare.Instantiate)}, nil
	}

	g, ok := mod.ExportedGlobal(prepare.GasGlobalExport).(api.MutableGlobal)
	if !ok {
		return nil, errors.New("gas global is not an exported mutable global")
	}
	l.AttachMeter(wazeroMeter{g})
	if m.HasMemory {
		mem := mod.ExportedMemory(prepare.MemoryExport)
		if mem == nil {
			return nil, errors.New("prepared memory is not exported")
		}
		l.AttachMemory(wazeroMemory{mem})
	}

	fn := mod.ExportedFunction(method)
	if fn == nil {
		return nil, fmt.Errorf("resolved method %q is not exported", method)
	}
	_, err = fn.Call(ctx)
	if err != nil {
		if s := mod.ExportedGlobal(prepare.StackGlobalExport); s != nil && uint32(s.Get()) == prepare.StackExhausted {
			return &logic.WasmTrap{Kind: logic.TrapStackOverflow}, nil
		}
	}
	return err, nil
}

func instantiateWazeroHost(ctx context.Context, rt wazero.Runtime, l *logic.Logic) error {
	b := rt.NewHostModuleBuilder(logic.ImportModule)
	for _, fn := range logic.HostFuncs() {
		b.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
				ret, err := l.Call(fn, stack[:fn.Params])
				if err != nil {
					// wazero turns the panic into the call's error; Logic
					// keeps the original for classification
					panic(err)
				}
				if fn.Results == 1 {
					stack[0] = ret
				}
			}), i64Types(fn.Params), i64Types(fn.Results)).
			WithName(fn.Name).
			Export(fn.Name)
	}
	_, err := b.Instantiate(ctx)
	return err
}

func i64Types(n int) []api.ValueType {
	out := make([]api.ValueType, n)
	for i := range out {
		out[i] = api.ValueTypeI64
	}
	return out
}

type wazeroMeter struct {
	g api.MutableGlobal
}

func (m wazeroMeter) Remaining() uint64     { return m.g.Get() }
func (m wazeroMeter) SetRemaining(v uint64) { m.g.Set(v) }

type wazeroMemory struct {
	mem api.Memory
}

func (m wazeroMemory) Read(offset, n uint64) ([]byte, bool) {
	if offset > math.MaxUint32 || n > math.MaxUint32 {
		return nil, false
	}
	b, ok := m.mem.Read(uint32(offset), uint32(n))
	if !ok {
		return nil, false
	}
	return append([]byte{}, b...), true
}

func (m wazeroMemory) Write(offset uint64, data []byte) bool {
	if offset > math.MaxUint32 {
		return false
	}
	return m.mem.Write(uint32(offset), data)
}
