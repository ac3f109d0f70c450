//go:build cgo && (linux || darwin) && (amd64 || arm64)

package runner

import (
	"fmt"

	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/roach88/vmparity/internal/logic"
	"github.com/roach88/vmparity/internal/prepare"
)

func wasmerAvailable() bool {
	return wasmer.IsCompilerAvailable(wasmer.CRANELIFT)
}

func newWasmerEngine() engine {
	return wasmerEngine{}
}

// wasmerEngine runs contracts on wasmer with the Cranelift compiler. Each
// execution gets a fresh store.
type wasmerEngine struct{}

func (wasmerEngine) execute(m *prepare.Module, method string, l *logic.Logic) (error, error) {
	store := wasmer.NewStore(wasmer.NewEngineWithConfig(wasmer.NewConfig().UseCraneliftCompiler()))

	module, err := wasmer.NewModule(store, m.Code)
	if err != nil {
		return &logic.CompilationError{Detail: err.Error()}, nil
	}

	imports := wasmer.NewImportObject()
	imports.Register(logic.ImportModule, wasmerHostFuncs(store, l))
	instance, err := wasmer.NewInstance(module, imports)
	if err != nil {
		return &logic.PrepareError{Kind: string(prepare.Instantiate)}, nil
	}

	g, err := instance.Exports.GetGlobal(prepare.GasGlobalExport)
	if err != nil {
		return nil, fmt.Errorf("gas global: %w", err)
	}
	meter := &wasmerMeter{g: g}
	l.AttachMeter(meter)
	if meter.err != nil {
		return nil, meter.err
	}
	if m.HasMemory {
		mem, err := instance.Exports.GetMemory(prepare.MemoryExport)
		if err != nil {
			return nil, fmt.Errorf("prepared memory: %w", err)
		}
		l.AttachMemory(wasmerMemory{mem: mem})
	}

	fn, err := instance.Exports.GetRawFunction(method)
	if err != nil {
		return nil, fmt.Errorf("resolved method %q: %w", method, err)
	}
	_, callErr := fn.Call()
	if meter.err != nil {
		return nil, meter.err
	}
	if callErr != nil && stackExhausted(instance) {
		return &logic.WasmTrap{Kind: logic.TrapStackOverflow}, nil
	}
	return callErr, nil
}

func stackExhausted(instance *wasmer.Instance) bool {
	s, err := instance.Exports.GetGlobal(prepare.StackGlobalExport)
	if err != nil {
		return false
	}
	v, err := s.Get()
	if err != nil {
		return false
	}
	i, ok := v.(int32)
	return ok && uint32(i) == prepare.StackExhausted
}

func wasmerHostFuncs(store *wasmer.Store, l *logic.Logic) map[string]wasmer.IntoExtern {
	externs := make(map[string]wasmer.IntoExtern)
	for _, fn := range logic.HostFuncs() {
		ft := wasmer.NewFunctionType(i64ValueTypes(fn.Params), i64ValueTypes(fn.Results))
		externs[fn.Name] = wasmer.NewFunction(store, ft, func(args []wasmer.Value) ([]wasmer.Value, error) {
			raw := make([]uint64, len(args))
			for i, a := range args {
				raw[i] = uint64(a.I64())
			}
			ret, err := l.Call(fn, raw)
			if err != nil {
				return nil, err
			}
			if fn.Results == 0 {
				return []wasmer.Value{}, nil
			}
			return []wasmer.Value{wasmer.NewI64(int64(ret))}, nil
		})
	}
	return externs
}

func i64ValueTypes(n int) []*wasmer.ValueType {
	kinds := make([]wasmer.ValueKind, n)
	for i := range kinds {
		kinds[i] = wasmer.I64
	}
	return wasmer.NewValueTypes(kinds...)
}

// wasmerMeter reads and writes the gas global. The first access failure is
// kept in err and turns the run into a fatal fault.
type wasmerMeter struct {
	g   *wasmer.Global
	err error
}

func (m *wasmerMeter) Remaining() uint64 {
	v, err := m.g.Get()
	if err != nil {
		m.fail(fmt.Errorf("read gas global: %w", err))
		return 0
	}
	i, ok := v.(int64)
	if !ok {
		m.fail(fmt.Errorf("gas global holds %T, want int64", v))
		return 0
	}
	return uint64(i)
}

func (m *wasmerMeter) SetRemaining(v uint64) {
	if err := m.g.Set(int64(v), wasmer.I64); err != nil {
		m.fail(fmt.Errorf("write gas global: %w", err))
	}
}

func (m *wasmerMeter) fail(err error) {
	if m.err == nil {
		m.err = err
	}
}

type wasmerMemory struct {
	mem *wasmer.Memory
}

func (m wasmerMemory) Read(offset, n uint64) ([]byte, bool) {
	data := m.mem.Data()
	if offset > uint64(len(data)) || n > uint64(len(data))-offset {
		return nil, false
	}
	return append([]byte{}, data[offset:offset+n]...), true
}

func (m wasmerMemory) Write(offset uint64, b []byte) bool {
	data := m.mem.Data()
	if offset > uint64(len(data)) || uint64(len(b)) > uint64(len(data))-offset {
		return false
	}
	copy(data[offset:], b)
	return true
}

