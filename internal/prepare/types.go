package prepare

import (
	"slices"
	"strings"

	"github.com/roach88/vmparity/internal/config"
)

// ValType is a WebAssembly value type byte.
type ValType byte

const (
	I32       ValType = 0x7f
	I64       ValType = 0x7e
	F32       ValType = 0x7d
	F64       ValType = 0x7c
	V128      ValType = 0x7b
	FuncRef   ValType = 0x70
	ExternRef ValType = 0x6f
)

func (v ValType) String() string {
	switch v {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case V128:
		return "v128"
	case FuncRef:
		return "funcref"
	case ExternRef:
		return "externref"
	default:
		return "unknown"
	}
}

func (v ValType) valid() bool {
	switch v {
	case I32, I64, F32, F64, FuncRef, ExternRef:
		return true
	}
	return false
}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Nullary reports whether the signature is () -> ().
func (f FuncType) Nullary() bool {
	return len(f.Params) == 0 && len(f.Results) == 0
}

// Equal compares two signatures.
func (f FuncType) Equal(o FuncType) bool {
	return equalTypes(f.Params, o.Params) && equalTypes(f.Results, o.Results)
}

func (f FuncType) String() string {
	return "(" + joinTypes(f.Params) + ") -> (" + joinTypes(f.Results) + ")"
}

func equalTypes(a, b []ValType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func joinTypes(ts []ValType) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

// Import is a function the module expects the host to provide.
type Import struct {
	Module string
	Name   string
	Type   FuncType
}

// Module is the output of Prepare.
type Module struct {
	// Code is the instrumented bytecode handed to engines.
	Code []byte

	// Version is the pipeline that produced Code.
	Version config.PrepareVersion

	// Imports lists imported functions in index order.
	Imports []Import

	// HasMemory is true when the module defines a memory, exported as MemoryExport.
	HasMemory bool

	exports map[string]FuncType
}

// Export looks up an exported function's signature.
func (m *Module) Export(name string) (FuncType, bool) {
	ft, ok := m.exports[name]
	return ft, ok
}

// Exports returns the names of all exported functions, sorted.
func (m *Module) Exports() []string {
	names := make([]string, 0, len(m.exports))
	for name := range m.exports {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
