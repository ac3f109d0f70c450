package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/vmparity/internal/logic"
)

func TestClassifyTrap(t *testing.T) {
	tests := []struct {
		msg  string
		want logic.TrapKind
	}{
		{"wasm error: unreachable\nwasm stack trace:\n\t.$0()", logic.TrapUnreachable},
		{"unreachable", logic.TrapUnreachable},
		{"wasm error: integer divide by zero", logic.TrapIllegalArithmetic},
		{"integer overflow", logic.TrapIllegalArithmetic},
		{"wasm error: invalid conversion to integer", logic.TrapIllegalArithmetic},
		{"wasm error: out of bounds memory access", logic.TrapMemoryOutOfBounds},
		{"wasm error: indirect call type mismatch", logic.TrapIncorrectCallIndirectSignature},
		{"wasm error: invalid table access", logic.TrapCallIndirectOOB},
		{"undefined element: out of bounds table access", logic.TrapCallIndirectOOB},
		{"uninitialized element", logic.TrapCallIndirectOOB},
		{"wasm error: stack overflow", logic.TrapStackOverflow},
		{"call stack exhausted", logic.TrapStackOverflow},
		{"something else entirely", logic.TrapGeneric},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyTrap(tt.msg), tt.msg)
	}
}
