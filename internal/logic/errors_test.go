package logic

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFunctionCallError_Text(t *testing.T) {
	tests := []struct {
		err  FunctionCallError
		want string
	}{
		{&PrepareError{Kind: "Deserialization"}, "PrepareError: Deserialization"},
		{&CompilationError{Detail: "engine specific"}, "CompilationError: ValidationFailed"},
		{&MethodResolveError{Kind: MethodNotFound}, "MethodResolveError: MethodNotFound"},
		{&WasmTrap{Kind: TrapIllegalArithmetic}, "WasmTrap: IllegalArithmetic"},
		{hostError(HostGasExceeded), "HostError: GasExceeded"},
		{&HostError{Kind: HostGuestPanic, PanicMsg: "say \"hi\""}, `HostError: GuestPanic { panic_msg: "say \"hi\"" }`},
		{&HostError{Kind: HostInvalidPromiseResultIndex, Index: 4}, "HostError: InvalidPromiseResultIndex { result_idx: 4 }"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
}

func TestAsFunctionCallError(t *testing.T) {
	wrapped := fmt.Errorf("engine trap: %w", &WasmTrap{Kind: TrapUnreachable})
	fce, ok := AsFunctionCallError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "WasmTrap: Unreachable", fce.Error())

	_, ok = AsFunctionCallError(&ExternalError{Op: "storage get", Err: fmt.Errorf("disk")})
	assert.False(t, ok)
	assert.False(t, IsGasError(&WasmTrap{Kind: TrapUnreachable}))
	assert.True(t, IsGasError(hostError(HostGasLimitExceeded)))
}
