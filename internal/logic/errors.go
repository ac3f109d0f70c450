package logic

import (
	"errors"
	"fmt"
	"strconv"
)

// FunctionCallError is a contract-level abort. Its text is identical for
// every backend, so it can be compared across engines.
//
// The concrete types are:
//   - *PrepareError: the bytecode was rejected before compilation
//   - *CompilationError: the engine rejected the prepared bytecode
//   - *MethodResolveError: the requested method cannot be called
//   - *WasmTrap: the guest trapped
//   - *HostError: a host function aborted the call
type FunctionCallError interface {
	error
	functionCallError()
}

// PrepareError wraps a preparation pipeline rejection kind.
type PrepareError struct {
	Kind string
}

func (e *PrepareError) Error() string { return "PrepareError: " + e.Kind }
func (*PrepareError) functionCallError() {}

// CompilationError means the engine refused to compile a prepared module.
// Engine diagnostics are kept in Detail and never rendered.
type CompilationError struct {
	Detail string
}

func (e *CompilationError) Error() string { return "CompilationError: ValidationFailed" }
func (*CompilationError) functionCallError() {}

// MethodResolveErrorKind categorizes method resolution failures.
type MethodResolveErrorKind string

const (
	MethodEmptyName        MethodResolveErrorKind = "MethodEmptyName"
	MethodNotFound         MethodResolveErrorKind = "MethodNotFound"
	MethodInvalidSignature MethodResolveErrorKind = "MethodInvalidSignature"
)

type MethodResolveError struct {
	Kind MethodResolveErrorKind
}

func (e *MethodResolveError) Error() string { return "MethodResolveError: " + string(e.Kind) }
func (*MethodResolveError) functionCallError() {}

// TrapKind categorizes guest traps independently of engine wording.
type TrapKind string

const (
	TrapUnreachable                    TrapKind = "Unreachable"
	TrapIllegalArithmetic              TrapKind = "IllegalArithmetic"
	TrapMemoryOutOfBounds              TrapKind = "MemoryOutOfBounds"
	TrapCallIndirectOOB                TrapKind = "CallIndirectOOB"
	TrapIncorrectCallIndirectSignature TrapKind = "IncorrectCallIndirectSignature"
	TrapStackOverflow                  TrapKind = "StackOverflow"
	TrapGeneric                        TrapKind = "GenericTrap"
)

type WasmTrap struct {
	Kind TrapKind
}

func (e *WasmTrap) Error() string { return "WasmTrap: " + string(e.Kind) }
func (*WasmTrap) functionCallError() {}

// HostErrorKind categorizes host function aborts.
type HostErrorKind string

const (
	HostGasExceeded                 HostErrorKind = "GasExceeded"
	HostGasLimitExceeded            HostErrorKind = "GasLimitExceeded"
	HostGuestPanic                  HostErrorKind = "GuestPanic"
	HostBadUTF8                     HostErrorKind = "BadUTF8"
	HostMemoryAccessViolation       HostErrorKind = "MemoryAccessViolation"
	HostInvalidRegisterID           HostErrorKind = "InvalidRegisterId"
	HostProhibitedInView            HostErrorKind = "ProhibitedInView"
	HostKeyLengthExceeded           HostErrorKind = "KeyLengthExceeded"
	HostValueLengthExceeded         HostErrorKind = "ValueLengthExceeded"
	HostNumberOfLogsExceeded        HostErrorKind = "NumberOfLogsExceeded"
	HostTotalLogLengthExceeded      HostErrorKind = "TotalLogLengthExceeded"
	HostInvalidPromiseIndex         HostErrorKind = "InvalidPromiseIndex"
	HostInvalidPromiseResultIndex   HostErrorKind = "InvalidPromiseResultIndex"
	HostReturnedValueLengthExceeded HostErrorKind = "ReturnedValueLengthExceeded"
	HostBalanceExceeded             HostErrorKind = "BalanceExceeded"
	HostRegisterSizeExceeded        HostErrorKind = "RegisterSizeExceeded"
	HostNumberOfRegistersExceeded   HostErrorKind = "NumberOfRegistersExceeded"
)

// HostError is an abort raised by a host function. Only the field matching
// Kind is rendered.
type HostError struct {
	Kind HostErrorKind

	PanicMsg   string // GuestPanic
	MethodName string // ProhibitedInView
	Index      uint64 // InvalidRegisterId, InvalidPromiseIndex, InvalidPromiseResultIndex
}

func (e *HostError) Error() string {
	switch e.Kind {
	case HostGuestPanic:
		return fmt.Sprintf("HostError: GuestPanic { panic_msg: %s }", strconv.Quote(e.PanicMsg))
	case HostProhibitedInView:
		return fmt.Sprintf("HostError: ProhibitedInView { method_name: %s }", strconv.Quote(e.MethodName))
	case HostInvalidRegisterID:
		return fmt.Sprintf("HostError: InvalidRegisterId { register_id: %d }", e.Index)
	case HostInvalidPromiseIndex:
		return fmt.Sprintf("HostError: InvalidPromiseIndex { promise_idx: %d }", e.Index)
	case HostInvalidPromiseResultIndex:
		return fmt.Sprintf("HostError: InvalidPromiseResultIndex { result_idx: %d }", e.Index)
	default:
		return "HostError: " + string(e.Kind)
	}
}

func (*HostError) functionCallError() {}

func hostError(kind HostErrorKind) *HostError {
	return &HostError{Kind: kind}
}

// ExternalError is a failure of the External implementation. It is not a
// contract abort: runners report it as a fault.
type ExternalError struct {
	Op  string
	Err error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("external %s: %v", e.Op, e.Err)
}

func (e *ExternalError) Unwrap() error {
	return e.Err
}

// IsGasError reports whether err is a gas exhaustion abort.
func IsGasError(err error) bool {
	var he *HostError
	if errors.As(err, &he) {
		return he.Kind == HostGasExceeded || he.Kind == HostGasLimitExceeded
	}
	return false
}

// AsFunctionCallError extracts the contract-level abort from err, if any.
func AsFunctionCallError(err error) (FunctionCallError, bool) {
	var fce FunctionCallError
	if errors.As(err, &fce) {
		return fce, true
	}
	return nil, false
}
