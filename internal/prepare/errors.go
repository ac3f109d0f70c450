package prepare

import "fmt"

// ErrorKind classifies why a module was rejected.
type ErrorKind string

const (
	Deserialization        ErrorKind = "Deserialization"
	ContractSizeExceeded   ErrorKind = "ContractSizeExceeded"
	TooManyFunctions       ErrorKind = "TooManyFunctions"
	Memory                 ErrorKind = "Memory"
	StartFunction          ErrorKind = "StartFunction"
	UnsupportedInstruction ErrorKind = "UnsupportedInstruction"
	ReservedExport         ErrorKind = "ReservedExport"
	Instantiate            ErrorKind = "Instantiate"
)

// Error is returned for every module the pipeline rejects.
// Kind is stable across releases; Detail is for humans only.
type Error struct {
	Kind   ErrorKind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return "prepare: " + string(e.Kind)
	}
	return fmt.Sprintf("prepare: %s: %s", e.Kind, e.Detail)
}

func errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
