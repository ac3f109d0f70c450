package outcome

import (
	"fmt"

	"github.com/holiman/uint256"
)

// ReturnKind discriminates the variants of ReturnData.
type ReturnKind int

const (
	// ReturnNone means the method returned nothing.
	ReturnNone ReturnKind = iota
	// ReturnReceipt means the method returned the result of a receipt.
	ReturnReceipt
	// ReturnValue means the method returned a byte value.
	ReturnValue
)

// ReturnData describes what a method returned.
// Exactly one of ReceiptIndex or Value is meaningful, selected by Kind.
type ReturnData struct {
	Kind         ReturnKind
	ReceiptIndex uint64
	Value        []byte
}

// NoReturn is the zero ReturnData.
func NoReturn() ReturnData {
	return ReturnData{Kind: ReturnNone}
}

// ReturnReceiptIndex builds a ReturnData pointing at receipt idx.
func ReturnReceiptIndex(idx uint64) ReturnData {
	return ReturnData{Kind: ReturnReceipt, ReceiptIndex: idx}
}

// ReturnBytes builds a ReturnData holding a copy of v.
func ReturnBytes(v []byte) ReturnData {
	return ReturnData{Kind: ReturnValue, Value: append([]byte{}, v...)}
}

// Descriptor renders the return data without its payload.
func (r ReturnData) Descriptor() string {
	switch r.Kind {
	case ReturnReceipt:
		return "Receipt"
	case ReturnValue:
		return fmt.Sprintf("Value [%d]", len(r.Value))
	default:
		return "None"
	}
}

// Outcome is the observable result of one contract execution.
type Outcome struct {
	Balance      *uint256.Int
	StorageUsage uint64
	ReturnData   ReturnData
	BurntGas     uint64
	UsedGas      uint64

	// Logs are collected for diagnostics only and never rendered.
	Logs []string

	// Aborted is nil when the method ran to completion.
	Aborted error
}

// Abort returns the abort message, or "" when the run did not abort.
func (o *Outcome) Abort() string {
	if o.Aborted == nil {
		return ""
	}
	return o.Aborted.Error()
}
