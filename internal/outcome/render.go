package outcome

import (
	"fmt"
	"strings"
)

// MaxAbortMessageLen bounds abort messages. Longer messages could be used to
// bloat persisted execution logs, so they are rejected rather than truncated.
const MaxAbortMessageLen = 1000

// OpaqueErrorPlaceholder replaces the abort message when error detail is redacted.
const OpaqueErrorPlaceholder = "..."

// RenderOptions controls which parts of an Outcome appear in its rendering.
type RenderOptions struct {
	// OpaqueOutcome omits the balance/storage/return/gas line entirely.
	OpaqueOutcome bool

	// OpaqueError prints the placeholder instead of the abort message.
	// Used when only the presence of an abort matters, not its wording.
	OpaqueError bool
}

// AbortTooLongError reports an abort message at or above MaxAbortMessageLen.
type AbortTooLongError struct {
	Len int
}

func (e *AbortTooLongError) Error() string {
	return fmt.Sprintf("abort message is %d bytes, must be shorter than %d", e.Len, MaxAbortMessageLen)
}

// Render produces the canonical rendering of o.
func Render(o *Outcome, opts RenderOptions) (string, error) {
	var b strings.Builder

	if !opts.OpaqueOutcome {
		balance := "0"
		if o.Balance != nil {
			balance = o.Balance.Dec()
		}
		fmt.Fprintf(&b, "balance=%s storage_usage=%d return_data=%s burnt_gas=%d used_gas=%d\n",
			balance, o.StorageUsage, o.ReturnData.Descriptor(), o.BurntGas, o.UsedGas)
	}

	if o.Aborted != nil {
		msg := o.Aborted.Error()
		if len(msg) >= MaxAbortMessageLen {
			return "", &AbortTooLongError{Len: len(msg)}
		}
		if opts.OpaqueError {
			msg = OpaqueErrorPlaceholder
		}
		fmt.Fprintf(&b, "Err: %s\n", msg)
	}

	return b.String(), nil
}
