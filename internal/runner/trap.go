package runner

import (
	"strings"

	"github.com/roach88/vmparity/internal/logic"
)

// trapPatterns maps engine trap wording to a trap kind. Patterns are matched
// as substrings in order, so more specific wording comes first.
var trapPatterns = []struct {
	text string
	kind logic.TrapKind
}{
	{"stack overflow", logic.TrapStackOverflow},
	{"call stack exhausted", logic.TrapStackOverflow},
	{"integer divide by zero", logic.TrapIllegalArithmetic},
	{"integer overflow", logic.TrapIllegalArithmetic},
	{"invalid conversion to integer", logic.TrapIllegalArithmetic},
	{"out of bounds memory access", logic.TrapMemoryOutOfBounds},
	{"indirect call type mismatch", logic.TrapIncorrectCallIndirectSignature},
	{"invalid table access", logic.TrapCallIndirectOOB},
	{"undefined element", logic.TrapCallIndirectOOB},
	{"uninitialized element", logic.TrapCallIndirectOOB},
	{"out of bounds table access", logic.TrapCallIndirectOOB},
	{"unreachable", logic.TrapUnreachable},
}

// classifyTrap maps an engine's trap message to a trap kind.
func classifyTrap(msg string) logic.TrapKind {
	msg = strings.ToLower(msg)
	for _, p := range trapPatterns {
		if strings.Contains(msg, p.text) {
			return p.kind
		}
	}
	return logic.TrapGeneric
}
