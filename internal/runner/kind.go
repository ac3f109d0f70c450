package runner

import (
	"fmt"
	"slices"
)

// Kind identifies a backend. Kinds are ordered by priority: the most
// preferred production backend first.
type Kind int

const (
	WazeroCompiler Kind = iota
	Wasmer
	WazeroInterpreter
)

var kindNames = []string{
	WazeroCompiler:    "wazero-compiler",
	Wasmer:            "wasmer",
	WazeroInterpreter: "wazero-interpreter",
}

// Kinds returns every backend in priority order.
func Kinds() []Kind {
	return []Kind{WazeroCompiler, Wasmer, WazeroInterpreter}
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind parses the String form of a Kind.
func ParseKind(s string) (Kind, error) {
	i := slices.Index(kindNames, s)
	if i < 0 {
		return 0, fmt.Errorf("unknown backend %q (want one of %v)", s, kindNames)
	}
	return Kind(i), nil
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
