package harness

import (
	"errors"
	"fmt"

	"github.com/roach88/vmparity/internal/config"
	"github.com/roach88/vmparity/internal/runner"
)

// ConfigError reports a Config that could not be built, such as unparseable
// WebAssembly text.
type ConfigError struct {
	Op  string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config (%s): %v", e.Op, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ExpectationCountError reports a run given a different number of
// expectations than it has protocol versions. Nothing is executed.
type ExpectationCountError struct {
	Versions     int
	Expectations int
}

func (e *ExpectationCountError) Error() string {
	return fmt.Sprintf("got %d expectations for %d protocol versions", e.Expectations, e.Versions)
}

// FatalFaultError reports a backend that failed in a way unrelated to the
// contract.
type FatalFaultError struct {
	Kind    runner.Kind
	Version config.ProtocolVersion
	Err     error
}

func (e *FatalFaultError) Error() string {
	return fmt.Sprintf("protocol version %s: %s failed: %v", e.Version, e.Kind, e.Err)
}

func (e *FatalFaultError) Unwrap() error {
	return e.Err
}

// DivergenceError reports two backends rendering the same run differently.
type DivergenceError struct {
	Version      config.ProtocolVersion
	RefKind      runner.Kind
	RefRendering string
	Kind         runner.Kind
	Rendering    string
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("protocol version %s: %s and %s disagree\n--- %s\n%s--- %s\n%s",
		e.Version, e.RefKind, e.Kind, e.RefKind, e.RefRendering, e.Kind, e.Rendering)
}

// MismatchError reports an agreed rendering that differs from the expectation.
type MismatchError struct {
	Version config.ProtocolVersion
	Want    string
	Got     string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("protocol version %s: unexpected rendering\n--- want\n%s--- got\n%s", e.Version, e.Want, e.Got)
}

// IsDivergence reports whether err is a *DivergenceError.
func IsDivergence(err error) bool {
	var d *DivergenceError
	return errors.As(err, &d)
}

// IsMismatch reports whether err is a *MismatchError.
func IsMismatch(err error) bool {
	var m *MismatchError
	return errors.As(err, &m)
}
