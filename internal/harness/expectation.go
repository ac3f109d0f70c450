package harness

// Expectation checks the agreed rendering of one protocol version.
type Expectation interface {
	// Check returns a *MismatchError when got is not what was expected.
	Check(got string) error
}

// Expect is an inline expected rendering.
type Expect string

func (e Expect) Check(got string) error {
	if string(e) != got {
		return &MismatchError{Want: string(e), Got: got}
	}
	return nil
}

// ExpectFunc adapts a function to Expectation.
type ExpectFunc func(got string) error

func (f ExpectFunc) Check(got string) error {
	return f(got)
}
