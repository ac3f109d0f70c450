//go:build !(cgo && (linux || darwin) && (amd64 || arm64))

package runner

import (
	"github.com/roach88/vmparity/internal/logic"
	"github.com/roach88/vmparity/internal/prepare"
)

func wasmerAvailable() bool {
	return false
}

func newWasmerEngine() engine {
	return unavailableEngine{}
}

type unavailableEngine struct{}

func (unavailableEngine) execute(*prepare.Module, string, *logic.Logic) (error, error) {
	return nil, ErrUnavailable
}
