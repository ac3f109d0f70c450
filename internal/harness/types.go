package harness

import (
	"context"

	"github.com/roach88/vmparity/internal/config"
	"github.com/roach88/vmparity/internal/runner"
)

// RunRecord describes one backend run.
type RunRecord struct {
	CodeHash  string
	Method    string
	Version   config.ProtocolVersion
	Kind      runner.Kind
	Rendering string
	Aborted   bool
}

// Recorder receives a RunRecord for every backend that ran.
type Recorder interface {
	Record(ctx context.Context, rec RunRecord) error
}
