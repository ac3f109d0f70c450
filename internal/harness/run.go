package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/vmparity/internal/config"
	"github.com/roach88/vmparity/internal/contract"
	"github.com/roach88/vmparity/internal/logic"
	"github.com/roach88/vmparity/internal/outcome"
	"github.com/roach88/vmparity/internal/runner"
)

// Plan is a finalized Config, ready to run.
type Plan struct {
	code          *contract.Code
	method        string
	ctx           logic.Context
	versions      []config.ProtocolVersion // ascending
	skip          kindSet
	opaqueError   bool
	opaqueOutcome bool

	store    *config.Store
	logger   *slog.Logger
	recorder Recorder
	registry runner.Registry
	cache    runner.Cache
}

// Versions returns the versions the plan runs, ascending.
func (p *Plan) Versions() []config.ProtocolVersion {
	return append([]config.ProtocolVersion{}, p.versions...)
}

// Run checks wants[i] against the agreed rendering of the i-th version.
func (p *Plan) Run(wants ...Expectation) error {
	if len(wants) != len(p.versions) {
		return &ExpectationCountError{Versions: len(p.versions), Expectations: len(wants)}
	}
	for i, v := range p.versions {
		if err := p.runVersion(v, wants[i]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Plan) runVersion(v config.ProtocolVersion, want Expectation) error {
	cfg := p.store.Config(v)
	opts := outcome.RenderOptions{OpaqueOutcome: p.opaqueOutcome, OpaqueError: p.opaqueError}

	var (
		ref     string
		refKind runner.Kind
		ran     bool
	)
	for _, kind := range p.registry.Kinds() {
		if p.skip.has(kind) {
			continue
		}
		r, err := p.registry.For(kind, &cfg.Wasm)
		if errors.Is(err, runner.ErrUnavailable) {
			continue
		}
		if err != nil {
			return &FatalFaultError{Kind: kind, Version: v, Err: err}
		}
		if pv := r.PrepareVersion(); pv != config.PrepareAny && pv != cfg.Wasm.Limits.PrepareVersion {
			p.logger.Debug("backend skipped", "kind", kind, "version", v, "requires", pv)
			continue
		}

		o, err := r.Run(p.code, p.method, logic.NewMockedExternal(), p.ctx.Clone(),
			config.TestFees(), nil, p.cache)
		if err != nil {
			return &FatalFaultError{Kind: kind, Version: v, Err: err}
		}
		got, err := outcome.Render(o, opts)
		if err != nil {
			return fmt.Errorf("protocol version %s: %s: %w", v, kind, err)
		}
		p.logger.Debug("backend ran", "kind", kind, "version", v, "aborted", o.Aborted != nil, "burnt_gas", o.BurntGas)

		if p.recorder != nil {
			rec := RunRecord{
				CodeHash:  p.code.Hash(),
				Method:    p.method,
				Version:   v,
				Kind:      kind,
				Rendering: got,
				Aborted:   o.Aborted != nil,
			}
			if err := p.recorder.Record(context.Background(), rec); err != nil {
				return fmt.Errorf("failed to record run: %w", err)
			}
		}

		if !ran {
			ref, refKind, ran = got, kind, true
			continue
		}
		if got != ref {
			return &DivergenceError{Version: v, RefKind: refKind, RefRendering: ref, Kind: kind, Rendering: got}
		}
	}

	if !ran {
		p.logger.Debug("no backend ran", "version", v)
		return nil
	}
	if err := want.Check(ref); err != nil {
		var m *MismatchError
		if errors.As(err, &m) {
			m.Version = v
		}
		return err
	}
	return nil
}
