package runner

import (
	"errors"
	"fmt"

	"github.com/roach88/vmparity/internal/config"
	"github.com/roach88/vmparity/internal/contract"
	"github.com/roach88/vmparity/internal/logic"
	"github.com/roach88/vmparity/internal/outcome"
	"github.com/roach88/vmparity/internal/prepare"
)

// Runner executes one method of a contract on one backend.
type Runner interface {
	Kind() Kind

	// PrepareVersion is the preparation pipeline the backend requires, or
	// config.PrepareAny.
	PrepareVersion() config.PrepareVersion

	// Run executes method. Side effects happen only through ext. Contract
	// aborts are reported in the outcome; a non-nil error is a *FatalFault.
	Run(code *contract.Code, method string, ext logic.External, ctx logic.Context,
		fees *config.Fees, promiseResults []logic.PromiseResult, cache Cache) (*outcome.Outcome, error)
}

// FatalFault is an engine-internal inconsistency. It never describes the
// contract; it means the backend itself misbehaved.
type FatalFault struct {
	Kind Kind
	Err  error
}

func (e *FatalFault) Error() string {
	return fmt.Sprintf("fatal fault in %s: %v", e.Kind, e.Err)
}

func (e *FatalFault) Unwrap() error {
	return e.Err
}

// engine is the backend-specific part of a run.
type engine interface {
	// execute instantiates m with l's host functions and calls method.
	// callErr is what the call returned, compilation and instantiation
	// failures included. fault reports engine failures unrelated to the
	// contract.
	execute(m *prepare.Module, method string, l *logic.Logic) (callErr error, fault error)
}

// Adapter builds runners for one backend.
type Adapter struct {
	Kind Kind

	// Available reports whether the backend can run on this platform.
	Available func() bool

	// New returns a runner executing under cfg.
	New func(cfg *config.WasmConfig) Runner
}

// Registry is an ordered list of adapters, most preferred first.
type Registry []Adapter

// DefaultRegistry returns the built-in backends in priority order.
func DefaultRegistry() Registry {
	return Registry{
		{
			Kind:      WazeroCompiler,
			Available: func() bool { return Available(WazeroCompiler) },
			New: func(cfg *config.WasmConfig) Runner {
				return &runner{kind: WazeroCompiler, cfg: cfg, version: config.PrepareV2, engine: &wazeroEngine{compiler: true}}
			},
		},
		{
			Kind:      Wasmer,
			Available: func() bool { return Available(Wasmer) },
			New: func(cfg *config.WasmConfig) Runner {
				return &runner{kind: Wasmer, cfg: cfg, version: config.PrepareAny, engine: newWasmerEngine()}
			},
		},
		{
			Kind:      WazeroInterpreter,
			Available: func() bool { return Available(WazeroInterpreter) },
			New: func(cfg *config.WasmConfig) Runner {
				return &runner{kind: WazeroInterpreter, cfg: cfg, version: config.PrepareAny, engine: &wazeroEngine{}}
			},
		},
	}
}

// Kinds returns the registered backends in order.
func (r Registry) Kinds() []Kind {
	out := make([]Kind, len(r))
	for i, a := range r {
		out[i] = a.Kind
	}
	return out
}

// For returns the runner for kind under cfg, or ErrUnavailable when kind is
// not registered or cannot run here.
func (r Registry) For(kind Kind, cfg *config.WasmConfig) (Runner, error) {
	for _, a := range r {
		if a.Kind != kind {
			continue
		}
		if a.Available != nil && !a.Available() {
			break
		}
		return a.New(cfg), nil
	}
	return nil, fmt.Errorf("%s: %w", kind, ErrUnavailable)
}

// For returns the built-in runner for kind under cfg, or ErrUnavailable.
func For(kind Kind, cfg *config.WasmConfig) (Runner, error) {
	return DefaultRegistry().For(kind, cfg)
}

type runner struct {
	kind    Kind
	cfg     *config.WasmConfig
	version config.PrepareVersion
	engine  engine
}

func (r *runner) Kind() Kind {
	return r.kind
}

func (r *runner) PrepareVersion() config.PrepareVersion {
	return r.version
}

func (r *runner) Run(code *contract.Code, method string, ext logic.External, ctx logic.Context,
	fees *config.Fees, promiseResults []logic.PromiseResult, cache Cache) (*outcome.Outcome, error) {
	l := logic.New(r.cfg, fees, ctx, ext, promiseResults)
	if method == "" {
		return l.Outcome(&logic.MethodResolveError{Kind: logic.MethodEmptyName}), nil
	}

	c := r.cfg.ExtCosts
	if err := l.Gas().ChargeMul(c.ContractLoadingBase, c.ContractLoadingBytes, uint64(code.Len())); err != nil {
		return l.Outcome(err), nil
	}

	m, err := prepareCached(cache, code, r.cfg)
	if err != nil {
		var perr *prepare.Error
		if errors.As(err, &perr) {
			return l.Outcome(&logic.PrepareError{Kind: string(perr.Kind)}), nil
		}
		return nil, &FatalFault{Kind: r.kind, Err: err}
	}

	ft, ok := m.Export(method)
	if !ok {
		return l.Outcome(&logic.MethodResolveError{Kind: logic.MethodNotFound}), nil
	}
	if !ft.Nullary() {
		return l.Outcome(&logic.MethodResolveError{Kind: logic.MethodInvalidSignature}), nil
	}
	if err := checkImports(m); err != nil {
		return l.Outcome(err), nil
	}

	callErr, fault := r.engine.execute(m, method, l)
	if fault != nil {
		return nil, &FatalFault{Kind: r.kind, Err: fault}
	}
	if callErr == nil {
		return l.Outcome(nil), nil
	}
	abort, err := classify(l, callErr)
	if err != nil {
		return nil, &FatalFault{Kind: r.kind, Err: err}
	}
	return l.Outcome(abort), nil
}

// classify turns a failed call into an abort. The host's own record wins
// over gas exhaustion, which wins over the engine's trap text.
func classify(l *logic.Logic, callErr error) (logic.FunctionCallError, error) {
	var compileErr *logic.CompilationError
	if errors.As(callErr, &compileErr) {
		return compileErr, nil
	}
	var prepErr *logic.PrepareError
	if errors.As(callErr, &prepErr) {
		return prepErr, nil
	}
	if herr := l.HostError(); herr != nil {
		if fce, ok := logic.AsFunctionCallError(herr); ok {
			return fce, nil
		}
		return nil, herr
	}
	if l.Gas().Exhausted() {
		return l.Gas().Exceeded(), nil
	}
	var trap *logic.WasmTrap
	if errors.As(callErr, &trap) {
		return trap, nil
	}
	return &logic.WasmTrap{Kind: classifyTrap(callErr.Error())}, nil
}

// checkImports links every import against the host function table.
func checkImports(m *prepare.Module) *logic.PrepareError {
	for _, imp := range m.Imports {
		if imp.Module != logic.ImportModule {
			return &logic.PrepareError{Kind: string(prepare.Instantiate)}
		}
		fn, ok := logic.LookupHostFunc(imp.Name)
		if !ok || !signatureMatches(fn, imp.Type) {
			return &logic.PrepareError{Kind: string(prepare.Instantiate)}
		}
	}
	return nil
}

func signatureMatches(fn *logic.HostFunc, ft prepare.FuncType) bool {
	if len(ft.Params) != fn.Params || len(ft.Results) != fn.Results {
		return false
	}
	for _, t := range append(append([]prepare.ValType{}, ft.Params...), ft.Results...) {
		if t != prepare.I64 {
			return false
		}
	}
	return true
}
