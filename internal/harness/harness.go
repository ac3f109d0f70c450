package harness

import (
	"io"
	"iter"
	"log/slog"
	"slices"
	"testing"

	"github.com/holiman/uint256"

	"github.com/roach88/vmparity/internal/config"
	"github.com/roach88/vmparity/internal/contract"
	"github.com/roach88/vmparity/internal/logic"
	"github.com/roach88/vmparity/internal/runner"
)

// DefaultMethod is the method run unless Method is called.
const DefaultMethod = "main"

// kindSet is a set of backends. It is a value, so copying a Config copies it.
type kindSet uint32

func (s kindSet) with(kinds ...runner.Kind) kindSet {
	for _, k := range kinds {
		s |= 1 << uint(k)
	}
	return s
}

func (s kindSet) has(k runner.Kind) bool {
	return s&(1<<uint(k)) != 0
}

func (s kindSet) kinds() []runner.Kind {
	var out []runner.Kind
	for _, k := range runner.Kinds() {
		if s.has(k) {
			out = append(out, k)
		}
	}
	return out
}

// Config describes a differential run. The zero value is not usable; start
// from New. Every method returns a modified copy and leaves the receiver
// untouched.
type Config struct {
	code          *contract.Code
	err           error
	method        string
	ctx           logic.Context
	versions      []config.ProtocolVersion
	skip          kindSet
	opaqueError   bool
	opaqueOutcome bool

	store    *config.Store
	logger   *slog.Logger
	recorder Recorder
	registry runner.Registry
}

// DefaultContext is the execution context every Config starts from.
func DefaultContext() logic.Context {
	return logic.Context{
		CurrentAccountID:     "alice",
		SignerAccountID:      "bob",
		SignerAccountPK:      []byte{0, 1, 2},
		PredecessorAccountID: "carol",
		Input:                []byte{},
		BlockHeight:          10,
		BlockTimestamp:       42,
		EpochHeight:          1,
		AccountBalance:       uint256.NewInt(2),
		AccountLockedBalance: uint256.NewInt(0),
		StorageUsage:         12,
		AttachedDeposit:      uint256.NewInt(2),
		PrepaidGas:           100_000_000_000_000,
		RandomSeed:           []byte{0, 1, 2},
	}
}

// New returns a Config with the default context, method "main", the Newest
// protocol version, and every backend unavailable on this platform excluded.
func New() Config {
	return Config{
		code:     contract.New(nil, ""),
		method:   DefaultMethod,
		ctx:      DefaultContext(),
		versions: []config.ProtocolVersion{config.Newest},
		skip:     kindSet(0).with(runner.PlatformExcluded()...),
		store:    config.Default(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		registry: runner.DefaultRegistry(),
	}
}

// WAT sets the contract from WebAssembly text. A parse failure is reported
// when the Config is run.
func (c Config) WAT(src string) Config {
	code, err := contract.FromWAT(src)
	if err != nil {
		if c.err == nil {
			c.err = &ConfigError{Op: "wat", Err: err}
		}
		return c
	}
	c.code = code
	return c
}

// Wasm sets the contract from bytecode.
func (c Config) Wasm(code []byte) Config {
	c.code = contract.New(code, "")
	return c
}

// Code returns the configured contract.
func (c Config) Code() *contract.Code {
	return c.code
}

// Method sets the exported function to call. It must take and return nothing.
func (c Config) Method(name string) Config {
	c.method = name
	return c
}

// Gas sets the prepaid gas.
func (c Config) Gas(gas uint64) Config {
	c.ctx.PrepaidGas = gas
	return c
}

// Context edits a copy of the execution context.
func (c Config) Context(edit func(*logic.Context)) Config {
	c.ctx = c.ctx.Clone()
	edit(&c.ctx)
	return c
}

// OpaqueError renders aborts as a placeholder instead of their message.
func (c Config) OpaqueError() Config {
	c.opaqueError = true
	return c
}

// OpaqueOutcome omits the outcome line from renderings.
func (c Config) OpaqueOutcome() Config {
	c.opaqueOutcome = true
	return c
}

// Skip excludes backends. Exclusions are never lifted.
func (c Config) Skip(kinds ...runner.Kind) Config {
	c.skip = c.skip.with(kinds...)
	return c
}

func (c Config) SkipWazeroCompiler() Config    { return c.Skip(runner.WazeroCompiler) }
func (c Config) SkipWasmer() Config            { return c.Skip(runner.Wasmer) }
func (c Config) SkipWazeroInterpreter() Config { return c.Skip(runner.WazeroInterpreter) }

// Only excludes every backend but kind.
func (c Config) Only(kind runner.Kind) Config {
	for _, k := range runner.Kinds() {
		if k != kind {
			c = c.Skip(k)
		}
	}
	return c
}

// Skipped returns the excluded backends in priority order.
func (c Config) Skipped() []runner.Kind {
	return c.skip.kinds()
}

// ProtocolFeatures adds, per feature, the last version before it activates.
func (c Config) ProtocolFeatures(features ...config.ProtocolFeature) Config {
	for _, f := range features {
		c = c.ProtocolVersion(f.ProtocolVersion() - 1)
	}
	return c
}

// ProtocolVersion adds v to the versions under test.
func (c Config) ProtocolVersion(v config.ProtocolVersion) Config {
	c.versions = append(slices.Clone(c.versions), v)
	return c
}

// OnlyProtocolVersions replaces the versions under test.
func (c Config) OnlyProtocolVersions(vs ...config.ProtocolVersion) Config {
	c.versions = slices.Clone(vs)
	return c
}

// Versions returns the versions under test in accumulation order.
func (c Config) Versions() []config.ProtocolVersion {
	return slices.Clone(c.versions)
}

// Configs yields the resolved configuration of every version under test, in
// accumulation order.
func (c Config) Configs() iter.Seq[*config.RuntimeConfig] {
	versions := slices.Clone(c.versions)
	store := c.store
	return func(yield func(*config.RuntimeConfig) bool) {
		for _, v := range versions {
			if !yield(store.Config(v)) {
				return
			}
		}
	}
}

// WithStore resolves runtime configurations from s.
func (c Config) WithStore(s *config.Store) Config {
	c.store = s
	return c
}

// WithLogger logs each backend run at debug level.
func (c Config) WithLogger(l *slog.Logger) Config {
	c.logger = l
	return c
}

// WithRecorder records each backend run.
func (c Config) WithRecorder(r Recorder) Config {
	c.recorder = r
	return c
}

// WithRegistry runs the backends of reg, in its order, instead of the
// built-in ones. Exclusions still apply by kind.
func (c Config) WithRegistry(reg runner.Registry) Config {
	c.registry = slices.Clone(reg)
	return c
}

// Plan finalizes the Config.
func (c Config) Plan() (*Plan, error) {
	if c.err != nil {
		return nil, c.err
	}
	versions := slices.Clone(c.versions)
	slices.Sort(versions)
	return &Plan{
		code:          c.code,
		method:        c.method,
		ctx:           c.ctx.Clone(),
		versions:      versions,
		skip:          c.skip,
		opaqueError:   c.opaqueError,
		opaqueOutcome: c.opaqueOutcome,
		store:         c.store,
		logger:        c.logger,
		recorder:      c.recorder,
		registry:      c.registry,
		cache:         runner.NewMemoryCache(),
	}, nil
}

// Run plans and runs the Config against one expectation per version.
func (c Config) Run(wants ...Expectation) error {
	p, err := c.Plan()
	if err != nil {
		return err
	}
	return p.Run(wants...)
}

// Expect runs the Config with a single expectation and fails t on error.
func (c Config) Expect(t testing.TB, want Expectation) {
	t.Helper()
	c.Expects(t, want)
}

// Expects runs the Config with one expectation per version and fails t on
// error.
func (c Config) Expects(t testing.TB, wants ...Expectation) {
	t.Helper()
	if err := c.Run(wants...); err != nil {
		t.Fatal(err)
	}
}
