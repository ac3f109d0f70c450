package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/holiman/uint256"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/roach88/vmparity/internal/config"
	"github.com/roach88/vmparity/internal/logic"
	"github.com/roach88/vmparity/internal/runner"
)

// Scenario is a differential run described in YAML.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// WAT is the contract in WebAssembly text. Exactly one of WAT and
	// WasmFile is set.
	WAT string `yaml:"wat,omitempty"`

	// WasmFile is a path to contract bytecode, relative to the scenario file.
	WasmFile string `yaml:"wasm_file,omitempty"`

	// Method defaults to "main".
	Method string `yaml:"method,omitempty"`

	// Gas overrides the prepaid gas.
	Gas *uint64 `yaml:"gas,omitempty"`

	OpaqueError   bool `yaml:"opaque_error,omitempty"`
	OpaqueOutcome bool `yaml:"opaque_outcome,omitempty"`

	// Skip excludes backends by name.
	Skip []runner.Kind `yaml:"skip,omitempty"`

	// Only restricts the run to a single backend.
	Only *runner.Kind `yaml:"only,omitempty"`

	// ProtocolFeatures adds the last version before each named feature.
	ProtocolFeatures []string `yaml:"protocol_features,omitempty"`

	// ProtocolVersions adds versions to the default Newest.
	ProtocolVersions []config.ProtocolVersion `yaml:"protocol_versions,omitempty"`

	// OnlyProtocolVersions replaces the version set.
	OnlyProtocolVersions []config.ProtocolVersion `yaml:"only_protocol_versions,omitempty"`

	// Context overrides fields of the default execution context.
	Context *ContextOverrides `yaml:"context,omitempty"`

	// Expect holds one rendering per protocol version, in ascending version
	// order.
	Expect []string `yaml:"expect"`

	dir string
}

// ContextOverrides are the execution context fields a scenario may set.
// Balances are decimal strings.
type ContextOverrides struct {
	CurrentAccountID     *string `yaml:"current_account_id,omitempty"`
	SignerAccountID      *string `yaml:"signer_account_id,omitempty"`
	PredecessorAccountID *string `yaml:"predecessor_account_id,omitempty"`
	Input                *string `yaml:"input,omitempty"`
	BlockHeight          *uint64 `yaml:"block_height,omitempty"`
	BlockTimestamp       *uint64 `yaml:"block_timestamp,omitempty"`
	EpochHeight          *uint64 `yaml:"epoch_height,omitempty"`
	AccountBalance       *string `yaml:"account_balance,omitempty"`
	AccountLockedBalance *string `yaml:"account_locked_balance,omitempty"`
	StorageUsage         *uint64 `yaml:"storage_usage,omitempty"`
	AttachedDeposit      *string `yaml:"attached_deposit,omitempty"`

	// ViewMaxGasBurnt turns the call into a view call.
	ViewMaxGasBurnt *uint64 `yaml:"view_max_gas_burnt,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields, or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Names select scenarios on the command line and key run history, so
	// canonically equivalent spellings must not count as distinct.
	scenario.Name = norm.NFC.String(scenario.Name)
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	scenario.dir = filepath.Dir(path)

	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	names := make(map[string]string, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		if prev, ok := names[s.Name]; ok {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", filepath.Base(p), s.Name, prev)
		}
		names[s.Name] = filepath.Base(p)
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if (s.WAT == "") == (s.WasmFile == "") {
		return fmt.Errorf("exactly one of wat and wasm_file is required")
	}

	if len(s.Expect) == 0 {
		return fmt.Errorf("expect list is required and must be non-empty")
	}

	if len(s.OnlyProtocolVersions) > 0 && len(s.ProtocolVersions)+len(s.ProtocolFeatures) > 0 {
		return fmt.Errorf("only_protocol_versions cannot be combined with protocol_versions or protocol_features")
	}

	for _, name := range s.ProtocolFeatures {
		if _, err := config.ParseFeature(name); err != nil {
			return err
		}
	}

	if c := s.Context; c != nil {
		for field, v := range map[string]*string{
			"account_balance":        c.AccountBalance,
			"account_locked_balance": c.AccountLockedBalance,
			"attached_deposit":       c.AttachedDeposit,
		} {
			if v == nil {
				continue
			}
			if _, err := uint256.FromDecimal(*v); err != nil {
				return fmt.Errorf("context.%s: %w", field, err)
			}
		}
	}

	return nil
}

// Config builds the Config the scenario describes on top of base.
func (s *Scenario) Config(base Config) (Config, error) {
	c := base
	if s.WAT != "" {
		c = c.WAT(s.WAT)
	} else {
		path := s.WasmFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.dir, path)
		}
		code, err := os.ReadFile(path)
		if err != nil {
			return Config{}, &ConfigError{Op: "wasm_file", Err: err}
		}
		c = c.Wasm(code)
	}

	if s.Method != "" {
		c = c.Method(s.Method)
	}
	if s.Gas != nil {
		c = c.Gas(*s.Gas)
	}
	if s.OpaqueError {
		c = c.OpaqueError()
	}
	if s.OpaqueOutcome {
		c = c.OpaqueOutcome()
	}
	c = c.Skip(s.Skip...)
	if s.Only != nil {
		c = c.Only(*s.Only)
	}

	for _, name := range s.ProtocolFeatures {
		f, err := config.ParseFeature(name)
		if err != nil {
			return Config{}, &ConfigError{Op: "protocol_features", Err: err}
		}
		c = c.ProtocolFeatures(f)
	}
	for _, v := range s.ProtocolVersions {
		c = c.ProtocolVersion(v)
	}
	if len(s.OnlyProtocolVersions) > 0 {
		c = c.OnlyProtocolVersions(slices.Clone(s.OnlyProtocolVersions)...)
	}

	if s.Context != nil {
		c = c.Context(s.Context.apply)
	}
	return c, nil
}

// Expectations returns the scenario's expected renderings.
func (s *Scenario) Expectations() []Expectation {
	out := make([]Expectation, len(s.Expect))
	for i, e := range s.Expect {
		out[i] = Expect(e)
	}
	return out
}

// Run runs the scenario on top of base.
func (s *Scenario) Run(base Config) error {
	c, err := s.Config(base)
	if err != nil {
		return err
	}
	return c.Run(s.Expectations()...)
}

func (o *ContextOverrides) apply(ctx *logic.Context) {
	if o.CurrentAccountID != nil {
		ctx.CurrentAccountID = logic.AccountID(*o.CurrentAccountID)
	}
	if o.SignerAccountID != nil {
		ctx.SignerAccountID = logic.AccountID(*o.SignerAccountID)
	}
	if o.PredecessorAccountID != nil {
		ctx.PredecessorAccountID = logic.AccountID(*o.PredecessorAccountID)
	}
	if o.Input != nil {
		ctx.Input = []byte(*o.Input)
	}
	if o.BlockHeight != nil {
		ctx.BlockHeight = *o.BlockHeight
	}
	if o.BlockTimestamp != nil {
		ctx.BlockTimestamp = *o.BlockTimestamp
	}
	if o.EpochHeight != nil {
		ctx.EpochHeight = *o.EpochHeight
	}
	// Balances were checked by validateScenario.
	if o.AccountBalance != nil {
		ctx.AccountBalance = uint256.MustFromDecimal(*o.AccountBalance)
	}
	if o.AccountLockedBalance != nil {
		ctx.AccountLockedBalance = uint256.MustFromDecimal(*o.AccountLockedBalance)
	}
	if o.AttachedDeposit != nil {
		ctx.AttachedDeposit = uint256.MustFromDecimal(*o.AttachedDeposit)
	}
	if o.StorageUsage != nil {
		ctx.StorageUsage = *o.StorageUsage
	}
	if o.ViewMaxGasBurnt != nil {
		ctx.View = &logic.ViewConfig{MaxGasBurnt: *o.ViewMaxGasBurnt}
	}
}
