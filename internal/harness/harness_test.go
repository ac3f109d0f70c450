package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vmparity/internal/config"
	"github.com/roach88/vmparity/internal/contract"
	"github.com/roach88/vmparity/internal/logic"
	"github.com/roach88/vmparity/internal/outcome"
	"github.com/roach88/vmparity/internal/runner"
)

const (
	noOpWAT        = `(module (func (export "main")))`
	unreachableWAT = `(module (func (export "main") unreachable))`
)

type memoryRecorder struct {
	records []RunRecord
}

func (r *memoryRecorder) Record(_ context.Context, rec RunRecord) error {
	r.records = append(r.records, rec)
	return nil
}

func (r *memoryRecorder) kinds(v config.ProtocolVersion) []runner.Kind {
	var out []runner.Kind
	for _, rec := range r.records {
		if rec.Version == v {
			out = append(out, rec.Kind)
		}
	}
	return out
}

// gasFor is the gas a run of code burns when it executes ops instructions.
func gasFor(t *testing.T, v config.ProtocolVersion, src string, ops uint64) uint64 {
	t.Helper()
	code, err := contract.FromWAT(src)
	require.NoError(t, err)
	w := config.Default().Config(v).Wasm
	return w.ExtCosts.ContractLoadingBase + w.ExtCosts.ContractLoadingBytes*uint64(code.Len()) + ops*w.RegularOpCost
}

func outcomeLine(gas uint64) string {
	return fmt.Sprintf("balance=2 storage_usage=12 return_data=None burnt_gas=%d used_gas=%d\n", gas, gas)
}

func TestRun_NoOpMethod(t *testing.T) {
	src := `(module (func (export "run")))`
	gas := gasFor(t, config.Newest, src, 1)
	require.LessOrEqual(t, gas, DefaultContext().PrepaidGas)

	New().WAT(src).Method("run").Expect(t, Expect(outcomeLine(gas)))
}

func TestRun_UnreachableAborts(t *testing.T) {
	gas := gasFor(t, config.Newest, unreachableWAT, 2)
	base := New().WAT(unreachableWAT)

	base.Expect(t, Expect(outcomeLine(gas)+"Err: WasmTrap: Unreachable\n"))
	base.OpaqueError().Expect(t, Expect(outcomeLine(gas)+"Err: ...\n"))
	base.OpaqueOutcome().Expect(t, Expect("Err: WasmTrap: Unreachable\n"))
}

func TestRun_ExpectationCountCheckedFirst(t *testing.T) {
	rec := &memoryRecorder{}
	c := New().WAT(noOpWAT).ProtocolFeatures(config.FeaturePrepareV2).WithRecorder(rec)

	err := c.Run(Expect(""))

	var countErr *ExpectationCountError
	require.ErrorAs(t, err, &countErr)
	assert.Equal(t, 2, countErr.Versions)
	assert.Equal(t, 1, countErr.Expectations)
	assert.Empty(t, rec.records, "nothing runs when the count is wrong")
}

func TestRun_AllBackendsSkippedIsSilent(t *testing.T) {
	c := New().WAT(unreachableWAT).
		SkipWazeroCompiler().
		SkipWasmer().
		SkipWazeroInterpreter()

	require.NoError(t, c.Run(Expect("anything at all")))
}

func TestRun_ProtocolFeatureAddsPreviousVersion(t *testing.T) {
	c := New().WAT(noOpWAT).ProtocolFeatures(config.FeatureLowerLoadingCost)

	assert.Equal(t, []config.ProtocolVersion{config.Newest, 61}, c.Versions())

	old := gasFor(t, 61, noOpWAT, 1)
	newest := gasFor(t, config.Newest, noOpWAT, 1)
	require.NotEqual(t, old, newest)

	// Expectations follow ascending version order.
	c.Expects(t, Expect(outcomeLine(old)), Expect(outcomeLine(newest)))
}

func TestRun_VersionsAreNotDeduplicated(t *testing.T) {
	c := New().WAT(noOpWAT).ProtocolVersion(config.Newest)
	gas := gasFor(t, config.Newest, noOpWAT, 1)

	require.Error(t, c.Run(Expect(outcomeLine(gas))))
	c.Expects(t, Expect(outcomeLine(gas)), Expect(outcomeLine(gas)))
}

func TestRun_BackendNeedingOtherPrepareVersionIsSkipped(t *testing.T) {
	if !runner.Available(runner.WazeroCompiler) {
		t.Skip("wazero compiler unavailable on this platform")
	}
	rec := &memoryRecorder{}
	c := New().WAT(noOpWAT).
		ProtocolFeatures(config.FeaturePrepareV2).
		WithRecorder(rec)

	v1 := gasFor(t, 63, noOpWAT, 1)
	v2 := gasFor(t, config.Newest, noOpWAT, 1)
	c.Expects(t, Expect(outcomeLine(v1)), Expect(outcomeLine(v2)))

	assert.NotContains(t, rec.kinds(63), runner.WazeroCompiler)
	assert.Contains(t, rec.kinds(63), runner.WazeroInterpreter)
	assert.Contains(t, rec.kinds(config.Newest), runner.WazeroCompiler)
}

func TestRun_ReferenceIsHighestPriorityBackend(t *testing.T) {
	rec := &memoryRecorder{}
	New().WAT(noOpWAT).WithRecorder(rec).Expect(t, Expect(outcomeLine(gasFor(t, config.Newest, noOpWAT, 1))))

	require.NotEmpty(t, rec.records)
	for i := 1; i < len(rec.records); i++ {
		assert.Less(t, rec.records[i-1].Kind, rec.records[i].Kind)
	}
	for _, r := range rec.records {
		assert.Equal(t, "main", r.Method)
		assert.False(t, r.Aborted)
	}
}

func TestRun_MismatchNamesVersion(t *testing.T) {
	err := New().WAT(unreachableWAT).OpaqueOutcome().Run(Expect("Err: WasmTrap: IllegalArithmetic\n"))

	var m *MismatchError
	require.ErrorAs(t, err, &m)
	assert.Equal(t, config.Newest, m.Version)
	assert.Equal(t, "Err: WasmTrap: Unreachable\n", m.Got)
	assert.True(t, IsMismatch(err))
	assert.False(t, IsDivergence(err))
}

func TestRun_AbortMessageTooLong(t *testing.T) {
	// Quoting turns each zero byte into four characters.
	src := `(module
		(import "env" "panic_utf8" (func $panic_utf8 (param i64 i64)))
		(memory 1)
		(func (export "main") i64.const 2000 i64.const 0 call $panic_utf8))`

	err := New().WAT(src).Run(Expect(""))

	var tooLong *outcome.AbortTooLongError
	require.ErrorAs(t, err, &tooLong)
	assert.GreaterOrEqual(t, tooLong.Len, outcome.MaxAbortMessageLen)
}

func TestRun_InvalidWAT(t *testing.T) {
	err := New().WAT("(module").Run(Expect(""))

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "wat", cfgErr.Op)
}

func TestRun_GasOverride(t *testing.T) {
	// Loading alone exhausts a single unit of gas.
	New().WAT(noOpWAT).Gas(1).OpaqueOutcome().
		Expect(t, Expect("Err: HostError: GasExceeded\n"))
}

func TestRun_MethodNotFound(t *testing.T) {
	New().WAT(noOpWAT).Method("missing").OpaqueOutcome().
		Expect(t, Expect("Err: MethodResolveError: MethodNotFound\n"))
}

func TestRun_ContextEditIsIsolated(t *testing.T) {
	base := New().WAT(noOpWAT)
	rich := base.Context(func(c *logic.Context) {
		c.AccountBalance.SetUint64(500)
		c.StorageUsage = 99
	})

	gas := gasFor(t, config.Newest, noOpWAT, 1)
	rich.Expect(t, Expect(fmt.Sprintf("balance=500 storage_usage=99 return_data=None burnt_gas=%d used_gas=%d\n", gas, gas)))
	base.Expect(t, Expect(outcomeLine(gas)))
}

func TestConfig_BuildersDoNotShareState(t *testing.T) {
	base := New().ProtocolVersion(61)
	a := base.ProtocolVersion(62)
	b := base.ProtocolVersion(63)

	assert.Equal(t, []config.ProtocolVersion{config.Newest, 61}, base.Versions())
	assert.Equal(t, []config.ProtocolVersion{config.Newest, 61, 62}, a.Versions())
	assert.Equal(t, []config.ProtocolVersion{config.Newest, 61, 63}, b.Versions())

	skipped := base.SkipWasmer()
	assert.NotContains(t, base.Skipped(), runner.Wasmer)
	assert.Contains(t, skipped.Skipped(), runner.Wasmer)
}

func TestConfig_SkipIsMonotonic(t *testing.T) {
	c := New().Skip(runner.Wasmer).Only(runner.Wasmer)
	assert.ElementsMatch(t, runner.Kinds(), c.Skipped())
}

func TestConfig_PlatformExclusionsAreSeeded(t *testing.T) {
	skipped := New().Skipped()
	for _, k := range runner.PlatformExcluded() {
		assert.Contains(t, skipped, k)
	}
}

func TestConfig_OnlyProtocolVersionsReplaces(t *testing.T) {
	c := New().ProtocolVersion(61).OnlyProtocolVersions(66, 60)
	assert.Equal(t, []config.ProtocolVersion{66, 60}, c.Versions())

	p, err := c.Plan()
	require.NoError(t, err)
	assert.Equal(t, []config.ProtocolVersion{60, 66}, p.Versions())
}

func TestConfig_Configs(t *testing.T) {
	c := New().ProtocolFeatures(config.FeaturePrepareV2)

	var got []config.PrepareVersion
	for cfg := range c.Configs() {
		got = append(got, cfg.Wasm.Limits.PrepareVersion)
	}
	assert.Equal(t, []config.PrepareVersion{config.PrepareV2, config.PrepareV1}, got)
}

func TestDivergenceError_Message(t *testing.T) {
	err := &DivergenceError{
		Version:      66,
		RefKind:      runner.WazeroCompiler,
		RefRendering: "Err: a\n",
		Kind:         runner.Wasmer,
		Rendering:    "Err: b\n",
	}
	msg := err.Error()
	assert.True(t, strings.HasPrefix(msg, "protocol version 66: wazero-compiler and wasmer disagree"))
	assert.Contains(t, msg, "Err: a\n")
	assert.Contains(t, msg, "Err: b\n")
	assert.True(t, IsDivergence(fmt.Errorf("wrapped: %w", err)))
}

func TestFatalFaultError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &FatalFaultError{Kind: runner.Wasmer, Version: 66, Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "protocol version 66: wasmer failed: boom", err.Error())
}
