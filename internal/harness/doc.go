// Package harness runs one contract method on every applicable backend and
// checks that all of them agree.
//
// A Config describes the run: the contract, the method, the execution
// context, the protocol versions to test and the backends to exclude. Every
// Config method returns a new value, so a partially built Config can be shared
// and extended freely:
//
//	base := harness.New().WAT(`(module (func (export "main") unreachable))`)
//	base.Expect(t, harness.Expect("balance=2 storage_usage=12 return_data=None burnt_gas=... used_gas=...\nErr: WasmTrap: Unreachable\n"))
//	base.OpaqueError().Expect(t, ...)
//
// # Execution
//
// For each protocol version in ascending order, the runtime configuration is
// resolved once. Each backend, in priority order, is skipped when it was
// excluded, when it is unavailable on this platform, or when it requires a
// different preparation pipeline than the configuration uses. Every other
// backend runs with its own external state and its own copy of the context.
//
// The first backend's rendering is the reference. A later backend rendering
// anything else is a *DivergenceError; a reference not matching the version's
// expectation is a *MismatchError. A version whose backends were all skipped
// is silently omitted.
//
// # Protocol versions
//
// Versions accumulate as a flat list that is only sorted, never deduplicated:
// callers supply exactly one expectation per entry. ProtocolFeatures adds the
// last version before each feature activates, on top of the default Newest.
//
// # Golden files
//
// Golden expectations live in testdata/golden and are regenerated with
//
//	go test ./... -update
//
// # Scenarios
//
// Scenario files describe a Config and its expectations in YAML:
//
//	name: trap
//	description: unreachable aborts on every backend
//	wat: |
//	  (module (func (export "main") unreachable))
//	opaque_outcome: true
//	expect:
//	  - "Err: WasmTrap: Unreachable\n"
package harness
