// Package outcome holds the result of running one contract method on one
// backend, and the canonical text rendering used to compare results across
// backends and against golden expectations.
//
// An Outcome is produced exactly once per run and never mutated afterwards.
// Render is the only sanctioned way to turn an Outcome into comparable text:
//
//	balance=2 storage_usage=12 return_data=None burnt_gas=100 used_gas=100
//	Err: WasmTrap: Unreachable
//
// Raw return bytes and receipt indices are never printed. Both depend on the
// calling context and carry no meaning when comparing two runs.
package outcome
