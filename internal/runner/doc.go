// Package runner executes prepared contracts on interchangeable WebAssembly
// backends.
//
// Every backend implements the same Runner contract and shares one execution
// pipeline: contract loading is charged, the code is prepared (and optionally
// cached), the method is resolved against the prepared export table, and only
// then is the engine-specific adapter asked to instantiate and call it. Call
// failures are classified into engine-independent aborts, so that two
// correct backends produce byte-identical outcomes.
//
// Backends available on the current platform are determined once per process
// by a probe; see Available and PlatformExcluded.
package runner
