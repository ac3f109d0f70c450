// Package logic implements the host side of a contract execution: the
// execution context, the external state a contract reads and mutates, gas
// accounting, and the host functions exported to guests under the "env"
// module.
//
// Logic is engine independent. Backends adapt their memory and gas global to
// the Memory and Meter interfaces and forward imported calls to Logic.Call;
// everything observable about a run is assembled by Logic.Outcome.
package logic
