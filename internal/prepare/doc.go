// Package prepare turns raw contract bytecode into the module every backend
// actually compiles.
//
// Preparation validates the module's structure against the protocol limits
// and injects gas metering, so that metering is a property of the bytecode
// rather than of any engine. Every backend executing the same prepared module
// therefore burns exactly the same gas.
//
// # Metering
//
// A mutable i64 global holding the remaining gas and a local function
// $gas(i64) are appended to the module; appending keeps every existing
// function and global index stable. A charge is inserted at each function
// entry (for the instructions of the function outside any loop) and at each
// loop header (for the instructions of that loop outside nested loops):
//
//	i64.const <ops * regular_op_cost>
//	call $gas
//
// $gas traps via unreachable when the budget is insufficient, after setting
// the global to math.MaxUint64 so the host can tell exhaustion from a guest
// trap. The global is exported as GasGlobalExport and memory 0 as
// MemoryExport so that hosts can reach both without engine-specific lookups.
//
// # Stack height
//
// Engines overflow their native stacks at different depths, so call depth is
// bounded in the bytecode as well. Every call into guest code is bracketed by
//
//	i32.const <frame cost>
//	call $stack_enter
//	call <callee>
//	i32.const <frame cost>
//	call $stack_leave
//
// where the frame cost of a function is its parameter and local count plus a
// fixed overhead. $stack_enter traps once the running height exceeds
// max_stack_height, leaving math.MaxUint32 in the global exported as
// StackGlobalExport. The limit is low enough that no engine reaches its own
// ceiling first.
//
// Modules are decoded and re-encoded with wabin; only instruction bodies are
// walked by hand.
//
// # Versions
//
// V1 checks the initial memory size against max_memory_pages. V2 also clamps
// the declared memory maximum to max_memory_pages, which makes memory.grow
// failures a property of the protocol instead of engine defaults.
package prepare
