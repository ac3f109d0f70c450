// Package store persists differential runs in SQLite.
//
// Each Store is a session: every backend run the harness reports through
// Record is appended to the runs table under the session's id, with a
// per-session sequence number giving the order runs happened in.
//
// # Determinism
//
//   - Ordering uses seq, never timestamps
//   - All queries include ORDER BY seq ASC, id ASC COLLATE BINARY
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait on lock contention
//   - foreign_keys=ON: Runs must belong to a session
package store
