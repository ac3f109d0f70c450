// Package contract holds contract bytecode as it is handed to a backend.
//
// Code is immutable once built. Its content identifier is a SHA-256 over the
// bytes with domain separation, so the same bytes always get the same hash
// and prepared-code caches can be keyed by it.
package contract
