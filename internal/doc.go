// Package internal contains helpers private to goSession: opaque token
// generation and hashing for the local identity authority.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function orchestrators for every Store operation
//   - metrics: lock-free counters and latency histograms
//   - rate: Redis-backed attempt throttling used by identity/local
//
// # What this package must NOT do
//
//   - Export types that appear in the public goSession API.
//   - Be imported by any package outside the goSession module.
package internal
