// Package goSession provides a client-side authentication session store: it
// restores a persisted session at start-up, exchanges credentials with a remote
// identity service, keeps access and refresh tokens in a split sensitive/plain
// credential store, and publishes every phase transition to observers.
//
// A [Store] is built once through [Builder.Build] and passed explicitly to the
// code that needs it. Store methods are safe to call from multiple goroutines.
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Store], [Builder], [Config] and
// the value types ([Session], [State], [SignUpOutcome], MetricsSnapshot).
// Operation ordering lives in internal/flows; audit dispatch and counters live
// in internal/audit and internal/metrics. Concrete persistence and identity
// implementations live in persist, identity/rest and identity/local.
//
// # What this package must NOT do
//
//   - Make a phase observable before the matching persistence writes finish.
//   - Leave persisted credentials that disagree with the published phase.
//   - Log or audit secrets or tokens.
//   - Import any sub-package that re-imports goSession (no import cycles).
package goSession
