// Package flows contains pure-function orchestrators for every Store operation.
//
// Each flow function (RunBootstrap, RunSignIn, RunSignUp, RunRefresh,
// RunSignOut) accepts a typed dependency struct and returns a result value
// without side-effects beyond those dependencies. The Store owns the phase
// machine, locking and observer fan-out; flows own the ordering of remote
// calls and persistence writes.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to credential persistence and the identity
// service. They do NOT own either resource. Ownership stays with the Store.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goSession (to avoid import cycles).
//   - Publish phase transitions. The Store does that after a flow returns.
package flows
