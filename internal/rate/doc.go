// Package rate provides Redis-backed attempt throttling for the local identity
// authority.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - "lsi:" failed sign-in per identifier
//   - "lrf:" refresh per token family
//
// # What this package must NOT do
//
//   - Be imported outside the goSession module.
package rate
