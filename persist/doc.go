// Package persist provides goSession.CredentialPersistence implementations.
//
// A [Split] pairs two [KV] stores: Secure for tokens and Plain for the
// profile cache. Available stores:
//
//   - [MemoryKV]: process-local map, for tests and ephemeral sessions.
//   - [RedisKV]: go-redis backed, keys namespaced as prefix:scope:key with an
//     optional TTL.
//   - [SealedKV]: wraps another KV and encrypts values with
//     XChaCha20-Poly1305 under a passphrase-derived key. Ciphertexts are bound
//     to their key name and cannot be replayed under another key.
//
// # What this package must NOT do
//
//   - Report an absent key as an error, or fail when deleting one.
//   - Log values.
package persist
