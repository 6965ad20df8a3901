// Package local is an in-process goSession.IdentityService backed by Redis.
//
// It is a real token authority for demos, offline development and tests:
// accounts are stored as Redis hashes with Argon2id password hashes, access
// tokens are signed JWTs, and refresh tokens are opaque family:secret pairs
// rotated atomically by a Lua compare-and-set. Presenting an already-rotated
// refresh token revokes its whole family.
//
// # Redis layout
//
//	<prefix>:acct:<email>   hash  id, email, name, avatar, hash, confirmed
//	<prefix>:fam:<family>   hash  uid, hash (sha256 of current secret), PX = refresh TTL
//	<prefix>:uf:<uid>       set   live family ids
//
// # What this package must NOT do
//
//   - Store refresh secrets or passwords in the clear.
//   - Distinguish unknown accounts from wrong passwords in its errors.
package local
