// Package password implements password hashing and verification with Argon2id defaults.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2] supports transparent parameter upgrades: if the stored hash was
// produced with other parameters, [Argon2.NeedsUpgrade] returns true so the
// local identity authority can re-hash on the next successful sign-in.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Sign-up policy (confirmation,
// minimum length shown to the user) is enforced by the session store.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other goSession package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
