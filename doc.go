// Package authkit provides an authentication engine with two-class JWTs,
// single-use rotating refresh tokens, sliding-window account lockout, and
// double-submit CSRF pairs.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build]. All account state lives in the pluggable [store.UserStore];
// the engine itself is stateless between calls.
//
// # Architecture boundaries
//
// authkit is the public surface. It exposes [Engine], [Builder], [Config],
// sentinel errors, and value types (TokenPair, Identity, MetricsSnapshot).
// Lockout policy, audit dispatch, and rate limiting live under internal/
// and are never exported directly.
//
// # What this package must NOT do
//
//   - Expose store clients or hash encodings in its public API.
//   - Perform I/O outside of Engine methods (construction via Builder only
//     hashes the enumeration decoy).
//   - Distinguish unknown emails from wrong passwords in any observable way.
package authkit
