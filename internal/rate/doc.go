// Package rate provides Redis-backed fixed-window rate limiting for
// security-sensitive authentication routes.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Keys are
// built as prefix:route:identity, where identity is typically a client IP
// or a user ID.
//
// # What this package must NOT do
//
//   - Implement lockout policy (that lives in internal/lockout).
//   - Be imported outside the authkit module.
package rate
