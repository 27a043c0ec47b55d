// Package password provides argon2id hashing in PHC string format for
// passwords and refresh tokens.
//
// Verification is constant-time and tolerant: a malformed hash verifies
// false rather than returning an error, so attacker-controlled input can
// never turn into a distinguishable failure path.
package password
