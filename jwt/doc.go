// Package jwt wraps golang-jwt with a two-secret HS256 manager: access and
// refresh tokens are signed with distinct secrets so that a leaked secret
// of one class never forges the other.
package jwt
