package authkit

import (
	"errors"
	"time"

	"github.com/sorguskor/authkit/internal/lockout"
	"github.com/sorguskor/authkit/jwt"
	"github.com/sorguskor/authkit/password"
)

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking the calling flow when
	// the buffer is full.
	DropIfFull bool
}

// Config carries every tunable of the engine. Construct it once, pass it to
// the builder, and treat it as immutable afterwards.
type Config struct {
	JWT      jwt.Config
	Password password.Config
	Lockout  lockout.Policy
	Audit    AuditConfig

	// MetricsEnabled toggles the atomic counters behind Metrics().
	MetricsEnabled bool
}

// DefaultConfig returns a Config with production-grade defaults.
// JWT secrets are intentionally left empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: jwt.Config{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "authkit",
			Leeway:     30 * time.Second,
		},
		Password: password.DefaultConfig(),
		Lockout:  lockout.DefaultPolicy(),
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		MetricsEnabled: true,
	}
}

// Validate reports the first configuration problem found. Secrets and
// argon2 parameters are checked again by the jwt and password constructors;
// this catches lockout and audit misconfiguration early.
func (c Config) Validate() error {
	if len(c.JWT.AccessSecret) == 0 || len(c.JWT.RefreshSecret) == 0 {
		return errors.New("jwt: both secrets are required")
	}
	if c.Lockout.MaxFails <= 0 {
		return errors.New("lockout: max fails must be positive")
	}
	if c.Lockout.Window <= 0 {
		return errors.New("lockout: window must be positive")
	}
	if c.Lockout.LockDuration <= 0 {
		return errors.New("lockout: lock duration must be positive")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("audit: buffer size must be positive")
	}
	return nil
}
