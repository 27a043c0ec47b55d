package authkit

import (
	"time"

	"github.com/sorguskor/authkit/internal/audit"
)

// TokenPair is the result of a successful register, login, or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

// Identity describes the authenticated principal behind an access token.
type Identity struct {
	UserID string
	Email  string
}

// User is the public projection of a stored account.
type User struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// AuditEvent is re-exported so callers can consume events without importing
// internal packages.
type AuditEvent = audit.Event

// AuditSink receives audit events emitted by the engine.
type AuditSink = audit.Sink

// Audit event types emitted by the engine.
const (
	AuditRegister     = "register"
	AuditLogin        = "login"
	AuditLoginLocked  = "login_locked"
	AuditRefresh      = "refresh"
	AuditRefreshReuse = "refresh_reuse"
	AuditLogout       = "logout"
	AuditCsrfRejected = "csrf_rejected"
	AuditRateLimitHit = "rate_limit_hit"
)
