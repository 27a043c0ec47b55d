package authkit

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sorguskor/authkit/csrf"
	"github.com/sorguskor/authkit/internal/audit"
	"github.com/sorguskor/authkit/internal/lockout"
	"github.com/sorguskor/authkit/jwt"
	"github.com/sorguskor/authkit/password"
	"github.com/sorguskor/authkit/store"
)

// Engine is the authentication core. Build one with [Builder] and share it;
// all methods are safe for concurrent use.
type Engine struct {
	config  Config
	users   store.UserStore
	tokens  *jwt.Manager
	hasher  *password.Argon2
	lockout lockout.Policy
	audit   *audit.Dispatcher
	metrics *Metrics

	// decoyHash is verified against when an email lookup misses, so an
	// unknown email costs the same argon2 work as a wrong password.
	decoyHash string

	now   func() time.Time
	ready atomic.Bool
}

// Close drains and stops the audit dispatcher. The engine must not be used
// afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.ready.Store(false)
	if e.audit != nil {
		e.audit.Close()
	}
}

// Metrics exposes the engine's counters.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// VerifyAccess parses and validates an access token and returns the
// identity it carries. Any failure maps to ErrUnauthorized.
func (e *Engine) VerifyAccess(ctx context.Context, tokenStr string) (Identity, error) {
	if err := e.checkReady(); err != nil {
		return Identity{}, err
	}

	claims, err := e.tokens.ParseAccess(tokenStr)
	if err != nil {
		return Identity{}, ErrUnauthorized
	}
	return Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

// IssueCsrfPair mints a fresh double-submit pair.
func (e *Engine) IssueCsrfPair() (csrf.Pair, error) {
	if err := e.checkReady(); err != nil {
		return csrf.Pair{}, err
	}
	return csrf.Issue()
}

// ValidateCsrf compares the submitted header value against the cookie
// value in constant time.
func (e *Engine) ValidateCsrf(ctx context.Context, headerValue, cookieValue string) error {
	if err := e.checkReady(); err != nil {
		return err
	}
	if !csrf.Validate(headerValue, cookieValue) {
		e.metrics.Inc(MetricCsrfRejected)
		e.emit(ctx, AuditEvent{
			EventType: AuditCsrfRejected,
			IP:        clientIPFromContext(ctx),
			Success:   false,
			Error:     ErrCsrfMismatch.Error(),
		})
		return ErrCsrfMismatch
	}
	return nil
}

func (e *Engine) checkReady() error {
	if e == nil || !e.ready.Load() {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) emit(ctx context.Context, event AuditEvent) {
	if e.audit == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now()
	}
	if event.IP == "" {
		event.IP = clientIPFromContext(ctx)
	}
	e.audit.Emit(ctx, event)
}

// storeErr maps store failures onto the public error taxonomy. Sentinels
// the caller handles explicitly pass through unchanged.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}
