package authkit

import (
	"context"
	"errors"

	"github.com/sorguskor/authkit/store"
)

// Logout revokes the user's active session by clearing the stored refresh
// hash. It is idempotent: logging out an already logged-out or unknown
// account succeeds.
func (e *Engine) Logout(ctx context.Context, userID string) error {
	if err := e.checkReady(); err != nil {
		return err
	}

	err := e.users.SetRefreshHash(ctx, userID, store.ExpectedRefreshHash{}, "")
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return storeErr(err)
	}

	e.metrics.Inc(MetricLogout)
	e.emit(ctx, AuditEvent{
		EventType: AuditLogout,
		UserID:    userID,
		Success:   true,
	})
	return nil
}
