// Package pgstore implements store.UserStore on PostgreSQL using pgx.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sorguskor/authkit/store"
)

// DefaultTimeout bounds every database round trip.
const DefaultTimeout = 3 * time.Second

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS authkit_users (
	id                  TEXT PRIMARY KEY,
	email               TEXT NOT NULL UNIQUE,
	password_hash       TEXT NOT NULL,
	refresh_hash        TEXT NOT NULL DEFAULT '',
	failed_login_count  INT  NOT NULL DEFAULT 0,
	last_failed_login   TIMESTAMPTZ,
	locked_until        TIMESTAMPTZ,
	created_at          TIMESTAMPTZ NOT NULL
)`

// Config tunes the store. The zero value is usable.
type Config struct {
	// Timeout bounds each call. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// Store persists user records in PostgreSQL.
type Store struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// New wraps an existing connection pool.
func New(pool *pgxpool.Pool, cfg Config) *Store {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Store{pool: pool, timeout: cfg.Timeout}
}

// EnsureSchema creates the users table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return unavailable("ensure schema", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, rec store.UserRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO authkit_users
			(id, email, password_hash, refresh_hash, failed_login_count, last_failed_login, locked_until, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.Email, rec.PasswordHash, rec.RefreshHash,
		rec.FailedLoginCount, nullTime(rec.LastFailedLoginAt), nullTime(rec.LockedUntil), rec.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.ErrDuplicateEmail
		}
		return unavailable("insert user", err)
	}
	return nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (store.UserRecord, error) {
	return s.findOne(ctx, `WHERE email = $1`, email)
}

func (s *Store) FindByID(ctx context.Context, id string) (store.UserRecord, error) {
	return s.findOne(ctx, `WHERE id = $1`, id)
}

func (s *Store) findOne(ctx context.Context, where, arg string) (store.UserRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		rec        store.UserRecord
		lastFailed sql.NullTime
		lockedTill sql.NullTime
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, refresh_hash, failed_login_count, last_failed_login, locked_until, created_at
		FROM authkit_users `+where,
		arg).Scan(&rec.ID, &rec.Email, &rec.PasswordHash, &rec.RefreshHash,
		&rec.FailedLoginCount, &lastFailed, &lockedTill, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.UserRecord{}, store.ErrNotFound
		}
		return store.UserRecord{}, unavailable("select user", err)
	}
	rec.LastFailedLoginAt = timePtr(lastFailed)
	rec.LockedUntil = timePtr(lockedTill)
	return rec, nil
}

func (s *Store) SetLockoutState(ctx context.Context, id string, expect store.ExpectedLockoutState, ls store.LockoutState) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if !expect.Enforce {
		tag, err := s.pool.Exec(ctx, `
			UPDATE authkit_users
			SET failed_login_count = $2, last_failed_login = $3, locked_until = $4
			WHERE id = $1`,
			id, ls.FailedLoginCount, nullTime(ls.LastFailedLoginAt), nullTime(ls.LockedUntil))
		if err != nil {
			return unavailable("update lockout", err)
		}
		if tag.RowsAffected() == 0 {
			return store.ErrNotFound
		}
		return nil
	}

	// Same shape as the refresh-hash rotation: conditional update plus an
	// existence probe in one transaction.
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return unavailable("begin lockout update", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE authkit_users
		SET failed_login_count = $5, last_failed_login = $6, locked_until = $7
		WHERE id = $1
		  AND failed_login_count = $2
		  AND last_failed_login IS NOT DISTINCT FROM $3
		  AND locked_until IS NOT DISTINCT FROM $4`,
		id,
		expect.Value.FailedLoginCount, nullTime(expect.Value.LastFailedLoginAt), nullTime(expect.Value.LockedUntil),
		ls.FailedLoginCount, nullTime(ls.LastFailedLoginAt), nullTime(ls.LockedUntil))
	if err != nil {
		return unavailable("update lockout", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM authkit_users WHERE id = $1)`, id).Scan(&exists); err != nil {
			return unavailable("probe user", err)
		}
		if !exists {
			return store.ErrNotFound
		}
		return store.ErrStaleRecord
	}
	if err := tx.Commit(ctx); err != nil {
		return unavailable("commit lockout update", err)
	}
	return nil
}

func (s *Store) SetRefreshHash(ctx context.Context, id string, expect store.ExpectedRefreshHash, hash string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if !expect.Enforce {
		tag, err := s.pool.Exec(ctx,
			`UPDATE authkit_users SET refresh_hash = $2 WHERE id = $1`, id, hash)
		if err != nil {
			return unavailable("update refresh hash", err)
		}
		if tag.RowsAffected() == 0 {
			return store.ErrNotFound
		}
		return nil
	}

	// The conditional update and the existence probe run in one
	// transaction so a concurrent rotation cannot slip between them.
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return unavailable("begin rotation", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE authkit_users
		SET refresh_hash = $3
		WHERE id = $1 AND refresh_hash = $2`,
		id, expect.Value, hash)
	if err != nil {
		return unavailable("rotate refresh hash", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM authkit_users WHERE id = $1)`, id).Scan(&exists); err != nil {
			return unavailable("probe user", err)
		}
		if !exists {
			return store.ErrNotFound
		}
		return store.ErrStaleRecord
	}
	if err := tx.Commit(ctx); err != nil {
		return unavailable("commit rotation", err)
	}
	return nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("pgstore: %s: %v: %w", op, err, store.ErrUnavailable)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
