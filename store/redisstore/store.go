// Package redisstore implements store.UserStore on Redis. User records are
// hashes under one key per user plus an email index key; every multi-step
// mutation runs as a Lua script so concurrent writers observe atomic
// compare-and-swap semantics.
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sorguskor/authkit/store"
)

// Config tunes key layout and the per-call timeout. A Timeout of zero
// falls back to DefaultTimeout; store calls must never block indefinitely.
type Config struct {
	Prefix  string
	Timeout time.Duration
}

// DefaultTimeout bounds each Redis round-trip.
const DefaultTimeout = 3 * time.Second

const defaultPrefix = "ak"

const createScript = `
if redis.call("EXISTS", KEYS[2]) == 1 then
  return 0
end
redis.call("SET", KEYS[2], ARGV[1])
redis.call("HSET", KEYS[1],
  "email", ARGV[2],
  "password_hash", ARGV[3],
  "refresh_hash", ARGV[4],
  "failed_count", ARGV[5],
  "last_failed_ms", ARGV[6],
  "locked_ms", ARGV[7],
  "created_ms", ARGV[8])
return 1
`

const setLockoutScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
if ARGV[1] == "1" then
  local cur = redis.call("HMGET", KEYS[1], "failed_count", "last_failed_ms", "locked_ms")
  if (cur[1] or "0") ~= ARGV[2] or (cur[2] or "0") ~= ARGV[3] or (cur[3] or "0") ~= ARGV[4] then
    return 0
  end
end
redis.call("HSET", KEYS[1],
  "failed_count", ARGV[5],
  "last_failed_ms", ARGV[6],
  "locked_ms", ARGV[7])
return 1
`

const setRefreshScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
if ARGV[1] == "1" then
  local cur = redis.call("HGET", KEYS[1], "refresh_hash")
  if cur == false then
    cur = ""
  end
  if cur ~= ARGV[2] then
    return 0
  end
end
redis.call("HSET", KEYS[1], "refresh_hash", ARGV[3])
return 1
`

var (
	createLua     = redis.NewScript(createScript)
	setLockoutLua = redis.NewScript(setLockoutScript)
	setRefreshLua = redis.NewScript(setRefreshScript)
)

// Store is a Redis-backed store.UserStore.
type Store struct {
	redis  redis.UniversalClient
	config Config
}

// New returns a Store using the given client.
func New(client redis.UniversalClient, cfg Config) *Store {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Store{redis: client, config: cfg}
}

func (s *Store) userKey(id string) string {
	return s.config.Prefix + ":user:" + id
}

func (s *Store) emailKey(email string) string {
	return s.config.Prefix + ":email:" + email
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.config.Timeout)
}

func (s *Store) Create(ctx context.Context, u store.UserRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := createLua.Run(ctx, s.redis,
		[]string{s.userKey(u.ID), s.emailKey(u.Email)},
		u.ID,
		u.Email,
		u.PasswordHash,
		u.RefreshHash,
		strconv.Itoa(u.FailedLoginCount),
		strconv.FormatInt(millisOrZero(u.LastFailedLoginAt), 10),
		strconv.FormatInt(millisOrZero(u.LockedUntil), 10),
		strconv.FormatInt(u.CreatedAt.UnixMilli(), 10),
	).Int64()
	if err != nil {
		return unavailable(err)
	}
	if result == 0 {
		return store.ErrDuplicateEmail
	}
	return nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (store.UserRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	id, err := s.redis.Get(ctx, s.emailKey(email)).Result()
	if err == redis.Nil {
		return store.UserRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.UserRecord{}, unavailable(err)
	}
	return s.load(ctx, id)
}

func (s *Store) FindByID(ctx context.Context, id string) (store.UserRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.load(ctx, id)
}

func (s *Store) load(ctx context.Context, id string) (store.UserRecord, error) {
	fields, err := s.redis.HGetAll(ctx, s.userKey(id)).Result()
	if err != nil {
		return store.UserRecord{}, unavailable(err)
	}
	if len(fields) == 0 {
		return store.UserRecord{}, store.ErrNotFound
	}

	failed, err := strconv.Atoi(fields["failed_count"])
	if err != nil {
		return store.UserRecord{}, fmt.Errorf("%w: corrupt failed_count for %s", store.ErrUnavailable, id)
	}

	u := store.UserRecord{
		ID:                id,
		Email:             fields["email"],
		PasswordHash:      fields["password_hash"],
		RefreshHash:       fields["refresh_hash"],
		FailedLoginCount:  failed,
		LastFailedLoginAt: timeFromField(fields["last_failed_ms"]),
		LockedUntil:       timeFromField(fields["locked_ms"]),
	}
	if created := timeFromField(fields["created_ms"]); created != nil {
		u.CreatedAt = *created
	}
	return u, nil
}

func (s *Store) SetLockoutState(ctx context.Context, id string, expect store.ExpectedLockoutState, st store.LockoutState) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	enforce := "0"
	if expect.Enforce {
		enforce = "1"
	}

	result, err := setLockoutLua.Run(ctx, s.redis,
		[]string{s.userKey(id)},
		enforce,
		strconv.Itoa(expect.Value.FailedLoginCount),
		strconv.FormatInt(millisOrZero(expect.Value.LastFailedLoginAt), 10),
		strconv.FormatInt(millisOrZero(expect.Value.LockedUntil), 10),
		strconv.Itoa(st.FailedLoginCount),
		strconv.FormatInt(millisOrZero(st.LastFailedLoginAt), 10),
		strconv.FormatInt(millisOrZero(st.LockedUntil), 10),
	).Int64()
	if err != nil {
		return unavailable(err)
	}
	switch result {
	case -1:
		return store.ErrNotFound
	case 0:
		return store.ErrStaleRecord
	default:
		return nil
	}
}

func (s *Store) SetRefreshHash(ctx context.Context, id string, expect store.ExpectedRefreshHash, hash string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	enforce := "0"
	if expect.Enforce {
		enforce = "1"
	}

	result, err := setRefreshLua.Run(ctx, s.redis,
		[]string{s.userKey(id)},
		enforce,
		expect.Value,
		hash,
	).Int64()
	if err != nil {
		return unavailable(err)
	}
	switch result {
	case -1:
		return store.ErrNotFound
	case 0:
		return store.ErrStaleRecord
	default:
		return nil
	}
}

func millisOrZero(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixMilli()
}

func timeFromField(value string) *time.Time {
	if value == "" || value == "0" {
		return nil
	}
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil || ms == 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}
