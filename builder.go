package authkit

import (
	"errors"
	"time"

	"github.com/sorguskor/authkit/internal/audit"
	"github.com/sorguskor/authkit/internal/random"
	"github.com/sorguskor/authkit/jwt"
	"github.com/sorguskor/authkit/password"
	"github.com/sorguskor/authkit/store"
)

// Builder assembles an Engine. Configure it during initialization and call
// Build exactly once.
type Builder struct {
	config Config
	users  store.UserStore
	sink   AuditSink

	built bool
}

func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithStore sets the user store backend. Required.
func (b *Builder) WithStore(users store.UserStore) *Builder {
	b.users = users
	return b
}

// WithAuditSink sets the sink receiving audit events. Implies enabling the
// audit dispatcher.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	b.config.Audit.Enabled = true
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("authkit: builder already used")
	}
	if b.users == nil {
		return nil, errors.New("authkit: user store is required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	tokens, err := jwt.NewManager(b.config.JWT)
	if err != nil {
		return nil, err
	}
	hasher, err := password.NewArgon2(b.config.Password)
	if err != nil {
		return nil, err
	}

	// Hash a throwaway secret once so lookups of unknown emails can burn
	// the same argon2 work as real verifications.
	decoy, err := random.Token(32)
	if err != nil {
		return nil, err
	}
	decoyHash, err := hasher.Hash(decoy)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:    b.config,
		users:     b.users,
		tokens:    tokens,
		hasher:    hasher,
		lockout:   b.config.Lockout,
		metrics:   NewMetrics(b.config.MetricsEnabled),
		decoyHash: decoyHash,
		now:       time.Now,
	}
	e.ready.Store(true)
	e.audit = audit.NewDispatcher(audit.Config{
		Enabled:    b.config.Audit.Enabled,
		BufferSize: b.config.Audit.BufferSize,
		DropIfFull: b.config.Audit.DropIfFull,
	}, b.sink)

	b.built = true
	return e, nil
}
