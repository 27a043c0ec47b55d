package authkit

import (
	"testing"

	"github.com/sorguskor/authkit/store"
)

func TestBuildRequiresStore(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected error without a store")
	}
}

func TestBuildRejectsBadConfig(t *testing.T) {
	cases := map[string]func(*Config){
		"missing secrets":   func(c *Config) { c.JWT.AccessSecret = nil },
		"short secret":      func(c *Config) { c.JWT.AccessSecret = []byte("short") },
		"equal secrets":     func(c *Config) { c.JWT.RefreshSecret = c.JWT.AccessSecret },
		"zero access ttl":   func(c *Config) { c.JWT.AccessTTL = 0 },
		"zero max fails":    func(c *Config) { c.Lockout.MaxFails = 0 },
		"zero lock window":  func(c *Config) { c.Lockout.Window = 0 },
		"zero lock length":  func(c *Config) { c.Lockout.LockDuration = 0 },
		"zero audit buffer": func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 },
	}

	for name, mutate := range cases {
		cfg := testConfig()
		mutate(&cfg)
		if _, err := New().WithConfig(cfg).WithStore(store.NewMemory()).Build(); err == nil {
			t.Fatalf("%s: expected build error", name)
		}
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithConfig(testConfig()).WithStore(store.NewMemory())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)

	if _, err := b.Build(); err == nil {
		t.Fatal("second Build must fail")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Lockout.MaxFails != 5 {
		t.Fatalf("max fails = %d, want 5", cfg.Lockout.MaxFails)
	}
	if cfg.JWT.AccessTTL.Minutes() != 15 {
		t.Fatalf("access ttl = %v, want 15m", cfg.JWT.AccessTTL)
	}
	if cfg.JWT.RefreshTTL.Hours() != 168 {
		t.Fatalf("refresh ttl = %v, want 168h", cfg.JWT.RefreshTTL)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("defaults without secrets must not validate")
	}
}
