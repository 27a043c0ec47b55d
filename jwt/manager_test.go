package jwt

import (
	"strings"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		AccessSecret:  []byte(strings.Repeat("a", 32)),
		RefreshSecret: []byte(strings.Repeat("r", 32)),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "authkit-test",
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestAccessRoundTrip(t *testing.T) {
	m := newTestManager(t)

	token, err := m.SignAccess("user-1", "alice@example.com")
	if err != nil {
		t.Fatalf("SignAccess: %v", err)
	}

	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("subject = %q, want user-1", claims.Subject)
	}
	if claims.Email != "alice@example.com" {
		t.Fatalf("email = %q", claims.Email)
	}
}

func TestRefreshRoundTrip(t *testing.T) {
	m := newTestManager(t)

	token, err := m.SignRefresh("user-1")
	if err != nil {
		t.Fatalf("SignRefresh: %v", err)
	}

	claims, err := m.ParseRefresh(token)
	if err != nil {
		t.Fatalf("ParseRefresh: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("subject = %q, want user-1", claims.Subject)
	}
	if claims.ID == "" {
		t.Fatal("refresh token missing jti")
	}
}

func TestConsecutiveRefreshTokensDiffer(t *testing.T) {
	m := newTestManager(t)

	a, err := m.SignRefresh("user-1")
	if err != nil {
		t.Fatalf("SignRefresh: %v", err)
	}
	b, err := m.SignRefresh("user-1")
	if err != nil {
		t.Fatalf("SignRefresh: %v", err)
	}
	if a == b {
		t.Fatal("two refresh tokens minted back to back were identical")
	}
}

func TestSecretClassesAreIsolated(t *testing.T) {
	m := newTestManager(t)

	access, err := m.SignAccess("user-1", "alice@example.com")
	if err != nil {
		t.Fatalf("SignAccess: %v", err)
	}
	refresh, err := m.SignRefresh("user-1")
	if err != nil {
		t.Fatalf("SignRefresh: %v", err)
	}

	if _, err := m.ParseRefresh(access); err == nil {
		t.Fatal("access token verified against refresh secret")
	}
	if _, err := m.ParseAccess(refresh); err == nil {
		t.Fatal("refresh token verified against access secret")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	m, err := NewManager(Config{
		AccessSecret:  []byte(strings.Repeat("a", 32)),
		RefreshSecret: []byte(strings.Repeat("r", 32)),
		AccessTTL:     time.Nanosecond,
		RefreshTTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	token, err := m.SignAccess("user-1", "")
	if err != nil {
		t.Fatalf("SignAccess: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	m := newTestManager(t)

	token, err := m.SignAccess("user-1", "alice@example.com")
	if err != nil {
		t.Fatalf("SignAccess: %v", err)
	}
	tampered := token[:len(token)-2] + "xx"

	if _, err := m.ParseAccess(tampered); err == nil {
		t.Fatal("tampered token accepted")
	}
}

func TestManagerConfigValidation(t *testing.T) {
	base := Config{
		AccessSecret:  []byte(strings.Repeat("a", 32)),
		RefreshSecret: []byte(strings.Repeat("r", 32)),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	}

	short := base
	short.AccessSecret = []byte("short")
	if _, err := NewManager(short); err == nil {
		t.Fatal("short access secret accepted")
	}

	same := base
	same.RefreshSecret = base.AccessSecret
	if _, err := NewManager(same); err == nil {
		t.Fatal("identical secrets accepted")
	}

	noTTL := base
	noTTL.AccessTTL = 0
	if _, err := NewManager(noTTL); err == nil {
		t.Fatal("zero TTL accepted")
	}
}
