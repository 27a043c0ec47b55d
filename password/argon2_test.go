package password

import (
	"strings"
	"testing"
)

func newTestHasher(t *testing.T) *Argon2 {
	t.Helper()
	// Small parameters keep the test suite fast.
	h, err := NewArgon2(Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	return h
}

func TestHashVerifyRoundTrip(t *testing.T) {
	h := newTestHasher(t)

	encoded, err := h.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("unexpected hash format: %s", encoded)
	}

	if !h.Verify("correct horse battery staple", encoded) {
		t.Fatal("verify rejected matching plaintext")
	}
	if h.Verify("wrong password", encoded) {
		t.Fatal("verify accepted non-matching plaintext")
	}
}

func TestHashIsSalted(t *testing.T) {
	h := newTestHasher(t)

	a, err := h.Hash("same input")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := h.Hash("same input")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same input were identical")
	}
	if !h.Verify("same input", a) || !h.Verify("same input", b) {
		t.Fatal("salted hashes did not both verify")
	}
}

func TestHashLongInput(t *testing.T) {
	h := newTestHasher(t)

	// Refresh tokens are JWTs, far beyond bcrypt's 72-byte limit; argon2
	// must hash the full input.
	long := strings.Repeat("eyJhbGciOiJIUzI1NiJ9.", 20)
	encoded, err := h.Hash(long)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !h.Verify(long, encoded) {
		t.Fatal("long input did not verify")
	}
	if h.Verify(long[:72], encoded) {
		t.Fatal("truncated input verified; hash is not covering full input")
	}
}

func TestVerifyMalformedHashReturnsFalse(t *testing.T) {
	h := newTestHasher(t)

	cases := []string{
		"",
		"not a hash",
		"$argon2id$v=19$m=8192,t=1,p=1$short$short",
		"$argon2i$v=19$m=8192,t=1,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAA",
		"$argon2id$v=18$m=8192,t=1,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAA",
		"$argon2id$v=19$m=1,t=1,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAA",
	}
	for _, c := range cases {
		if h.Verify("anything", c) {
			t.Fatalf("malformed hash verified: %q", c)
		}
	}
}

func TestHashEmptyPlaintextRejected(t *testing.T) {
	h := newTestHasher(t)
	if _, err := h.Hash(""); err == nil {
		t.Fatal("expected error for empty plaintext")
	}
}

func TestConfigValidation(t *testing.T) {
	bad := []Config{
		{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16},
		{Memory: 8192, Time: 0, Parallelism: 1, SaltLength: 16, KeyLength: 16},
		{Memory: 8192, Time: 1, Parallelism: 0, SaltLength: 16, KeyLength: 16},
		{Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16},
		{Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 8},
	}
	for i, cfg := range bad {
		if _, err := NewArgon2(cfg); err == nil {
			t.Fatalf("case %d: expected config validation error", i)
		}
	}

	if _, err := NewArgon2(DefaultConfig()); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}
}
