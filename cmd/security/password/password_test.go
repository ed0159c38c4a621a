package password

import (
	"errors"
	"strings"
	"testing"
)

// testConfig keeps argon2 cheap so the suite stays fast.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func TestHashAndVerify(t *testing.T) {
	cfg := testConfig()

	h, err := cfg.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	tests := []struct {
		name string
		pw   string
		want bool
	}{
		{"match", "correct horse battery", true},
		{"mismatch", "wrong horse battery", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := cfg.Verify(h, tc.pw)
			if err != nil {
				t.Fatalf("Verify error: %v", err)
			}
			if ok != tc.want {
				t.Fatalf("ok=%v want %v", ok, tc.want)
			}
		})
	}
}

func TestHash_SaltsDiffer(t *testing.T) {
	cfg := testConfig()
	a, _ := cfg.Hash("same password here")
	b, _ := cfg.Hash("same password here")
	if a == b {
		t.Fatalf("two hashes of the same password must differ")
	}
}

func TestValidate_MinMax(t *testing.T) {
	cfg := testConfig()
	cfg.Policy.MinLength = 12
	cfg.Policy.MaxLength = 16

	if err := cfg.Validate("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if err := cfg.Validate("this password is definitely too long"); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
	if err := cfg.Validate("goodpassw0rd!"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestVerify_InvalidHash(t *testing.T) {
	cfg := testConfig()

	for _, enc := range []string{
		"not-a-hash",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5aw",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5aw",
		"$argon2id$v=19$m=999999999,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5aw",
	} {
		ok, err := cfg.Verify(enc, "whatever")
		if !errors.Is(err, ErrInvalidHash) {
			t.Fatalf("%q: expected ErrInvalidHash, got %v", enc, err)
		}
		if ok {
			t.Fatalf("%q: expected false", enc)
		}
	}
}

func TestVerifyDummy_DoesNotPanic(t *testing.T) {
	testConfig().VerifyDummy("anything at all")
}

func TestPolicy_RejectVeryWeak(t *testing.T) {
	cfg := testConfig()
	cfg.Policy.RejectVeryWeak = true

	if err := cfg.Validate("password"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := cfg.Validate("11111111"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := cfg.Validate("a-very-ok-pass"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestPHC_RoundTrip(t *testing.T) {
	cfg := testConfig()
	enc, err := cfg.Hash("goodpassw0rd!")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(enc, "$argon2id$v=19$m=") {
		t.Fatalf("unexpected prefix: %q", enc)
	}

	h, err := parsePHC(enc)
	if err != nil {
		t.Fatalf("parsePHC: %v", err)
	}
	if h.params != cfg.Params {
		t.Fatalf("params=%+v want %+v", h.params, cfg.Params)
	}
	if h.String() != enc {
		t.Fatalf("re-encode=%q want %q", h.String(), enc)
	}

	for _, bad := range []string{
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5aw",
		"$argon2id$v=19$m=8192,t=1,p=0$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5aw",
		"$argon2id$v=19$m=8192,t=1,x=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5aw",
		"$argon2id$v=19$m=8192,t=1,p=1$!!$a2V5a2V5a2V5a2V5a2V5aw",
	} {
		if _, err := parsePHC(bad); !errors.Is(err, ErrInvalidHash) {
			t.Fatalf("%q: expected ErrInvalidHash, got %v", bad, err)
		}
	}
}
