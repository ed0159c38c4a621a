package session

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec([]byte(testSecret), "rsvp", 15*time.Minute, 0)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func TestNewCodec_MissingSecret(t *testing.T) {
	if _, err := NewCodec(nil, "rsvp", time.Minute, 0); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
	var c *Codec
	if _, _, err := c.Sign(Identity{SubjectID: "u"}, time.Now()); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("nil codec Sign: expected ErrMissingSecret, got %v", err)
	}
}

func TestCodec_SignVerifyRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	now := time.Now().UTC().Truncate(time.Second)

	tok, exp, err := c.Sign(Identity{SubjectID: "01J0USER", Email: "a@b.co"}, now)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !exp.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("exp=%s want %s", exp, now.Add(15*time.Minute))
	}

	claims, err := c.Verify(tok, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.SubjectID != "01J0USER" || claims.Email != "a@b.co" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !claims.ExpiresAt.Equal(exp) || !claims.IssuedAt.Equal(now) {
		t.Fatalf("times: iat=%s exp=%s", claims.IssuedAt, claims.ExpiresAt)
	}
}

func TestCodec_ExpiryBoundary(t *testing.T) {
	c := newTestCodec(t)
	now := time.Now().UTC().Truncate(time.Second)

	tok, exp, err := c.Sign(Identity{SubjectID: "u1"}, now)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if _, err := c.Verify(tok, exp.Add(-time.Second)); err != nil {
		t.Fatalf("exp-1s: expected success, got %v", err)
	}
	if _, err := c.Verify(tok, exp); err != nil {
		t.Fatalf("at exp: expected success, got %v", err)
	}
	if _, err := c.Verify(tok, exp.Add(time.Nanosecond)); !errors.Is(err, ErrExpired) {
		t.Fatalf("exp+1ns: expected ErrExpired, got %v", err)
	}
	if _, err := c.Verify(tok, exp.Add(time.Second)); !errors.Is(err, ErrExpired) {
		t.Fatalf("exp+1s: expected ErrExpired, got %v", err)
	}
}

func TestCodec_LeewayExtendsExpiry(t *testing.T) {
	c, err := NewCodec([]byte(testSecret), "rsvp", time.Minute, 30*time.Second)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	tok, exp, _ := c.Sign(Identity{SubjectID: "u1"}, now)

	if _, err := c.Verify(tok, exp.Add(10*time.Second)); err != nil {
		t.Fatalf("within leeway: %v", err)
	}
	if _, err := c.Verify(tok, exp.Add(30*time.Second)); err != nil {
		t.Fatalf("at exp+leeway: %v", err)
	}
	if _, err := c.Verify(tok, exp.Add(31*time.Second)); !errors.Is(err, ErrExpired) {
		t.Fatalf("past leeway: expected ErrExpired, got %v", err)
	}
}

func TestCodec_PayloadBitFlipIsInvalidSignature(t *testing.T) {
	c := newTestCodec(t)
	now := time.Now().UTC()
	tok, _, err := c.Sign(Identity{SubjectID: "01J0USER", Email: "a@b.co"}, now)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	parts := strings.Split(tok, ".")
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}

	for i := range payload {
		for bit := 0; bit < 8; bit++ {
			mut := append([]byte(nil), payload...)
			mut[i] ^= 1 << bit
			forged := parts[0] + "." + base64.RawURLEncoding.EncodeToString(mut) + "." + parts[2]
			if _, err := c.Verify(forged, now); !errors.Is(err, ErrInvalidSignature) {
				t.Fatalf("byte %d bit %d: expected ErrInvalidSignature, got %v", i, bit, err)
			}
		}
	}
}

func TestCodec_AnyCharacterFlipNeverVerifies(t *testing.T) {
	c := newTestCodec(t)
	now := time.Now().UTC()
	tok, _, _ := c.Sign(Identity{SubjectID: "u1"}, now)

	for i := 0; i < len(tok); i++ {
		for bit := 0; bit < 8; bit++ {
			b := []byte(tok)
			b[i] ^= 1 << bit
			_, err := c.Verify(string(b), now)
			if err == nil {
				t.Fatalf("pos %d bit %d: tampered token verified", i, bit)
			}
			if !errors.Is(err, ErrInvalidSignature) && !errors.Is(err, ErrMalformed) {
				t.Fatalf("pos %d bit %d: unexpected error %v", i, bit, err)
			}
		}
	}
}

func TestCodec_WrongSecretIsInvalidSignature(t *testing.T) {
	c := newTestCodec(t)
	other, _ := NewCodec([]byte(strings.Repeat("z", 32)), "rsvp", time.Minute, 0)
	now := time.Now().UTC()

	tok, _, _ := other.Sign(Identity{SubjectID: "u1"}, now)
	if _, err := c.Verify(tok, now); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestCodec_Malformed(t *testing.T) {
	c := newTestCodec(t)
	now := time.Now().UTC()
	tok, _, _ := c.Sign(Identity{SubjectID: "u1"}, now)
	parts := strings.Split(tok, ".")

	for _, in := range []string{
		"",
		"abc",
		"a.b",
		"a.b.c.d",
		parts[0] + "." + parts[1],
		"." + parts[1] + "." + parts[2],
		parts[0] + ".." + parts[2],
		parts[0] + "." + parts[1] + ".",
	} {
		if _, err := c.Verify(in, now); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%q: expected ErrMalformed, got %v", in, err)
		}
	}
}

func TestCodec_SignedGarbagePayloadIsMalformed(t *testing.T) {
	c := newTestCodec(t)
	now := time.Now().UTC()

	head := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	body := base64.RawURLEncoding.EncodeToString([]byte(`not json`))
	sig, err := jwt.SigningMethodHS256.Sign(head+"."+body, []byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	tok := head + "." + body + "." + base64.RawURLEncoding.EncodeToString(sig)

	if _, err := c.Verify(tok, now); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestCodec_RejectsOtherAlgorithms(t *testing.T) {
	c := newTestCodec(t)
	now := time.Now().UTC()

	claims := jwt.MapClaims{"sub": "u1", "exp": now.Add(time.Minute).Unix(), "iss": "rsvp"}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := c.Verify(tok, now); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}
