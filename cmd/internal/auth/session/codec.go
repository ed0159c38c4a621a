package session

import (
	"encoding/base64"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the subject a pair is issued to.
type Identity struct {
	SubjectID string
	Email     string
}

// Claims are the verified contents of an access token.
type Claims struct {
	SubjectID string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Codec signs and verifies HS256 access tokens. It is safe for concurrent use.
type Codec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	leeway time.Duration
	opts   []jwt.ParserOption
}

var sigEncoding = base64.RawURLEncoding.Strict()

// NewCodec builds a Codec. An empty secret is rejected with ErrMissingSecret.
func NewCodec(secret []byte, issuer string, ttl, leeway time.Duration) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 || leeway < 0 {
		return nil, ErrConfig
	}
	k := make([]byte, len(secret))
	copy(k, secret)

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		// exp+leeway itself is still valid; the parser treats it as expired.
		jwt.WithLeeway(leeway + time.Nanosecond),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &Codec{secret: k, issuer: issuer, ttl: ttl, leeway: leeway, opts: slices.Clip(opts)}, nil
}

// TTL is the lifetime given to newly signed tokens.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Sign mints a token for id valid from now until now+TTL (second precision).
func (c *Codec) Sign(id Identity, now time.Time) (string, time.Time, error) {
	if c == nil || len(c.secret) == 0 {
		return "", time.Time{}, ErrMissingSecret
	}
	iat := now.UTC().Truncate(time.Second)
	exp := iat.Add(c.ttl)

	claims := accessClaims{
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.SubjectID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tok, exp, nil
}

// Verify checks the signature over the raw header and payload before anything
// is decoded, so a tampered payload always yields ErrInvalidSignature.
// Expiry is judged against now, not the wall clock.
func (c *Codec) Verify(token string, now time.Time) (Claims, error) {
	if c == nil || len(c.secret) == 0 {
		return Claims{}, ErrMissingSecret
	}

	dot := strings.LastIndexByte(token, '.')
	if dot < 0 || strings.Count(token, ".") != 2 {
		return Claims{}, ErrMalformed
	}
	signingString, sigPart := token[:dot], token[dot+1:]
	head, body, _ := strings.Cut(signingString, ".")
	if head == "" || body == "" || sigPart == "" {
		return Claims{}, ErrMalformed
	}

	sig, err := sigEncoding.DecodeString(sigPart)
	if err != nil {
		return Claims{}, ErrInvalidSignature
	}
	if err := jwt.SigningMethodHS256.Verify(signingString, sig, c.secret); err != nil {
		return Claims{}, ErrInvalidSignature
	}

	parser := jwt.NewParser(append(c.opts, jwt.WithTimeFunc(func() time.Time { return now }))...)

	var ac accessClaims
	_, err = parser.ParseWithClaims(token, &ac, c.key)
	if err != nil {
		return Claims{}, classify(err)
	}
	if ac.Subject == "" || ac.ExpiresAt == nil {
		return Claims{}, ErrMalformed
	}

	out := Claims{
		SubjectID: ac.Subject,
		Email:     ac.Email,
		ExpiresAt: ac.ExpiresAt.Time,
	}
	if ac.IssuedAt != nil {
		out.IssuedAt = ac.IssuedAt.Time
	}
	return out, nil
}

func (c *Codec) key(*jwt.Token) (any, error) { return c.secret, nil }

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	default:
		return ErrMalformed
	}
}
