package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rsvp/cmd/security/token"
)

// IdentityLookup resolves the owner of a refresh record to its current identity.
// It returns ErrUnknownSubject when the owner no longer exists.
type IdentityLookup interface {
	LookupIdentity(ctx context.Context, subjectID string) (Identity, error)
}

// Pair is what a successful login, registration or rotation hands out.
// RefreshToken is the plaintext value and must only travel in the cookie.
type Pair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Service issues, rotates and revokes credential pairs.
type Service struct {
	cfg        Config
	codec      *Codec
	store      Store
	identities IdentityLookup
	hasher     token.Hasher
	log        *slog.Logger
	metrics    *Metrics
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithHasher sets how refresh values are turned into store keys (default SHA-256).
func WithHasher(h token.Hasher) Option {
	return func(s *Service) { s.hasher = h }
}

func NewService(cfg Config, store Store, identities IdentityLookup, opts ...Option) (*Service, error) {
	if store == nil || identities == nil {
		return nil, fmt.Errorf("%w: store and identity lookup are required", ErrConfig)
	}
	if cfg.RefreshTokenTTL <= 0 || cfg.RefreshTokenBytes <= 0 {
		return nil, ErrConfig
	}
	codec, err := NewCodec(cfg.AccessSecret, cfg.Issuer, cfg.AccessTokenTTL, cfg.ClockSkew)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:        cfg,
		codec:      codec,
		store:      store,
		identities: identities,
		log:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *Service) Config() Config { return s.cfg }

// Store returns the credential store backing the service.
func (s *Service) Store() Store { return s.store }

// Verify checks an access token. It never touches the store.
func (s *Service) Verify(tok string, now time.Time) (Claims, error) {
	claims, err := s.codec.Verify(tok, now)
	if err != nil {
		s.metrics.IncVerifyFailure(verifyReason(err))
		return Claims{}, err
	}
	return claims, nil
}

func verifyReason(err error) string {
	switch {
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	default:
		return "malformed"
	}
}

// Issue mints a new pair for id and persists the refresh record.
//
// Store failures are not retried. A hash collision (ErrConflict) means the
// random source is broken and is logged at error level.
func (s *Service) Issue(ctx context.Context, now time.Time, id Identity) (Pair, error) {
	const op = "session.Issue"

	access, accessExp, err := s.codec.Sign(id, now)
	if err != nil {
		return Pair{}, fmt.Errorf("%s: %w", op, err)
	}

	value, err := newRefreshValue(s.cfg.RefreshTokenBytes)
	if err != nil {
		return Pair{}, fmt.Errorf("%s: %w", op, err)
	}
	refreshExp := now.Add(s.cfg.RefreshTokenTTL)

	err = s.store.Put(ctx, Record{
		Hash:      s.hasher.Hash(value),
		OwnerID:   id.SubjectID,
		ExpiresAt: refreshExp,
		CreatedAt: now,
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			s.log.Error("session.issue.conflict", "subject_id", id.SubjectID)
			return Pair{}, fmt.Errorf("%s: %w", op, ErrConflict)
		}
		return Pair{}, unavailable(op, err)
	}

	s.metrics.incIssued()
	return Pair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     value,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Rotate exchanges a refresh value for a fresh pair.
//
// The presented record is consumed before anything else is checked, so a
// value can be exchanged at most once no matter how many requests race.
// Unknown, already-used and expired values are indistinguishable to callers
// (RejectedError, which unwraps to ErrUnauthorized).
func (s *Service) Rotate(ctx context.Context, now time.Time, value string) (Pair, error) {
	const op = "session.Rotate"

	if value == "" {
		return Pair{}, s.reject(ReasonEmpty, "")
	}

	rec, err := s.store.Consume(ctx, s.hasher.Hash(value))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Pair{}, s.reject(ReasonNotFound, "")
		}
		s.metrics.incRotation("error")
		return Pair{}, unavailable(op, err)
	}

	// The record is gone; finish on a detached context so a client hanging
	// up now cannot leave it without a replacement.
	ctx = context.WithoutCancel(ctx)

	// The sweeper may lag behind; the record's own expiry is authoritative.
	if rec.Expired(now) {
		return Pair{}, s.reject(ReasonExpired, rec.OwnerID)
	}

	id, err := s.identities.LookupIdentity(ctx, rec.OwnerID)
	if err != nil {
		if errors.Is(err, ErrUnknownSubject) {
			n, derr := s.store.DeleteAllForOwner(ctx, rec.OwnerID)
			if derr != nil {
				s.log.Warn("session.rotate.purge.fail", "subject_id", rec.OwnerID, "err", derr)
			} else {
				s.log.Info("session.rotate.purge", "subject_id", rec.OwnerID, "deleted", n)
			}
			return Pair{}, s.reject(ReasonUnknownSubject, rec.OwnerID)
		}
		s.metrics.incRotation("error")
		return Pair{}, unavailable(op, err)
	}

	pair, err := s.Issue(ctx, now, id)
	if err != nil {
		s.metrics.incRotation("error")
		s.log.Error("session.rotate.issue.fail", "subject_id", id.SubjectID, "err", err)
		return Pair{}, err
	}

	s.metrics.incRotation("ok")
	return pair, nil
}

func (s *Service) reject(reason, subjectID string) error {
	s.metrics.incRotation("rejected_" + reason)
	s.log.Debug("session.rotate.reject", "reason", reason, "subject_id", subjectID)
	return RejectedError{Reason: reason}
}

// Revoke deletes the record behind a refresh value. Unknown or empty values
// are a no-op so logout stays idempotent.
func (s *Service) Revoke(ctx context.Context, value string) error {
	if value == "" {
		return nil
	}
	if err := s.store.Delete(ctx, s.hasher.Hash(value)); err != nil {
		return unavailable("session.Revoke", err)
	}
	s.metrics.incRevocation()
	return nil
}

// RevokeAll deletes every refresh record owned by subjectID.
func (s *Service) RevokeAll(ctx context.Context, subjectID string) (int64, error) {
	n, err := s.store.DeleteAllForOwner(ctx, subjectID)
	if err != nil {
		return n, unavailable("session.RevokeAll", err)
	}
	return n, nil
}

// Sweep purges refresh records that expired before now.
func (s *Service) Sweep(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.store.SweepExpired(ctx, now)
	s.metrics.addSwept(n)
	if err != nil {
		return n, unavailable("session.Sweep", err)
	}
	return n, nil
}
