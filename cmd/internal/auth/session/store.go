package session

import (
	"context"
	"time"
)

// Record is a stored refresh credential. Hash is the digest of the value the
// client holds; the value itself is never stored.
type Record struct {
	Hash      string
	OwnerID   string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the record is no longer exchangeable at now.
func (r Record) Expired(now time.Time) bool { return r.ExpiresAt.Before(now) }

// Store persists refresh records.
//
// Consume is the only operation the rotation path relies on for safety: it
// must fetch and delete in one atomic step so that, of any number of
// concurrent calls for one hash, exactly one observes the record.
type Store interface {
	// Put inserts rec. ErrConflict if the hash is already present.
	Put(ctx context.Context, rec Record) error

	// Consume atomically removes and returns the record, or ErrNotFound.
	Consume(ctx context.Context, hash string) (Record, error)

	// Delete removes the record if present. Missing records are not an error.
	Delete(ctx context.Context, hash string) error

	// DeleteAllForOwner removes every record owned by ownerID and reports how many.
	DeleteAllForOwner(ctx context.Context, ownerID string) (int64, error)

	// SweepExpired removes records with ExpiresAt before now and reports how many.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}
