package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"rsvp/cmd/identity/ids"
)

// PostgresStore implements Store over the refresh_tokens table.
// The pool is owned by the caller.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

var schemaRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// NewPostgresStore returns a store bound to schema.refresh_tokens.
func NewPostgresStore(pool *pgxpool.Pool, schema string) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("session: nil pool")
	}
	if !schemaRe.MatchString(schema) {
		return nil, fmt.Errorf("session: invalid schema identifier")
	}
	return &PostgresStore{
		pool:  pool,
		table: pgx.Identifier{schema, "refresh_tokens"}.Sanitize(),
	}, nil
}

func (s *PostgresStore) Put(ctx context.Context, rec Record) error {
	id, err := ids.NewULID(rec.CreatedAt)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+s.table+` (id, token_hash, user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, rec.Hash, rec.OwnerID, rec.ExpiresAt, rec.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "uq_refresh_tokens_token_hash" {
			return ErrConflict
		}
		return err
	}
	return nil
}

// Consume is a single DELETE ... RETURNING: Postgres row locking guarantees
// that of two concurrent deletes of the same row only one returns it.
func (s *PostgresStore) Consume(ctx context.Context, hash string) (Record, error) {
	rec := Record{Hash: hash}
	err := s.pool.QueryRow(ctx,
		`DELETE FROM `+s.table+`
		  WHERE token_hash = $1
		  RETURNING user_id, expires_at, created_at`,
		hash,
	).Scan(&rec.OwnerID, &rec.ExpiresAt, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

func (s *PostgresStore) Delete(ctx context.Context, hash string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM `+s.table+` WHERE token_hash = $1`, hash)
	return err
}

func (s *PostgresStore) DeleteAllForOwner(ctx context.Context, ownerID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+s.table+` WHERE user_id = $1`, ownerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+s.table+` WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
