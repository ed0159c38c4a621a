package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"rsvp/cmd/identity/ids"
)

// PostgresStore implements Store over PostgreSQL.
// The pool is owned by the caller.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the schema holding the users table (default "rsvp").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "rsvp"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

const userColumns = `id, email, name, provider, created_at, COALESCE(password_hash, '')`

func (s *PostgresStore) users() string { return pgx.Identifier{s.schema, "users"}.Sanitize() }

func scanUserAuth(row pgx.Row) (UserAuth, error) {
	var (
		ua       UserAuth
		provider string
	)
	err := row.Scan(&ua.ID, &ua.Email, &ua.Name, &provider, &ua.CreatedAt, &ua.PasswordHash)
	if err != nil {
		return UserAuth{}, err
	}
	ua.Provider = Provider(provider)
	return ua, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"
	in, err := validateCreate(op, in)
	if err != nil {
		return User{}, err
	}
	id, err := ids.NewULID(in.Now)
	if err != nil {
		return User{}, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+s.users()+` (id, email, name, password_hash, provider, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, in.Email, in.Name, in.PasswordHash, string(ProviderLocal), in.Now,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}

	return User{
		ID:        id,
		Email:     in.Email,
		Name:      in.Name,
		Provider:  ProviderLocal,
		CreatedAt: in.Now,
	}, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	ua, err := scanUserAuth(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM `+s.users()+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, NotFoundError{Op: "identity.GetUserByID", Resource: "user"}
		}
		return User{}, err
	}
	return ua.User, nil
}

func (s *PostgresStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	ua, err := scanUserAuth(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM `+s.users()+` WHERE email = $1`, NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserAuth{}, NotFoundError{Op: "identity.GetUserAuthByEmail", Resource: "user"}
		}
		return UserAuth{}, err
	}
	return ua, nil
}

func (s *PostgresStore) UpsertFederatedUser(ctx context.Context, in FederatedInput) (User, error) {
	const op = "identity.UpsertFederatedUser"
	in, err := validateFederated(op, in)
	if err != nil {
		return User{}, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	if err != nil {
		return User{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	users := s.users()

	ua, err := scanUserAuth(tx.QueryRow(ctx,
		`SELECT `+userColumns+` FROM `+users+`
		  WHERE federated_issuer = $1 AND federated_subject = $2`,
		in.Issuer, in.Subject))
	if err == nil {
		return ua.User, tx.Commit(ctx)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return User{}, err
	}

	// Link an existing account with the same email.
	ua, err = scanUserAuth(tx.QueryRow(ctx,
		`UPDATE `+users+`
		    SET federated_issuer = $2, federated_subject = $3
		  WHERE email = $1 AND federated_subject IS NULL
		  RETURNING `+userColumns,
		in.Email, in.Issuer, in.Subject))
	if err == nil {
		return ua.User, tx.Commit(ctx)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return User{}, err
	}

	id, err := ids.NewULID(in.Now)
	if err != nil {
		return User{}, err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO `+users+` (id, email, name, provider, federated_issuer, federated_subject, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, in.Email, in.Name, string(ProviderFederated), in.Issuer, in.Subject, in.Now,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return User{}, err
	}
	return User{ID: id, Email: in.Email, Name: in.Name, Provider: ProviderFederated, CreatedAt: in.Now}, nil
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return "", false
	}

	c := strings.ToLower(pgErr.ConstraintName)
	switch {
	case c == "uq_users_email" || strings.Contains(c, "email"):
		return "email", true
	case c == "uq_users_federated" || strings.Contains(c, "federated"):
		return "federated_subject", true
	default:
		return "unique", true
	}
}
