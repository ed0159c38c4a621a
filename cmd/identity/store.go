package identity

import (
	"context"
	"time"
)

// Provider records how an account authenticates.
type Provider string

const (
	ProviderLocal     Provider = "local"
	ProviderFederated Provider = "federated"
)

// User is the public view of an account.
type User struct {
	ID        string
	Email     string
	Name      string
	Provider  Provider
	CreatedAt time.Time
}

// UserAuth adds the stored password hash; empty for federated-only accounts.
type UserAuth struct {
	User
	PasswordHash string
}

// CreateUserInput registers a local account. PasswordHash is already encoded.
type CreateUserInput struct {
	Email        string
	Name         string
	PasswordHash string
	Now          time.Time
}

// FederatedInput is a verified identity from an external provider.
type FederatedInput struct {
	Issuer  string
	Subject string
	Email   string
	Name    string
	Now     time.Time
}

// Store is the identity persistence boundary.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error)

	// UpsertFederatedUser resolves (Issuer, Subject) to a user, linking an
	// existing account with the same email or creating a new one.
	UpsertFederatedUser(ctx context.Context, in FederatedInput) (User, error)
}

func validateCreate(op string, in CreateUserInput) (CreateUserInput, error) {
	if !ValidEmail(in.Email) {
		return in, invalid(op, "invalid email")
	}
	name, ok := CleanName(in.Name)
	if !ok {
		return in, invalid(op, "invalid name")
	}
	if in.PasswordHash == "" {
		return in, invalid(op, "password hash is required")
	}
	in.Email = NormalizeEmail(in.Email)
	in.Name = name
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}
	return in, nil
}

func validateFederated(op string, in FederatedInput) (FederatedInput, error) {
	if in.Issuer == "" || in.Subject == "" {
		return in, invalid(op, "missing issuer or subject")
	}
	if !ValidEmail(in.Email) {
		return in, invalid(op, "invalid email")
	}
	in.Email = NormalizeEmail(in.Email)
	if name, ok := CleanName(in.Name); ok {
		in.Name = name
	} else {
		in.Name = in.Email
	}
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}
	return in, nil
}
