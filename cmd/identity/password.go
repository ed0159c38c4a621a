package identity

import (
	"errors"

	"rsvp/cmd/security/password"
)

// Passwords hashes and checks local account passwords with the configured Argon2id cost.
type Passwords struct {
	cfg password.Config
}

// NewPasswords loads the password config from env (RSVP_PASSWORD_*, RSVP_ARGON2_*).
func NewPasswords() (Passwords, error) {
	cfg, err := password.FromEnv()
	if err != nil {
		return Passwords{}, err
	}
	return Passwords{cfg: cfg}, nil
}

// NewPasswordsWithConfig is used by tests to keep Argon2id cheap.
func NewPasswordsWithConfig(cfg password.Config) Passwords {
	return Passwords{cfg: cfg}
}

// Hash validates plain against the policy and returns its encoded hash.
// Policy failures are reported as ErrInvalidInput.
func (p Passwords) Hash(plain string) (string, error) {
	const op = "identity.HashPassword"
	enc, err := p.cfg.Hash(plain)
	switch {
	case err == nil:
		return enc, nil
	case errors.Is(err, password.ErrPasswordTooShort),
		errors.Is(err, password.ErrPasswordTooLong),
		errors.Is(err, password.ErrWeakPassword):
		return "", invalid(op, err.Error())
	default:
		return "", err
	}
}

// Check reports whether plain matches the account's hash. Accounts without a
// password (federated-only) never match, but still pay the hashing cost.
func (p Passwords) Check(ua UserAuth, plain string) bool {
	if ua.PasswordHash == "" {
		p.cfg.VerifyDummy(plain)
		return false
	}
	ok, err := p.cfg.Verify(ua.PasswordHash, plain)
	return err == nil && ok
}

// CheckMissing spends the cost of one verification for an unknown account.
func (p Passwords) CheckMissing(plain string) {
	p.cfg.VerifyDummy(plain)
}
