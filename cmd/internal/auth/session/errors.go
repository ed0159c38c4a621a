package session

import (
	"errors"
	"fmt"
)

var (
	// Codec failures. Callers at the HTTP boundary collapse all three into one 401.
	ErrMalformed        = errors.New("token malformed")
	ErrExpired          = errors.New("token expired")
	ErrInvalidSignature = errors.New("token signature invalid")

	// ErrMissingSecret means the codec was built without a signing secret.
	ErrMissingSecret = errors.New("token secret missing")

	// Store outcomes.
	ErrNotFound = errors.New("credential not found")
	ErrConflict = errors.New("credential already exists")

	// ErrUnauthorized is the single externally visible rotation failure.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrStoreUnavailable wraps infrastructure failures of the credential store.
	ErrStoreUnavailable = errors.New("credential store unavailable")

	// ErrUnknownSubject is returned by an IdentityLookup when the owner no longer exists.
	ErrUnknownSubject = errors.New("unknown subject")

	ErrConfig = errors.New("invalid config")
)

// Rejection reasons. They never leave the server except as metric labels.
const (
	ReasonEmpty          = "empty"
	ReasonNotFound       = "not_found"
	ReasonExpired        = "expired"
	ReasonUnknownSubject = "unknown_subject"
)

// RejectedError is returned by Rotate for every client-caused failure.
type RejectedError struct {
	Reason string
}

func (e RejectedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnauthorized.Error(), e.Reason)
}

func (e RejectedError) Unwrap() error { return ErrUnauthorized }

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
