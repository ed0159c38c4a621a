package authapi

import (
	"context"
	"fmt"

	"rsvp/cmd/identity"
	"rsvp/cmd/internal/auth/session"
)

// Directory resolves refresh-record owners against identity storage.
type Directory struct {
	users identity.Store
}

func NewDirectory(users identity.Store) Directory {
	return Directory{users: users}
}

// LookupIdentity implements session.IdentityLookup. A deleted account maps to
// session.ErrUnknownSubject so rotation purges its remaining credentials.
func (d Directory) LookupIdentity(ctx context.Context, subjectID string) (session.Identity, error) {
	u, err := d.users.GetUserByID(ctx, subjectID)
	if err != nil {
		if identity.IsNotFound(err) {
			return session.Identity{}, fmt.Errorf("%w: %s", session.ErrUnknownSubject, subjectID)
		}
		return session.Identity{}, err
	}
	return session.Identity{SubjectID: u.ID, Email: u.Email}, nil
}
