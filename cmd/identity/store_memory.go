package identity

import (
	"context"
	"sync"

	"rsvp/cmd/identity/ids"
)

type federatedKey struct{ issuer, subject string }

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	byID        map[string]UserAuth
	byEmail     map[string]string
	byFederated map[federatedKey]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:        make(map[string]UserAuth),
		byEmail:     make(map[string]string),
		byFederated: make(map[federatedKey]string),
	}
}

func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	in, err := validateCreate(op, in)
	if err != nil {
		return User{}, err
	}
	id, err := ids.NewULID(in.Now)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[in.Email]; taken {
		return User{}, ConflictError{Op: op, Field: "email"}
	}
	ua := UserAuth{
		User: User{
			ID:        id,
			Email:     in.Email,
			Name:      in.Name,
			Provider:  ProviderLocal,
			CreatedAt: in.Now,
		},
		PasswordHash: in.PasswordHash,
	}
	s.byID[id] = ua
	s.byEmail[in.Email] = id
	return ua.User, nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ua, ok := s.byID[id]
	if !ok {
		return User{}, NotFoundError{Op: "identity.GetUserByID", Resource: "user"}
	}
	return ua.User, nil
}

func (s *MemoryStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return UserAuth{}, NotFoundError{Op: "identity.GetUserAuthByEmail", Resource: "user"}
	}
	return s.byID[id], nil
}

func (s *MemoryStore) UpsertFederatedUser(ctx context.Context, in FederatedInput) (User, error) {
	const op = "identity.UpsertFederatedUser"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	in, err := validateFederated(op, in)
	if err != nil {
		return User{}, err
	}
	key := federatedKey{in.Issuer, in.Subject}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byFederated[key]; ok {
		return s.byID[id].User, nil
	}
	if id, ok := s.byEmail[in.Email]; ok {
		s.byFederated[key] = id
		return s.byID[id].User, nil
	}

	id, err := ids.NewULID(in.Now)
	if err != nil {
		return User{}, err
	}
	u := User{ID: id, Email: in.Email, Name: in.Name, Provider: ProviderFederated, CreatedAt: in.Now}
	s.byID[id] = UserAuth{User: u}
	s.byEmail[in.Email] = id
	s.byFederated[key] = id
	return u, nil
}

// DeleteUser removes a user. Tests use it to model an account disappearing mid-session.
func (s *MemoryStore) DeleteUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ua, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	delete(s.byEmail, ua.Email)
	for k, v := range s.byFederated {
		if v == id {
			delete(s.byFederated, k)
		}
	}
}
