package identity

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_CreateUser_ConflictEmail_CaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	u, err := s.CreateUser(ctx, CreateUserInput{Email: "User@Example.com", Name: "Ada", PasswordHash: "h"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Email != "user@example.com" || u.Provider != ProviderLocal || len(u.ID) != 26 {
		t.Fatalf("unexpected user: %+v", u)
	}

	_, err = s.CreateUser(ctx, CreateUserInput{Email: "  user@EXAMPLE.com ", Name: "Other", PasswordHash: "h"})
	if !IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestMemoryStore_CreateUser_InvalidInput(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	cases := []CreateUserInput{
		{Email: "not-an-email", Name: "A", PasswordHash: "h"},
		{Email: "a@b.co", Name: "   ", PasswordHash: "h"},
		{Email: "a@b.co", Name: "A"},
	}
	for _, in := range cases {
		if _, err := s.CreateUser(ctx, in); !IsInvalidInput(err) {
			t.Fatalf("%+v: expected invalid input, got %v", in, err)
		}
	}
}

func TestMemoryStore_Lookups(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	u, err := s.CreateUser(ctx, CreateUserInput{Email: "a@b.co", Name: "A", PasswordHash: "hash", Now: time.Now()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetUserByID(ctx, u.ID)
	if err != nil || got != u {
		t.Fatalf("GetUserByID=%+v err=%v", got, err)
	}
	ua, err := s.GetUserAuthByEmail(ctx, "A@B.CO")
	if err != nil || ua.PasswordHash != "hash" || ua.ID != u.ID {
		t.Fatalf("GetUserAuthByEmail=%+v err=%v", ua, err)
	}

	s.DeleteUser(u.ID)
	if _, err := s.GetUserByID(ctx, u.ID); !IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if _, err := s.GetUserAuthByEmail(ctx, "a@b.co"); !IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestMemoryStore_UpsertFederatedUser(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	local, err := s.CreateUser(ctx, CreateUserInput{Email: "linked@b.co", Name: "L", PasswordHash: "h"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	linked, err := s.UpsertFederatedUser(ctx, FederatedInput{Issuer: "idp", Subject: "s-1", Email: "LINKED@b.co"})
	if err != nil {
		t.Fatalf("upsert link: %v", err)
	}
	if linked.ID != local.ID {
		t.Fatalf("expected link to existing account %s, got %s", local.ID, linked.ID)
	}

	fresh, err := s.UpsertFederatedUser(ctx, FederatedInput{Issuer: "idp", Subject: "s-2", Email: "new@b.co", Name: "New"})
	if err != nil {
		t.Fatalf("upsert create: %v", err)
	}
	if fresh.Provider != ProviderFederated || fresh.Name != "New" {
		t.Fatalf("unexpected federated user: %+v", fresh)
	}

	again, err := s.UpsertFederatedUser(ctx, FederatedInput{Issuer: "idp", Subject: "s-2", Email: "new@b.co"})
	if err != nil || again.ID != fresh.ID {
		t.Fatalf("repeat upsert=%+v err=%v", again, err)
	}

	ua, _ := s.GetUserAuthByEmail(ctx, "new@b.co")
	if ua.PasswordHash != "" {
		t.Fatalf("federated account must not have a password hash")
	}
}
