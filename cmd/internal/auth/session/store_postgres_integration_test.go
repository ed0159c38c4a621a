package session

import (
	"context"
	"testing"

	"rsvp/cmd/internal/pgtest"
)

func TestPostgresStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) storeHarness {
		pool, schema := pgtest.Open(t)
		s, err := NewPostgresStore(pool, schema)
		if err != nil {
			t.Fatalf("NewPostgresStore: %v", err)
		}
		return storeHarness{
			store: s,
			// refresh_tokens.user_id references users(id).
			newOwner: func(t *testing.T) string {
				id := ulidOwner(t)
				_, err := pool.Exec(context.Background(),
					`INSERT INTO users (id, email, name) VALUES ($1, $2, 'owner')`, id, id+"@example.test")
				if err != nil {
					t.Fatalf("seed owner: %v", err)
				}
				return id
			},
		}
	})
}

func TestNewPostgresStore_NilPool(t *testing.T) {
	if _, err := NewPostgresStore(nil, "rsvp"); err == nil {
		t.Fatalf("expected error for nil pool")
	}
}
