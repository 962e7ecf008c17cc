package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dharsanguruparan/pathfinder/internal/model"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)
	now := time.Now()
	store.now = func() time.Time { return now }

	token, err := store.Create(ctx, Identity{ID: 7, Role: model.RoleUser, Email: "jane@x.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(token) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(token))
	}
	id, err := store.Get(ctx, token)
	if err != nil || id.ID != 7 || !id.IsUser() {
		t.Fatalf("unexpected identity %+v %v", id, err)
	}

	now = now.Add(2 * time.Hour)
	if _, err := store.Get(ctx, token); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected expired session, got %v", err)
	}

	token, _ = store.Create(ctx, Identity{ID: 1, Role: model.RoleAdmin})
	if err := store.Delete(ctx, token); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, token); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected deleted session, got %v", err)
	}
}

func TestIdentityUserID(t *testing.T) {
	var anon *Identity
	if anon.UserID() != nil || anon.IsAdmin() {
		t.Fatalf("anonymous caller must not carry a user id")
	}
	admin := &Identity{ID: 3, Role: model.RoleAdmin}
	if admin.UserID() != nil {
		t.Fatalf("admin must not be recorded as applicant")
	}
	user := &Identity{ID: 5, Role: model.RoleUser}
	if uid := user.UserID(); uid == nil || *uid != 5 {
		t.Fatalf("expected user id 5, got %v", uid)
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if FromContext(ctx) != nil {
		t.Fatalf("expected anonymous context")
	}
	ctx = WithIdentity(ctx, &Identity{ID: 9, Role: model.RoleUser})
	if id := FromContext(ctx); id == nil || id.ID != 9 {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestMemoryStoreUpdateKeepsExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)
	now := time.Now()
	store.now = func() time.Time { return now }

	token, _ := store.Create(ctx, Identity{ID: 7, Role: model.RoleUser, Name: "Jane", Email: "jane@x.com"})
	now = now.Add(30 * time.Minute)
	if err := store.Update(ctx, token, Identity{ID: 7, Role: model.RoleUser, Name: "Jane Doe", Email: "jane.doe@x.com"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	id, err := store.Get(ctx, token)
	if err != nil || id.Name != "Jane Doe" || id.Email != "jane.doe@x.com" {
		t.Fatalf("expected refreshed identity, got %+v %v", id, err)
	}

	now = now.Add(31 * time.Minute)
	if _, err := store.Get(ctx, token); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected original expiry to hold, got %v", err)
	}
	if err := store.Update(ctx, token, Identity{ID: 7}); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession for expired token, got %v", err)
	}
	if err := store.Update(ctx, "unknown", Identity{ID: 7}); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession for unknown token, got %v", err)
	}
}
