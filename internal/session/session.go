// Package session maps opaque cookie tokens to signed-in identities.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"

	"github.com/dharsanguruparan/pathfinder/internal/model"
)

// CookieName is the cookie carrying the session token.
const CookieName = "pathfinder_session"

// ErrNoSession is returned for unknown or expired tokens.
var ErrNoSession = errors.New("session not found")

// Identity is the signed-in caller. A nil *Identity means anonymous.
type Identity struct {
	ID    int64      `json:"id"`
	Role  model.Role `json:"role"`
	Name  string     `json:"name,omitempty"`
	Email string     `json:"email"`
}

// IsAdmin reports whether the caller signed in through the admin login.
func (i *Identity) IsAdmin() bool { return i != nil && i.Role == model.RoleAdmin }

// IsUser reports whether the caller is a registered job seeker.
func (i *Identity) IsUser() bool { return i != nil && i.Role == model.RoleUser }

// UserID returns the id to record on an application, or nil when the caller
// is anonymous or an administrator.
func (i *Identity) UserID() *int64 {
	if !i.IsUser() {
		return nil
	}
	id := i.ID
	return &id
}

// Store persists sessions with a fixed time to live.
type Store interface {
	Create(ctx context.Context, id Identity) (string, error)
	Get(ctx context.Context, token string) (*Identity, error)
	// Update replaces the identity of a live session without extending it.
	Update(ctx context.Context, token string, id Identity) error
	Delete(ctx context.Context, token string) error
}

// NewToken returns 32 random bytes hex encoded.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity attaches id to ctx. A nil id leaves ctx anonymous.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	if id == nil {
		return ctx
	}
	return context.WithValue(ctx, identityKey, id)
}

// FromContext returns the identity attached by WithIdentity, or nil.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}
