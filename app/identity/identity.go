// Package identity carries the authenticated caller through a request.
package identity

import (
	"context"
	"time"
)

const (
	AnonymousUsername = "anonymous"
	AnonymousRole     = "anonymous"
)

// Identity is the caller attached to one request. It never holds the raw
// token or any credential material.
type Identity struct {
	UserID   uint64
	Username string
	Role     string

	// TokenID and ExpiresAt describe the access token that authenticated the
	// call, so it can be revoked on logout. Both are zero for anonymous callers.
	TokenID   string
	ExpiresAt time.Time
}

func Anonymous() Identity {
	return Identity{Username: AnonymousUsername, Role: AnonymousRole}
}

func (i Identity) IsAnonymous() bool {
	return i.Role == AnonymousRole
}

type contextKey struct{}

func NewContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}
