// Package auth authenticates the caller of every chat front end (HTTP,
// Slack) and stores the resulting Identity in the request context. It never
// decides ADMIN/FREE/NORMAL itself — that is policy.Gate.Resolve's job, fed
// by the AdminClaim bit this package extracts from the token.
package auth

import (
	"context"
)

// Method describes how the caller was authenticated.
const (
	MethodOIDC     = "oidc"
	MethodDevToken = "dev_token"
)

// Identity represents the authenticated caller for the current request. It
// carries only what the chat gate needs: an opaque, provider-verified
// subject and the token's own admin-role claim. Quota/role resolution
// happens downstream in policy.Gate.
type Identity struct {
	Subject    string // opaque, provider-verified user ID
	Email      string
	AdminClaim bool // true if the token's role claim says ADMIN
	Method     string
}

type ctxKey string

const identityKey ctxKey = "auth_identity"

// NewContext stores the identity in the context.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the identity from the context. Returns nil if no
// identity is set.
func FromContext(ctx context.Context) *Identity {
	v, _ := ctx.Value(identityKey).(*Identity)
	return v
}
