package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

// DefaultClaimsLocalsKey is where RequireAccess stores the access claims.
const DefaultClaimsLocalsKey = "user"

var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithClaimsContext sets the Claims in the given context
func WithClaimsContext(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, claims)
}

// GetClaims extracts the Claims from the standard context
func GetClaims(ctx context.Context) (*Claims, bool) {
	if ctx == nil {
		return nil, false
	}
	raw, ok := ctx.Value(claimsCtxKey).(*Claims)
	return raw, ok && raw != nil
}

// GetRouterClaims extracts the Claims from the router locals
func GetRouterClaims(c router.Context, key string) (*Claims, bool) {
	if key == "" {
		key = DefaultClaimsLocalsKey
	}
	raw := c.Locals(key)
	if raw == nil {
		return nil, false
	}
	claims, ok := raw.(*Claims)
	return claims, ok && claims != nil
}
