package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetClaims(t *testing.T) {
	tests := []struct {
		name       string
		setupCtx   func() context.Context
		wantClaims *Claims
		wantOK     bool
	}{
		{
			name: "should return claims when present in context",
			setupCtx: func() context.Context {
				return WithClaimsContext(context.Background(), &Claims{UserID: "user123", Email: "a@x.com"})
			},
			wantClaims: &Claims{UserID: "user123", Email: "a@x.com"},
			wantOK:     true,
		},
		{
			name: "should return false when no claims in context",
			setupCtx: func() context.Context {
				return context.Background()
			},
			wantOK: false,
		},
		{
			name: "should return false when context has wrong type",
			setupCtx: func() context.Context {
				return context.WithValue(context.Background(), claimsCtxKey, "not-a-claims-object")
			},
			wantOK: false,
		},
		{
			name: "should return false for a nil claims pointer",
			setupCtx: func() context.Context {
				return WithClaimsContext(context.Background(), nil)
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotClaims, gotOK := GetClaims(tt.setupCtx())

			assert.Equal(t, tt.wantOK, gotOK)
			if tt.wantOK {
				assert.Equal(t, tt.wantClaims, gotClaims)
			}
		})
	}
}
