package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	auth "github.com/goliatone/go-session-auth"
)

func TestTokenStatus_String(t *testing.T) {
	assert.Equal(t, "valid", auth.TokenValid.String())
	assert.Equal(t, "expired", auth.TokenExpired.String())
	assert.Equal(t, "invalid", auth.TokenInvalid.String())
	assert.Equal(t, "invalid", auth.TokenStatus(42).String())
}

func TestValidation_ZeroValueIsInvalid(t *testing.T) {
	var v auth.Validation
	assert.Equal(t, auth.TokenInvalid, v.Status)
	assert.False(t, v.Valid())

	v.Status = auth.TokenValid
	assert.False(t, v.Valid(), "valid status without claims must not be trusted")
}

func TestTokenValidatorFunc(t *testing.T) {
	var nilFn auth.TokenValidatorFunc
	assert.Equal(t, auth.TokenInvalid, nilFn.ValidateRefresh("x").Status)
	assert.Equal(t, auth.TokenInvalid, nilFn.ValidateAccess("x").Status)

	fn := auth.TokenValidatorFunc(func(raw string) auth.Validation {
		if raw == "good" {
			return auth.Validation{Status: auth.TokenValid, Claims: &auth.JWTClaims{UID: "u1"}}
		}
		return auth.Validation{Status: auth.TokenExpired}
	})

	assert.True(t, fn.ValidateAccess("good").Valid())
	assert.Equal(t, auth.TokenExpired, fn.ValidateRefresh("old").Status)
}
