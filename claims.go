package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType tells access and refresh tokens apart inside the payload.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the identity payload embedded in every token.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// ClaimsFromUser builds the claim set for a directory record.
func ClaimsFromUser(user *User) Claims {
	if user == nil {
		return Claims{}
	}
	return Claims{
		UserID: user.ID.String(),
		Email:  user.Email,
	}
}

// JWTClaims is the signed representation of Claims.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID   string    `json:"uid"`
	Email string    `json:"email"`
	Type  TokenType `json:"typ"`
}

// Identity returns the identity payload.
func (c *JWTClaims) Identity() Claims {
	uid := c.UID
	if uid == "" {
		uid = c.RegisteredClaims.Subject
	}
	return Claims{
		UserID: uid,
		Email:  c.Email,
	}
}

// TokenID returns the jti claim
func (c *JWTClaims) TokenID() string {
	return c.RegisteredClaims.ID
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
