package auth

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Token is a signed credential plus the metadata callers need to
// deliver it.
type Token struct {
	Value     string
	ID        string
	Type      TokenType
	ExpiresAt time.Time
}

// TokenIssuer mints access and refresh tokens from a claim set.
type TokenIssuer interface {
	IssueAccess(claims Claims) (Token, error)
	IssueRefresh(claims Claims) (Token, error)
	AccessLifetime() time.Duration
	RefreshLifetime() time.Duration
}

// TokenService issues and validates both token classes.
type TokenService interface {
	TokenIssuer
	RefreshValidator
	AccessValidator
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	accessKey       []byte
	refreshKey      []byte
	accessLifetime  time.Duration
	refreshLifetime time.Duration
	issuer          string
	audience        jwt.ClaimStrings
	clock           Clock
	logger          Logger
}

var _ TokenService = (*TokenServiceImpl)(nil)

// TokenServiceOption configures a TokenServiceImpl.
type TokenServiceOption func(*TokenServiceImpl)

// WithTokenIssuer sets the iss claim and requires it on validation.
func WithTokenIssuer(issuer string) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		ts.issuer = strings.TrimSpace(issuer)
	}
}

// WithTokenAudience sets the aud claim and requires it on validation.
func WithTokenAudience(audience ...string) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		ts.audience = nil
		for _, aud := range audience {
			if aud = strings.TrimSpace(aud); aud != "" {
				ts.audience = append(ts.audience, aud)
			}
		}
	}
}

// WithTokenClock overrides the time source used for iat, exp and validation.
func WithTokenClock(clock Clock) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		ts.clock = normalizeClock(clock)
	}
}

// WithTokenLogger sets the logger.
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		ts.logger = normalizeLogger(logger)
	}
}

// NewTokenService creates a new TokenService instance. Each token class
// gets its own key so a leaked access key cannot forge refresh tokens.
func NewTokenService(accessKey, refreshKey []byte, accessLifetime, refreshLifetime time.Duration, opts ...TokenServiceOption) (*TokenServiceImpl, error) {
	if len(accessKey) == 0 || len(refreshKey) == 0 {
		return nil, errors.New("access and refresh signing keys are required", errors.CategoryValidation)
	}

	if bytes.Equal(accessKey, refreshKey) {
		return nil, errors.New("access and refresh signing keys must differ", errors.CategoryValidation)
	}

	if accessLifetime <= 0 {
		return nil, errors.New("access token lifetime must be positive", errors.CategoryValidation)
	}

	if refreshLifetime <= accessLifetime {
		return nil, errors.New("refresh token lifetime must be longer than access token lifetime", errors.CategoryValidation)
	}

	ts := &TokenServiceImpl{
		accessKey:       append([]byte(nil), accessKey...),
		refreshKey:      append([]byte(nil), refreshKey...),
		accessLifetime:  accessLifetime,
		refreshLifetime: refreshLifetime,
		clock:           time.Now,
		logger:          defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts, nil
}

// NewTokenServiceFromConfig builds a TokenService from the library Config.
func NewTokenServiceFromConfig(cfg Config, opts ...TokenServiceOption) (*TokenServiceImpl, error) {
	if cfg == nil {
		return nil, errors.New("config is required", errors.CategoryValidation)
	}

	base := []TokenServiceOption{
		WithTokenIssuer(cfg.GetIssuer()),
		WithTokenAudience(cfg.GetAudience()...),
	}

	return NewTokenService(
		[]byte(cfg.GetAccessSigningKey()),
		[]byte(cfg.GetRefreshSigningKey()),
		cfg.GetAccessTokenLifetime(),
		cfg.GetRefreshTokenLifetime(),
		append(base, opts...)...,
	)
}

// AccessLifetime returns the configured access token lifetime.
func (ts *TokenServiceImpl) AccessLifetime() time.Duration {
	return ts.accessLifetime
}

// RefreshLifetime returns the configured refresh token lifetime.
func (ts *TokenServiceImpl) RefreshLifetime() time.Duration {
	return ts.refreshLifetime
}

// IssueAccess mints a short lived access token.
func (ts *TokenServiceImpl) IssueAccess(claims Claims) (Token, error) {
	return ts.issue(claims, TokenTypeAccess, ts.accessKey, ts.accessLifetime)
}

// IssueRefresh mints a refresh token.
func (ts *TokenServiceImpl) IssueRefresh(claims Claims) (Token, error) {
	return ts.issue(claims, TokenTypeRefresh, ts.refreshKey, ts.refreshLifetime)
}

// ValidateAccess checks an access token.
func (ts *TokenServiceImpl) ValidateAccess(tokenString string) Validation {
	return ts.validate(tokenString, TokenTypeAccess, ts.accessKey)
}

// ValidateRefresh checks a refresh token.
func (ts *TokenServiceImpl) ValidateRefresh(tokenString string) Validation {
	return ts.validate(tokenString, TokenTypeRefresh, ts.refreshKey)
}

func (ts *TokenServiceImpl) issue(claims Claims, typ TokenType, key []byte, lifetime time.Duration) (Token, error) {
	if strings.TrimSpace(claims.UserID) == "" {
		return Token{}, errors.New("claims require a user id", errors.CategoryBadInput)
	}

	now := ts.clock()
	jwtClaims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   claims.UserID,
			Audience:  ts.copyAudience(),
			IssuedAt:  jwt.NewNumericDate(now.Truncate(time.Second)),
			ExpiresAt: jwt.NewNumericDate(expiresAt(now, lifetime)),
			ID:        tokenID(typ, claims, now, lifetime),
		},
		UID:   claims.UserID,
		Email: claims.Email,
		Type:  typ,
	}

	signed, err := ts.signClaims(jwtClaims, key)
	if err != nil {
		return Token{}, err
	}

	return Token{
		Value:     signed,
		ID:        jwtClaims.RegisteredClaims.ID,
		Type:      typ,
		ExpiresAt: jwtClaims.Expires(),
	}, nil
}

func (ts *TokenServiceImpl) signClaims(claims *JWTClaims, key []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(key)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// validate checks the signature first and the time claims second, so a
// forged token never reports as merely expired.
func (ts *TokenServiceImpl) validate(tokenString string, want TokenType, key []byte) Validation {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return invalidResult(ErrMissingToken)
	}

	claims := &JWTClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Warn("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return invalidResult(err)
	}

	if claims.Type != want {
		return invalidResult(fmt.Errorf("unexpected token type %q, want %q", claims.Type, want))
	}

	if err := ts.claimsValidator().Validate(claims); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return expiredResult(err)
		}
		return invalidResult(err)
	}

	if claims.UID == "" {
		return invalidResult(ErrInvalidToken)
	}

	return validResult(claims)
}

func (ts *TokenServiceImpl) claimsValidator() *jwt.Validator {
	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(ts.clock),
		jwt.WithExpirationRequired(),
	}
	if ts.issuer != "" {
		opts = append(opts, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		opts = append(opts, jwt.WithAudience(ts.audience[0]))
	}
	return jwt.NewValidator(opts...)
}

func (ts *TokenServiceImpl) copyAudience() jwt.ClaimStrings {
	if len(ts.audience) == 0 {
		return nil
	}
	aud := make(jwt.ClaimStrings, len(ts.audience))
	copy(aud, ts.audience)
	return aud
}

// expiresAt rounds now+lifetime up to the second so the encoded exp
// never falls before the requested lifetime.
func expiresAt(now time.Time, lifetime time.Duration) time.Time {
	exp := now.Add(lifetime)
	if whole := exp.Truncate(time.Second); whole.Before(exp) {
		return whole.Add(time.Second)
	}
	return exp
}

// tokenID derives the jti from the token inputs, so identical inputs
// yield identical tokens.
func tokenID(typ TokenType, claims Claims, issuedAt time.Time, lifetime time.Duration) string {
	name := fmt.Sprintf("%s|%s|%s|%d|%d", typ, claims.UserID, claims.Email, issuedAt.UnixNano(), lifetime)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}
