package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-router"

	"github.com/goliatone/go-session-auth/middleware/jwtware"
)

// AccessMiddlewareOption configures RequireAccess.
type AccessMiddlewareOption func(*jwtware.Config)

// WithAccessErrorHandler overrides how rejected requests are answered.
func WithAccessErrorHandler(handler router.ErrorHandler) AccessMiddlewareOption {
	return func(cfg *jwtware.Config) {
		cfg.ErrorHandler = handler
	}
}

// WithAccessListeners runs listeners after the access token validates.
func WithAccessListeners(listeners ...jwtware.ValidationListener) AccessMiddlewareOption {
	return func(cfg *jwtware.Config) {
		cfg.ValidationListeners = append(cfg.ValidationListeners, listeners...)
	}
}

// RequireAccess rejects requests without a valid access token. The token
// is read from the access cookie or an Authorization Bearer header. On
// success the *Claims are stored in locals and in the user context.
func RequireAccess(validator AccessValidator, cfg Config, opts ...AccessMiddlewareOption) router.MiddlewareFunc {
	if validator == nil {
		panic("Missing AccessValidator in access middleware...")
	}

	mwCfg := jwtware.Config{
		ContextKey:      DefaultClaimsLocalsKey,
		TokenLookup:     accessTokenLookup(cfg),
		TokenValidator:  accessTokenValidator(validator),
		ContextEnricher: claimsEnricher,
		ErrorHandler:    writeError(defLogger{}),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&mwCfg)
		}
	}

	return jwtware.New(mwCfg)
}

func accessTokenLookup(cfg Config) string {
	name := DefaultAccessCookieName
	if cfg != nil && cfg.GetAccessCookieName() != "" {
		name = cfg.GetAccessCookieName()
	}
	return fmt.Sprintf("cookie:%s,header:%s", name, router.HeaderAuthorization)
}

func accessTokenValidator(validator AccessValidator) jwtware.TokenValidator {
	return jwtware.TokenValidatorFunc(func(raw string) (any, error) {
		v := validator.ValidateAccess(raw)
		switch v.Status {
		case TokenValid:
			if v.Valid() {
				identity := v.Claims.Identity()
				return &identity, nil
			}
			return nil, ErrInvalidToken
		case TokenExpired:
			return nil, ErrExpiredAccessToken
		case TokenInvalid:
			if errors.Is(v.Err, ErrMissingToken) {
				return nil, ErrMissingToken
			}
			return nil, ErrInvalidToken
		default:
			return nil, ErrInvalidToken
		}
	})
}

func claimsEnricher(ctx context.Context, claims any) context.Context {
	if c, ok := claims.(*Claims); ok {
		return WithClaimsContext(ctx, c)
	}
	return ctx
}
