package auth

// TokenStatus is the outcome of validating a token.
type TokenStatus int

const (
	// TokenInvalid covers malformed tokens, bad signatures, wrong keys and
	// tokens of the wrong class. It is the zero value so an unset
	// Validation never reads as valid.
	TokenInvalid TokenStatus = iota
	// TokenExpired means the signature checked out but exp is in the past.
	TokenExpired
	// TokenValid means signature and time claims are good.
	TokenValid
)

func (s TokenStatus) String() string {
	switch s {
	case TokenValid:
		return "valid"
	case TokenExpired:
		return "expired"
	default:
		return "invalid"
	}
}

// Validation is the tagged result of a token check. Claims are only
// meaningful when Status is TokenValid.
type Validation struct {
	Status TokenStatus
	Claims *JWTClaims
	Err    error
}

// Valid reports whether the token can be trusted.
func (v Validation) Valid() bool {
	return v.Status == TokenValid && v.Claims != nil
}

func validResult(claims *JWTClaims) Validation {
	return Validation{Status: TokenValid, Claims: claims}
}

func expiredResult(err error) Validation {
	return Validation{Status: TokenExpired, Err: err}
}

func invalidResult(err error) Validation {
	if err == nil {
		err = ErrInvalidToken
	}
	return Validation{Status: TokenInvalid, Err: err}
}

// RefreshValidator validates refresh tokens without tying callers
// to a specific signing implementation.
type RefreshValidator interface {
	ValidateRefresh(tokenString string) Validation
}

// AccessValidator validates access tokens.
type AccessValidator interface {
	ValidateAccess(tokenString string) Validation
}

// TokenValidatorFunc adapts a function into a RefreshValidator and AccessValidator.
type TokenValidatorFunc func(tokenString string) Validation

// ValidateRefresh satisfies the RefreshValidator interface.
func (f TokenValidatorFunc) ValidateRefresh(tokenString string) Validation {
	if f == nil {
		return invalidResult(nil)
	}
	return f(tokenString)
}

// ValidateAccess satisfies the AccessValidator interface.
func (f TokenValidatorFunc) ValidateAccess(tokenString string) Validation {
	if f == nil {
		return invalidResult(nil)
	}
	return f(tokenString)
}
