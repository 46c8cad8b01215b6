package auth

import (
	"net/http"
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeDuplicateEmail        = "DUPLICATE_EMAIL"
	TextCodeInvalidLogin          = "INVALID_LOGIN"
	TextCodeExpiredRefreshToken   = "EXPIRED_REFRESH_TOKEN"
	TextCodeRevokedRefreshToken   = "REVOKED_REFRESH_TOKEN"
	TextCodeExpiredAccessToken    = "EXPIRED_ACCESS_TOKEN"
	TextCodeInvalidToken          = "INVALID_TOKEN"
	TextCodeMissingToken          = "MISSING_TOKEN"
	TextCodeDirectoryUnavailable  = "DIRECTORY_UNAVAILABLE"
	TextCodeRevocationUnavailable = "REVOCATION_UNAVAILABLE"
	TextCodeRequestFailed         = "REQUEST_FAILED"
	TextCodeTokenIssueFailed      = "TOKEN_ISSUE_FAILED"
	TextCodeInvalidPayload        = "INVALID_PAYLOAD"
	TextCodeUserNotFound          = "USER_NOT_FOUND"
	TextCodeUserAlreadyExists     = "USER_ALREADY_EXISTS"
	TextCodeEmptyPassword         = "EMPTY_PASSWORD"
	TextCodeInvalidCreds          = "INVALID_CREDENTIALS"
)

// ErrDuplicateEmail is returned by Register when the email is taken,
// either by the pre-check or by the directory uniqueness constraint.
var ErrDuplicateEmail = errors.New("Email already registered.", errors.CategoryValidation).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(errors.CodeBadRequest)

// ErrInvalidLogin is returned by Login for both an unknown email and a
// wrong password. The two cases must stay indistinguishable.
var ErrInvalidLogin = errors.New("Invalid login.", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidLogin).
	WithCode(errors.CodeBadRequest)

// ErrExpiredRefreshToken forces the client through a full login.
var ErrExpiredRefreshToken = errors.New("ExpiredRefreshToken", errors.CategoryAuth).
	WithTextCode(TextCodeExpiredRefreshToken).
	WithCode(errors.CodeUnauthorized)

// ErrRevokedRefreshToken is returned when a refresh token was revoked by logout.
var ErrRevokedRefreshToken = errors.New("refresh token has been revoked", errors.CategoryAuth).
	WithTextCode(TextCodeRevokedRefreshToken).
	WithCode(errors.CodeUnauthorized)

// ErrExpiredAccessToken tells the client to call refresh.
var ErrExpiredAccessToken = errors.New("access token expired", errors.CategoryAuth).
	WithTextCode(TextCodeExpiredAccessToken).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidToken covers malformed, forged and wrong-key tokens.
var ErrInvalidToken = errors.New("invalid token", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(errors.CodeUnauthorized)

// ErrMissingToken is returned when the request carries no credential.
var ErrMissingToken = errors.New("missing token", errors.CategoryAuth).
	WithTextCode(TextCodeMissingToken).
	WithCode(errors.CodeUnauthorized)

// ErrDirectoryUnavailable is a retryable infrastructure failure of the user directory.
var ErrDirectoryUnavailable = errors.New("user directory unavailable", errors.CategoryOperation).
	WithTextCode(TextCodeDirectoryUnavailable).
	WithCode(http.StatusServiceUnavailable)

// ErrRevocationUnavailable is a retryable failure of the revocation list.
var ErrRevocationUnavailable = errors.New("revocation list unavailable", errors.CategoryOperation).
	WithTextCode(TextCodeRevocationUnavailable).
	WithCode(http.StatusServiceUnavailable)

// ErrRequestFailed is the sanitized shape for unexpected failures.
var ErrRequestFailed = errors.New("unable to process request", errors.CategoryInternal).
	WithTextCode(TextCodeRequestFailed).
	WithCode(errors.CodeBadRequest)

// ErrTokenIssueFailed is returned when signing a token fails.
var ErrTokenIssueFailed = errors.New("unable to issue token", errors.CategoryInternal).
	WithTextCode(TextCodeTokenIssueFailed).
	WithCode(errors.CodeInternal)

// ErrUserNotFound is the directory signal for a missing record.
var ErrUserNotFound = errors.New("user not found", errors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(errors.CodeNotFound)

// ErrUserAlreadyExists is the directory signal for a uniqueness violation.
var ErrUserAlreadyExists = errors.New("user already exists", errors.CategoryConflict).
	WithTextCode(TextCodeUserAlreadyExists).
	WithCode(errors.CodeConflict)

// ErrNoEmptyString is returned when hashing an empty password.
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(errors.CodeBadRequest)

// ErrMismatchedHashAndPassword is returned by ComparePasswordAndHash.
var ErrMismatchedHashAndPassword = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// NewValidationError builds an INVALID_PAYLOAD error carrying per field messages.
func NewValidationError(fields ...errors.FieldError) *errors.Error {
	return errors.NewValidation("invalid payload", fields...).
		WithTextCode(TextCodeInvalidPayload).
		WithCode(errors.CodeBadRequest)
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrExpiredRefreshToken) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsDirectoryUnavailable reports whether err is a retryable directory failure.
func IsDirectoryUnavailable(err error) bool {
	return errors.Is(err, ErrDirectoryUnavailable)
}
