// Package auth implements the session token lifecycle: registration,
// login, logout and silent refresh over signed access and refresh tokens.
//
// Tokens:
//   - TokenService mints HS256 JWTs. Access and refresh tokens use distinct
//     keys and independent lifetimes, and carry only the user id and email.
//   - Validation returns a tagged Validation whose Status is TokenValid,
//     TokenExpired or TokenInvalid. Signatures are checked before time
//     claims, so a forged token never reports as expired.
//
// Sessions:
//   - SessionController runs Register, Login, Logout and Refresh against a
//     UserDirectory and a CredentialVerifier. Login failures for unknown
//     emails and wrong passwords are the same ErrInvalidLogin.
//   - Refresh issues a new access token and never rotates the refresh token.
//   - Tokens are stateless. An optional RevocationList (Redis backed) lets
//     Logout revoke a refresh token id that Refresh then rejects.
//
// Directories:
//   - NewUsersRepository stores users with bun; RegisterMigrations hands
//     the embedded schema to a go-persistence-bun client. NewMemoryUsers serves tests and development.
//
// HTTP:
//   - HTTPController mounts the JSON endpoints on a go-router Router and sets
//     the accessToken and refreshToken cookies. RequireAccess protects
//     application routes with the access token.
package auth
