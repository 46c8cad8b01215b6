package auth

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the session options the library needs from the host
// application. Signing keys and the access lifetime are required.
type Config interface {
	GetAccessSigningKey() string
	GetRefreshSigningKey() string
	GetAccessTokenLifetime() time.Duration
	GetRefreshTokenLifetime() time.Duration
	GetIssuer() string
	GetAudience() []string
	GetAccessCookieName() string
	GetRefreshCookieName() string
	GetCookieDomain() string
	GetCookiePath() string
	GetDirectoryTimeout() time.Duration
}

// CredentialVerifier compares a cleartext password against a stored hash.
// A mismatch is reported as false, never as an error.
type CredentialVerifier interface {
	Verify(password, hash string) bool
}

// CredentialVerifierFunc adapts a function into a CredentialVerifier.
type CredentialVerifierFunc func(password, hash string) bool

// Verify satisfies the CredentialVerifier interface.
func (f CredentialVerifierFunc) Verify(password, hash string) bool {
	if f == nil {
		return false
	}
	return f(password, hash)
}

// UserDirectory is the store of user records keyed by unique email.
//
// GetByEmail returns ErrUserNotFound when no record matches.
// Create hashes the password, persists the record and returns
// ErrUserAlreadyExists when the email uniqueness constraint fires.
// Infrastructure failures should be reported as ErrDirectoryUnavailable.
type UserDirectory interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, user NewUser) (*User, error)
}

// Clock returns the current time. Tests inject fixed clocks.
type Clock func() time.Time

func normalizeClock(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}

// defLogger prints the message followed by its key/value pairs.
type defLogger struct {
	out io.Writer
}

func (d defLogger) Error(msg string, args ...any) {
	d.print("ERR", msg, args)
}

func (d defLogger) Warn(msg string, args ...any) {
	d.print("WRN", msg, args)
}

func (d defLogger) Info(msg string, args ...any) {
	d.print("INF", msg, args)
}

func (d defLogger) Debug(msg string, args ...any) {
	d.print("DBG", msg, args)
}

func (d defLogger) print(level, msg string, args []any) {
	out := d.out
	if out == nil {
		out = os.Stdout
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] AUTH %s", level, strings.TrimRight(msg, "\n"))
	for i := 0; i < len(args); i += 2 {
		if i+1 == len(args) {
			fmt.Fprintf(&b, " !BADKEY=%v", args[i])
			break
		}
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	b.WriteByte('\n')

	_, _ = io.WriteString(out, b.String())
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
