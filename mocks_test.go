package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/goliatone/go-session-auth"
)

var (
	testAccessKey  = []byte("test-access-signing-key")
	testRefreshKey = []byte("test-refresh-signing-key")
)

const (
	testAccessLifetime  = 15 * time.Minute
	testRefreshLifetime = 24 * time.Hour
)

// MockUserDirectory implements auth.UserDirectory
type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUserDirectory) Create(ctx context.Context, input auth.NewUser) (*auth.User, error) {
	args := m.Called(ctx, input)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

// MockRevocationList implements auth.RevocationList
type MockRevocationList struct {
	mock.Mock
}

func (m *MockRevocationList) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	args := m.Called(ctx, tokenID, until)
	return args.Error(0)
}

func (m *MockRevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}

// MockLogger implements auth.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Info(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Warn(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Error(format string, args ...any) {
	m.Called(format, args)
}

// quietLogger drops everything.
type quietLogger struct{}

func (quietLogger) Debug(string, ...any) {}
func (quietLogger) Info(string, ...any)  {}
func (quietLogger) Warn(string, ...any)  {}
func (quietLogger) Error(string, ...any) {}

// recordingSink collects activity events.
type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) Types() []auth.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

// recordingMetrics collects operation outcomes.
type recordingMetrics struct {
	mu       sync.Mutex
	outcomes map[string][]string
}

func (r *recordingMetrics) Observe(operation, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = map[string][]string{}
	}
	r.outcomes[operation] = append(r.outcomes[operation], outcome)
}

func (r *recordingMetrics) Outcomes(operation string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.outcomes[operation]...)
}

// manualClock is a settable clock.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return newManualClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
}

func newManualClockAt(now time.Time) *manualClock {
	return &manualClock{now: now}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestTokens(t *testing.T, clock *manualClock, opts ...auth.TokenServiceOption) *auth.TokenServiceImpl {
	t.Helper()

	base := []auth.TokenServiceOption{
		auth.WithTokenClock(clock.Now),
		auth.WithTokenLogger(quietLogger{}),
	}
	ts, err := auth.NewTokenService(testAccessKey, testRefreshKey, testAccessLifetime, testRefreshLifetime, append(base, opts...)...)
	require.NoError(t, err)
	return ts
}

func newTestController(t *testing.T, directory auth.UserDirectory, tokens auth.TokenService, clock *manualClock, opts ...auth.SessionOption) *auth.SessionController {
	t.Helper()

	base := []auth.SessionOption{
		auth.WithSessionLogger(quietLogger{}),
		auth.WithSessionClock(clock.Now),
		auth.WithTimingHash(auth.RandomPasswordHash(bcrypt.MinCost)),
	}
	return auth.NewSessionController(directory, auth.BcryptVerifier{}, tokens, append(base, opts...)...)
}
