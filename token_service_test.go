package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-session-auth"
)

var testClaims = auth.Claims{
	UserID: "8d7c2c4e-6f44-4d6b-9a52-2f1e8fd0d2a1",
	Email:  "a@x.com",
}

func TestNewTokenService_Rejections(t *testing.T) {
	tests := []struct {
		name            string
		accessKey       []byte
		refreshKey      []byte
		accessLifetime  time.Duration
		refreshLifetime time.Duration
	}{
		{
			name:            "missing access key",
			refreshKey:      testRefreshKey,
			accessLifetime:  time.Minute,
			refreshLifetime: time.Hour,
		},
		{
			name:            "missing refresh key",
			accessKey:       testAccessKey,
			accessLifetime:  time.Minute,
			refreshLifetime: time.Hour,
		},
		{
			name:            "identical keys",
			accessKey:       testAccessKey,
			refreshKey:      testAccessKey,
			accessLifetime:  time.Minute,
			refreshLifetime: time.Hour,
		},
		{
			name:            "zero access lifetime",
			accessKey:       testAccessKey,
			refreshKey:      testRefreshKey,
			refreshLifetime: time.Hour,
		},
		{
			name:            "refresh not longer than access",
			accessKey:       testAccessKey,
			refreshKey:      testRefreshKey,
			accessLifetime:  time.Hour,
			refreshLifetime: time.Hour,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := auth.NewTokenService(tt.accessKey, tt.refreshKey, tt.accessLifetime, tt.refreshLifetime)
			assert.Error(t, err)
			assert.Nil(t, ts)
		})
	}
}

func TestTokenService_IssueAndValidate(t *testing.T) {
	clock := newManualClock()
	ts := newTestTokens(t, clock)

	access, err := ts.IssueAccess(testClaims)
	require.NoError(t, err)
	assert.Equal(t, auth.TokenTypeAccess, access.Type)
	assert.Equal(t, clock.Now().Add(testAccessLifetime), access.ExpiresAt)
	assert.NotEmpty(t, access.ID)

	refresh, err := ts.IssueRefresh(testClaims)
	require.NoError(t, err)
	assert.Equal(t, auth.TokenTypeRefresh, refresh.Type)
	assert.Equal(t, clock.Now().Add(testRefreshLifetime), refresh.ExpiresAt)
	assert.NotEqual(t, access.Value, refresh.Value)

	v := ts.ValidateAccess(access.Value)
	require.True(t, v.Valid(), "access validation: %v", v.Err)
	assert.Equal(t, testClaims, v.Claims.Identity())
	assert.Equal(t, access.ID, v.Claims.TokenID())
	assert.True(t, clock.Now().Equal(v.Claims.IssuedAt()))

	v = ts.ValidateRefresh(refresh.Value)
	require.True(t, v.Valid(), "refresh validation: %v", v.Err)
	assert.Equal(t, testClaims, v.Claims.Identity())
	assert.True(t, refresh.ExpiresAt.Equal(v.Claims.Expires()))
}

func TestTokenService_IssueRequiresUserID(t *testing.T) {
	ts := newTestTokens(t, newManualClock())

	_, err := ts.IssueAccess(auth.Claims{Email: "a@x.com"})
	assert.Error(t, err)

	_, err = ts.IssueRefresh(auth.Claims{UserID: "   "})
	assert.Error(t, err)
}

func TestTokenService_ExpiryBoundary(t *testing.T) {
	tests := []struct {
		name    string
		advance time.Duration
		status  auth.TokenStatus
	}{
		{name: "fresh", advance: 0, status: auth.TokenValid},
		{name: "one second before expiry", advance: testAccessLifetime - time.Second, status: auth.TokenValid},
		{name: "one second after expiry", advance: testAccessLifetime + time.Second, status: auth.TokenExpired},
		{name: "long after expiry", advance: 30 * 24 * time.Hour, status: auth.TokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newManualClock()
			ts := newTestTokens(t, clock)

			access, err := ts.IssueAccess(testClaims)
			require.NoError(t, err)

			clock.Advance(tt.advance)

			v := ts.ValidateAccess(access.Value)
			assert.Equal(t, tt.status, v.Status)
			if tt.status != auth.TokenValid {
				assert.Nil(t, v.Claims)
			}
		})
	}
}

func TestTokenService_SubSecondIssue(t *testing.T) {
	issuedAt := time.Date(2024, 3, 1, 12, 0, 0, 900*int(time.Millisecond), time.UTC)
	lifetime := time.Minute

	tests := []struct {
		name   string
		at     time.Time
		status auth.TokenStatus
	}{
		{name: "just before lifetime", at: issuedAt.Add(lifetime - 500*time.Millisecond), status: auth.TokenValid},
		{name: "at lifetime", at: issuedAt.Add(lifetime), status: auth.TokenValid},
		{name: "past rounded expiry", at: issuedAt.Add(lifetime + 500*time.Millisecond), status: auth.TokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newManualClockAt(issuedAt)
			ts, err := auth.NewTokenService(testAccessKey, testRefreshKey, lifetime, testRefreshLifetime,
				auth.WithTokenClock(clock.Now),
				auth.WithTokenLogger(quietLogger{}),
			)
			require.NoError(t, err)

			access, err := ts.IssueAccess(testClaims)
			require.NoError(t, err)
			assert.False(t, access.ExpiresAt.Before(issuedAt.Add(lifetime)), "exp %s", access.ExpiresAt)
			assert.Zero(t, access.ExpiresAt.Nanosecond())

			clock.Advance(tt.at.Sub(issuedAt))
			assert.Equal(t, tt.status, ts.ValidateAccess(access.Value).Status)
		})
	}
}

func TestTokenService_RefreshOutlivesAccess(t *testing.T) {
	clock := newManualClock()
	ts := newTestTokens(t, clock)

	access, err := ts.IssueAccess(testClaims)
	require.NoError(t, err)
	refresh, err := ts.IssueRefresh(testClaims)
	require.NoError(t, err)

	clock.Advance(testAccessLifetime + time.Second)

	assert.Equal(t, auth.TokenExpired, ts.ValidateAccess(access.Value).Status)
	assert.Equal(t, auth.TokenValid, ts.ValidateRefresh(refresh.Value).Status)

	clock.Advance(testRefreshLifetime)
	assert.Equal(t, auth.TokenExpired, ts.ValidateRefresh(refresh.Value).Status)
}

func TestTokenService_WrongClassIsInvalid(t *testing.T) {
	ts := newTestTokens(t, newManualClock())

	access, err := ts.IssueAccess(testClaims)
	require.NoError(t, err)
	refresh, err := ts.IssueRefresh(testClaims)
	require.NoError(t, err)

	assert.Equal(t, auth.TokenInvalid, ts.ValidateRefresh(access.Value).Status)
	assert.Equal(t, auth.TokenInvalid, ts.ValidateAccess(refresh.Value).Status)
}

func TestTokenService_ForgedTokens(t *testing.T) {
	clock := newManualClock()
	ts := newTestTokens(t, clock)

	other, err := auth.NewTokenService([]byte("other-access"), []byte("other-refresh"), testAccessLifetime, testRefreshLifetime,
		auth.WithTokenClock(clock.Now))
	require.NoError(t, err)

	forged, err := other.IssueRefresh(testClaims)
	require.NoError(t, err)

	v := ts.ValidateRefresh(forged.Value)
	assert.Equal(t, auth.TokenInvalid, v.Status)
	assert.Error(t, v.Err)

	// a forged token stays invalid even after it would have expired
	clock.Advance(testRefreshLifetime * 2)
	assert.Equal(t, auth.TokenInvalid, ts.ValidateRefresh(forged.Value).Status)
}

func TestTokenService_TamperedPayload(t *testing.T) {
	ts := newTestTokens(t, newManualClock())

	refresh, err := ts.IssueRefresh(testClaims)
	require.NoError(t, err)

	parts := strings.Split(refresh.Value, ".")
	require.Len(t, parts, 3)

	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	assert.Equal(t, auth.TokenInvalid, ts.ValidateRefresh(tampered).Status)
}

func TestTokenService_RejectsNoneAlgorithm(t *testing.T) {
	clock := newManualClock()
	ts := newTestTokens(t, clock)

	claims := &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   testClaims.UserID,
			ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
		},
		UID:  testClaims.UserID,
		Type: auth.TokenTypeRefresh,
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	assert.Equal(t, auth.TokenInvalid, ts.ValidateRefresh(unsigned).Status)
}

func TestTokenService_MalformedInputs(t *testing.T) {
	ts := newTestTokens(t, newManualClock())

	tests := []struct {
		name    string
		token   string
		missing bool
	}{
		{name: "empty", token: "", missing: true},
		{name: "whitespace", token: "   ", missing: true},
		{name: "garbage", token: "not-a-jwt"},
		{name: "two segments", token: "a.b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ts.ValidateRefresh(tt.token)
			assert.Equal(t, auth.TokenInvalid, v.Status)
			assert.False(t, v.Valid())
			if tt.missing {
				assert.ErrorIs(t, v.Err, auth.ErrMissingToken)
			}
		})
	}
}

func TestTokenService_IssuerAndAudience(t *testing.T) {
	clock := newManualClock()
	ts := newTestTokens(t, clock, auth.WithTokenIssuer("session-auth"), auth.WithTokenAudience("web", " "))

	access, err := ts.IssueAccess(testClaims)
	require.NoError(t, err)

	v := ts.ValidateAccess(access.Value)
	require.True(t, v.Valid())
	assert.Equal(t, "session-auth", v.Claims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{"web"}, v.Claims.Audience)

	otherIssuer := newTestTokens(t, clock, auth.WithTokenIssuer("someone-else"), auth.WithTokenAudience("web"))
	assert.Equal(t, auth.TokenInvalid, otherIssuer.ValidateAccess(access.Value).Status)

	otherAudience := newTestTokens(t, clock, auth.WithTokenIssuer("session-auth"), auth.WithTokenAudience("mobile"))
	assert.Equal(t, auth.TokenInvalid, otherAudience.ValidateAccess(access.Value).Status)
}

func TestTokenService_DeterministicForSameInputs(t *testing.T) {
	clock := newManualClock()
	ts := newTestTokens(t, clock)

	first, err := ts.IssueAccess(testClaims)
	require.NoError(t, err)
	second, err := ts.IssueAccess(testClaims)
	require.NoError(t, err)

	assert.Equal(t, first.Value, second.Value)
	assert.Equal(t, first.ID, second.ID)

	clock.Advance(time.Second)
	third, err := ts.IssueAccess(testClaims)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestTokenService_PayloadCarriesOnlyIdentity(t *testing.T) {
	ts := newTestTokens(t, newManualClock())

	refresh, err := ts.IssueRefresh(testClaims)
	require.NoError(t, err)

	mapClaims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(refresh.Value, mapClaims)
	require.NoError(t, err)

	assert.Equal(t, testClaims.UserID, mapClaims["uid"])
	assert.Equal(t, testClaims.Email, mapClaims["email"])
	assert.Equal(t, "refresh", mapClaims["typ"])
	for key := range mapClaims {
		assert.NotContains(t, strings.ToLower(key), "password")
		assert.NotContains(t, strings.ToLower(key), "hash")
	}
}

type staticConfig struct {
	accessKey, refreshKey string
	access, refresh       time.Duration
	issuer                string
	audience              []string
}

func (c staticConfig) GetAccessSigningKey() string            { return c.accessKey }
func (c staticConfig) GetRefreshSigningKey() string           { return c.refreshKey }
func (c staticConfig) GetAccessTokenLifetime() time.Duration  { return c.access }
func (c staticConfig) GetRefreshTokenLifetime() time.Duration { return c.refresh }
func (c staticConfig) GetIssuer() string                      { return c.issuer }
func (c staticConfig) GetAudience() []string                  { return c.audience }
func (c staticConfig) GetAccessCookieName() string            { return "" }
func (c staticConfig) GetRefreshCookieName() string           { return "" }
func (c staticConfig) GetCookieDomain() string                { return "" }
func (c staticConfig) GetCookiePath() string                  { return "" }
func (c staticConfig) GetDirectoryTimeout() time.Duration     { return 0 }

func testConfig() staticConfig {
	return staticConfig{
		accessKey:  string(testAccessKey),
		refreshKey: string(testRefreshKey),
		access:     testAccessLifetime,
		refresh:    testRefreshLifetime,
		issuer:     "session-auth",
	}
}

func TestNewTokenServiceFromConfig(t *testing.T) {
	_, err := auth.NewTokenServiceFromConfig(nil)
	assert.Error(t, err)

	clock := newManualClock()
	ts, err := auth.NewTokenServiceFromConfig(testConfig(), auth.WithTokenClock(clock.Now))
	require.NoError(t, err)
	assert.Equal(t, testAccessLifetime, ts.AccessLifetime())
	assert.Equal(t, testRefreshLifetime, ts.RefreshLifetime())

	access, err := ts.IssueAccess(testClaims)
	require.NoError(t, err)
	v := ts.ValidateAccess(access.Value)
	require.True(t, v.Valid())
	assert.Equal(t, "session-auth", v.Claims.Issuer)
}
