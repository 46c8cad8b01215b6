package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-session-auth"
)

func TestPrometheusMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := auth.NewPrometheusMetrics(reg)
	require.NoError(t, err)

	m.Observe(auth.OperationLogin, "success", 10*time.Millisecond)
	m.Observe(auth.OperationLogin, "invalid_login", 10*time.Millisecond)
	m.Observe(auth.OperationLogin, "invalid_login", 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations().WithLabelValues(auth.OperationLogin, "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Operations().WithLabelValues(auth.OperationLogin, "invalid_login")))

	count, err := testutil.GatherAndCount(reg, "session_auth_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPrometheusMetrics_DoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := auth.NewPrometheusMetrics(reg)
	require.NoError(t, err)

	_, err = auth.NewPrometheusMetrics(reg)
	assert.Error(t, err)

	_, err = auth.NewPrometheusMetrics(nil)
	assert.NoError(t, err)
}

func TestPrometheusMetrics_WithSessionController(t *testing.T) {
	m, err := auth.NewPrometheusMetrics(nil)
	require.NoError(t, err)

	f := newSessionFixture(t, auth.WithMetrics(m))

	_, err = f.controller.Refresh(context.Background(), "")
	require.Error(t, err)
	f.controller.Logout(context.Background(), "")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations().WithLabelValues(auth.OperationRefresh, "missing_token")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations().WithLabelValues(auth.OperationLogout, "success")))
}
