package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/designjam/countdown/go/internal/clock"
	"github.com/designjam/countdown/go/internal/models"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

type natsState bool

func (n natsState) Connected() bool { return bool(n) }

func TestHealthChecker_NoSnapshot(t *testing.T) {
	svc := NewService(DefaultConfig(), nil)
	checker := NewHealthChecker(svc, nil, nil, time.Minute, clockwork.NewFakeClockAt(start))

	rec := httptest.NewRecorder()
	checker.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/details", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Healthy)
	assert.Contains(t, status.Errors, "clock has not produced a snapshot")
}

func TestHealthChecker_Healthy(t *testing.T) {
	clk := clockwork.NewFakeClockAt(start)
	svc := NewService(DefaultConfig(), nil)
	cfg := schedule()
	svc.HandleSnapshot(clock.Evaluate(&cfg, start))

	checker := NewHealthChecker(svc, pingFunc(func(context.Context) error { return nil }), natsState(true), time.Minute, clk)
	status := checker.Check(context.Background())

	assert.True(t, status.Healthy)
	assert.True(t, status.ConfigAvailable)
	assert.Equal(t, models.PhaseWaitingForSubmissions, status.Phase)
	require.NotNil(t, status.DatabaseConnected)
	assert.True(t, *status.DatabaseConnected)
	require.NotNil(t, status.NATSConnected)
	assert.True(t, *status.NATSConnected)
	assert.Empty(t, status.Errors)
}

func TestHealthChecker_Degraded(t *testing.T) {
	clk := clockwork.NewFakeClockAt(start)
	svc := NewService(DefaultConfig(), nil)
	svc.HandleSnapshot(clock.Evaluate(nil, start))
	clk.Advance(2 * time.Minute)

	checker := NewHealthChecker(svc,
		pingFunc(func(context.Context) error { return errors.New("connection refused") }),
		natsState(false),
		time.Minute,
		clk,
	)
	status := checker.Check(context.Background())

	assert.False(t, status.Healthy)
	assert.False(t, status.ConfigAvailable)
	assert.False(t, *status.DatabaseConnected)
	assert.False(t, *status.NATSConnected)
	assert.ElementsMatch(t, []string{
		"competition config unavailable",
		"no snapshot for 2m0s",
		"database ping failed: connection refused",
		"NATS disconnected",
	}, status.Errors)
}
