package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/designjam/countdown/go/internal/clock"
	"github.com/designjam/countdown/go/internal/models"
)

type fixedSnapshots struct {
	snap clock.Snapshot
	ok   bool
}

func (f fixedSnapshots) Latest() (clock.Snapshot, bool) { return f.snap, f.ok }

func TestStateHandler_NotStarted(t *testing.T) {
	mux := http.NewServeMux()
	NewStateHandler(fixedSnapshots{}).RegisterStateRoutes(mux)

	for _, path := range []string{"/api/status", "/api/countdown"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestStateHandler_Countdown(t *testing.T) {
	cfg := models.CompetitionConfig{VotingEnd: models.TimestampPtr(start.Add(26*time.Hour + 3*time.Minute + 4*time.Second))}
	mux := http.NewServeMux()
	NewStateHandler(fixedSnapshots{snap: clock.Evaluate(&cfg, start), ok: true}).RegisterStateRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/countdown", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var body CountdownResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, models.PhaseVotingOpen, body.Phase)
	assert.Equal(t, "Voting ends in", body.Label)
	assert.Equal(t, "26:03:04", body.Display)
	assert.False(t, body.Loading)
	assert.True(t, start.Equal(body.AsOf))
}

func TestStateHandler_Status(t *testing.T) {
	mux := http.NewServeMux()
	NewStateHandler(fixedSnapshots{snap: clock.Evaluate(nil, start), ok: true}).RegisterStateRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["is_loading"])
	assert.Equal(t, clock.LabelLoading, body["label"])
	assert.Nil(t, body["status"])

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func startGateway(t *testing.T) (*Service, *httptest.Server) {
	t.Helper()
	svc := NewService(DefaultConfig(), nil)
	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Start(ctx)
	}()

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		cancel()
		<-done
		server.Close()
	})
	return svc, server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/countdown?viewer_id=test"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event Event
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestWebSocket_BroadcastsSnapshots(t *testing.T) {
	svc, server := startGateway(t)
	conn := dial(t, server)

	require.Eventually(t, func() bool {
		return svc.GetStats().TotalConnections == 1
	}, 2*time.Second, 10*time.Millisecond)

	cfg := schedule()
	svc.HandleSnapshot(clock.Evaluate(&cfg, start))

	tick := readEvent(t, conn)
	assert.Equal(t, EventTypeCountdownTick, tick.Type)
	payload, err := ParseEventPayload(&tick)
	require.NoError(t, err)
	assert.Equal(t, "00:00:02", payload.(CountdownTickPayload).Display)

	changed := readEvent(t, conn)
	assert.Equal(t, EventTypePhaseChanged, changed.Type)
}

func TestWebSocket_NewViewerGetsLatestTick(t *testing.T) {
	svc, server := startGateway(t)

	cfg := schedule()
	svc.HandleSnapshot(clock.Evaluate(&cfg, start))
	require.Eventually(t, func() bool {
		svc.connectionManager.mu.RLock()
		defer svc.connectionManager.mu.RUnlock()
		return svc.connectionManager.latest != nil
	}, 2*time.Second, 10*time.Millisecond)

	conn := dial(t, server)
	event := readEvent(t, conn)
	assert.Equal(t, EventTypeCountdownTick, event.Type)

	rec := httptest.NewRecorder()
	svc.wsHandler.HandleConnectionStats(rec, httptest.NewRequest(http.MethodGet, "/ws/stats", nil))
	assert.JSONEq(t, `{"total_connections":1}`, rec.Body.String())
}
