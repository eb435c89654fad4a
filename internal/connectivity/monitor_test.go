package connectivity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func passing() CheckFunc {
	return func(context.Context) error { return nil }
}

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func TestMonitor_BackendTransitions(t *testing.T) {
	up := false
	m := NewMonitor(func(context.Context) error {
		if up {
			return nil
		}
		return errors.New("connection refused")
	}, time.Second, zap.NewNop())

	var events []bool
	m.Subscribe(func(online bool) { events = append(events, online) })

	ctx := context.Background()
	assert.False(t, m.Online(), "starts offline")

	m.backend.run(ctx)
	assert.False(t, m.Online())
	assert.Empty(t, events)

	up = true
	m.backend.run(ctx)
	assert.True(t, m.Online(), "one success brings it online")

	up = false
	m.backend.run(ctx)
	m.backend.run(ctx)
	assert.True(t, m.Online(), "two failures are tolerated")
	m.backend.run(ctx)
	assert.False(t, m.Online())

	assert.Equal(t, []bool{true, false}, events)
}

type statusResponse struct {
	Status  string            `json:"status"`
	Backend string            `json:"backend"`
	Checks  map[string]string `json:"checks"`
}

func TestMonitor_ReadinessIgnoresBackend(t *testing.T) {
	m := NewMonitor(failing("down"), time.Second, zap.NewNop())
	m.AddReadinessCheck("store", time.Second, passing())

	assert.False(t, m.IsReady(), "not ready before SetReady")
	m.SetReady(true)
	assert.True(t, m.IsReady())

	w := httptest.NewRecorder()
	m.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var body statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "offline", body.Backend)

	m.SetReady(false)
	assert.False(t, m.IsReady())
}

func TestMonitor_ReadyEndpointFailingCheck(t *testing.T) {
	m := NewMonitor(passing(), time.Second, zap.NewNop())
	m.AddReadinessCheck("store", time.Second, failing("connection refused"))
	m.AddReadinessCheck("other", time.Second, passing())
	m.SetReady(true)

	ctx := context.Background()
	for range 3 {
		m.readiness[0].run(ctx)
	}
	m.backend.run(ctx)

	w := httptest.NewRecorder()
	m.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "online", body.Backend)
	assert.Equal(t, "connection refused", body.Checks["store"])
	assert.NotContains(t, body.Checks, "other")
}

func TestMonitor_LiveEndpoint(t *testing.T) {
	m := NewMonitor(passing(), time.Second, zap.NewNop())
	m.AddLivenessCheck("flaky", time.Second, failing("stuck"))

	ctx := context.Background()
	m.liveness[0].run(ctx)
	m.liveness[0].run(ctx)

	w := httptest.NewRecorder()
	m.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, w.Code, "below failure threshold")

	m.liveness[0].run(ctx)
	w = httptest.NewRecorder()
	m.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestProbe_LastError(t *testing.T) {
	p := newProbe("db", time.Second, failing("timeout"), true)
	assert.Nil(t, p.lastError())

	p.run(context.Background())
	assert.EqualError(t, p.lastError(), "timeout")
}

func TestMonitor_StartStop(t *testing.T) {
	var mu sync.Mutex
	online := make(chan struct{})
	m := NewMonitor(passing(), time.Second, zap.NewNop())
	m.Subscribe(func(bool) {
		mu.Lock()
		defer mu.Unlock()
		select {
		case <-online:
		default:
			close(online)
		}
	})
	m.AddLivenessCheck("goroutines", time.Second, GoroutineCountCheck(100000))

	m.Start(context.Background(), 10*time.Millisecond)
	select {
	case <-online:
	case <-time.After(time.Second):
		t.Fatal("backend never came online")
	}
	assert.True(t, m.Online())

	m.Stop()
	m.Stop()
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}
