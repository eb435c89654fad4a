// Package connectivity tracks whether the sales backend is reachable and
// serves the register's liveness and readiness endpoints.
//
// The backend probe starts offline and needs one success to come online and
// three consecutive failures to go offline again. Listeners are told about
// every transition; the replay worker uses this to drain its queue as soon as
// the backend returns.
package connectivity

import (
	"context"
	"maps"
	"net/http"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/zap"
)

// Monitor owns the backend probe and the local health checks.
type Monitor struct {
	lg      *zap.Logger
	ready   atomic.Bool
	backend *probe

	mu        sync.RWMutex
	liveness  []*probe
	readiness []*probe
	listeners []func(online bool)
	cancel    context.CancelFunc
}

// NewMonitor creates a Monitor probing the backend with ping.
func NewMonitor(ping CheckFunc, timeout time.Duration, lg *zap.Logger) *Monitor {
	m := &Monitor{lg: lg}
	m.backend = newProbe("backend", timeout, ping, false)
	m.backend.onChange = m.notify
	return m
}

// Online reports whether the backend is believed reachable.
func (m *Monitor) Online() bool {
	return m.backend.isHealthy()
}

// Subscribe registers fn for online/offline transitions. fn runs on the probe
// goroutine and must not block.
func (m *Monitor) Subscribe(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Monitor) notify(online bool) {
	if online {
		m.lg.Info("Backend reachable")
	} else {
		m.lg.Warn("Backend unreachable, working offline", zap.Error(m.backend.lastError()))
	}

	m.mu.RLock()
	listeners := m.listeners
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn(online)
	}
}

// AddLivenessCheck registers a check that gates /livez.
func (m *Monitor) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.liveness = append(m.liveness, newProbe(name, timeout, check, true))
}

// AddReadinessCheck registers a check that gates /readyz.
func (m *Monitor) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readiness = append(m.readiness, newProbe(name, timeout, check, true))
}

// Start runs every probe in its own goroutine until ctx is done or Stop is
// called.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.cancel = cancel
	probes := make([]*probe, 0, 1+len(m.liveness)+len(m.readiness))
	probes = append(probes, m.backend)
	probes = append(probes, m.liveness...)
	probes = append(probes, m.readiness...)
	m.mu.Unlock()

	for _, p := range probes {
		go p.loop(ctx, interval)
	}
}

// Stop cancels the probes. It is safe to call more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// SetReady marks the service ready or draining.
func (m *Monitor) SetReady(ready bool) {
	m.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every readiness
// check passes. Backend reachability does not affect readiness: the register
// keeps selling offline.
func (m *Monitor) IsReady() bool {
	if !m.ready.Load() {
		return false
	}
	m.mu.RLock()
	checks := m.readiness
	m.mu.RUnlock()
	for _, c := range checks {
		if !c.isHealthy() {
			return false
		}
	}
	return true
}

// LiveEndpoint serves /livez.
func (m *Monitor) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	m.mu.RLock()
	checks := append([]*probe(nil), m.liveness...)
	m.mu.RUnlock()

	m.writeResponse(w, collectFailures(checks))
}

// ReadyEndpoint serves /readyz.
func (m *Monitor) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	m.mu.RLock()
	checks := append([]*probe(nil), m.readiness...)
	m.mu.RUnlock()

	failures := collectFailures(checks)
	if !m.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	m.writeResponse(w, failures)
}

func collectFailures(checks []*probe) map[string]string {
	failures := make(map[string]string)
	for _, c := range checks {
		if c.isHealthy() {
			continue
		}
		if err := c.lastError(); err != nil {
			failures[c.name] = err.Error()
		} else {
			failures[c.name] = "check is unhealthy"
		}
	}
	return failures
}

func (m *Monitor) writeResponse(w http.ResponseWriter, failures map[string]string) {
	backend := "offline"
	if m.Online() {
		backend = "online"
	}
	status, code := "ok", http.StatusOK
	if len(failures) > 0 {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	e.Str(status)
	e.FieldStart("backend")
	e.Str(backend)
	if len(failures) > 0 {
		e.FieldStart("checks")
		e.ObjStart()
		for _, name := range slices.Sorted(maps.Keys(failures)) {
			e.FieldStart(name)
			e.Str(failures[name])
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}

// GoroutineCountCheck fails when the process runs more than threshold
// goroutines.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}
