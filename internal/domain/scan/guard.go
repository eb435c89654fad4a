package scan

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultSettleDelay is how long the guard stays closed after a pipeline run.
const DefaultSettleDelay = 50 * time.Millisecond

// GuardState is the ingestion guard state.
type GuardState int

const (
	Idle GuardState = iota
	Processing
)

func (s GuardState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Processing:
		return "processing"
	default:
		return "unknown"
	}
}

// Guard admits at most one scan pipeline at a time and drops an immediate
// resubmission of the same raw value. It reopens SettleDelay after the
// pipeline returns.
type Guard struct {
	clock       clockwork.Clock
	settleDelay time.Duration

	mux       sync.Mutex
	state     GuardState
	lastValue string
	reset     clockwork.Timer
}

// NewGuard creates a Guard. A non-positive delay selects DefaultSettleDelay.
func NewGuard(c clockwork.Clock, settleDelay time.Duration) *Guard {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	if settleDelay <= 0 {
		settleDelay = DefaultSettleDelay
	}
	return &Guard{clock: c, settleDelay: settleDelay}
}

// State returns the current state.
func (g *Guard) State() GuardState {
	g.mux.Lock()
	defer g.mux.Unlock()
	return g.state
}

// Submit runs pipeline for raw unless the guard is processing or raw equals
// the value being processed. It reports whether pipeline ran.
func (g *Guard) Submit(raw string, pipeline func(raw string)) bool {
	if !g.enter(raw) {
		return false
	}
	defer g.scheduleReset()

	pipeline(raw)
	return true
}

func (g *Guard) enter(raw string) bool {
	g.mux.Lock()
	defer g.mux.Unlock()

	if g.state == Processing || raw == g.lastValue {
		return false
	}
	g.state = Processing
	g.lastValue = raw
	return true
}

func (g *Guard) scheduleReset() {
	g.mux.Lock()
	defer g.mux.Unlock()

	if g.reset != nil {
		g.reset.Stop()
	}
	g.reset = g.clock.AfterFunc(g.settleDelay, func() {
		g.mux.Lock()
		defer g.mux.Unlock()

		g.state = Idle
		g.lastValue = ""
		g.reset = nil
	})
}
