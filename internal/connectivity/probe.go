package connectivity

import (
	"context"
	"sync/atomic"
	"time"
)

// CheckFunc returns nil when the probed dependency is reachable.
type CheckFunc func(ctx context.Context) error

// probe runs one check with failure/success thresholds so that a single
// dropped packet does not flip the register offline.
//
// run is called from one goroutine only; the counters need no locking.
// healthy and lastErr are read from HTTP handlers and use atomics.
type probe struct {
	name             string
	timeout          time.Duration
	check            CheckFunc
	failureThreshold int
	successThreshold int
	onChange         func(healthy bool)

	healthy atomic.Bool
	lastErr atomic.Pointer[error]
	lastRun atomic.Pointer[time.Time]

	consecutiveFails int
	consecutiveOK    int
}

func newProbe(name string, timeout time.Duration, check CheckFunc, healthy bool) *probe {
	p := &probe{
		name:             name,
		timeout:          timeout,
		check:            check,
		failureThreshold: 3,
		successThreshold: 1,
	}
	p.healthy.Store(healthy)
	return p
}

func (p *probe) isHealthy() bool { return p.healthy.Load() }

func (p *probe) lastError() error {
	if e := p.lastErr.Load(); e != nil {
		return *e
	}
	return nil
}

// run executes the check once and calls onChange when the health flips.
func (p *probe) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.check(ctx)
	p.lastErr.Store(&err)
	now := time.Now()
	p.lastRun.Store(&now)

	was := p.healthy.Load()
	if err != nil {
		p.consecutiveOK = 0
		p.consecutiveFails++
		if p.consecutiveFails >= p.failureThreshold {
			p.healthy.Store(false)
		}
	} else {
		p.consecutiveFails = 0
		p.consecutiveOK++
		if p.consecutiveOK >= p.successThreshold {
			p.healthy.Store(true)
		}
	}
	if healthy := p.healthy.Load(); healthy != was && p.onChange != nil {
		p.onChange(healthy)
	}
}

func (p *probe) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.run(ctx)
		}
	}
}
