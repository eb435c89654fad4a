package scan

import (
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultQuietPeriod is the typing pause after which free-typed input is
// treated as a complete token.
const DefaultQuietPeriod = 300 * time.Millisecond

// Debouncer delays free-typed input until the operator stops typing, so that
// a partially typed "ABC-2" is not taken for a complete token.
type Debouncer struct {
	clock clockwork.Clock
	quiet time.Duration
	fire  func(text string)

	mux     sync.Mutex
	pending clockwork.Timer
	seq     uint64
}

// NewDebouncer calls fire with the latest text after quiet elapses without
// further input.
func NewDebouncer(c clockwork.Clock, quiet time.Duration, fire func(text string)) *Debouncer {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Debouncer{clock: c, quiet: quiet, fire: fire}
}

// Type records the current content of the input surface. Blank text cancels
// any pending evaluation.
func (d *Debouncer) Type(text string) {
	d.mux.Lock()
	defer d.mux.Unlock()

	d.cancelLocked()
	if strings.TrimSpace(text) == "" {
		return
	}
	seq := d.seq
	d.pending = d.clock.AfterFunc(d.quiet, func() {
		d.mux.Lock()
		if seq != d.seq {
			d.mux.Unlock()
			return
		}
		d.pending = nil
		d.seq++
		d.mux.Unlock()

		d.fire(text)
	})
}

// Cancel drops any pending evaluation. The terminator keystroke cancels
// before scanning the text directly.
func (d *Debouncer) Cancel() {
	d.mux.Lock()
	defer d.mux.Unlock()
	d.cancelLocked()
}

func (d *Debouncer) cancelLocked() {
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
	d.seq++
}
