package scan

import (
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mux   sync.Mutex
	fired []string
}

func (r *recorder) fire(text string) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.fired = append(r.fired, text)
}

func (r *recorder) got() []string {
	r.mux.Lock()
	defer r.mux.Unlock()
	return slices.Clone(r.fired)
}

func TestDebouncer(t *testing.T) {
	tests := []struct {
		name  string
		steps func(d *Debouncer, clk *clockwork.FakeClock)
		want  []string
	}{
		{
			name: "fires after quiet period",
			steps: func(d *Debouncer, clk *clockwork.FakeClock) {
				d.Type("ABC-250")
				clk.Advance(299 * time.Millisecond)
				clk.Advance(time.Millisecond)
			},
			want: []string{"ABC-250"},
		},
		{
			name: "keystrokes restart the quiet period",
			steps: func(d *Debouncer, clk *clockwork.FakeClock) {
				d.Type("ABC-2")
				clk.Advance(200 * time.Millisecond)
				d.Type("ABC-25")
				clk.Advance(200 * time.Millisecond)
				d.Type("ABC-250")
				clk.Advance(300 * time.Millisecond)
			},
			want: []string{"ABC-250"},
		},
		{
			name: "nothing fires before the quiet period",
			steps: func(d *Debouncer, clk *clockwork.FakeClock) {
				d.Type("ABC-2")
				clk.Advance(100 * time.Millisecond)
			},
		},
		{
			name: "cancel drops pending input",
			steps: func(d *Debouncer, clk *clockwork.FakeClock) {
				d.Type("ABC-25")
				d.Cancel()
				clk.Advance(time.Second)
			},
		},
		{
			name: "clearing the input cancels",
			steps: func(d *Debouncer, clk *clockwork.FakeClock) {
				d.Type("ABC")
				d.Type("")
				clk.Advance(time.Second)
			},
		},
		{
			name: "whitespace is not scheduled",
			steps: func(d *Debouncer, clk *clockwork.FakeClock) {
				d.Type("   ")
				clk.Advance(time.Second)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk := clockwork.NewFakeClockAt(time.Unix(0, 0))
			rec := &recorder{}
			d := NewDebouncer(clk, 0, rec.fire)

			tt.steps(d, clk)

			if len(tt.want) == 0 {
				// Only expired timers run callbacks, and none expired here.
				assert.Empty(t, rec.got())
				return
			}
			require.Eventually(t, func() bool { return len(rec.got()) >= len(tt.want) }, time.Second, time.Millisecond)
			assert.Equal(t, tt.want, rec.got())
		})
	}
}
