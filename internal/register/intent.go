package register

// IntentKind is a UI action the register asks for.
type IntentKind string

const (
	IntentFocusScanInput IntentKind = "focus-scan-input"
	IntentClearScanInput IntentKind = "clear-scan-input"
	IntentScrollToLine   IntentKind = "scroll-to-line"
)

// Intent is a UI action. LineID is set for IntentScrollToLine.
type Intent struct {
	Kind   IntentKind
	LineID string
}

// maxIntents bounds the queue when no UI is draining it.
const maxIntents = 64

type intentQueue struct {
	items []Intent
}

func (q *intentQueue) push(in ...Intent) {
	q.items = append(q.items, in...)
	if over := len(q.items) - maxIntents; over > 0 {
		q.items = append(q.items[:0:0], q.items[over:]...)
	}
}

func (q *intentQueue) drain() []Intent {
	out := q.items
	q.items = nil
	return out
}

func scanSurfaceReset() []Intent {
	return []Intent{{Kind: IntentClearScanInput}, {Kind: IntentFocusScanInput}}
}
