package scheduler

// ShadowLedger records intervals provisionally accepted within one batch
// so that later items see them before durable storage does.
//
// A ledger belongs to a single batch invocation. It is not safe for
// concurrent use and must not be shared between batches.
type ShadowLedger struct {
	accepted []Interval
}

// NewShadowLedger returns an empty ledger.
func NewShadowLedger() *ShadowLedger {
	return &ShadowLedger{}
}

// Conflicts reports whether candidate overlaps any accepted interval.
// A nil ledger never conflicts.
func (l *ShadowLedger) Conflicts(candidate Interval) bool {
	if l == nil {
		return false
	}
	for _, iv := range l.accepted {
		if iv.Overlaps(candidate) {
			return true
		}
	}
	return false
}

// Accept appends an interval in acceptance order.
func (l *ShadowLedger) Accept(iv Interval) {
	if l == nil {
		return
	}
	l.accepted = append(l.accepted, iv)
}

// Len returns the number of accepted intervals.
func (l *ShadowLedger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.accepted)
}
