package classifier

import "time"

// strokeHistory is the bounded time-windowed movement event log. Entries
// older than the retention window are purged every tick; the log is used
// only for pattern inference and never replayed.
type strokeHistory struct {
	retention time.Duration
	entries   []Stroke
}

func newStrokeHistory(retention time.Duration) *strokeHistory {
	return &strokeHistory{retention: retention}
}

func (h *strokeHistory) push(s Stroke) {
	h.entries = append(h.entries, s)
}

// purge drops entries older than the retention window. Entries are in
// time order, so a single scan for the cut point suffices.
func (h *strokeHistory) purge(now time.Time) {
	cutoff := now.Add(-h.retention)
	i := 0
	for i < len(h.entries) && h.entries[i].At.Before(cutoff) {
		i++
	}
	if i > 0 {
		h.entries = append(h.entries[:0], h.entries[i:]...)
	}
}

// since returns the entries at or after t, oldest first. The returned
// slice aliases the history and is only valid until the next mutation.
func (h *strokeHistory) since(t time.Time) []Stroke {
	i := 0
	for i < len(h.entries) && h.entries[i].At.Before(t) {
		i++
	}
	return h.entries[i:]
}

func (h *strokeHistory) clear() {
	h.entries = h.entries[:0]
}
