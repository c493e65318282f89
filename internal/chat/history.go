package chat

// History is the bounded replay buffer of broadcastable events. Once full,
// appending evicts the oldest entry.
type History struct {
	ring  []Event
	start int
	count int
}

// NewHistory creates a History that retains at most limit events.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{ring: make([]Event, limit)}
}

// Append records ev. Typing events are ephemeral and never stored.
func (h *History) Append(ev Event) {
	if ev == nil || !ev.Kind().Persisted() {
		return
	}
	if h.count < len(h.ring) {
		h.ring[(h.start+h.count)%len(h.ring)] = ev
		h.count++
		return
	}
	h.ring[h.start] = ev
	h.start = (h.start + 1) % len(h.ring)
}

// Snapshot returns the retained events, oldest first. The returned slice is a
// copy and may be kept by the caller.
func (h *History) Snapshot() []Event {
	out := make([]Event, 0, h.count)
	for i := 0; i < h.count; i++ {
		out = append(out, h.ring[(h.start+i)%len(h.ring)])
	}
	return out
}

// Len returns the number of retained events.
func (h *History) Len() int {
	return h.count
}

// Limit returns the maximum number of retained events.
func (h *History) Limit() int {
	return len(h.ring)
}
