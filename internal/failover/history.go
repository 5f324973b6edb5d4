package failover

// historyCapacity bounds the per-service failover event ring
const historyCapacity = 100

// history is a bounded append log of failover events, oldest evicted first.
// Callers must hold the owning service's lock.
type history struct {
	events []Event
}

func newHistory() *history {
	return &history{events: make([]Event, 0, historyCapacity)}
}

func (h *history) append(e Event) {
	h.events = append(h.events, e)
	if len(h.events) > historyCapacity {
		h.events = h.events[1:]
	}
}

// newest returns events ordered newest-first, truncated to limit.
// A limit <= 0 returns everything.
func (h *history) newest(limit int) []Event {
	n := len(h.events)
	if limit <= 0 || limit > n {
		limit = n
	}
	result := make([]Event, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		result = append(result, h.events[i])
	}
	return result
}

func (h *history) len() int {
	return len(h.events)
}
