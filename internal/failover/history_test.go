package failover

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHistory_NewestFirst(t *testing.T) {
	h := newHistory()
	for i := 0; i < 5; i++ {
		h.append(Event{ToNodeID: strconv.Itoa(i), Timestamp: time.Now()})
	}

	events := h.newest(3)
	assert.Len(t, events, 3)
	assert.Equal(t, "4", events[0].ToNodeID)
	assert.Equal(t, "3", events[1].ToNodeID)
	assert.Equal(t, "2", events[2].ToNodeID)
}

func TestHistory_EvictsOldest(t *testing.T) {
	h := newHistory()
	for i := 0; i <= historyCapacity; i++ {
		h.append(Event{ToNodeID: strconv.Itoa(i)})
	}

	assert.Equal(t, historyCapacity, h.len())

	all := h.newest(0)
	assert.Equal(t, strconv.Itoa(historyCapacity), all[0].ToNodeID)
	// Event 0 was evicted
	assert.Equal(t, "1", all[len(all)-1].ToNodeID)
}

func TestHistory_LimitLargerThanLen(t *testing.T) {
	h := newHistory()
	h.append(Event{ToNodeID: "a"})

	assert.Len(t, h.newest(10), 1)
	assert.Empty(t, newHistory().newest(5))
}
