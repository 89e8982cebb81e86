package session

import (
	"sync"
	"time"
)

// timerSet tracks every outstanding delayed transition so a global reset
// can cancel them all. Individual timers remove themselves once fired.
type timerSet struct {
	mu     sync.Mutex
	seq    uint64
	active map[uint64]*time.Timer
}

func newTimerSet() *timerSet {
	return &timerSet{active: make(map[uint64]*time.Timer)}
}

func (ts *timerSet) schedule(d time.Duration, fn func()) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.seq++
	id := ts.seq
	t := time.AfterFunc(d, func() {
		ts.mu.Lock()
		_, live := ts.active[id]
		delete(ts.active, id)
		ts.mu.Unlock()

		// cancelAll can race a timer that already fired; the map entry is
		// the source of truth for whether the callback still applies.
		if !live {
			return
		}
		fn()
	})
	ts.active[id] = t
}

func (ts *timerSet) cancelAll() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	for id, t := range ts.active {
		t.Stop()
		delete(ts.active, id)
	}
}
