package txsync

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestRefresher_CoalescesBurst(t *testing.T) {
	var runs atomic.Int32
	r := newRefresher(30*time.Millisecond, func() { runs.Add(1) })
	defer r.Stop()

	// A burst of requests inside the delay window costs a single run.
	for i := 0; i < 5; i++ {
		r.Request()
	}

	waitFor(t, 2*time.Second, func() bool { return runs.Load() >= 1 })
	time.Sleep(60 * time.Millisecond)

	if got := runs.Load(); got != 1 {
		t.Errorf("burst of 5 requests produced %d runs, want 1", got)
	}
}

func TestRefresher_RunsAgainForLaterRequest(t *testing.T) {
	var runs atomic.Int32
	r := newRefresher(10*time.Millisecond, func() { runs.Add(1) })
	defer r.Stop()

	r.Request()
	waitFor(t, 2*time.Second, func() bool { return runs.Load() == 1 })

	r.Request()
	waitFor(t, 2*time.Second, func() bool { return runs.Load() == 2 })
}

func TestRefresher_StopIsIdempotent(t *testing.T) {
	r := newRefresher(time.Hour, func() {})
	r.Request()
	r.Stop()
	r.Stop()
}
