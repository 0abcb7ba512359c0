package txsync

import (
	"sync"
	"time"
)

// refresher runs a function a short delay after being asked to, coalescing
// bursts of requests into one run. The mutation pipeline feeds it after
// every successful write so a burst of edits costs a single reconciling
// refetch instead of one per edit.
type refresher struct {
	requests chan struct{}
	closeCh  chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
	delay    time.Duration
	run      func()
}

// newRefresher starts the worker goroutine. Stop releases it.
func newRefresher(delay time.Duration, run func()) *refresher {
	r := &refresher{
		requests: make(chan struct{}, 1),
		closeCh:  make(chan struct{}),
		delay:    delay,
		run:      run,
	}
	r.wg.Add(1)
	go r.worker()
	return r
}

// Request schedules a run. Never blocks; a request arriving while one is
// already pending folds into it.
func (r *refresher) Request() {
	select {
	case r.requests <- struct{}{}:
	default:
	}
}

// Stop shuts the worker down. Idempotent; pending requests are dropped.
func (r *refresher) Stop() {
	r.once.Do(func() {
		close(r.closeCh)
	})
	r.wg.Wait()
}

func (r *refresher) worker() {
	defer r.wg.Done()

	for {
		select {
		case <-r.closeCh:
			return
		case <-r.requests:
		}

		// Hold off so the remote write settles, absorbing any further
		// requests that land in the meantime.
		select {
		case <-r.closeCh:
			return
		case <-time.After(r.delay):
		}

		select {
		case <-r.requests:
		default:
		}

		r.run()
	}
}
