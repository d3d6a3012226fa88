// Package synctimer provides the single-shot cancellable timer primitive
// shared by the routing-activation and diagnostic-message state machines:
// start a wait bound by a duration, and let either the duration elapsing or
// an explicit signal resolve it, with the guarantee that a timer's callback
// is never invoked after Cancel returns.
package synctimer

import (
	"sync"
	"time"
)

// Timer is a single-shot, cancellable wait. It is not reusable: start a new
// Timer for each wait.
type Timer struct {
	mu        sync.Mutex
	t         *time.Timer
	resolved  bool
	onTimeout func()
}

// Start begins a wait of the given duration. If the duration elapses before
// Cancel is called, onTimeout runs on its own goroutine exactly once.
// Cancelling an already-fired timer is a no-op; onTimeout is guaranteed not
// to run after Cancel returns once Cancel has observed the timer unfired.
func Start(duration time.Duration, onTimeout func()) *Timer {
	st := &Timer{onTimeout: onTimeout}
	st.t = time.AfterFunc(duration, func() {
		st.mu.Lock()
		if st.resolved {
			st.mu.Unlock()
			return
		}
		st.resolved = true
		st.mu.Unlock()
		onTimeout()
	})
	return st
}

// Cancel stops the timer. If the timer had not yet fired, its onTimeout
// callback will never run. Safe to call more than once and from any
// goroutine; returns true if this call is the one that prevented the
// timeout callback from running.
func (s *Timer) Cancel() bool {
	s.mu.Lock()
	if s.resolved {
		s.mu.Unlock()
		return false
	}
	s.resolved = true
	s.mu.Unlock()
	s.t.Stop()
	return true
}
