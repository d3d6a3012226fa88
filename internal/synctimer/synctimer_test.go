package synctimer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTimerFiresOnTimeout(t *testing.T) {
	var fired int32
	done := make(chan struct{})
	Start(10*time.Millisecond, func() {
		atomic.StoreInt32(&fired, 1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout callback never ran")
	}
	if atomic.LoadInt32(&fired) != 1 {
		t.Error("expected onTimeout to have run")
	}
}

func TestCancelPreventsTimeout(t *testing.T) {
	var fired int32
	timer := Start(30*time.Millisecond, func() {
		atomic.StoreInt32(&fired, 1)
	})

	if !timer.Cancel() {
		t.Fatal("expected first Cancel to succeed")
	}

	time.Sleep(60 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Error("onTimeout ran after Cancel returned")
	}
}

func TestCancelAfterFireIsNoOp(t *testing.T) {
	done := make(chan struct{})
	timer := Start(5*time.Millisecond, func() { close(done) })

	<-done
	if timer.Cancel() {
		t.Error("expected Cancel on an already-fired timer to report no-op")
	}
}

func TestDoubleCancelIsSafe(t *testing.T) {
	timer := Start(50*time.Millisecond, func() {})
	if !timer.Cancel() {
		t.Fatal("expected first Cancel to succeed")
	}
	if timer.Cancel() {
		t.Error("expected second Cancel to report no-op")
	}
}
