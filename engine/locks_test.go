package engine

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestLockRegistry_AcquireAndRelease(t *testing.T) {
	r := NewLockRegistry()

	if !r.TryAcquire("s1") {
		t.Fatal("expected first acquire to succeed")
	}
	if r.TryAcquire("s1") {
		t.Error("expected second acquire on held lock to fail")
	}
	if !r.IsLocked("s1") {
		t.Error("expected s1 to report locked")
	}

	r.Release("s1")
	if r.IsLocked("s1") {
		t.Error("expected s1 to report unlocked after release")
	}
	if !r.TryAcquire("s1") {
		t.Error("expected acquire after release to succeed")
	}
}

func TestLockRegistry_IndependentSessions(t *testing.T) {
	r := NewLockRegistry()

	r.TryAcquire("s1")
	if !r.TryAcquire("s2") {
		t.Error("expected s2 lock to be independent of s1")
	}
}

func TestLockRegistry_ReleaseIsIdempotent(t *testing.T) {
	r := NewLockRegistry()

	// Releasing an unheld lock must not panic or corrupt state.
	r.Release("s1")
	r.Release("s1")

	if !r.TryAcquire("s1") {
		t.Error("expected acquire to succeed after redundant releases")
	}
}

func TestLockRegistry_ConcurrentAcquireExactlyOneWins(t *testing.T) {
	r := NewLockRegistry()

	const goroutines = 32
	var wins int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if r.TryAcquire("s1") {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}

	close(start)
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly 1 winner, got %d", wins)
	}
}
