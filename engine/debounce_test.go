package engine

import (
	"testing"
	"time"
)

// fakeClock lets tests step time deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDebouncer(window time.Duration) (*Debouncer, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	d := NewDebouncer(window)
	d.now = clock.now
	return d, clock
}

func TestDebouncer_FirstEventAccepted(t *testing.T) {
	d, _ := newTestDebouncer(200 * time.Millisecond)

	if !d.Accept("s1") {
		t.Error("expected first event to be accepted")
	}
}

func TestDebouncer_SuppressesWithinWindow(t *testing.T) {
	d, clock := newTestDebouncer(200 * time.Millisecond)

	d.Accept("s1")

	clock.advance(50 * time.Millisecond)
	if d.Accept("s1") {
		t.Error("expected event 50ms after acceptance to be suppressed")
	}

	clock.advance(149 * time.Millisecond)
	if d.Accept("s1") {
		t.Error("expected event 199ms after acceptance to be suppressed")
	}
}

func TestDebouncer_AcceptsAfterWindow(t *testing.T) {
	d, clock := newTestDebouncer(200 * time.Millisecond)

	d.Accept("s1")
	clock.advance(200 * time.Millisecond)

	if !d.Accept("s1") {
		t.Error("expected event exactly one window later to be accepted")
	}
}

func TestDebouncer_BurstCannotStarve(t *testing.T) {
	d, clock := newTestDebouncer(200 * time.Millisecond)

	d.Accept("s1")

	// A steady burst every 50ms: suppressed events must not reset the
	// window, so the event at T+200 gets through.
	accepted := 0
	for i := 0; i < 4; i++ {
		clock.advance(50 * time.Millisecond)
		if d.Accept("s1") {
			accepted++
		}
	}

	if accepted != 1 {
		t.Errorf("expected exactly 1 acceptance during burst, got %d", accepted)
	}
}

func TestDebouncer_IndependentSessions(t *testing.T) {
	d, _ := newTestDebouncer(200 * time.Millisecond)

	if !d.Accept("s1") {
		t.Error("expected s1 to be accepted")
	}
	if !d.Accept("s2") {
		t.Error("expected s2 to be accepted despite s1's fresh window")
	}
}

func TestDebouncer_ZeroWindowDisables(t *testing.T) {
	d, _ := newTestDebouncer(0)

	for i := 0; i < 3; i++ {
		if !d.Accept("s1") {
			t.Fatalf("expected every event accepted with zero window, event %d suppressed", i)
		}
	}
}

func TestDebouncer_ForgetResetsState(t *testing.T) {
	d, clock := newTestDebouncer(200 * time.Millisecond)

	d.Accept("s1")
	clock.advance(10 * time.Millisecond)

	d.Forget("s1")
	if !d.Accept("s1") {
		t.Error("expected event after Forget to be accepted like a first event")
	}
}
