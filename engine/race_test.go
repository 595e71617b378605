package engine

import (
	"testing"
	"time"
)

func TestRace_ResultBeforeTimeout(t *testing.T) {
	ch := make(chan int, 1)
	ch <- 42

	got, ok := race(ch, time.Second)
	if !ok {
		t.Fatal("expected result to win the race")
	}
	if got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
}

func TestRace_TimeoutFires(t *testing.T) {
	ch := make(chan string, 1)

	got, ok := race(ch, 10*time.Millisecond)
	if ok {
		t.Error("expected timeout to win the race")
	}
	if got != "" {
		t.Errorf("expected zero value on timeout, got %q", got)
	}
}

func TestRace_LateResultDoesNotBlockSender(t *testing.T) {
	ch := make(chan int, 1)

	_, ok := race(ch, 10*time.Millisecond)
	if ok {
		t.Fatal("expected the race to time out")
	}

	// The buffered channel still accepts the abandoned result.
	select {
	case ch <- 7:
	default:
		t.Error("expected buffered send to succeed after timeout")
	}
}
