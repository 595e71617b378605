package engine

import "time"

// race waits for a value on result or for the timeout to fire, whichever
// comes first. Returns the zero value and false on timeout; the abandoned
// producer is the caller's problem (the supervisor kills its process).
func race[T any](result <-chan T, timeout time.Duration) (T, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v := <-result:
		return v, true
	case <-timer.C:
		var zero T
		return zero, false
	}
}
