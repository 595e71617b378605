package engine

import "time"

// retrier runs an operation a bounded number of times with a fixed backoff
// between attempts. The sleep function is injectable so tests run without
// real delays.
type retrier struct {
	attempts int
	backoff  time.Duration
	sleep    func(time.Duration)
}

func newRetrier(attempts int, backoff time.Duration) *retrier {
	if attempts < 1 {
		attempts = 1
	}
	return &retrier{
		attempts: attempts,
		backoff:  backoff,
		sleep:    time.Sleep,
	}
}

// Do invokes fn until it returns nil or the attempts are exhausted.
// Returns the last error.
func (r *retrier) Do(fn func() error) error {
	var err error
	for i := 0; i < r.attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < r.attempts-1 {
			r.sleep(r.backoff)
		}
	}
	return err
}
