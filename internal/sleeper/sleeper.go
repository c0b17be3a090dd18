package sleeper

import (
	"time"
)

// exponentialBackoffSleeper doubles the sleep duration on every Sleep
// until it reaches the ceiling. Reset starts over from the initial duration.
type exponentialBackoffSleeper struct {
	initial       time.Duration
	ceiling       time.Duration
	sleepDuration time.Duration

	sleep func(time.Duration)
}

// NewExponentialSleeper creates a sleeper that starts with the initial duration.
// A zero ceiling means the duration grows without a limit.
func NewExponentialSleeper(initial, ceiling time.Duration) (*exponentialBackoffSleeper, error) {
	return &exponentialBackoffSleeper{
		initial:       initial,
		ceiling:       ceiling,
		sleepDuration: initial,
		sleep:         time.Sleep,
	}, nil
}

// Sleep
func (e *exponentialBackoffSleeper) Sleep() {
	e.sleep(e.sleepDuration)

	e.sleepDuration += e.sleepDuration
	if e.ceiling > 0 && e.sleepDuration > e.ceiling {
		e.sleepDuration = e.ceiling
	}
}

// Reset
func (e *exponentialBackoffSleeper) Reset() {
	e.sleepDuration = e.initial
}
