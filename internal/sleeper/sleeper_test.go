package sleeper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExponentialSleeper(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, s *exponentialBackoffSleeper, slept *[]time.Duration){
		"doubles the duration on every sleep": testDoublesDuration,
		"never sleeps longer than ceiling":    testRespectsCeiling,
		"starts over after reset":             testStartsOverAfterReset,
	} {
		t.Run(scenario, func(t *testing.T) {
			s, err := NewExponentialSleeper(10*time.Millisecond, 50*time.Millisecond)
			require.NoError(t, err)

			slept := []time.Duration{}
			s.sleep = func(d time.Duration) {
				slept = append(slept, d)
			}

			fn(t, s, &slept)
		})
	}
}

func testDoublesDuration(t *testing.T, s *exponentialBackoffSleeper, slept *[]time.Duration) {
	s.Sleep()
	s.Sleep()
	s.Sleep()

	require.Equal(t, []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
	}, *slept)
}

func testRespectsCeiling(t *testing.T, s *exponentialBackoffSleeper, slept *[]time.Duration) {
	for i := 0; i < 5; i++ {
		s.Sleep()
	}

	require.Equal(t, 50*time.Millisecond, (*slept)[3])
	require.Equal(t, 50*time.Millisecond, (*slept)[4])
}

func testStartsOverAfterReset(t *testing.T, s *exponentialBackoffSleeper, slept *[]time.Duration) {
	s.Sleep()
	s.Sleep()
	s.Reset()
	s.Sleep()

	require.Equal(t, 10*time.Millisecond, (*slept)[2])
}
