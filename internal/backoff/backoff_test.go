package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateDelay_WithinRange(t *testing.T) {
	min := 2 * time.Second
	max := 5 * time.Second

	for i := 0; i < 1000; i++ {
		d := RateDelay(min, max)
		assert.GreaterOrEqual(t, d, min)
		assert.LessOrEqual(t, d, max)
	}
}

func TestRateDelay_DegenerateRange(t *testing.T) {
	d := RateDelay(3*time.Second, 3*time.Second)
	assert.Equal(t, 3*time.Second, d)

	// Inverted range collapses to min rather than panicking
	d = RateDelay(5*time.Second, 2*time.Second)
	assert.Equal(t, 5*time.Second, d)
}

func TestRetry_JitterEnvelope(t *testing.T) {
	// attempt=2 → 4s ±20% → [3.2s, 4.8s]
	lo := time.Duration(4 * 0.8 * float64(time.Second))
	hi := time.Duration(4 * 1.2 * float64(time.Second))

	for i := 0; i < 1000; i++ {
		d := Retry(2, time.Second)
		assert.GreaterOrEqual(t, d, lo)
		assert.LessOrEqual(t, d, hi)
	}
}

func TestRetry_GrowsExponentially(t *testing.T) {
	// Envelope upper bound of attempt n stays below the lower bound of n+2,
	// so the schedule is strictly increasing across every other step even
	// with worst-case jitter.
	for attempt := 0; attempt < 5; attempt++ {
		hi := float64(int(1)<<attempt) * 1.2
		lo := float64(int(1)<<(attempt+2)) * 0.8
		assert.Less(t, hi, lo)
	}
}

func TestForRetryCount_MatchesRetrySchedule(t *testing.T) {
	// retry_count=2 → [2^2*0.8, 2^2*1.2] seconds
	lo := time.Duration(4 * 0.8 * float64(time.Second))
	hi := time.Duration(4 * 1.2 * float64(time.Second))

	for i := 0; i < 1000; i++ {
		d := ForRetryCount(2, time.Second)
		assert.GreaterOrEqual(t, d, lo)
		assert.LessOrEqual(t, d, hi)
	}
}

func TestRetry_NegativeAttemptClamped(t *testing.T) {
	d := Retry(-3, time.Second)
	assert.GreaterOrEqual(t, d, time.Duration(0.8*float64(time.Second)))
	assert.LessOrEqual(t, d, time.Duration(1.2*float64(time.Second)))
}
