// Package backoff computes the delays used around outbound transcript
// requests: a uniform pre-request delay that throttles aggregate request
// rate, and an exponential retry delay with jitter so concurrent retries
// do not synchronize.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// JitterFraction is the relative spread applied to retry delays.
const JitterFraction = 0.2

// RateDelay returns a delay drawn uniformly from [min, max]. It is applied
// before every fetch attempt, including retries.
func RateDelay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int64N(int64(max-min)+1))
}

// Retry returns the delay before retry number attempt (starting at 0):
// base * 2^attempt, perturbed by ±20% uniform jitter.
func Retry(attempt int, base time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(base) * math.Pow(2, float64(attempt))
	jitter := d * JitterFraction * (rand.Float64()*2 - 1)
	return time.Duration(d + jitter)
}

// ForRetryCount returns the job-level backoff for a job that has now failed
// retryCount times: base * 2^retryCount ±20% jitter. The schedule matches
// Retry but takes the stored retry counter rather than a loop index.
func ForRetryCount(retryCount int, base time.Duration) time.Duration {
	return Retry(retryCount, base)
}
