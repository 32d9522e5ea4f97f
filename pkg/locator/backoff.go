package locator

import (
	"math/rand"
	"time"
)

const (
	backoffFloor = 100 * time.Millisecond
	backoffSpan  = 400 * time.Millisecond
)

// backoffDelay returns the pause before 429 retry number attempt (0-based):
// a uniform jitter in [100ms, 500ms) doubled attempt times. Drawing a fresh
// jitter on every attempt keeps concurrent workers from hammering the API
// in lockstep once the first backoff expires.
func backoffDelay(attempt int, rng *rand.Rand) time.Duration {
	jitter := backoffFloor + time.Duration(rng.Float64()*float64(backoffSpan))
	return jitter << uint(attempt)
}
