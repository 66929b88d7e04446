package consumer

import (
	"math"
	"math/rand"
	"time"
)

// fullJitterBackoff computes a capped exponential delay with full
// jitter (§4.8 step 3): delay = random(0, min(max_delay, base*mult^n)).
// attempt is 1-indexed (the first retry is attempt 1).
func fullJitterBackoff(attempt int, base, max time.Duration, multiplier float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	capped := float64(base) * math.Pow(multiplier, float64(attempt-1))
	if capped > float64(max) {
		capped = float64(max)
	}
	if capped <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(capped) + 1))
}
