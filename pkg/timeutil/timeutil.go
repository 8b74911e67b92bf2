package timeutil

import (
	"math"
	"math/rand"
	"time"
)

// ComputeJitter returns a random duration in [0, max].
// A non-positive max yields zero.
func ComputeJitter(max time.Duration, rng *rand.Rand) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rng.Int63n(int64(max) + 1))
}

// ExponentialBackoffDelay computes the wait before the attempt following
// `attempt` (1-based): initial * multiplier^(attempt-1), capped at the
// configured maximum, plus jitter.
func ExponentialBackoffDelay(
	attempt int,
	jitter time.Duration,
	rng *rand.Rand,
	backoffParam BackoffParam,
) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := float64(backoffParam.InitialDuration())
	delay := initial * math.Pow(backoffParam.Multiplier(), float64(attempt-1))

	maxDuration := backoffParam.MaxDuration()
	if maxDuration > 0 && (delay > float64(maxDuration) || math.IsInf(delay, 1)) {
		delay = float64(maxDuration)
	}

	return time.Duration(delay) + ComputeJitter(jitter, rng)
}
