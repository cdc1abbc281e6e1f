package models

import (
	"math/rand/v2"
	"time"
)

// BackoffDelay returns the wait between verification attempts after `attempts`
// consecutive failures: exponential from base, capped. Attempt counts below
// one collapse to the base so callers never wait negative intervals.
//
// The delay is reset implicitly: a successful verification clears the attempt
// counter path (the next failure streak starts again at base).
func BackoffDelay(attempts int, base, cap time.Duration) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= cap {
			return cap
		}
	}
	if delay > cap {
		return cap
	}
	return delay
}

// JitteredBackoffDelay spreads retries of domains that failed in the same tick
// by up to ±25% around the exponential delay.
func JitteredBackoffDelay(attempts int, base, cap time.Duration) time.Duration {
	delay := BackoffDelay(attempts, base, cap)
	if delay <= 0 {
		return delay
	}
	jittered := delay - delay/4 + rand.N(delay/2)
	if jittered > cap {
		return cap
	}
	return jittered
}
