package outbox

import "time"

// Backoff returns the wait before the next attempt after the given number of
// failed attempts: base, 2·base, 4·base and so on, capped at max.
func Backoff(base, max time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		return 0
	}
	d := base
	for i := 1; i < attempts; i++ {
		if d >= max/2 {
			return max
		}
		d *= 2
	}
	if d > max {
		return max
	}
	return d
}
