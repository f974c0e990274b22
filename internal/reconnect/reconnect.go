// Package reconnect holds the backoff policy used by nexusd when it is
// asked to keep streaming servers connected. The library performs no
// reconnection of its own; this is caller policy.
package reconnect

import "time"

// MaxDelay caps the backoff once the ramp is exhausted.
const MaxDelay = 30 * time.Second

// ramp describes the backoff ladder: each rung is tried `count` times
// before the next rung applies, then MaxDelay holds forever.
var ramp = []struct {
	delay time.Duration
	count int
}{
	{time.Second, 3},
	{5 * time.Second, 3},
	{15 * time.Second, 3},
}

// Delay returns the backoff for a zero-based attempt number.
func Delay(attempt int) time.Duration {
	for _, r := range ramp {
		if attempt < r.count {
			return r.delay
		}
		attempt -= r.count
	}
	return MaxDelay
}
