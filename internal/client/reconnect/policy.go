package reconnect

import "time"

// Policy computes the delay before each reconnect attempt. Multiplier 1
// gives a fixed delay.
type Policy struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultPolicy retries every 3 seconds.
var DefaultPolicy = Policy{Initial: 3 * time.Second, Max: 3 * time.Second, Multiplier: 1}

// Delay returns the wait before reconnect attempt n, counting from zero.
func (p Policy) Delay(n int) time.Duration {
	if p.Initial <= 0 {
		p = DefaultPolicy
	}
	if p.Multiplier <= 1 || n <= 0 {
		return p.Initial
	}

	d := float64(p.Initial)
	for i := 0; i < n; i++ {
		d *= p.Multiplier
		if p.Max > 0 && d >= float64(p.Max) {
			return p.Max
		}
	}
	return time.Duration(d)
}
