package oracle

import "golang.org/x/time/rate"

const (
	defaultRPS   = 20.0
	defaultBurst = 40
)

// NewLimiter returns a token bucket limiter, falling back to the defaults
// for non-positive values.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		rps = defaultRPS
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
