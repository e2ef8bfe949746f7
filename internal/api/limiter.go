package api

import (
	"sync"

	"airsupport/internal/config"

	"golang.org/x/time/rate"
)

// rateLimiter hands out one token bucket per client key.
type rateLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newRateLimiter(cfg *config.APIConfig) *rateLimiter {
	burst := cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 5
	}
	return &rateLimiter{
		rps:   rate.Limit(cfg.RateLimit.RPS),
		burst: burst,
	}
}

func (l *rateLimiter) getLimiter(key string) *rate.Limiter {
	if v, ok := l.limiters.Load(key); ok {
		if lim, ok := v.(*rate.Limiter); ok {
			return lim
		}
	}

	lim := rate.NewLimiter(l.rps, l.burst)
	actual, loaded := l.limiters.LoadOrStore(key, lim)
	if loaded {
		if actualLim, ok := actual.(*rate.Limiter); ok {
			return actualLim
		}
	}
	return lim
}
