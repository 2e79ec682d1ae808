package ratelimit

import (
	"time"

	"golang.org/x/time/rate"
)

// Gate bounds outbound calls to one external dependency. It wraps a
// token-bucket limiter sized so that at most `limit` calls are granted
// per `window`. Safe for concurrent use.
type Gate struct {
	name string
	lim  *rate.Limiter
}

func NewGate(name string, limit int, window time.Duration) *Gate {
	if limit <= 0 {
		limit = 1
	}
	return &Gate{
		name: name,
		lim:  rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit),
	}
}

// PerMinute is the common construction for API call budgets.
func PerMinute(name string, limit int) *Gate {
	return NewGate(name, limit, time.Minute)
}

func (g *Gate) Name() string {
	return g.name
}

// TryAcquire reports whether a call is allowed right now. Denied
// callers must surface a retryable signal instead of dropping the work.
func (g *Gate) TryAcquire() bool {
	return g.lim.Allow()
}

// TimeUntilNextSlot reports how long a denied caller should wait. It
// does not consume a slot.
func (g *Gate) TimeUntilNextSlot() time.Duration {
	r := g.lim.Reserve()
	d := r.Delay()
	r.Cancel()
	return d
}
