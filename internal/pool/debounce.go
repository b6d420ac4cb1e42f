package pool

import (
	"time"

	"golang.org/x/time/rate"
)

// Debouncer admits at most one action per interval. Rejected calls leave no trace.
type Debouncer struct {
	limiter *rate.Limiter
}

func NewDebouncer(interval time.Duration) *Debouncer {
	if interval <= 0 {
		return &Debouncer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Debouncer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (d *Debouncer) TryAcquire(now time.Time) bool {
	return d.limiter.AllowN(now, 1)
}
