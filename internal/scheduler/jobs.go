package scheduler

import (
	"context"
	"time"

	"github.com/actuallystonmai/content-roulette/internal/logging"
)

// Sweeper is satisfied by *cache.ResultCache.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// CacheSweepJob drops expired result-cache entries.
type CacheSweepJob struct {
	cache Sweeper
}

func NewCacheSweepJob(cache Sweeper) *CacheSweepJob {
	return &CacheSweepJob{cache: cache}
}

func (j *CacheSweepJob) Name() string { return "cache-sweep" }

func (j *CacheSweepJob) Run(ctx context.Context) error {
	n, err := j.cache.Sweep(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log := logging.Component("scheduler")
		log.Info().Int("removed", n).Msg("expired cache entries swept")
	}
	return nil
}

// SessionEvicter is satisfied by *service.Service.
type SessionEvicter interface {
	EvictIdle(ctx context.Context, maxIdle time.Duration) int
}

// SessionSweepJob releases roulette engines nobody has used for maxIdle.
type SessionSweepJob struct {
	sessions SessionEvicter
	maxIdle  time.Duration
}

func NewSessionSweepJob(sessions SessionEvicter, maxIdle time.Duration) *SessionSweepJob {
	return &SessionSweepJob{sessions: sessions, maxIdle: maxIdle}
}

func (j *SessionSweepJob) Name() string { return "session-sweep" }

func (j *SessionSweepJob) Run(ctx context.Context) error {
	if n := j.sessions.EvictIdle(ctx, j.maxIdle); n > 0 {
		log := logging.Component("scheduler")
		log.Info().Int("evicted", n).Msg("idle sessions released")
	}
	return nil
}
