package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"user-profile/internal/cache"
	"user-profile/internal/metrics"
)

// CacheSweepJob periodically drops expired containers from the in-memory
// user cache and reports the remaining size.
type CacheSweepJob struct {
	cache    *cache.UserCache
	metrics  *metrics.Metrics
	logger   *logrus.Logger
	interval time.Duration

	stopOnce sync.Once
	stopChan chan struct{}
}

func NewCacheSweepJob(userCache *cache.UserCache, m *metrics.Metrics, logger *logrus.Logger, interval time.Duration) *CacheSweepJob {
	if logger == nil {
		logger = logrus.New()
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &CacheSweepJob{
		cache:    userCache,
		metrics:  m,
		logger:   logger,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start blocks until ctx is done or Stop is called.
func (j *CacheSweepJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.WithField("interval", j.interval).Info("user cache sweep job started")

	for {
		select {
		case <-ticker.C:
			j.runSweep()
		case <-j.stopChan:
			j.logger.Info("user cache sweep job stopped")
			return
		case <-ctx.Done():
			j.logger.Info("user cache sweep job context cancelled")
			return
		}
	}
}

func (j *CacheSweepJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopChan) })
}

func (j *CacheSweepJob) runSweep() {
	removed := j.cache.DeleteExpired()
	remaining := j.cache.Len()
	j.metrics.SetCached(remaining)
	if removed > 0 {
		j.logger.WithFields(logrus.Fields{
			"removed":   removed,
			"remaining": remaining,
		}).Debug("swept expired user containers")
	}
}
