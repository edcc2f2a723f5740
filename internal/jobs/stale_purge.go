package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"user-profile/internal/repository"
)

// StalePurgeJob periodically deletes locally stored users that have not
// been refetched within the retention window.
type StalePurgeJob struct {
	store     repository.UserStore
	logger    *logrus.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time

	stopOnce sync.Once
	stopChan chan struct{}
}

func NewStalePurgeJob(store repository.UserStore, logger *logrus.Logger, interval, retention time.Duration) *StalePurgeJob {
	if logger == nil {
		logger = logrus.New()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &StalePurgeJob{
		store:     store,
		logger:    logger,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		stopChan:  make(chan struct{}),
	}
}

// Start blocks until ctx is done or Stop is called.
func (j *StalePurgeJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.WithFields(logrus.Fields{
		"interval":  j.interval,
		"retention": j.retention,
	}).Info("stale user purge job started")

	j.runPurge(ctx)

	for {
		select {
		case <-ticker.C:
			j.runPurge(ctx)
		case <-j.stopChan:
			j.logger.Info("stale user purge job stopped")
			return
		case <-ctx.Done():
			j.logger.Info("stale user purge job context cancelled")
			return
		}
	}
}

func (j *StalePurgeJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopChan) })
}

func (j *StalePurgeJob) runPurge(ctx context.Context) {
	cutoff := j.now().Add(-j.retention)
	deleted, err := j.store.DeleteStale(ctx, cutoff)
	if err != nil {
		j.logger.Errorf("purge stale users: %v", err)
		return
	}
	if deleted > 0 {
		j.logger.WithField("deleted", deleted).Info("purged stale users")
	}
}
