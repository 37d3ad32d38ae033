package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kasku/chat-gateway/internal/config"
	"github.com/kasku/chat-gateway/internal/repository"
)

// staleCodeAge is how long used or expired activation codes are kept around.
const staleCodeAge = 24 * time.Hour

type CleanupJob struct {
	codeRepo repository.ActivationCodeRepository
	logRepo  repository.NotificationLogRepository
	interval time.Duration
	done     chan struct{}
	now      func() time.Time
}

func NewCleanupJob(
	codeRepo repository.ActivationCodeRepository,
	logRepo repository.NotificationLogRepository,
	interval time.Duration,
) *CleanupJob {
	return &CleanupJob{
		codeRepo: codeRepo,
		logRepo:  logRepo,
		interval: interval,
		done:     make(chan struct{}),
		now:      time.Now,
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := j.now()

	j.runCleanup(ctx, "activation codes", func(ctx context.Context) (int64, error) {
		return j.codeRepo.DeleteStale(ctx, now.Add(-staleCodeAge).Unix())
	})
	j.runCleanup(ctx, "notification logs", func(ctx context.Context) (int64, error) {
		return j.logRepo.DeleteOlderThan(ctx, now.Add(-config.NotificationRetention).Unix())
	})
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
