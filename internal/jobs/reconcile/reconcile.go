package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// The webhook path swallows fulfillment failures to keep the provider from
// hammering redeliveries, so someone has to surface what piled up. This job
// periodically logs the manual-review backlog for the on-call to act on.
type Job struct {
	reviews  reviewStatsSource
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

type reviewStatsSource interface {
	PendingReviewStats(ctx context.Context) (int64, *time.Time, error)
}

func New(reviews reviewStatsSource, interval time.Duration, logger *zap.Logger) *Job {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		reviews:  reviews,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	if j.reviews == nil {
		return fmt.Errorf("review stats source is nil")
	}

	count, oldest, err := j.reviews.PendingReviewStats(ctx)
	if err != nil {
		return fmt.Errorf("load pending review stats: %w", err)
	}

	if count == 0 {
		return nil
	}

	fields := []zap.Field{zap.Int64("pending", count)}
	if oldest != nil {
		fields = append(fields, zap.Duration("oldest_age", j.now().Sub(*oldest)))
	}
	j.logger.Warn("manual-review orders awaiting reconciliation", fields...)

	return nil
}

func (j *Job) RunLoop(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("reconcile pass failed", zap.Error(err))
			}
		}
	}
}
