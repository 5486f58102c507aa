package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-payouts/pkg/logger"
)

const (
	defaultOutboxRetentionDays = 30
	defaultDLQRetentionDays    = 90
	outboxMinAttempts          = 5
)

type outboxPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type dlqPruner interface {
	DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger *logger.Logger
	DB     txRunner
	Outbox outboxPruner
	// DLQ is optional; dead letters are kept forever without it.
	DLQ           dlqPruner
	RetentionDays int
	DLQDays       int
}

// NewOutboxRetentionJob prunes delivered outbox rows and old dead letters.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		outbox:    params.Outbox,
		dlq:       params.DLQ,
		retention: days(params.RetentionDays, defaultOutboxRetentionDays),
		dlqDays:   days(params.DLQDays, defaultDLQRetentionDays),
		now:       time.Now,
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	outbox    outboxPruner
	dlq       dlqPruner
	retention int
	dlqDays   int
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	outboxCutoff := now.AddDate(0, 0, -j.retention)
	dlqCutoff := now.AddDate(0, 0, -j.dlqDays)

	var events, letters int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if events, err = j.outbox.DeletePublishedBefore(ctx, tx, outboxCutoff, outboxMinAttempts); err != nil {
			return fmt.Errorf("prune outbox: %w", err)
		}
		if j.dlq == nil {
			return nil
		}
		if letters, err = j.dlq.DeleteFailedBefore(ctx, tx, dlqCutoff); err != nil {
			return fmt.Errorf("prune dlq: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"outbox_cutoff":  outboxCutoff,
		"dlq_cutoff":     dlqCutoff,
		"events_deleted": events,
		"dlq_deleted":    letters,
	}), "outbox retention cleanup complete")
	return nil
}

func days(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
