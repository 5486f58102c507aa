package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"
)

type fakeOutboxPruner struct {
	cutoff      time.Time
	minAttempts int
	calls       int
	err         error
}

func (f *fakeOutboxPruner) DeletePublishedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	f.minAttempts = minAttemptCount
	return 7, f.err
}

type fakeDLQPruner struct {
	cutoff time.Time
	calls  int
}

func (f *fakeDLQPruner) DeleteFailedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	return 2, nil
}

func newRetentionJob(t *testing.T, params OutboxRetentionJobParams) *outboxRetentionJob {
	t.Helper()
	params.Logger = quietLogger()
	params.DB = passthroughRunner{}
	job, err := NewOutboxRetentionJob(params)
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	return job.(*outboxRetentionJob)
}

func TestOutboxRetentionJobPrunesOutboxAndDLQ(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	pruner := &fakeOutboxPruner{}
	dlq := &fakeDLQPruner{}
	job := newRetentionJob(t, OutboxRetentionJobParams{Outbox: pruner, DLQ: dlq, DLQDays: 60})
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.AddDate(0, 0, -defaultOutboxRetentionDays); !pruner.cutoff.Equal(want) {
		t.Fatalf("expected outbox cutoff %s, got %s", want, pruner.cutoff)
	}
	if pruner.minAttempts != outboxMinAttempts {
		t.Fatalf("expected min attempts %d, got %d", outboxMinAttempts, pruner.minAttempts)
	}
	if want := now.AddDate(0, 0, -60); !dlq.cutoff.Equal(want) {
		t.Fatalf("expected dlq cutoff %s, got %s", want, dlq.cutoff)
	}
}

func TestOutboxRetentionJobWithoutDLQ(t *testing.T) {
	pruner := &fakeOutboxPruner{}
	job := newRetentionJob(t, OutboxRetentionJobParams{Outbox: pruner, RetentionDays: 7})
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if pruner.calls != 1 {
		t.Fatalf("expected one prune, got %d", pruner.calls)
	}
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	dlq := &fakeDLQPruner{}
	job := newRetentionJob(t, OutboxRetentionJobParams{Outbox: &fakeOutboxPruner{err: errors.New("boom")}, DLQ: dlq})
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if dlq.calls != 0 {
		t.Fatal("dlq must not be pruned after outbox failure")
	}
}

func TestNewOutboxRetentionJobValidates(t *testing.T) {
	if _, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: quietLogger(), DB: passthroughRunner{}}); err == nil {
		t.Fatal("expected missing outbox repository to fail")
	}
}
