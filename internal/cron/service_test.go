package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/packfinderz-payouts/pkg/metrics"
)

type fakeLock struct {
	held     bool
	released int
	err      error
}

func (f *fakeLock) TryAcquire(context.Context) (Lease, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	if f.held {
		return nil, false, nil
	}
	f.held = true
	return func(context.Context) error {
		f.held = false
		f.released++
		return nil
	}, true, nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(ctx context.Context) error {
	t.runs++
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("job context has no deadline")
	}
	return t.err
}

func newTestCronService(t *testing.T, registry *Registry, lock Lock, now func() time.Time) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Logger:   quietLogger(),
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.NewRegistry()),
		Now:      now,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	registry := NewRegistry()
	registry.Register(success, 0)
	registry.Register(failure, 0)
	lock := &fakeLock{}
	service := newTestCronService(t, registry, lock, nil)

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if success.runs != 1 || failure.runs != 1 {
		t.Fatalf("expected each job once, got %d and %d", success.runs, failure.runs)
	}
	if lock.released != 1 || lock.held {
		t.Fatal("expected lock released after the cycle")
	}
}

func TestServiceRunCycleSkipsWithoutLock(t *testing.T) {
	job := &testJob{name: "never"}
	registry := NewRegistry()
	registry.Register(job, 0)
	service := newTestCronService(t, registry, &fakeLock{held: true}, nil)

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected job not to run, ran %d", job.runs)
	}
}

func TestServiceRunCycleSurfacesLockErrors(t *testing.T) {
	service := newTestCronService(t, NewRegistry(), &fakeLock{err: errors.New("redis down")}, nil)
	if err := service.runCycle(context.Background()); err == nil {
		t.Fatal("expected lock error")
	}
}

func TestServiceRunCycleRespectsJobCadence(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	frequent := &testJob{name: "sla"}
	daily := &testJob{name: "reconcile"}
	registry := NewRegistry()
	registry.Register(frequent, 0)
	registry.Register(daily, 24*time.Hour)
	service := newTestCronService(t, registry, &fakeLock{}, clock)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := service.runCycle(ctx); err != nil {
			t.Fatalf("run cycle: %v", err)
		}
		now = now.Add(5 * time.Minute)
	}
	if frequent.runs != 3 {
		t.Fatalf("expected every-cycle job to run 3 times, got %d", frequent.runs)
	}
	if daily.runs != 1 {
		t.Fatalf("expected daily job to run once, got %d", daily.runs)
	}
}
