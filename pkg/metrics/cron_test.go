package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	finished := time.Date(2025, 5, 2, 3, 0, 0, 0, time.UTC)

	m.ObserveRun("ledger-integrity", finished, 250*time.Millisecond, nil)
	m.ObserveRun("ledger-integrity", finished.Add(time.Hour), 100*time.Millisecond, errors.New("boom"))
	m.ObserveRun("", finished, time.Second, nil)

	if got := testutil.ToFloat64(m.runs.WithLabelValues("ledger-integrity", outcomeSuccess)); got != 1 {
		t.Fatalf("expected one success, got %f", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues("ledger-integrity", outcomeFailure)); got != 1 {
		t.Fatalf("expected one failure, got %f", got)
	}
	if got := testutil.ToFloat64(m.lastSuccess.WithLabelValues("ledger-integrity")); got != float64(finished.Unix()) {
		t.Fatalf("last success should stay at the successful run, got %f", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues("unknown", outcomeSuccess)); got != 1 {
		t.Fatalf("expected blank job name to be labelled unknown, got %f", got)
	}

	hist := histogramFor(t, reg, "payouts_cron_job_duration_seconds", "ledger-integrity")
	if hist.GetSampleCount() != 2 {
		t.Fatalf("expected both runs timed, got %d", hist.GetSampleCount())
	}
	if sum := hist.GetSampleSum(); sum < 0.349 || sum > 0.351 {
		t.Fatalf("expected duration sum 0.35, got %f", sum)
	}
}

func TestCronJobMetricsSkipped(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.IncSkipped()
	m.IncSkipped()

	if got := testutil.ToFloat64(m.skipped); got != 2 {
		t.Fatalf("expected skipped=2, got %f", got)
	}
	if n := testutil.CollectAndCount(m.skipped, "payouts_cron_cycle_skipped_total"); n != 1 {
		t.Fatalf("expected a single skipped series, got %d", n)
	}
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	m.IncSkipped()
	m.ObserveRun("job", time.Now(), time.Second, nil)

	unregistered := NewCronJobMetrics(nil)
	unregistered.IncSkipped()
	unregistered.ObserveRun("job", time.Now(), time.Second, errors.New("x"))
}

func histogramFor(t *testing.T, reg *prometheus.Registry, name, job string) *dto.Histogram {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "job" && label.GetValue() == job {
					return metric.GetHistogram()
				}
			}
		}
	}
	t.Fatalf("histogram %s{job=%q} not found", name, job)
	return nil
}
