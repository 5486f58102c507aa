package cron

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-payouts/internal/ledger"
	"github.com/angelmondragon/packfinderz-payouts/internal/revenue"
	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
	"github.com/angelmondragon/packfinderz-payouts/pkg/logger"
	"github.com/angelmondragon/packfinderz-payouts/pkg/metrics"
	"github.com/angelmondragon/packfinderz-payouts/pkg/outbox"
	"github.com/angelmondragon/packfinderz-payouts/pkg/outbox/payloads"
	"github.com/angelmondragon/packfinderz-payouts/pkg/pagination"
)

type passthroughRunner struct{}

func (passthroughRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type recordingEmitter struct {
	events []outbox.DomainEvent
	err    error
}

func (r *recordingEmitter) EmitIfNotExists(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

// fakeStaleLister serves rows in slice order; the cursor id marks the last row returned.
type fakeStaleLister struct {
	cutoff time.Time
	limit  int
	pages  int
	rows   []models.VendorPayout
	err    error
}

func (f *fakeStaleLister) ListStaleProcessing(_ context.Context, cutoff time.Time, after *pagination.Cursor, limit int) ([]models.VendorPayout, error) {
	f.cutoff = cutoff
	f.limit = limit
	f.pages++
	if f.err != nil {
		return nil, f.err
	}
	start := 0
	if after != nil {
		for i := range f.rows {
			if f.rows[i].ID == after.ID {
				start = i + 1
			}
		}
	}
	end := min(start+limit, len(f.rows))
	return f.rows[start:end], nil
}

func (f *fakeStaleLister) CountStaleProcessing(_ context.Context, _ time.Time) (int64, error) {
	return int64(len(f.rows)), f.err
}

func TestPayoutSLAJobEmitsStaleEvents(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	processedAt := now.Add(-80 * time.Hour)
	payout := models.VendorPayout{
		ID:           uuid.New(),
		VendorID:     uuid.New(),
		PayoutNumber: "PO-20250306-0000000001",
		Status:       enums.PayoutStatusProcessing,
		ProcessedAt:  &processedAt,
	}
	lister := &fakeStaleLister{rows: []models.VendorPayout{payout}}
	emitter := &recordingEmitter{}
	jobIface, err := NewPayoutSLAJob(PayoutSLAJobParams{
		Logger:  quietLogger(),
		DB:      passthroughRunner{},
		Payouts: lister,
		Outbox:  emitter,
	})
	if err != nil {
		t.Fatalf("NewPayoutSLAJob: %v", err)
	}
	job := jobIface.(*payoutSLAJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-defaultProcessingSLA); !lister.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, lister.cutoff)
	}
	if lister.limit != staleBatchSize {
		t.Fatalf("expected limit %d, got %d", staleBatchSize, lister.limit)
	}
	if len(emitter.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(emitter.events))
	}
	event := emitter.events[0]
	if event.EventType != enums.EventVendorPayoutProcessingStale || event.AggregateID != payout.ID {
		t.Fatalf("unexpected event %s for %s", event.EventType, event.AggregateID)
	}
	data, ok := event.Data.(payloads.PayoutProcessingStaleEvent)
	if !ok {
		t.Fatalf("unexpected payload %T", event.Data)
	}
	if data.AgeSeconds != int64(80*time.Hour/time.Second) {
		t.Fatalf("expected age 80h, got %ds", data.AgeSeconds)
	}
}

func TestPayoutSLAJobCollectsEmitErrors(t *testing.T) {
	processedAt := time.Now().Add(-100 * time.Hour)
	lister := &fakeStaleLister{rows: []models.VendorPayout{
		{ID: uuid.New(), ProcessedAt: &processedAt},
		{ID: uuid.New(), ProcessedAt: &processedAt},
	}}
	job, err := NewPayoutSLAJob(PayoutSLAJobParams{
		Logger:  quietLogger(),
		DB:      passthroughRunner{},
		Payouts: lister,
		Outbox:  &recordingEmitter{err: errors.New("insert failed")},
	})
	if err != nil {
		t.Fatalf("NewPayoutSLAJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected combined error")
	}
}

func TestPayoutSLAJobSweepsWholeBacklog(t *testing.T) {
	processedAt := time.Now().Add(-100 * time.Hour)
	lister := &fakeStaleLister{}
	for i := 0; i < 5; i++ {
		lister.rows = append(lister.rows, models.VendorPayout{ID: uuid.New(), ProcessedAt: &processedAt})
	}
	emitter := &recordingEmitter{}
	reg := prometheus.NewRegistry()
	job, err := NewPayoutSLAJob(PayoutSLAJobParams{
		Logger:    quietLogger(),
		DB:        passthroughRunner{},
		Payouts:   lister,
		Outbox:    emitter,
		Metrics:   metrics.NewPayoutMetrics(reg),
		BatchSize: 2,
	})
	if err != nil {
		t.Fatalf("NewPayoutSLAJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(emitter.events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(emitter.events))
	}
	if lister.pages != 3 {
		t.Fatalf("expected 3 pages, got %d", lister.pages)
	}
	expected := `
# HELP payouts_stale_processing Payouts in processing past the SLA at the last sweep.
# TYPE payouts_stale_processing gauge
payouts_stale_processing 5
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "payouts_stale_processing"); err != nil {
		t.Fatalf("stale gauge: %v", err)
	}
}

func TestPayoutSLAJobRequiresDependencies(t *testing.T) {
	if _, err := NewPayoutSLAJob(PayoutSLAJobParams{Logger: quietLogger(), DB: passthroughRunner{}}); err == nil {
		t.Fatal("expected missing lister to fail")
	}
}

type fakeReconciler struct {
	since  time.Time
	report *revenue.Report
	err    error
}

func (f *fakeReconciler) ReconcileCompleted(_ context.Context, since time.Time, _ int) (*revenue.Report, error) {
	f.since = since
	return f.report, f.err
}

func TestRevenueReconcileJobEmitsMismatches(t *testing.T) {
	now := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	mismatch := revenue.Mismatch{
		PayoutID:   uuid.New(),
		VendorID:   uuid.New(),
		Expected:   decimal.RequireFromString("118.00"),
		Actual:     decimal.Zero,
		EntryCount: 0,
	}
	reconciler := &fakeReconciler{report: &revenue.Report{Checked: 3, Mismatches: []revenue.Mismatch{mismatch}}}
	emitter := &recordingEmitter{}
	jobIface, err := NewRevenueReconcileJob(RevenueReconcileJobParams{
		Logger:     quietLogger(),
		DB:         passthroughRunner{},
		Reconciler: reconciler,
		Outbox:     emitter,
	})
	if err != nil {
		t.Fatalf("NewRevenueReconcileJob: %v", err)
	}
	job := jobIface.(*revenueReconcileJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.AddDate(0, 0, -defaultReconcileLookbackDays); !reconciler.since.Equal(want) {
		t.Fatalf("expected since %s, got %s", want, reconciler.since)
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType != enums.EventRevenueReconciliationMismatch {
		t.Fatalf("expected one mismatch event, got %+v", emitter.events)
	}
	if emitter.events[0].AggregateID != mismatch.PayoutID {
		t.Fatalf("expected aggregate %s, got %s", mismatch.PayoutID, emitter.events[0].AggregateID)
	}
}

func TestRevenueReconcileJobPropagatesError(t *testing.T) {
	job, err := NewRevenueReconcileJob(RevenueReconcileJobParams{
		Logger:     quietLogger(),
		DB:         passthroughRunner{},
		Reconciler: &fakeReconciler{err: errors.New("db down")},
		Outbox:     &recordingEmitter{},
	})
	if err != nil {
		t.Fatalf("NewRevenueReconcileJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type fakeChainVerifier struct {
	pages   [][]uuid.UUID
	calls   []uuid.UUID
	reports map[uuid.UUID]*ledger.ChainReport
}

func (f *fakeChainVerifier) ListWalletVendorIDs(_ context.Context, after uuid.UUID, _ int) ([]uuid.UUID, error) {
	f.calls = append(f.calls, after)
	if len(f.pages) == 0 {
		return nil, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func (f *fakeChainVerifier) VerifyChain(_ context.Context, vendorID uuid.UUID) (*ledger.ChainReport, error) {
	if report, ok := f.reports[vendorID]; ok {
		return report, nil
	}
	return &ledger.ChainReport{VendorID: vendorID, Valid: true}, nil
}

func TestLedgerIntegrityJobReportsBrokenChains(t *testing.T) {
	good, bad, last := uuid.New(), uuid.New(), uuid.New()
	walletID := uuid.New()
	txnID := uuid.New()
	verifier := &fakeChainVerifier{
		pages: [][]uuid.UUID{{good, bad}, {last}},
		reports: map[uuid.UUID]*ledger.ChainReport{
			bad: {
				VendorID: bad,
				WalletID: &walletID,
				Valid:    false,
				Break:    &ledger.ChainBreak{Sequence: 4, TransactionID: &txnID, Reason: "balance_before mismatch"},
			},
		},
	}
	emitter := &recordingEmitter{}
	job, err := NewLedgerIntegrityJob(LedgerIntegrityJobParams{
		Logger:   quietLogger(),
		DB:       passthroughRunner{},
		Ledger:   verifier,
		Outbox:   emitter,
		PageSize: 2,
	})
	if err != nil {
		t.Fatalf("NewLedgerIntegrityJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(verifier.calls) != 2 || verifier.calls[0] != uuid.Nil || verifier.calls[1] != bad {
		t.Fatalf("unexpected paging %v", verifier.calls)
	}
	if len(emitter.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(emitter.events))
	}
	event := emitter.events[0]
	if event.AggregateType != enums.AggregateVendorWallet || event.AggregateID != walletID {
		t.Fatalf("unexpected aggregate %s/%s", event.AggregateType, event.AggregateID)
	}
	data := event.Data.(payloads.LedgerChainBrokenEvent)
	if data.Sequence != 4 || data.TransactionID == nil || *data.TransactionID != txnID {
		t.Fatalf("unexpected payload %+v", data)
	}
}
