package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// PayoutMetrics records lifecycle, ledger and reconciliation signals.
type PayoutMetrics struct {
	transitions       *prometheus.CounterVec
	amounts           *prometheus.HistogramVec
	ledgerAppends     *prometheus.CounterVec
	insufficientFunds *prometheus.CounterVec
	mismatches        prometheus.Counter
	chainBreaks       prometheus.Counter
	staleProcessing   prometheus.Gauge
}

// NewPayoutMetrics registers the payout metrics on the provided registerer.
func NewPayoutMetrics(reg prometheus.Registerer) *PayoutMetrics {
	if reg == nil {
		return &PayoutMetrics{}
	}
	m := &PayoutMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payouts_transitions_total",
			Help: "Payout status transitions by target status.",
		}, []string{"status"}),
		amounts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payouts_net_amount",
			Help:    "Net payout amounts by status reached.",
			Buckets: prometheus.ExponentialBuckets(100, 4, 8),
		}, []string{"status"}),
		ledgerAppends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payouts_ledger_appends_total",
			Help: "Wallet ledger entries appended.",
		}, []string{"type", "category"}),
		insufficientFunds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payouts_ledger_insufficient_funds_total",
			Help: "Ledger debits rejected for insufficient balance.",
		}, []string{"category"}),
		mismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payouts_reconciliation_mismatches_total",
			Help: "Completed payouts whose commission revenue does not reconcile.",
		}),
		chainBreaks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payouts_ledger_chain_breaks_total",
			Help: "Vendor ledgers that failed chain verification.",
		}),
		staleProcessing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "payouts_stale_processing",
			Help: "Payouts in processing past the SLA at the last sweep.",
		}),
	}
	reg.MustRegister(m.transitions, m.amounts, m.ledgerAppends, m.insufficientFunds, m.mismatches, m.chainBreaks, m.staleProcessing)
	return m
}

// ObserveTransition counts a transition and records the payout net amount.
func (m *PayoutMetrics) ObserveTransition(status string, net decimal.Decimal) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(status)).Inc()
	m.amounts.WithLabelValues(normalizeLabel(status)).Observe(net.InexactFloat64())
}

func (m *PayoutMetrics) IncLedgerAppend(entryType, category string) {
	if m == nil || m.ledgerAppends == nil {
		return
	}
	m.ledgerAppends.WithLabelValues(normalizeLabel(entryType), normalizeLabel(category)).Inc()
}

func (m *PayoutMetrics) IncInsufficientFunds(category string) {
	if m == nil || m.insufficientFunds == nil {
		return
	}
	m.insufficientFunds.WithLabelValues(normalizeLabel(category)).Inc()
}

func (m *PayoutMetrics) IncReconciliationMismatch() {
	if m == nil || m.mismatches == nil {
		return
	}
	m.mismatches.Inc()
}

func (m *PayoutMetrics) IncChainBreak() {
	if m == nil || m.chainBreaks == nil {
		return
	}
	m.chainBreaks.Inc()
}

func (m *PayoutMetrics) SetStaleProcessing(count int) {
	if m == nil || m.staleProcessing == nil {
		return
	}
	m.staleProcessing.Set(float64(count))
}
