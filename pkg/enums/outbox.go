package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateVendorPayout      OutboxAggregateType = "vendor_payout"
	AggregateVendorWallet      OutboxAggregateType = "vendor_wallet"
	AggregatePlatformRevenue   OutboxAggregateType = "platform_revenue"
	AggregateWalletTransaction OutboxAggregateType = "wallet_transaction"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateVendorPayout,
	AggregateVendorWallet,
	AggregatePlatformRevenue,
	AggregateWalletTransaction,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventVendorPayoutCreated           OutboxEventType = "vendor_payout_created"
	EventVendorPayoutProcessing        OutboxEventType = "vendor_payout_processing"
	EventVendorPayoutTransferRequested OutboxEventType = "vendor_payout_transfer_requested"
	EventVendorPayoutCompleted         OutboxEventType = "vendor_payout_completed"
	EventVendorPayoutFailed            OutboxEventType = "vendor_payout_failed"
	EventVendorPayoutCancelled         OutboxEventType = "vendor_payout_cancelled"
	EventVendorPayoutClaimsReleased    OutboxEventType = "vendor_payout_claims_released"
	EventVendorPayoutProcessingStale   OutboxEventType = "vendor_payout_processing_stale"
	EventRevenueReconciliationMismatch OutboxEventType = "revenue_reconciliation_mismatch"
	EventLedgerChainBroken             OutboxEventType = "ledger_chain_broken"
)

var validOutboxEventTypes = []OutboxEventType{
	EventVendorPayoutCreated,
	EventVendorPayoutProcessing,
	EventVendorPayoutTransferRequested,
	EventVendorPayoutCompleted,
	EventVendorPayoutFailed,
	EventVendorPayoutCancelled,
	EventVendorPayoutClaimsReleased,
	EventVendorPayoutProcessingStale,
	EventRevenueReconciliationMismatch,
	EventLedgerChainBroken,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
