package enums

import "fmt"

// WalletTransactionType maps to the wallet_transaction_type enum in Postgres.
type WalletTransactionType string

const (
	WalletCredit WalletTransactionType = "credit"
	WalletDebit  WalletTransactionType = "debit"
)

var validWalletTransactionTypes = []WalletTransactionType{WalletCredit, WalletDebit}

// IsValid reports whether the value matches the canonical transaction type enum.
func (t WalletTransactionType) IsValid() bool {
	for _, candidate := range validWalletTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// Opposite returns the type that reverses t.
func (t WalletTransactionType) Opposite() WalletTransactionType {
	if t == WalletCredit {
		return WalletDebit
	}
	return WalletCredit
}

// ParseWalletTransactionType converts raw input into WalletTransactionType.
func ParseWalletTransactionType(value string) (WalletTransactionType, error) {
	for _, candidate := range validWalletTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet transaction type %q", value)
}

// WalletTransactionCategory maps to the wallet_transaction_category enum in Postgres.
type WalletTransactionCategory string

const (
	CategoryOrderPayment WalletTransactionCategory = "order_payment"
	CategoryPayout       WalletTransactionCategory = "payout"
	CategoryCommission   WalletTransactionCategory = "commission"
	CategoryTDS          WalletTransactionCategory = "tds"
	CategoryRefund       WalletTransactionCategory = "refund"
	CategoryAdjustment   WalletTransactionCategory = "adjustment"
	CategoryPenalty      WalletTransactionCategory = "penalty"
	CategoryBonus        WalletTransactionCategory = "bonus"
)

var validWalletTransactionCategories = []WalletTransactionCategory{
	CategoryOrderPayment,
	CategoryPayout,
	CategoryCommission,
	CategoryTDS,
	CategoryRefund,
	CategoryAdjustment,
	CategoryPenalty,
	CategoryBonus,
}

// IsValid reports whether the value matches the canonical category enum.
func (c WalletTransactionCategory) IsValid() bool {
	for _, candidate := range validWalletTransactionCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// DrawsFromPending reports whether a debit in this category may dip into the
// pending balance once available is exhausted.
func (c WalletTransactionCategory) DrawsFromPending() bool {
	return c == CategoryRefund || c == CategoryAdjustment
}

// ParseWalletTransactionCategory converts raw input into WalletTransactionCategory.
func ParseWalletTransactionCategory(value string) (WalletTransactionCategory, error) {
	for _, candidate := range validWalletTransactionCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet transaction category %q", value)
}

// LedgerReferenceKind tags what a wallet transaction points at.
type LedgerReferenceKind string

const (
	ReferenceVendorPayout      LedgerReferenceKind = "vendor_payout"
	ReferenceOrderItem         LedgerReferenceKind = "order_item"
	ReferenceReturnOrder       LedgerReferenceKind = "return_order"
	ReferenceWalletTransaction LedgerReferenceKind = "wallet_transaction"
	ReferenceManual            LedgerReferenceKind = "manual"
)

var referenceTables = map[LedgerReferenceKind]string{
	ReferenceVendorPayout:      "vendor_payouts",
	ReferenceOrderItem:         "order_items",
	ReferenceReturnOrder:       "return_orders",
	ReferenceWalletTransaction: "wallet_transactions",
}

// IsValid reports whether the value is a known reference kind.
func (k LedgerReferenceKind) IsValid() bool {
	if k == ReferenceManual {
		return true
	}
	_, ok := referenceTables[k]
	return ok
}

// Table returns the table that owns rows of this kind. Manual references have
// no backing table.
func (k LedgerReferenceKind) Table() (string, bool) {
	table, ok := referenceTables[k]
	return table, ok
}

// ParseLedgerReferenceKind converts raw input into LedgerReferenceKind.
func ParseLedgerReferenceKind(value string) (LedgerReferenceKind, error) {
	kind := LedgerReferenceKind(value)
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid ledger reference kind %q", value)
	}
	return kind, nil
}
