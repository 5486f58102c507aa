// Package dbtest opens isolated in-memory SQLite databases carrying the
// payouts schema for repository and service tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	dbpkg "github.com/angelmondragon/packfinderz-payouts/pkg/db"
)

var schema = []string{
	`CREATE TABLE vendors (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  tier TEXT,
  commission_rate_override NUMERIC,
  pan_number TEXT,
  pan_verified INTEGER NOT NULL DEFAULT 0,
  bank_account_holder TEXT,
  bank_account_number TEXT,
  bank_ifsc TEXT,
  bank_name TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  vendor_id TEXT NOT NULL,
  status TEXT NOT NULL,
  delivered_at DATETIME,
  payment_status TEXT NOT NULL,
  total_amount NUMERIC NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE return_orders (
  id TEXT PRIMARY KEY,
  order_item_id TEXT NOT NULL,
  vendor_id TEXT NOT NULL,
  is_customer_return INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  finalized_at DATETIME,
  created_at DATETIME
);`,
	`CREATE TABLE bank_holidays (
  id TEXT PRIMARY KEY,
  holiday_date DATE NOT NULL UNIQUE,
  name TEXT NOT NULL,
  type TEXT NOT NULL,
  state TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE vendor_wallets (
  id TEXT PRIMARY KEY,
  vendor_id TEXT NOT NULL UNIQUE,
  available_balance NUMERIC NOT NULL,
  pending_balance NUMERIC NOT NULL,
  total_earned NUMERIC NOT NULL,
  total_withdrawn NUMERIC NOT NULL,
  last_payout_at DATETIME,
  last_payout_amount NUMERIC,
  last_sequence INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME,
  CHECK (available_balance >= 0),
  CHECK (pending_balance >= 0)
);`,
	`CREATE TABLE wallet_transactions (
  id TEXT PRIMARY KEY,
  transaction_number TEXT NOT NULL UNIQUE,
  vendor_id TEXT NOT NULL,
  wallet_id TEXT NOT NULL,
  sequence INTEGER NOT NULL,
  type TEXT NOT NULL,
  category TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  balance_before NUMERIC NOT NULL,
  balance_after NUMERIC NOT NULL,
  reference_kind TEXT NOT NULL,
  reference_id TEXT,
  description TEXT NOT NULL,
  metadata TEXT NOT NULL DEFAULT '{}',
  created_at DATETIME NOT NULL,
  CHECK (amount > 0)
);`,
	`CREATE UNIQUE INDEX ux_wallet_transactions_vendor_sequence ON wallet_transactions (vendor_id, sequence);`,
	`CREATE UNIQUE INDEX ux_wallet_transactions_order_payment ON wallet_transactions (reference_kind, reference_id) WHERE category = 'order_payment';`,
	`CREATE TABLE vendor_payouts (
  id TEXT PRIMARY KEY,
  payout_number TEXT NOT NULL UNIQUE,
  vendor_id TEXT NOT NULL,
  period_start DATE NOT NULL,
  period_end DATE NOT NULL,
  total_sales NUMERIC NOT NULL,
  platform_commission NUMERIC NOT NULL,
  commission_gst NUMERIC NOT NULL,
  total_commission_with_gst NUMERIC NOT NULL,
  tds_amount NUMERIC NOT NULL,
  return_shipping_fees NUMERIC NOT NULL,
  return_count INTEGER NOT NULL DEFAULT 0,
  adjustment_amount NUMERIC NOT NULL,
  adjustment_reason TEXT,
  net_amount NUMERIC NOT NULL,
  commission_rate NUMERIC NOT NULL,
  commission_gst_rate NUMERIC NOT NULL,
  tds_rate NUMERIC NOT NULL,
  return_fee NUMERIC NOT NULL,
  total_orders INTEGER NOT NULL,
  order_ids TEXT NOT NULL,
  scheduled_payout_date DATE NOT NULL,
  earliest_delivery_date DATE NOT NULL,
  latest_delivery_date DATE NOT NULL,
  status TEXT NOT NULL,
  bank_account_holder TEXT NOT NULL,
  bank_account_number TEXT NOT NULL,
  bank_ifsc TEXT NOT NULL,
  bank_name TEXT NOT NULL,
  payment_method TEXT,
  payment_reference TEXT,
  payment_gateway TEXT,
  gateway_response TEXT,
  processed_at DATETIME,
  processed_by TEXT,
  completed_at DATETIME,
  failed_at DATETIME,
  failure_reason TEXT,
  cancelled_at DATETIME,
  claims_released_at DATETIME,
  admin_notes TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  deleted_at DATETIME
);`,
	`CREATE TABLE payout_order_claims (
  id TEXT PRIMARY KEY,
  payout_id TEXT NOT NULL,
  vendor_id TEXT NOT NULL,
  order_item_id TEXT NOT NULL,
  created_at DATETIME,
  released_at DATETIME
);`,
	`CREATE UNIQUE INDEX ux_payout_order_claims_active ON payout_order_claims (order_item_id) WHERE released_at IS NULL;`,
	`CREATE TABLE platform_revenues (
  id TEXT PRIMARY KEY,
  revenue_number TEXT NOT NULL UNIQUE,
  source_type TEXT NOT NULL,
  vendor_id TEXT,
  order_id TEXT,
  vendor_payout_id TEXT,
  gross_amount NUMERIC NOT NULL,
  commission_rate NUMERIC NOT NULL,
  commission_amount NUMERIC NOT NULL,
  gst_rate NUMERIC NOT NULL,
  gst_amount NUMERIC NOT NULL,
  fee_amount NUMERIC NOT NULL,
  net_revenue NUMERIC NOT NULL,
  revenue_date DATE NOT NULL,
  revenue_month INTEGER NOT NULL,
  revenue_quarter INTEGER NOT NULL,
  revenue_year INTEGER NOT NULL,
  status TEXT NOT NULL,
  description TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE UNIQUE INDEX ux_platform_revenues_payout_commission ON platform_revenues (vendor_payout_id) WHERE source_type = 'commission';`,
	`CREATE UNIQUE INDEX ux_platform_revenues_payout_penalty ON platform_revenues (vendor_payout_id) WHERE source_type = 'penalty' AND vendor_payout_id IS NOT NULL;`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload BLOB NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	`CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json BLOB NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
);`,
}

// Open returns a fresh database with every payouts table created. The pool is
// pinned to one connection so transactions serialize.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

// Client wraps Open in a pkg/db client for code that needs WithTx.
func Client(t testing.TB) *dbpkg.Client {
	t.Helper()
	return dbpkg.Wrap(Open(t))
}
