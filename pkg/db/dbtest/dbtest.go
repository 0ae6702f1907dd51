// Package dbtest opens throwaway SQLite databases carrying the ledger schema.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Schema mirrors the goose migrations with SQLite-friendly types. Money is
// stored as TEXT so decimals round-trip exactly.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS counters (
  name TEXT PRIMARY KEY,
  value INTEGER NOT NULL,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  customer_name TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'draft',
  payment_status TEXT NOT NULL DEFAULT 'pending',
  paid_at DATETIME,
  deposit_required TEXT NOT NULL DEFAULT '0',
  original_deposit TEXT NOT NULL DEFAULT '0',
  stripe_payment_intent_id TEXT,
  stripe_checkout_session_id TEXT,
  last_payment_error TEXT,
  last_payment_error_at DATETIME,
  ledger_deposit_required TEXT NOT NULL DEFAULT '0',
  ledger_original_deposit TEXT NOT NULL DEFAULT '0',
  ledger_deposit_adjustments TEXT NOT NULL DEFAULT '0',
  ledger_total_received TEXT NOT NULL DEFAULT '0',
  ledger_total_refunded TEXT NOT NULL DEFAULT '0',
  ledger_net_received TEXT NOT NULL DEFAULT '0',
  ledger_balance TEXT NOT NULL DEFAULT '0',
  ledger_balance_status TEXT NOT NULL DEFAULT 'pending',
  ledger_pending_received TEXT NOT NULL DEFAULT '0',
  ledger_pending_refunds TEXT NOT NULL DEFAULT '0',
  ledger_entry_count INTEGER NOT NULL DEFAULT 0,
  ledger_last_entry_at DATETIME,
  ledger_calculated_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES orders(id),
  order_number TEXT NOT NULL,
  payment_number TEXT NOT NULL UNIQUE,
  transaction_type TEXT NOT NULL,
  amount TEXT NOT NULL,
  method TEXT NOT NULL,
  category TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  external_payment_id TEXT,
  external_verified INTEGER NOT NULL DEFAULT 0,
  external_event_id TEXT,
  source_entry_id TEXT,
  proof_file TEXT,
  notes TEXT,
  balance_after TEXT NOT NULL,
  deposit_at_time TEXT NOT NULL,
  created_by TEXT NOT NULL,
  approved_by TEXT,
  approved_at DATETIME,
  verified_at DATETIME,
  voided_by TEXT,
  voided_at DATETIME,
  void_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_entries_external_ref
  ON ledger_entries (transaction_type, external_payment_id)
  WHERE external_payment_id IS NOT NULL AND status <> 'voided';`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_entries_order_created ON ledger_entries (order_id, created_at);`,
	`CREATE TABLE IF NOT EXISTS ledger_audit_log (
  id TEXT PRIMARY KEY,
  entry_id TEXT NOT NULL,
  order_id TEXT NOT NULL,
  action TEXT NOT NULL,
  previous_status TEXT,
  new_status TEXT NOT NULL,
  user_id TEXT NOT NULL,
  external_event_id TEXT,
  notes TEXT,
  created_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS external_events (
  event_id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  status TEXT NOT NULL,
  mode TEXT NOT NULL,
  received_at DATETIME NOT NULL,
  processed_at DATETIME,
  error TEXT
);`,
	`CREATE TABLE IF NOT EXISTS payment_links (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES orders(id),
  stripe_payment_link_id TEXT NOT NULL UNIQUE,
  amount TEXT NOT NULL,
  created_by TEXT NOT NULL,
  created_at DATETIME
);`,
}

// Open returns an isolated in-memory database with the ledger schema applied.
// The pool is capped at one connection so concurrent callers serialize.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(uuid.NewString(), "-", "")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range Schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}
