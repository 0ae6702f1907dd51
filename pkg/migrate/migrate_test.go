package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1, "migration %s", suffix)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestShippedMigrationsValidate(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestLedgerEntriesMigrationConstraints(t *testing.T) {
	content := readMigration(t, "create_ledger_entries")

	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS ledger_entries",
		"payment_number text NOT NULL UNIQUE",
		"CHECK (amount > 0)",
		"ON ledger_entries (transaction_type, external_payment_id)",
		"WHERE external_payment_id IS NOT NULL AND status <> 'voided'",
		"DROP TABLE IF EXISTS ledger_entries",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestAuditLogIsAppendOnly(t *testing.T) {
	content := readMigration(t, "create_ledger_audit_and_events")

	assert.Contains(t, content, "ON UPDATE TO ledger_audit_log DO INSTEAD NOTHING")
	assert.Contains(t, content, "ON DELETE TO ledger_audit_log DO INSTEAD NOTHING")
	assert.Contains(t, content, "CREATE TABLE IF NOT EXISTS external_events")
}

func TestEnumMigrationCoversEntryStatuses(t *testing.T) {
	content := readMigration(t, "create_ledger_enums")
	assert.Contains(t, content, "CREATE TYPE ledger_entry_status AS ENUM ('pending', 'approved', 'verified', 'voided')")
	assert.Contains(t, content, "'change_order_adjustment'")
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()

	path, err := CreateSQLMigration(dir, "Add Refund Reason!")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_add_refund_reason.sql"), path)
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "!!!")
	assert.Error(t, err)
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_init.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))

	err := ValidateDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid migration filename")
}

func TestValidateDirRequiresDownSection(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_init.sql"), []byte("-- +goose Up\nSELECT 1;\n"), 0o644))

	err := ValidateDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "+goose Down")
}

func TestListVersionsSorted(t *testing.T) {
	versions, err := listVersions("migrations")
	require.NoError(t, err)
	require.NotEmpty(t, versions)
	assert.IsIncreasing(t, versions)
}

func TestCreateRejectsOutOfOrderVersion(t *testing.T) {
	dir := t.TempDir()
	later := time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC)

	_, err := createAt(dir, "first", later)
	require.NoError(t, err)

	_, err = createAt(dir, "second", later.Add(-time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not after latest migration")

	_, err = createAt(dir, "third", later.Add(time.Second))
	require.NoError(t, err)
}
