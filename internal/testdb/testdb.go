// Package testdb provides migrated databases and fixtures for tests. SQLite
// is always available; PostgreSQL runs when TEST_POSTGRES_DSN is set.
package testdb

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/Bando358/ecmis-sub006/internal/database"
	"github.com/Bando358/ecmis-sub006/internal/migrations"
)

const stamp = "2024-05-01T08:00:00Z"

// Open returns a migrated database in a temporary directory, closed on cleanup.
func Open(t testing.TB) *sqlx.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "stock.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := database.Connect(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Run(db))
	return db
}

// OpenPostgres returns a migrated database in a fresh schema of the server
// named by TEST_POSTGRES_DSN, dropped on cleanup. The test is skipped when the
// variable is unset.
func OpenPostgres(t testing.TB) *sqlx.DB {
	t.Helper()
	base := os.Getenv("TEST_POSTGRES_DSN")
	if base == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	admin, err := database.Connect(base)
	require.NoError(t, err)
	schema := fmt.Sprintf("stock_test_%d", time.Now().UnixNano())
	_, err = admin.Exec(`CREATE SCHEMA ` + schema)
	require.NoError(t, err)

	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	db, err := database.Connect(base + sep + "search_path=" + schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
		_, _ = admin.Exec(`DROP SCHEMA ` + schema + ` CASCADE`)
		_ = admin.Close()
	})
	require.NoError(t, migrations.Run(db))
	return db
}

// Backends lists the database openers a test can run against.
func Backends() map[string]func(testing.TB) *sqlx.DB {
	return map[string]func(testing.TB) *sqlx.DB{
		"sqlite":   Open,
		"postgres": OpenPostgres,
	}
}

// Clinic inserts a clinic and returns its id.
func Clinic(t testing.TB, db *sqlx.DB, name string) int64 {
	t.Helper()
	return insert(t, db, `INSERT INTO clinics (name, address, created_at) VALUES (?, '', ?) RETURNING id`, name, stamp)
}

// Product inserts a catalog entry and returns its id.
func Product(t testing.TB, db *sqlx.DB, code, name string) int64 {
	t.Helper()
	return insert(t, db, `INSERT INTO products (code, name, description) VALUES (?, ?, '') RETURNING id`, code, name)
}

// Tariff inserts a ledger row with the given opening quantity.
func Tariff(t testing.TB, db *sqlx.DB, clinicID, productID, quantity int64) int64 {
	t.Helper()
	return insert(t, db, `INSERT INTO product_tariffs (clinic_id, product_id, unit_price, quantity, created_at, updated_at) VALUES (?, ?, 250, ?, ?, ?) RETURNING id`,
		clinicID, productID, quantity, stamp, stamp)
}

// User inserts a staff member attached to clinicID.
func User(t testing.TB, db *sqlx.DB, username string, clinicID int64) int64 {
	t.Helper()
	return insert(t, db, `INSERT INTO users (username, email, password, role, clinic_id, created_at) VALUES (?, ?, 'x', 'staff', ?, ?) RETURNING id`,
		username, username+"@clinic.test", clinicID, stamp)
}

// Quantity reads the stored ledger quantity directly.
func Quantity(t testing.TB, db *sqlx.DB, tariffID int64) int64 {
	t.Helper()
	var qty int64
	require.NoError(t, db.Get(&qty, db.Rebind(`SELECT quantity FROM product_tariffs WHERE id = ?`), tariffID))
	return qty
}

// Count returns the number of rows in table.
func Count(t testing.TB, db *sqlx.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM `+table))
	return n
}

func insert(t testing.TB, db *sqlx.DB, query string, args ...any) int64 {
	t.Helper()
	var id int64
	require.NoError(t, db.QueryRowx(db.Rebind(query), args...).Scan(&id))
	return id
}
