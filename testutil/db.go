package testutil

import (
	"os"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/ramesh-perabattula/EduPay/storage/database"
)

// PrepareDB opens and migrates the database at TEST_DATABASE_URL, emptying its tables.
// The test is skipped when the variable is not set.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := database.OpenURL(dsn)
	if err != nil {
		t.Fatalf("database.OpenURL() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(db.DB); err != nil {
		t.Fatalf("database.Migrate() failed: %v", err)
	}
	ResetDB(t, db)
	return db
}

func ResetDB(t *testing.T, db *sqlx.DB) {
	t.Helper()
	if _, err := db.Exec("TRUNCATE payment_allocations, payments, fee_records, students RESTART IDENTITY CASCADE"); err != nil {
		t.Fatalf("ResetDB() failed: %v", err)
	}
}
