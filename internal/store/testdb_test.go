package store

import (
	"database/sql"
	"testing"

	"github.com/dukerupert/plantcare/internal/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestAccount(t *testing.T, db *sql.DB, id, email string) {
	t.Helper()
	if _, err := NewAccountStore(db).Create(id, email, "hash"); err != nil {
		t.Fatalf("create account %s: %v", id, err)
	}
}
