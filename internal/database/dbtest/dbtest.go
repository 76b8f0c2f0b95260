// Package dbtest opens a migrated throwaway database for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"rafflehub/internal/database"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// New returns a migrated SQLite database stored under t.TempDir(). A single
// connection serializes transactions the way row locks would on MySQL.
func New(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rafflehub.db")
	db, err := database.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)"), false)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("test db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}
