// Package dbtest opens migrated throwaway databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/fgb-andu/reelprompt-api/pkg/repository/database"
	"gorm.io/gorm"
)

// Open returns a migrated sqlite database stored under t.TempDir.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	url := "sqlite://" + filepath.Join(t.TempDir(), "test.db")
	db, dialect, err := database.Open(database.Config{URL: url})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	if err := database.Migrate(db, dialect); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}
