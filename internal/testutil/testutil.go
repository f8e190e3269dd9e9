// Package testutil provides scratch databases and directories for
// package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/romkeeper/romkeeper/internal/config"
	"github.com/romkeeper/romkeeper/internal/database"
)

// TmpDB opens a fresh database under the test's temp directory.
func TmpDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TmpDirs overrides the process-wide rom and tmp directories with
// fresh scratch directories and returns the rom directory.
func TmpDirs(t *testing.T) string {
	t.Helper()
	romDir := t.TempDir()
	config.SetRomDirectoryForTest(romDir)
	config.SetTmpDirectoryForTest(t.TempDir())
	return romDir
}
