// Package testutil provides shared test helpers for setting up source
// trees, job stores, and workspaces.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fairlie/keel/internal/jobstore"
	"github.com/fairlie/keel/internal/workspace"
)

// TestDB creates a temporary SQLite job store that is automatically
// cleaned up.
func TestDB(t *testing.T) *jobstore.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "keel-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := jobstore.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestWorkspaces creates a temporary workspaces root with an FS provider.
func TestWorkspaces(t *testing.T) (string, *workspace.FS) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "workspaces")
	ws, err := workspace.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, ws
}

// SourceTree materializes files into a fresh temporary directory.
// Keys are forward-slash relative paths, values are file contents.
func SourceTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		abs := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}
