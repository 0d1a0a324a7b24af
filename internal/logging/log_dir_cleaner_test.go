package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEnforceLogDirSizeLimit(t *testing.T) {
	cases := []struct {
		name        string
		files       map[string]int
		limit       int64
		wantDeleted int
		wantGone    []string
		wantKept    []string
	}{
		{
			name:        "deletes oldest first",
			files:       map[string]int{"a-old.log": 60, "b-mid.log": 60, "main.log": 60},
			limit:       120,
			wantDeleted: 1,
			wantGone:    []string{"a-old.log"},
			wantKept:    []string{"b-mid.log", "main.log"},
		},
		{
			name:        "skips protected",
			files:       map[string]int{"main.log": 200, "other.log": 50},
			limit:       100,
			wantDeleted: 1,
			wantGone:    []string{"other.log"},
			wantKept:    []string{"main.log"},
		},
		{
			name:        "under limit",
			files:       map[string]int{"main.log": 10, "notes.txt": 500},
			limit:       100,
			wantDeleted: 0,
			wantKept:    []string{"main.log", "notes.txt"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			// Modification times follow the names so ordering is deterministic.
			age := map[string]int64{"a-old.log": 1, "b-mid.log": 2, "other.log": 2, "main.log": 3, "notes.txt": 1}
			for name, size := range tc.files {
				writeLogFile(t, filepath.Join(dir, name), size, time.Unix(age[name], 0))
			}

			deleted, err := enforceLogDirSizeLimit(dir, tc.limit, filepath.Join(dir, "main.log"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if deleted != tc.wantDeleted {
				t.Fatalf("deleted = %d, want %d", deleted, tc.wantDeleted)
			}
			for _, name := range tc.wantGone {
				if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
					t.Fatalf("expected %s to be removed, stat error: %v", name, err)
				}
			}
			for _, name := range tc.wantKept {
				if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
					t.Fatalf("expected %s to remain, stat error: %v", name, err)
				}
			}
		})
	}
}

func TestEnforceLogDirSizeLimitMissingDir(t *testing.T) {
	deleted, err := enforceLogDirSizeLimit(filepath.Join(t.TempDir(), "absent"), 1, "")
	if err != nil || deleted != 0 {
		t.Fatalf("deleted = %d err = %v", deleted, err)
	}
}

func writeLogFile(t *testing.T, path string, size int, modTime time.Time) {
	t.Helper()

	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatalf("set times: %v", err)
	}
}
