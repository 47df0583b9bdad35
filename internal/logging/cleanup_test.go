package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const day = 24 * time.Hour

// writeRunLog creates the log of a run started age ago under owner/repo/pr.
func writeRunLog(t *testing.T, baseDir string, pr string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(baseDir, "owner", "repo", pr, runLogName(time.Now().Add(-age), "github"))
	writeFile(t, path)
	return path
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte("log"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestCleanup_OldLogs(t *testing.T) {
	baseDir := t.TempDir()

	oldFile := writeRunLog(t, baseDir, "1", 60*day)
	recentFile := writeRunLog(t, baseDir, "2", time.Hour)

	cleaner := NewCleaner(baseDir, 30)
	deleted, err := cleaner.Cleanup()
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}

	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("Old file should be deleted")
	}
	if _, err := os.Stat(recentFile); os.IsNotExist(err) {
		t.Error("Recent file should still exist")
	}
}

func TestCleanup_AgeFromFileName(t *testing.T) {
	baseDir := t.TempDir()

	// A freshly written file for a run that started long ago is still expired.
	path := filepath.Join(baseDir, "owner", "repo", "7", "2020-01-01T00-00-00-gitlab.log")
	writeFile(t, path)

	deleted, err := NewCleaner(baseDir, 30).Cleanup()
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
}

func TestCleanup_EmptyDirectories(t *testing.T) {
	baseDir := t.TempDir()

	writeRunLog(t, baseDir, "1", 60*day)

	cleaner := NewCleaner(baseDir, 30)
	if _, err := cleaner.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(baseDir, "owner")); !os.IsNotExist(err) {
		t.Error("Empty directories should be deleted")
	}
	if _, err := os.Stat(baseDir); err != nil {
		t.Errorf("base directory should be kept: %v", err)
	}
}

func TestCleanup_KeepsForeignFiles(t *testing.T) {
	baseDir := t.TempDir()

	foreign := []string{
		filepath.Join(baseDir, "owner", "notes.txt"),
		filepath.Join(baseDir, "owner", "repo", "1", "debug.log"),
		filepath.Join(baseDir, "owner", "repo", "1", "2020-01-01T00-00-00.log"),
	}
	old := time.Now().Add(-90 * day)
	for _, path := range foreign {
		writeFile(t, path)
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatalf("Chtimes() error = %v", err)
		}
	}

	cleaner := NewCleaner(baseDir, 30)
	deleted, err := cleaner.Cleanup()
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}

	if deleted != 0 {
		t.Errorf("deleted = %d, want 0", deleted)
	}
	for _, path := range foreign {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s should be kept: %v", filepath.Base(path), err)
		}
	}
}

func TestCleanup_NonexistentBaseDir(t *testing.T) {
	cleaner := NewCleaner("/nonexistent/path", 30)
	deleted, err := cleaner.Cleanup()

	if err != nil {
		t.Fatalf("Cleanup() error = %v, want nil", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0", deleted)
	}
}

func TestCleaner_RetentionDays(t *testing.T) {
	tests := []struct {
		name      string
		retention int
		want      int
	}{
		{name: "7 days", retention: 7, want: 1},
		{name: "30 days", retention: 30, want: 0},
		{name: "disabled", retention: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			baseDir := t.TempDir()
			writeRunLog(t, baseDir, "1", 10*day)

			deleted, err := NewCleaner(baseDir, tt.retention).Cleanup()
			if err != nil {
				t.Fatalf("Cleanup() error = %v", err)
			}
			if deleted != tt.want {
				t.Errorf("deleted = %d, want %d", deleted, tt.want)
			}
		})
	}
}

func TestParseRunLogName(t *testing.T) {
	tests := []struct {
		name         string
		wantOK       bool
		wantProvider string
	}{
		{name: "2026-01-15T10-30-00-github.log", wantOK: true, wantProvider: "github"},
		{name: "2026-01-15T10-30-00-gitlab.log", wantOK: true, wantProvider: "gitlab"},
		{name: "2026-01-15T10-30-00.log"},
		{name: "2026-01-15T10-30-00-github.txt"},
		{name: "recent.log"},
		{name: "2026-13-45T10-30-00-github.log"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			started, provider, ok := parseRunLogName(tt.name)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if provider != tt.wantProvider {
				t.Errorf("provider = %q, want %q", provider, tt.wantProvider)
			}
			want := time.Date(2026, 1, 15, 10, 30, 0, 0, time.Local)
			if !started.Equal(want) {
				t.Errorf("started = %v, want %v", started, want)
			}
		})
	}
}
