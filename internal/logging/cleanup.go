package logging

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Cleaner prunes run logs written by Writer once they pass the retention period.
type Cleaner struct {
	baseDir       string
	retentionDays int
	now           func() time.Time
}

// NewCleaner creates a Cleaner for the run logs under baseDir.
// A retention of zero days keeps everything.
func NewCleaner(baseDir string, retentionDays int) *Cleaner {
	return &Cleaner{baseDir: baseDir, retentionDays: retentionDays, now: time.Now}
}

// Cleanup deletes run logs whose start time, as encoded in the file name, is
// older than the retention period, then removes pull request and repository
// directories left empty. Files not named like a run log are never touched.
// Returns the number of logs deleted.
func (c *Cleaner) Cleanup() (int, error) {
	if c.retentionDays <= 0 {
		return 0, nil
	}
	if _, err := os.Stat(c.baseDir); os.IsNotExist(err) {
		return 0, nil
	}

	threshold := c.now().AddDate(0, 0, -c.retentionDays)
	var deleted int
	var dirs []string

	err := filepath.WalkDir(c.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are left alone
		}
		if d.IsDir() {
			if path != c.baseDir {
				dirs = append(dirs, path)
			}
			return nil
		}
		started, _, ok := parseRunLogName(d.Name())
		if !ok || !started.Before(threshold) {
			return nil
		}
		if os.Remove(path) == nil {
			deleted++
		}
		return nil
	})

	// WalkDir visits parents before children; reverse order empties leaves first.
	for i := len(dirs) - 1; i >= 0; i-- {
		if entries, err := os.ReadDir(dirs[i]); err == nil && len(entries) == 0 {
			os.Remove(dirs[i])
		}
	}

	return deleted, err
}
