package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RunEntry contains metadata for creating a run log file.
type RunEntry struct {
	Provider  string
	RepoOwner string
	RepoName  string
	PRNumber  int
	Timestamp time.Time
}

// Writer manages run log files organized by repository and pull request.
type Writer struct {
	baseDir string
}

// NewWriter creates a new Writer with the specified base directory.
func NewWriter(baseDir string) *Writer {
	return &Writer{baseDir: baseDir}
}

// Create creates a new log file for the given entry and returns the path.
// Directory structure: baseDir/owner/repo/prNumber/timestamp-provider.log
func (w *Writer) Create(entry RunEntry) (string, error) {
	dir := filepath.Join(
		w.baseDir,
		entry.RepoOwner,
		entry.RepoName,
		fmt.Sprint(entry.PRNumber),
	)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating log directory: %w", err)
	}

	path := filepath.Join(dir, runLogName(entry.Timestamp, entry.Provider))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating log file: %w", err)
	}
	f.Close()

	return path, nil
}

// timestampLayout is the run start time as it appears in log file names.
const timestampLayout = "2006-01-02T15-04-05"

func runLogName(ts time.Time, provider string) string {
	return ts.Format(timestampLayout) + "-" + provider + ".log"
}

// parseRunLogName returns the start time and provider encoded in a run log
// file name, or ok=false for any other file.
func parseRunLogName(name string) (started time.Time, provider string, ok bool) {
	base, found := strings.CutSuffix(name, ".log")
	if !found || len(base) < len(timestampLayout)+2 || base[len(timestampLayout)] != '-' {
		return time.Time{}, "", false
	}
	started, err := time.ParseInLocation(timestampLayout, base[:len(timestampLayout)], time.Local)
	if err != nil {
		return time.Time{}, "", false
	}
	return started, base[len(timestampLayout)+1:], true
}

// Append writes data to the specified log file.
func (w *Writer) Append(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

// Sink returns an io.Writer that appends every write to the log file at path,
// suitable for log.SetOutput.
func (w *Writer) Sink(path string) io.Writer {
	return sink{w: w, path: path}
}

type sink struct {
	w    *Writer
	path string
}

func (s sink) Write(p []byte) (int, error) {
	if err := s.w.Append(s.path, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
