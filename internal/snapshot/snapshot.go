// Package snapshot materializes the base and head trees of a pull request
// side by side on disk.
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/cheggaaa/pb/v3"
	"github.com/drewdunne/prtree/internal/archive"
	"github.com/drewdunne/prtree/internal/metrics"
	"github.com/drewdunne/prtree/internal/provider"
)

// Layout names the two trees written under an output directory.
type Layout struct {
	Before string
	After  string
}

// NewLayout returns the before/after directories under outputDir.
func NewLayout(outputDir string) Layout {
	return Layout{
		Before: filepath.Join(outputDir, "before"),
		After:  filepath.Join(outputDir, "after"),
	}
}

// Clean removes both trees if present.
func (l Layout) Clean() error {
	for _, dir := range []string{l.Before, l.After} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("removing %s: %w", dir, err)
		}
	}
	return nil
}

// Report describes a completed run.
type Report struct {
	PullRequest *provider.PullRequest
	Layout      Layout
	Before      *archive.Result
	After       *archive.Result
}

// Fetcher downloads and extracts pull request trees from one repository.
type Fetcher struct {
	provider provider.Provider
	owner    string
	repo     string
	strict   bool
	progress bool
	out      io.Writer
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithStrict makes unsafe archive members fail the run instead of being skipped.
func WithStrict(strict bool) Option {
	return func(f *Fetcher) {
		f.strict = strict
	}
}

// WithProgress enables a download progress bar.
func WithProgress(progress bool) Option {
	return func(f *Fetcher) {
		f.progress = progress
	}
}

// WithOutput sets where progress messages are printed (default stdout).
func WithOutput(w io.Writer) Option {
	return func(f *Fetcher) {
		f.out = w
	}
}

// New creates a Fetcher for owner/repo on the given provider.
func New(p provider.Provider, owner, repo string, opts ...Option) *Fetcher {
	f := &Fetcher{
		provider: p,
		owner:    owner,
		repo:     repo,
		out:      os.Stdout,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Run resolves pull request number, clears the before/after trees under
// outputDir and extracts the base commit into before, then the head commit
// into after. The first failure stops the run; nothing is rolled back.
func (f *Fetcher) Run(ctx context.Context, number int, outputDir string) (*Report, error) {
	fmt.Fprintf(f.out, "Fetching PR #%d info...\n", number)
	pr, err := f.provider.GetPullRequest(ctx, f.owner, f.repo, number)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(f.out, "Base SHA: %s  Head SHA: %s\n", provider.ShortSHA(pr.BaseSHA), provider.ShortSHA(pr.HeadSHA))

	report := &Report{PullRequest: pr, Layout: NewLayout(outputDir)}
	if err := report.Layout.Clean(); err != nil {
		return report, err
	}

	fmt.Fprintln(f.out, "Downloading before (base)...")
	report.Before, err = f.Materialize(ctx, pr.BaseSHA, report.Layout.Before)
	if err != nil {
		return report, fmt.Errorf("materializing base %s: %w", provider.ShortSHA(pr.BaseSHA), err)
	}

	fmt.Fprintln(f.out, "Downloading after (head)...")
	report.After, err = f.Materialize(ctx, pr.HeadSHA, report.Layout.After)
	if err != nil {
		return report, fmt.Errorf("materializing head %s: %w", provider.ShortSHA(pr.HeadSHA), err)
	}

	fmt.Fprintf(f.out, "Done. Files saved to %s/ and %s/\n", report.Layout.Before, report.Layout.After)
	return report, nil
}

// Materialize downloads the archive for sha fully into memory and extracts
// it into dest.
func (f *Fetcher) Materialize(ctx context.Context, sha, dest string) (*archive.Result, error) {
	var buf bytes.Buffer
	var w io.Writer = &buf

	var bar *pb.ProgressBar
	if f.progress {
		bar = pb.Full.New(0).
			Set(pb.Bytes, true).
			Set("prefix", provider.ShortSHA(sha)+" ").
			SetWriter(f.out).
			Start()
		w = bar.NewProxyWriter(&buf)
	}

	err := f.provider.DownloadArchive(ctx, f.owner, f.repo, sha, w)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", archive.ErrUnreadable, err)
	}
	metrics.ArchiveFetched(int64(buf.Len()))

	res, err := archive.Extract(&buf, dest, archive.Options{Strict: f.strict})
	if res != nil {
		metrics.FilesExtracted(res.Files)
		metrics.MembersSkipped(len(res.Skipped))
		for _, s := range res.Skipped {
			if s.Unsafe {
				log.Printf("Skipped unsafe archive member %q: %s", s.Member.Name, s.Reason)
			}
		}
	}
	return res, err
}
