package provider

import (
	"context"
	"io"
)

// Provider defines the interface for git provider operations.
type Provider interface {
	// Name returns the provider name (github, gitlab).
	Name() string

	// GetPullRequest fetches a pull request (or merge request) by number and
	// resolves its base and head commits.
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error)

	// DownloadArchive writes the gzip-compressed tarball of the commit sha to w.
	DownloadArchive(ctx context.Context, owner, repo, sha string, w io.Writer) error
}
