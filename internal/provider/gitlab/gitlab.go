package gitlab

import (
	"context"
	"fmt"
	"io"

	"github.com/drewdunne/prtree/internal/provider"
	"github.com/xanzy/go-gitlab"
)

// GitLabProvider implements provider.Provider for GitLab.
type GitLabProvider struct {
	client *gitlab.Client
	token  string
}

// Option configures the GitLab provider.
type Option func(*GitLabProvider)

// WithBaseURL sets a custom base URL (for testing or self-hosted instances).
func WithBaseURL(baseURL string) Option {
	return func(p *GitLabProvider) {
		p.client, _ = newClient(p.token, gitlab.WithBaseURL(baseURL+"/api/v4"))
	}
}

// New creates a new GitLab provider.
func New(token string, opts ...Option) *GitLabProvider {
	client, _ := newClient(token)
	p := &GitLabProvider{client: client, token: token}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// newClient builds a client that makes a single attempt per request.
func newClient(token string, opts ...gitlab.ClientOptionFunc) (*gitlab.Client, error) {
	opts = append(opts, gitlab.WithCustomRetryMax(0))
	return gitlab.NewClient(token, opts...)
}

// Name returns the provider name.
func (p *GitLabProvider) Name() string {
	return "gitlab"
}

// projectPath returns the namespaced project ID. The client escapes it.
func projectPath(owner, repo string) string {
	return owner + "/" + repo
}

// GetPullRequest fetches a merge request by IID and resolves its diff refs.
func (p *GitLabProvider) GetPullRequest(ctx context.Context, owner, repo string, number int) (*provider.PullRequest, error) {
	mr, _, err := p.client.MergeRequests.GetMergeRequest(projectPath(owner, repo), number, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: fetching merge request: %w", provider.ErrMetadataUnavailable, err)
	}

	result := &provider.PullRequest{
		Number:       mr.IID,
		Title:        mr.Title,
		State:        mr.State,
		URL:          mr.WebURL,
		SourceBranch: mr.SourceBranch,
		TargetBranch: mr.TargetBranch,
		BaseSHA:      mr.DiffRefs.BaseSha,
		HeadSHA:      mr.DiffRefs.HeadSha,
	}
	if mr.Author != nil {
		result.Author = mr.Author.Username
	}
	if result.Number == 0 {
		result.Number = number
	}

	if err := result.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

// DownloadArchive streams the tar.gz archive of sha into w.
func (p *GitLabProvider) DownloadArchive(ctx context.Context, owner, repo, sha string, w io.Writer) error {
	opt := &gitlab.ArchiveOptions{
		Format: gitlab.Ptr("tar.gz"),
		SHA:    gitlab.Ptr(sha),
	}
	if _, err := p.client.Repositories.StreamArchive(projectPath(owner, repo), w, opt, gitlab.WithContext(ctx)); err != nil {
		return fmt.Errorf("downloading archive %s: %w", provider.ShortSHA(sha), err)
	}
	return nil
}
