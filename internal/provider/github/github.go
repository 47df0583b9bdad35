package github

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/drewdunne/prtree/internal/provider"
	"github.com/google/go-github/v60/github"
)

// GitHubProvider implements provider.Provider for GitHub.
type GitHubProvider struct {
	client    *github.Client
	transport *tokenTransport
	token     string
}

// Option configures the GitHub provider.
type Option func(*GitHubProvider)

// WithBaseURL sets a custom API root (for testing or GitHub Enterprise).
func WithBaseURL(url string) Option {
	return func(p *GitHubProvider) {
		p.client.BaseURL, _ = p.client.BaseURL.Parse(url + "/")
		p.transport.host = p.client.BaseURL.Host
	}
}

// New creates a new GitHub provider. An empty token makes anonymous requests.
func New(token string, opts ...Option) *GitHubProvider {
	transport := &tokenTransport{token: token}
	client := github.NewClient(&http.Client{Transport: transport})
	transport.host = client.BaseURL.Host

	p := &GitHubProvider{
		client:    client,
		transport: transport,
		token:     token,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// tokenTransport adds the authorization header to requests for the API host.
// Redirects to other hosts (the archive download host) go out without it.
type tokenTransport struct {
	token string
	host  string
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token != "" && req.URL.Host == t.host {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	return http.DefaultTransport.RoundTrip(req)
}

// Name returns the provider name.
func (p *GitHubProvider) Name() string {
	return "github"
}

// GetPullRequest fetches a pull request by number.
func (p *GitHubProvider) GetPullRequest(ctx context.Context, owner, repo string, number int) (*provider.PullRequest, error) {
	pr, _, err := p.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching pull request: %w", provider.ErrMetadataUnavailable, err)
	}

	result := &provider.PullRequest{
		Number:       pr.GetNumber(),
		Title:        pr.GetTitle(),
		State:        pr.GetState(),
		Author:       pr.GetUser().GetLogin(),
		URL:          pr.GetHTMLURL(),
		SourceBranch: pr.GetHead().GetRef(),
		TargetBranch: pr.GetBase().GetRef(),
		BaseSHA:      pr.GetBase().GetSHA(),
		HeadSHA:      pr.GetHead().GetSHA(),
	}
	if result.Number == 0 {
		result.Number = number
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

// DownloadArchive streams the tarball for sha into w.
// The API answers with a redirect to the archive host, which the HTTP client follows.
func (p *GitHubProvider) DownloadArchive(ctx context.Context, owner, repo, sha string, w io.Writer) error {
	req, err := p.client.NewRequest(http.MethodGet, fmt.Sprintf("repos/%s/%s/tarball/%s", owner, repo, sha), nil)
	if err != nil {
		return fmt.Errorf("building tarball request: %w", err)
	}

	if _, err := p.client.Do(ctx, req, w); err != nil {
		return fmt.Errorf("downloading tarball %s: %w", provider.ShortSHA(sha), err)
	}
	return nil
}
