package provider

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrMetadataUnavailable is returned when pull request metadata cannot be
// fetched or does not carry both commit identifiers.
var ErrMetadataUnavailable = errors.New("metadata unavailable")

// PullRequest represents a pull request/merge request resolved to its
// base and head commits.
type PullRequest struct {
	Number       int    // PR number (GitHub) or MR IID (GitLab)
	Title        string
	State        string
	Author       string
	URL          string
	SourceBranch string
	TargetBranch string
	BaseSHA      string
	HeadSHA      string
}

// shaPattern matches SHA-1 and SHA-256 object names.
var shaPattern = regexp.MustCompile(`^(?:[0-9a-fA-F]{40}|[0-9a-fA-F]{64})$`)

// ValidSHA reports whether s looks like a full commit object name.
func ValidSHA(s string) bool {
	return shaPattern.MatchString(s)
}

// Validate checks that both commit identifiers are present and well formed.
func (pr *PullRequest) Validate() error {
	if pr.BaseSHA == "" || pr.HeadSHA == "" {
		return fmt.Errorf("%w: pull request #%d is missing base or head sha", ErrMetadataUnavailable, pr.Number)
	}
	if !ValidSHA(pr.BaseSHA) {
		return fmt.Errorf("%w: malformed base sha %q", ErrMetadataUnavailable, pr.BaseSHA)
	}
	if !ValidSHA(pr.HeadSHA) {
		return fmt.Errorf("%w: malformed head sha %q", ErrMetadataUnavailable, pr.HeadSHA)
	}
	return nil
}

// ParseNumber parses a pull request identifier such as "42" or "#42".
func ParseNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(s), "#"))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid pull request number: %q", s)
	}
	return n, nil
}

// ShortSHA returns the first ten characters of sha.
func ShortSHA(sha string) string {
	if len(sha) > 10 {
		return sha[:10]
	}
	return sha
}
