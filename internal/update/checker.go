// Package update checks GitHub releases for a newer published version.
package update

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"

	"github.com/danielolaszy/linear-agent/internal/logging"
)

const (
	repoOwner = "danielolaszy"
	repoName  = "linear-agent"
)

// releaseLister is the slice of the GitHub API the checker needs.
type releaseLister interface {
	GetLatestRelease(ctx context.Context, owner, repo string) (*github.RepositoryRelease, *github.Response, error)
}

// Checker queries the project's GitHub releases.
type Checker struct {
	repositories releaseLister
}

// NewChecker builds a checker. A token raises the unauthenticated rate limit
// and is optional.
func NewChecker(token string) *Checker {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}
	return &Checker{
		repositories: github.NewClient(httpClient).Repositories,
	}
}

// LatestVersion returns the tag of the most recent published release.
func (c *Checker) LatestVersion(ctx context.Context) (string, error) {
	release, _, err := c.repositories.GetLatestRelease(ctx, repoOwner, repoName)
	if err != nil {
		return "", fmt.Errorf("failed to fetch latest release: %w", err)
	}
	tag := release.GetTagName()
	logging.Debug("fetched latest release", "tag", tag)
	return tag, nil
}

// Check reports whether latest is newer than current, together with the
// latest tag.
func (c *Checker) Check(ctx context.Context, current string) (bool, string, error) {
	latest, err := c.LatestVersion(ctx)
	if err != nil {
		return false, "", err
	}
	return NeedsUpdate(current, latest), latest, nil
}

// NeedsUpdate compares two version strings ("vX.Y.Z" or "X.Y.Z") and
// reports whether latest is newer. A "dev" build is always considered
// outdated.
func NeedsUpdate(current, latest string) bool {
	current = strings.TrimPrefix(current, "v")
	latest = strings.TrimPrefix(latest, "v")

	if current == "dev" {
		return latest != "dev"
	}

	currentParts := parseVersion(current)
	latestParts := parseVersion(latest)
	for i := 0; i < 3; i++ {
		if latestParts[i] > currentParts[i] {
			return true
		}
		if latestParts[i] < currentParts[i] {
			return false
		}
	}
	return false
}

func parseVersion(v string) [3]int {
	var parts [3]int
	fmt.Sscanf(v, "%d.%d.%d", &parts[0], &parts[1], &parts[2])
	return parts
}
