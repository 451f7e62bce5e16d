package update

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-github/v41/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedsUpdate(t *testing.T) {
	tests := []struct {
		name    string
		current string
		latest  string
		want    bool
	}{
		{name: "newer patch", current: "v1.2.3", latest: "v1.2.4", want: true},
		{name: "newer minor", current: "1.2.3", latest: "1.3.0", want: true},
		{name: "newer major", current: "v1.9.9", latest: "v2.0.0", want: true},
		{name: "equal", current: "v1.2.3", latest: "1.2.3", want: false},
		{name: "older", current: "v1.3.0", latest: "v1.2.9", want: false},
		{name: "dev build", current: "dev", latest: "v0.1.0", want: true},
		{name: "dev both", current: "dev", latest: "dev", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsUpdate(tt.current, tt.latest))
		})
	}
}

type fakeReleases struct {
	tag string
	err error
}

func (f *fakeReleases) GetLatestRelease(ctx context.Context, owner, repo string) (*github.RepositoryRelease, *github.Response, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return &github.RepositoryRelease{TagName: github.String(f.tag)}, nil, nil
}

func TestCheck(t *testing.T) {
	checker := &Checker{repositories: &fakeReleases{tag: "v1.1.0"}}

	outdated, latest, err := checker.Check(context.Background(), "v1.0.0")
	require.NoError(t, err)
	assert.True(t, outdated)
	assert.Equal(t, "v1.1.0", latest)

	outdated, _, err = checker.Check(context.Background(), "v1.1.0")
	require.NoError(t, err)
	assert.False(t, outdated)
}

func TestCheckError(t *testing.T) {
	checker := &Checker{repositories: &fakeReleases{err: errors.New("rate limited")}}

	_, _, err := checker.Check(context.Background(), "v1.0.0")
	require.Error(t, err)
}
