// package github discovers the repositories of a GitHub organisation so their
// histories can be extracted in one request.
package github

import (
	"context"
	"net/http"

	"github.com/google/go-github/v54/github"
)

// Client lists repositories through the GitHub REST API.
type Client struct {
	client *github.Client
}

// NewTokenClient returns a Client authenticating with a personal access
// token. An empty token falls back to anonymous, rate limited access.
func NewTokenClient(ctx context.Context, token string) *Client {
	if token == "" {
		return NewClient(nil)
	}
	return &Client{
		client: github.NewTokenClient(ctx, token),
	}
}

// NewClient returns a Client using httpClient, or http.DefaultClient if nil.
func NewClient(httpClient *http.Client) *Client {
	return &Client{
		client: github.NewClient(httpClient),
	}
}

// ListReposByOrg returns every repository of org, following pagination.
func (s *Client) ListReposByOrg(ctx context.Context, org string) ([]*github.Repository, error) {
	opt := &github.RepositoryListByOrgOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var allRepos []*github.Repository
	for {
		repos, resp, err := s.client.Repositories.ListByOrg(ctx, org, opt)
		if err != nil {
			return allRepos, err
		}
		allRepos = append(allRepos, repos...)
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return allRepos, nil
}

// OrgCloneURLs returns the clone URLs of the active repositories of org.
func (s *Client) OrgCloneURLs(ctx context.Context, org string) ([]string, error) {
	repos, err := s.ListReposByOrg(ctx, org)
	if err != nil {
		return nil, err
	}
	return CloneURLs(FilterArchivedRepos(repos)), nil
}

// FilterArchivedRepos drops archived repositories, which have no new history.
func FilterArchivedRepos(repos []*github.Repository) []*github.Repository {
	var filteredRepos []*github.Repository
	for _, repo := range repos {
		if !repo.GetArchived() {
			filteredRepos = append(filteredRepos, repo)
		}
	}
	return filteredRepos
}

// CloneURLs returns the https clone URL of each repository that has one.
func CloneURLs(repos []*github.Repository) []string {
	var urls []string
	for _, repo := range repos {
		if cloneURL := repo.GetCloneURL(); cloneURL != "" {
			urls = append(urls, cloneURL)
		}
	}
	return urls
}
