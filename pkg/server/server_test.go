package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/open-sauced/git-quality/pkg/gitlog"
	"github.com/open-sauced/git-quality/pkg/insights"
	"github.com/open-sauced/git-quality/pkg/providers"
)

type fakeStore struct {
	mu      sync.Mutex
	ids     map[string]int
	prs     int
	commits int
}

func (s *fakeStore) RepositoryID(_ context.Context, gitURL string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ids == nil {
		s.ids = make(map[string]int)
	}
	id, ok := s.ids[gitURL]
	if !ok {
		id = len(s.ids) + 1
		s.ids[gitURL] = id
	}
	return id, nil
}

func (s *fakeStore) SavePullRequests(_ context.Context, _ int, prs []gitlog.PullRequest) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prs += len(prs)
	return len(prs), nil
}

func (s *fakeStore) SaveCommits(_ context.Context, _ int, commits []gitlog.Commit) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits += len(commits)
	return len(commits), nil
}

type fakeRepo struct {
	repo     *git.Repository
	released *bool
}

func (r fakeRepo) Repository() *git.Repository { return r.repo }
func (r fakeRepo) Release()                    { *r.released = true }

type fakeSource struct {
	repos    map[string]*git.Repository
	released bool
}

func (s *fakeSource) Fetch(_ context.Context, url string) (providers.Repo, error) {
	repo, ok := s.repos[url]
	if !ok {
		return nil, errors.New("repository not found")
	}
	return fakeRepo{repo: repo, released: &s.released}, nil
}

type fakeOrg map[string][]string

func (o fakeOrg) OrgCloneURLs(_ context.Context, org string) ([]string, error) {
	urls, ok := o[org]
	if !ok {
		return nil, errors.New("organisation not found")
	}
	return urls, nil
}

func addFile(t *testing.T, fs billy.Filesystem, wt *git.Worktree, name, content string) {
	t.Helper()

	f, err := fs.Create(name)
	require.NoError(t, err)
	_, err = f.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	_, err = wt.Add(name)
	require.NoError(t, err)
}

// newWidgetRepo holds two plain commits and one approved merge of both.
func newWidgetRepo(t *testing.T) *git.Repository {
	t.Helper()

	fs := memfs.New()
	repo, err := git.Init(memory.NewStorage(), fs)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	jane := &object.Signature{Name: "Jane Doe", Email: "jane@example.com", When: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)}
	bob := &object.Signature{Name: "Bob Smith", Email: "bob@example.com", When: time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)}

	addFile(t, fs, wt, "widget.py", "one\ntwo\n")
	first, err := wt.Commit("Add widget\n", &git.CommitOptions{Author: jane})
	require.NoError(t, err)

	addFile(t, fs, wt, "README.md", "widget\n")
	second, err := wt.Commit("Add readme\n", &git.CommitOptions{Author: bob})
	require.NoError(t, err)

	merged := *bob
	merged.When = bob.When.Add(time.Hour)
	_, err = wt.Commit("Merged in feature/widget (pull request #7)\n\nShip widget\n\nApproved-by: Jane Doe\n",
		&git.CommitOptions{Author: &merged, Parents: []plumbing.Hash{second, first}})
	require.NoError(t, err)

	return repo
}

func newTestServer(t *testing.T) (*QualityServer, *fakeStore, *fakeSource) {
	t.Helper()

	store := &fakeStore{}
	source := &fakeSource{repos: map[string]*git.Repository{
		"https://github.com/open-sauced/widget.git": newWidgetRepo(t),
	}}
	orgs := fakeOrg{"open-sauced": {"https://github.com/open-sauced/widget.git", "https://github.com/open-sauced/missing.git"}}

	q := NewQualityServer(store, source, gitlog.NewParser(gitlog.MustPatterns(""), nil), orgs, zap.NewNop().Sugar())
	q.reachable = func(string) error { return nil }
	return q, store, source
}

func TestPing(t *testing.T) {
	q, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	q.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestExtractRepository(t *testing.T) {
	q, store, source := newTestServer(t)

	body := `{"url": "https://github.com/open-sauced/widget.git"}`
	rec := httptest.NewRecorder()
	q.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summaries []insights.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)

	s := summaries[0]
	assert.Equal(t, "https://github.com/open-sauced/widget", s.Repository)
	assert.Equal(t, 1, s.PullRequests)
	assert.Equal(t, 2, s.Commits)
	assert.Equal(t, 3, s.Lines)
	assert.Equal(t, 2, s.CodeLines)
	assert.Equal(t, map[string]int{"Jane Doe": 1}, s.ReviewsByReviewer)
	assert.Equal(t, map[string]int{"Bob Smith": 1}, s.PullRequestsByAuthor)

	assert.Equal(t, 1, store.prs)
	assert.Equal(t, 2, store.commits)
	assert.True(t, source.released)
}

func TestExtractOrganisation(t *testing.T) {
	q, store, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	q.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(`{"org": "open-sauced"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summaries []insights.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "https://github.com/open-sauced/widget", summaries[0].Repository)
	assert.Len(t, store.ids, 2)
}

func TestExtractRejectsRequests(t *testing.T) {
	tests := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{
			name:   "Wrong method",
			method: http.MethodGet,
			status: http.StatusMethodNotAllowed,
		},
		{
			name:   "Malformed json",
			method: http.MethodPost,
			body:   `{"url":`,
			status: http.StatusBadRequest,
		},
		{
			name:   "Missing source",
			method: http.MethodPost,
			body:   `{}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "Both sources",
			method: http.MethodPost,
			body:   `{"url": "https://github.com/open-sauced/widget", "org": "open-sauced"}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "Invalid since",
			method: http.MethodPost,
			body:   `{"url": "https://github.com/open-sauced/widget", "since": "last week"}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "Unknown repository",
			method: http.MethodPost,
			body:   `{"url": "https://github.com/open-sauced/missing"}`,
			status: http.StatusInternalServerError,
		},
		{
			name:   "Unknown organisation",
			method: http.MethodPost,
			body:   `{"org": "closed-sauced"}`,
			status: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _, _ := newTestServer(t)

			rec := httptest.NewRecorder()
			q.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, "/extract", strings.NewReader(tt.body)))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestExtractUnreachable(t *testing.T) {
	q, store, _ := newTestServer(t)
	q.reachable = func(string) error { return errors.New("authentication required") }

	rec := httptest.NewRecorder()
	q.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(`{"url": "https://github.com/open-sauced/widget"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.ids)
}

const parseLog = `commit 1111111111111111111111111111111111111111
Merge: 2222222 3333333
Author: Jane Doe <jane@example.com>
Date:   Tue Mar 5 09:00:00 2024 +0000

    Merged in feature/widget (pull request #7)

    Ship widget

    Approved-by: Bob Smith

commit 4444444444444444444444444444444444444444
Author: Bob Smith <bob@example.com>
Date:   Mon Mar 4 09:00:00 2024 +0000

    Add widget

 widget.py | 2 ++
 1 file changed, 2 insertions(+)
`

func TestParse(t *testing.T) {
	q, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	q.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/parse?kind=pulls", strings.NewReader(parseLog)))
	require.Equal(t, http.StatusOK, rec.Code)

	var prs []gitlog.PullRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prs))
	require.Len(t, prs, 1)
	assert.Equal(t, "Ship widget", prs[0].Title)
	assert.Equal(t, []string{"Bob Smith"}, prs[0].Reviewers)

	rec = httptest.NewRecorder()
	q.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/parse?kind=commits", strings.NewReader(parseLog)))
	require.Equal(t, http.StatusOK, rec.Code)

	var commits []gitlog.Commit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &commits))
	require.Len(t, commits, 1)
	assert.Equal(t, "Add widget", commits[0].Title)
	assert.Equal(t, 2, commits[0].CodeChanges)

	rec = httptest.NewRecorder()
	q.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/parse?kind=tags", strings.NewReader(parseLog)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	q.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/parse?kind=commits", strings.NewReader("")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}
