// package server serves the quality service: it turns repository histories
// into pull request and commit records, stores them and answers with
// summaries.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/open-sauced/git-quality/pkg/gitlog"
	"github.com/open-sauced/git-quality/pkg/history"
	"github.com/open-sauced/git-quality/pkg/insights"
	"github.com/open-sauced/git-quality/pkg/providers"
	"github.com/open-sauced/git-quality/pkg/validator"
)

// maxLogBytes bounds the body accepted by /parse.
const maxLogBytes = 64 << 20

// Store persists the records extracted from a repository.
type Store interface {
	RepositoryID(ctx context.Context, gitURL string) (int, error)
	SavePullRequests(ctx context.Context, repoID int, prs []gitlog.PullRequest) (int, error)
	SaveCommits(ctx context.Context, repoID int, commits []gitlog.Commit) (int, error)
}

// OrgLister resolves a GitHub organisation to the clone URLs of its
// repositories.
type OrgLister interface {
	OrgCloneURLs(ctx context.Context, org string) ([]string, error)
}

// QualityServer provides a leveled logger for use during serving requests,
// a Store for persisting records and a Source to acquire git repositories.
type QualityServer struct {
	Logger *zap.SugaredLogger
	Store  Store
	Source providers.Source
	Parser *gitlog.Parser

	// GitHub is optional. Without it requests naming an organisation fail.
	GitHub OrgLister

	reachable func(repoURL string) error
}

// NewQualityServer returns a QualityServer which uses the provided store for
// db connections and source for repositories.
func NewQualityServer(store Store, source providers.Source, parser *gitlog.Parser, gh OrgLister, logger *zap.SugaredLogger) *QualityServer {
	return &QualityServer{
		Logger:    logger,
		Store:     store,
		Source:    source,
		Parser:    parser,
		GitHub:    gh,
		reachable: validator.IsReachableGitRepo,
	}
}

// Handler returns the routes of the server.
func (q *QualityServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/extract", q.handleExtract)
	mux.HandleFunc("/parse", q.handleParse)
	mux.HandleFunc("/ping", q.pingHandler)
	return mux
}

// Run starts the http server on the provided port
func (q *QualityServer) Run(serverPort string) error {
	//nolint:errcheck
	defer q.Logger.Sync()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", serverPort),
		Handler:           q.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	q.Logger.Infof("Starting server on port %s", serverPort)
	return srv.ListenAndServe()
}

type extractRequest struct {
	URL   string `json:"url"`
	Org   string `json:"org"`
	Since string `json:"since"`
}

func (q *QualityServer) handleExtract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		q.Logger.Errorf("Received request with invalid method: %s", r.Method)
		http.Error(w, "Invalid request method, expected post", http.StatusMethodNotAllowed)
		return
	}

	var data extractRequest
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		q.Logger.Errorf("Could not decode request json body with error: %v", err)
		http.Error(w, "Could not decode request body", http.StatusBadRequest)
		return
	}

	v := validator.New()
	validator.ValidateSource(v, data.URL, data.Org)

	var since time.Time
	if data.Since != "" {
		var err error
		since, err = time.Parse(time.RFC3339, data.Since)
		v.CheckConstraint(err == nil, "since", "since must be an RFC 3339 timestamp")
	}
	v.CheckConstraint(data.Org == "" || q.GitHub != nil, "org", "organisations are not supported without a GitHub client")

	if !v.Valid() {
		q.Logger.Debugf("Rejected request: %s", v.Error())
		http.Error(w, v.Error(), http.StatusBadRequest)
		return
	}

	summaries := []insights.Summary{}
	if data.URL != "" {
		if err := q.reachable(data.URL); err != nil {
			q.Logger.Errorf("Repository %s is not reachable: %v", data.URL, err)
			http.Error(w, "Repository is not reachable", http.StatusBadRequest)
			return
		}

		summary, err := q.processRepository(r.Context(), data.URL, since)
		if err != nil {
			q.Logger.Errorf("Could not process repository %s with error: %v", data.URL, err)
			http.Error(w, "Could not process input", http.StatusInternalServerError)
			return
		}
		summaries = append(summaries, summary)
	} else {
		urls, err := q.GitHub.OrgCloneURLs(r.Context(), data.Org)
		if err != nil {
			q.Logger.Errorf("Could not list repositories of %s with error: %v", data.Org, err)
			http.Error(w, "Could not list organisation repositories", http.StatusBadGateway)
			return
		}

		for _, repoURL := range urls {
			summary, err := q.processRepository(r.Context(), repoURL, since)
			if err != nil {
				q.Logger.Errorf("Could not process repository %s with error: %v", repoURL, err)
				continue
			}
			summaries = append(summaries, summary)
		}
	}

	q.writeJSON(w, summaries)
}

func (q *QualityServer) handleParse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		q.Logger.Errorf("Received request with invalid method: %s", r.Method)
		http.Error(w, "Invalid request method, expected post", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxLogBytes))
	if err != nil {
		q.Logger.Errorf("Could not read request body with error: %v", err)
		http.Error(w, "Could not read request body", http.StatusBadRequest)
		return
	}

	switch kind := r.URL.Query().Get("kind"); kind {
	case "pulls":
		q.writeJSON(w, q.Parser.ExtractPullRequests(string(body)))
	case "commits":
		q.writeJSON(w, q.Parser.ExtractCommits(string(body)))
	default:
		http.Error(w, fmt.Sprintf("Unknown kind %q, expected pulls or commits", kind), http.StatusBadRequest)
	}
}

func (q *QualityServer) pingHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		q.Logger.Errorf("Could not connect to /ping endpoint: %v", err.Error())
		http.Error(w, "Could not connect, server is down", http.StatusInternalServerError)
	}
}

func (q *QualityServer) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		q.Logger.Errorf("Could not encode response with error: %v", err)
	}
}

func (q *QualityServer) processRepository(ctx context.Context, repoURL string, since time.Time) (insights.Summary, error) {
	gitURL, err := validator.NormalizeGitURL(repoURL)
	if err != nil {
		return insights.Summary{}, err
	}

	q.Logger.Debugf("Looking up repository in database: %s", gitURL)
	repoID, err := q.Store.RepositoryID(ctx, gitURL)
	if err != nil {
		return insights.Summary{}, err
	}

	q.Logger.Debugf("Fetching repository: %s", repoURL)
	repo, err := q.Source.Fetch(ctx, repoURL)
	if err != nil {
		return insights.Summary{}, fmt.Errorf("could not fetch repository: %w", err)
	}
	defer repo.Release()

	mergeLog, err := history.MergeLog(ctx, repo.Repository())
	if err != nil {
		return insights.Summary{}, err
	}
	statLog, err := history.StatLog(ctx, repo.Repository())
	if err != nil {
		return insights.Summary{}, err
	}

	prs := q.Parser.ExtractPullRequests(mergeLog)
	commits := q.Parser.ExtractCommits(statLog)

	savedPRs, err := q.Store.SavePullRequests(ctx, repoID, prs)
	if err != nil {
		return insights.Summary{}, err
	}
	savedCommits, err := q.Store.SaveCommits(ctx, repoID, commits)
	if err != nil {
		return insights.Summary{}, err
	}
	q.Logger.Infow("Stored records", "repository", gitURL, "pull_requests", savedPRs, "commits", savedCommits)

	summary := insights.Summarize(gitURL, prs, commits, since)
	summary.ReviewTrend = insights.WeeklyReviewTrend(prs, time.Now())
	return summary, nil
}
