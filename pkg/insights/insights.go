// package insights provides summaries of the pull requests and commits
// extracted from a repository's history.
package insights

import (
	"fmt"
	"sort"
	"time"

	"github.com/open-sauced/git-quality/pkg/gitlog"
)

// RecentWindow is how far back from the latest pull request an author must
// have merged something to count as recent.
const RecentWindow = 365 * 24 * time.Hour / 3

var dateLayouts = []string{
	"Mon Jan 2 15:04:05 2006 -0700",
	time.RFC1123Z,
	time.RFC3339,
	"Mon Jan 2 15:04:05 2006",
}

// ParseDate parses a date as printed by git log.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unknown date format: %q", s)
}

// Summary holds the totals of a repository over a period of time.
type Summary struct {
	Repository           string         `json:"repository"`
	Since                time.Time      `json:"since"`
	PullRequests         int            `json:"pull_requests"`
	Commits              int            `json:"commits"`
	Lines                int            `json:"lines"`
	CodeLines            int            `json:"code_lines"`
	MeanReviews          float64        `json:"mean_reviews"`
	ReviewsByReviewer    map[string]int `json:"reviews_by_reviewer"`
	PullRequestsByAuthor map[string]int `json:"pull_requests_by_author"`
	RecentAuthors        []string       `json:"recent_authors"`

	// ReviewTrend is left zero by Summarize, see WeeklyReviewTrend.
	ReviewTrend ReviewTrend `json:"review_trend"`

	// Undated counts records left out because their date could not be read.
	Undated int `json:"undated"`
}

// Summarize totals the records dated at or after since. A zero since
// includes everything.
func Summarize(repository string, prs []gitlog.PullRequest, commits []gitlog.Commit, since time.Time) Summary {
	s := Summary{
		Repository:           repository,
		Since:                since,
		ReviewsByReviewer:    make(map[string]int),
		PullRequestsByAuthor: make(map[string]int),
		RecentAuthors:        RecentAuthors(prs, RecentWindow),
	}

	reviews := 0
	for _, pr := range prs {
		if !s.include(pr.Date, since) {
			continue
		}
		s.PullRequests++
		s.PullRequestsByAuthor[pr.Author]++
		reviews += pr.NoReviews
		for _, r := range pr.Reviewers {
			s.ReviewsByReviewer[r]++
		}
	}
	if s.PullRequests > 0 {
		s.MeanReviews = float64(reviews) / float64(s.PullRequests)
	}

	for _, c := range commits {
		if !s.include(c.Date, since) {
			continue
		}
		s.Commits++
		s.Lines += c.Insertions + c.Deletions
		s.CodeLines += c.CodeChanges
	}

	return s
}

func (s *Summary) include(date string, since time.Time) bool {
	if since.IsZero() {
		return true
	}
	t, err := ParseDate(date)
	if err != nil {
		s.Undated++
		return false
	}
	return !t.Before(since)
}

// RecentAuthors returns, sorted by name, the authors of pull requests merged
// within window of the latest dated pull request.
func RecentAuthors(prs []gitlog.PullRequest, window time.Duration) []string {
	var latest time.Time
	dates := make([]time.Time, len(prs))
	for i, pr := range prs {
		t, err := ParseDate(pr.Date)
		if err != nil {
			continue
		}
		dates[i] = t
		if t.After(latest) {
			latest = t
		}
	}

	authors := []string{}
	if latest.IsZero() {
		return authors
	}

	threshold := latest.Add(-window)
	seen := make(map[string]bool)
	for i, pr := range prs {
		if dates[i].IsZero() || !dates[i].After(threshold) || seen[pr.Author] {
			continue
		}
		seen[pr.Author] = true
		authors = append(authors, pr.Author)
	}

	sort.Strings(authors)
	return authors
}

// ReviewTrend compares the mean reviews per pull request of the last week
// with the week before it.
type ReviewTrend struct {
	ThisWeek float64 `json:"this_week"`
	LastWeek float64 `json:"last_week"`
	Status   string  `json:"status"`
}

// WeeklyReviewTrend computes the ReviewTrend for the week ending at now.
// Weeks within 0.1 reviews of each other are "about the same".
func WeeklyReviewTrend(prs []gitlog.PullRequest, now time.Time) ReviewTrend {
	weekStart := now.Add(-7 * 24 * time.Hour)
	lastWeekStart := now.Add(-14 * 24 * time.Hour)

	var thisSum, thisCount, lastSum, lastCount int
	for _, pr := range prs {
		t, err := ParseDate(pr.Date)
		if err != nil {
			continue
		}
		switch {
		case !t.Before(weekStart):
			thisSum += pr.NoReviews
			thisCount++
		case !t.Before(lastWeekStart):
			lastSum += pr.NoReviews
			lastCount++
		}
	}

	trend := ReviewTrend{
		ThisWeek: mean(thisSum, thisCount),
		LastWeek: mean(lastSum, lastCount),
	}
	switch {
	case trend.LastWeek-0.1 < trend.ThisWeek && trend.ThisWeek < trend.LastWeek+0.1:
		trend.Status = "about the same as"
	case trend.ThisWeek > trend.LastWeek:
		trend.Status = "higher than"
	default:
		trend.Status = "lower than"
	}
	return trend
}

func mean(sum, count int) float64 {
	if count == 0 {
		return 0
	}
	return float64(sum) / float64(count)
}
