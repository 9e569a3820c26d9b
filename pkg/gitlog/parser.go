package gitlog

import (
	"go.uber.org/zap"
)

// Parser extracts records from whole logs. It holds no state besides its
// patterns and logger and may be shared between goroutines.
type Parser struct {
	patterns *Patterns
	logger   *zap.SugaredLogger
}

// NewParser returns a Parser using the provided pattern table. A nil logger
// discards the extraction counts.
func NewParser(patterns *Patterns, logger *zap.SugaredLogger) *Parser {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Parser{
		patterns: patterns,
		logger:   logger,
	}
}

// Patterns returns the pattern table the parser was built with.
func (p *Parser) Patterns() *Patterns {
	return p.patterns
}

// ExtractPullRequests returns every pull request found in a
// "git log --merges" log, in log order. Entries that are not approved merges
// or lack required fields are skipped.
func (p *Parser) ExtractPullRequests(log string) []PullRequest {
	entries := p.patterns.Segment(log)
	p.logger.Infow("Segmented log", "entries", len(entries))

	prs := make([]PullRequest, 0, len(entries))
	for _, e := range entries {
		pr, err := p.patterns.PullRequest(e)
		if err != nil {
			p.logger.Debugf("Skipping entry: %s", err.Error())
			continue
		}
		prs = append(prs, pr)
	}

	p.logger.Infow("Extracted pull requests", "accepted", len(prs))
	return prs
}

// ExtractCommits returns every plain commit found in a
// "git log --no-merges --stat" log, in log order.
func (p *Parser) ExtractCommits(log string) []Commit {
	entries := p.patterns.Segment(log)
	p.logger.Infow("Segmented log", "entries", len(entries))

	commits := make([]Commit, 0, len(entries))
	for _, e := range entries {
		c, err := p.patterns.Commit(e)
		if err != nil {
			p.logger.Debugf("Skipping entry: %s", err.Error())
			continue
		}
		commits = append(commits, c)
	}

	p.logger.Infow("Extracted commits", "accepted", len(commits))
	return commits
}
