package gitlog

import "fmt"

// Shape is the kind of log entry a block was classified as.
type Shape int

const (
	// ShapeNone marks a block that carries no usable record.
	ShapeNone Shape = iota
	// ShapeMerge is an approved merge whose title comes from a merge summary.
	ShapeMerge
	// ShapeSquash is an approved squash merge titled by its commit message.
	ShapeSquash
	// ShapeCommit is a plain, unapproved commit with a stat block.
	ShapeCommit
)

func (s Shape) String() string {
	switch s {
	case ShapeMerge:
		return "merge"
	case ShapeSquash:
		return "squash"
	case ShapeCommit:
		return "commit"
	default:
		return "none"
	}
}

// MarshalText renders the shape by name in JSON output.
func (s Shape) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a shape name written by MarshalText.
func (s *Shape) UnmarshalText(text []byte) error {
	for _, shape := range []Shape{ShapeNone, ShapeMerge, ShapeSquash, ShapeCommit} {
		if shape.String() == string(text) {
			*s = shape
			return nil
		}
	}
	return fmt.Errorf("unknown shape %q", text)
}

// Entry is one commit of a log: its hash and the text that followed the
// "commit <hash>" line up to the next entry.
type Entry struct {
	Hash  string
	Block string
}

// PullRequest is a merged and approved pull request. The author never
// appears in Reviewers and NoReviews is always len(Reviewers).
type PullRequest struct {
	CommitHash string   `json:"commit_hash"`
	Author     string   `json:"author"`
	Date       string   `json:"date"`
	Title      string   `json:"title"`
	Reviewers  []string `json:"reviewers"`
	NoReviews  int      `json:"no_reviews"`
	Shape      Shape    `json:"shape"`
}

func (pr PullRequest) String() string {
	return fmt.Sprintf("Pull request by %s on %s, reviewed by %d: %s", pr.Author, pr.Date, pr.NoReviews, pr.Title)
}

// Commit is a single non-merge commit with its change statistics. CodeFiles
// and CodeChanges only count files matching the configured code suffix.
type Commit struct {
	CommitHash  string `json:"commit_hash"`
	Author      string `json:"author"`
	Date        string `json:"date"`
	Title       string `json:"title"`
	Files       int    `json:"files"`
	Insertions  int    `json:"insertions"`
	Deletions   int    `json:"deletions"`
	CodeFiles   int    `json:"code_files"`
	CodeChanges int    `json:"code_changes"`
}

func (c Commit) String() string {
	return fmt.Sprintf("Commit by %s on %s, files=%d, insertions=%d, deletions=%d, code_files=%d, code_changes=%d",
		c.Author, c.Date, c.Files, c.Insertions, c.Deletions, c.CodeFiles, c.CodeChanges)
}
