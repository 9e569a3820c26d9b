package gitlog

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrMalformedEntry is returned when a block lacks a field its shape
	// requires or carries one that cannot be read.
	ErrMalformedEntry = errors.New("malformed log entry")

	// ErrShapeMismatch is returned when a block is of a different shape than
	// the record asked for.
	ErrShapeMismatch = errors.New("log entry shape mismatch")
)

// EntryError describes why a single entry produced no record.
type EntryError struct {
	Hash  string
	Field string
	Err   error
}

func (e *EntryError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("commit %s: %s", e.Hash, e.Err)
	}
	return fmt.Sprintf("commit %s: %s: %s", e.Hash, e.Field, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

func malformed(hash, field string) error {
	return &EntryError{Hash: hash, Field: field, Err: ErrMalformedEntry}
}

// Classify decides which record shape a block represents. An approval marks
// a pull request regardless of anything else in the block; only blocks
// without one are considered plain commits.
func (p *Patterns) Classify(block string) Shape {
	_, shape := p.classify(block)
	return shape
}

// classify is Classify that also returns the pull request title it found, so
// the title patterns run once per block.
func (p *Patterns) classify(block string) (string, Shape) {
	if strings.TrimSpace(block) == "" {
		return "", ShapeNone
	}
	if !p.hasApproval(block) {
		return "", ShapeCommit
	}
	title, shape, ok := p.title(block)
	if !ok {
		return "", ShapeNone
	}
	return title, shape
}

// PullRequest extracts a pull request from a merge or squash merge entry.
// Zero reviewers is a valid pull request: it is the author approving their
// own work, which earns no review credit.
func (p *Patterns) PullRequest(e Entry) (PullRequest, error) {
	title, shape := p.classify(e.Block)
	switch shape {
	case ShapeMerge, ShapeSquash:
	case ShapeCommit:
		return PullRequest{}, &EntryError{Hash: e.Hash, Err: ErrShapeMismatch}
	default:
		if strings.TrimSpace(e.Block) == "" {
			return PullRequest{}, malformed(e.Hash, "")
		}
		return PullRequest{}, malformed(e.Hash, "title")
	}

	author, date, err := p.signature(e)
	if err != nil {
		return PullRequest{}, err
	}

	reviewers := p.reviewers(e.Block, author)

	return PullRequest{
		CommitHash: e.Hash,
		Author:     author,
		Date:       date,
		Title:      title,
		Reviewers:  reviewers,
		NoReviews:  len(reviewers),
		Shape:      shape,
	}, nil
}

// Commit extracts a plain commit from an entry of a "git log --stat" log.
func (p *Patterns) Commit(e Entry) (Commit, error) {
	switch p.Classify(e.Block) {
	case ShapeCommit:
	case ShapeMerge, ShapeSquash:
		return Commit{}, &EntryError{Hash: e.Hash, Err: ErrShapeMismatch}
	default:
		return Commit{}, malformed(e.Hash, "")
	}

	author, date, err := p.signature(e)
	if err != nil {
		return Commit{}, err
	}

	title, ok := subject(p.commitTitle, e.Block)
	if !ok {
		return Commit{}, malformed(e.Hash, "title")
	}

	loc := p.files.FindStringSubmatchIndex(e.Block)
	if loc == nil {
		return Commit{}, malformed(e.Hash, "files")
	}
	files, err := strconv.Atoi(e.Block[loc[2]:loc[3]])
	if err != nil {
		return Commit{}, malformed(e.Hash, "files")
	}

	// Insertions and deletions are only trusted on the summary line itself.
	summary := e.Block[loc[0]:]
	if i := strings.IndexByte(summary, '\n'); i >= 0 {
		summary = summary[:i]
	}
	insertions, _, err := findInt(p.insertions, summary)
	if err != nil {
		return Commit{}, malformed(e.Hash, "insertions")
	}
	deletions, _, err := findInt(p.deletions, summary)
	if err != nil {
		return Commit{}, malformed(e.Hash, "deletions")
	}

	codeFiles, codeChanges := 0, 0
	for _, m := range p.codeChange.FindAllStringSubmatch(e.Block, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || codeChanges > math.MaxInt-n {
			return Commit{}, malformed(e.Hash, "code changes")
		}
		codeFiles++
		codeChanges += n
	}

	return Commit{
		CommitHash:  e.Hash,
		Author:      author,
		Date:        date,
		Title:       title,
		Files:       files,
		Insertions:  insertions,
		Deletions:   deletions,
		CodeFiles:   codeFiles,
		CodeChanges: codeChanges,
	}, nil
}

// signature reads the author and date every entry must carry.
func (p *Patterns) signature(e Entry) (author, date string, err error) {
	author, ok := find(p.author, e.Block)
	if author = strings.TrimSpace(author); !ok || author == "" {
		return "", "", malformed(e.Hash, "author")
	}
	date, ok = find(p.date, e.Block)
	if date = strings.TrimSpace(date); !ok || date == "" {
		return "", "", malformed(e.Hash, "date")
	}
	return author, date, nil
}

// reviewers lists each approver once, in order of approval, without author.
func (p *Patterns) reviewers(block, author string) []string {
	matches := p.reviewer.FindAllStringSubmatch(block, -1)
	reviewers := make([]string, 0, len(matches))
	seen := make(map[string]bool, len(matches))

	for _, m := range matches {
		r := strings.TrimSpace(m[1])
		if r == "" || r == author || seen[r] {
			continue
		}
		seen[r] = true
		reviewers = append(reviewers, r)
	}

	return reviewers
}
