// package gitlog turns the free-text output of "git log" into structured
// pull request and commit records. It performs no I/O of its own: callers hand
// it an already loaded log and receive the records that could be extracted.
package gitlog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// PatternsVersion identifies the pattern table built by NewPatterns. It tracks
// the Bitbucket merge annotations and the default "git log --stat" layout.
const PatternsVersion = "bitbucket-stat/2"

// DefaultCodeSuffix is the source file suffix used when none is configured.
const DefaultCodeSuffix = ".py"

const approvedMarker = "Approved-by"

// name matches a single letter, digit or underscore of a person's name.
const name = `[\p{L}\p{N}_]`

// person matches a full name as written on Author and Approved-by lines. It
// starts and ends with a name character and may contain spaces, dots,
// apostrophes and hyphens in between.
const person = name + `(?:[\p{L}\p{N}_ \t.'-]*` + name + `)?`

// Patterns is the immutable set of compiled expressions used to find fields
// within a single log entry. Build one with NewPatterns at process start and
// share it: a Patterns value is safe for concurrent use.
type Patterns struct {
	Version    string
	CodeSuffix string

	boundary    *regexp.Regexp
	author      *regexp.Regexp
	date        *regexp.Regexp
	mergeTitle  []*regexp.Regexp
	squashTitle *regexp.Regexp
	commitTitle *regexp.Regexp
	reviewer    *regexp.Regexp
	files       *regexp.Regexp
	insertions  *regexp.Regexp
	deletions   *regexp.Regexp
	codeChange  *regexp.Regexp
}

// NewPatterns compiles the pattern table, counting per-file changes only for
// files ending in codeSuffix. An empty codeSuffix selects DefaultCodeSuffix.
func NewPatterns(codeSuffix string) (*Patterns, error) {
	codeSuffix = strings.TrimSpace(codeSuffix)
	if codeSuffix == "" {
		codeSuffix = DefaultCodeSuffix
	}

	p := &Patterns{
		Version:    PatternsVersion,
		CodeSuffix: codeSuffix,
	}

	// Merge summaries are tried in order: Bitbucket first, then GitHub.
	mergeTitles := []string{
		`Merged in \S+ \(pull request #\d+\)\s+(\S[^\n]*)`,
		`Merge pull request #\d+ from \S+\s+(\S[^\n]*)`,
	}

	exprs := []struct {
		dst  **regexp.Regexp
		expr string
	}{
		{&p.boundary, `(?m)^commit ([0-9a-f]{40})(?:\W|$)`},
		{&p.author, `Author:[ \t]+(` + person + `)[ \t]*(?:<|\n)`},
		{&p.date, `Date:[ \t]+(.*\S)[ \t]*\n`},
		{&p.squashTitle, `[+-]\d{4}\n\s+(\S[\s\S]*?)\s+Approved-by`},
		{&p.commitTitle, `[+-]\d{4}\n\s*(\S[\s\S]*?)\n(?:[ \t]*\n)?(?: [^\n]*\|[^\n]*\n)*[ \t]*\d+ files? changed`},
		{&p.reviewer, `Approved-by:[ \t]+(` + person + `)`},
		{&p.files, `(\d+) files? changed`},
		{&p.insertions, `(\d+) insertions?`},
		{&p.deletions, `(\d+) deletions?`},
		{&p.codeChange, regexp.QuoteMeta(codeSuffix) + `\s+\|\s+(\d+)\s`},
	}

	for _, e := range exprs {
		re, err := regexp.Compile(e.expr)
		if err != nil {
			return nil, fmt.Errorf("could not compile pattern %q: %w", e.expr, err)
		}
		*e.dst = re
	}

	for _, expr := range mergeTitles {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("could not compile pattern %q: %w", expr, err)
		}
		p.mergeTitle = append(p.mergeTitle, re)
	}

	return p, nil
}

// MustPatterns is like NewPatterns but panics if the table cannot be built.
func MustPatterns(codeSuffix string) *Patterns {
	p, err := NewPatterns(codeSuffix)
	if err != nil {
		panic(err)
	}
	return p
}

// find returns the first capture group of re in text.
func find(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// findInt is find followed by an integer conversion. A capture that does not
// fit in an int is reported as present but invalid.
func findInt(re *regexp.Regexp, text string) (n int, found bool, err error) {
	s, ok := find(re, text)
	if !ok {
		return 0, false, nil
	}
	n, err = strconv.Atoi(s)
	if err != nil {
		return 0, true, err
	}
	return n, true, nil
}

func (p *Patterns) hasApproval(text string) bool {
	return p.reviewer.MatchString(text)
}

// title returns the pull request title of text and the shape it was found
// by. Merge summaries win over squash messages.
func (p *Patterns) title(text string) (string, Shape, bool) {
	for _, re := range p.mergeTitle {
		if t, ok := subject(re, text); ok {
			return t, ShapeMerge, true
		}
	}
	if t, ok := subject(p.squashTitle, text); ok {
		return t, ShapeSquash, true
	}
	return "", ShapeNone, false
}

// subject is the first line of the message captured by re. A capture that
// runs straight into the approvals carries no title.
func subject(re *regexp.Regexp, text string) (string, bool) {
	msg, ok := find(re, text)
	if !ok {
		return "", false
	}
	line, _, _ := strings.Cut(msg, "\n")
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, approvedMarker) {
		return "", false
	}
	return line, true
}
