package history

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// MailmapFile is the path of the mailmap in a repository's tree.
const MailmapFile = ".mailmap"

// Mailmap maps the identities recorded in commits to canonical ones, as
// "git log --use-mailmap" does. A nil Mailmap maps every identity to itself.
type Mailmap struct {
	// keyed by lower case commit email
	entries map[string]*mailmapEntry
}

type mailmapEntry struct {
	name  string
	email string

	// keyed by lower case commit name, for lines naming both
	byName map[string]identity
}

type identity struct {
	name  string
	email string
}

// ParseMailmap reads a mailmap in the format of git. Each line is one of
//
//	Proper Name <commit@email>
//	<proper@email> <commit@email>
//	Proper Name <proper@email> <commit@email>
//	Proper Name <proper@email> Commit Name <commit@email>
//
// Blank lines and text after '#' are ignored.
func ParseMailmap(r io.Reader) (*Mailmap, error) {
	m := &Mailmap{entries: make(map[string]*mailmapEntry)}

	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		properName, first, rest, ok := cutEmail(line)
		if !ok {
			return nil, fmt.Errorf("mailmap line %d: missing email", n)
		}

		id := identity{name: properName}
		commitName, commitEmail := "", first
		if name, second, _, ok := cutEmail(rest); ok {
			id.email = first
			commitName, commitEmail = name, second
		}
		if commitEmail == "" {
			return nil, fmt.Errorf("mailmap line %d: empty commit email", n)
		}

		key := strings.ToLower(commitEmail)
		e, ok := m.entries[key]
		if !ok {
			e = &mailmapEntry{byName: make(map[string]identity)}
			m.entries[key] = e
		}
		if commitName != "" {
			e.byName[strings.ToLower(commitName)] = id
			continue
		}
		if id.name != "" {
			e.name = id.name
		}
		if id.email != "" {
			e.email = id.email
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not read mailmap: %w", err)
	}

	return m, nil
}

// cutEmail splits s around its first "<email>", returning the trimmed text
// before it, the email and the remainder.
func cutEmail(s string) (before, email, after string, ok bool) {
	open := strings.IndexByte(s, '<')
	if open < 0 {
		return "", "", s, false
	}
	end := strings.IndexByte(s[open:], '>')
	if end < 0 {
		return "", "", s, false
	}
	end += open
	return strings.TrimSpace(s[:open]), strings.TrimSpace(s[open+1 : end]), s[end+1:], true
}

// Resolve returns the canonical name and email of an identity. Lines naming
// the commit name win over lines matching the email alone. Emails and names
// are matched case insensitively.
func (m *Mailmap) Resolve(name, email string) (string, string) {
	if m == nil {
		return name, email
	}
	e, ok := m.entries[strings.ToLower(email)]
	if !ok {
		return name, email
	}

	id, ok := e.byName[strings.ToLower(name)]
	if !ok {
		id = identity{name: e.name, email: e.email}
	}
	if id.name != "" {
		name = id.name
	}
	if id.email != "" {
		email = id.email
	}
	return name, email
}

// ReadMailmap loads the mailmap committed at HEAD. A repository without HEAD
// or without a mailmap yields an empty Mailmap.
func ReadMailmap(repo *git.Repository) (*Mailmap, error) {
	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return &Mailmap{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not resolve HEAD: %w", err)
	}

	c, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("could not read HEAD commit: %w", err)
	}

	f, err := c.File(MailmapFile)
	if errors.Is(err, object.ErrFileNotFound) {
		return &Mailmap{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not find %s: %w", MailmapFile, err)
	}

	r, err := f.Reader()
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", MailmapFile, err)
	}
	defer r.Close()

	return ParseMailmap(r)
}
