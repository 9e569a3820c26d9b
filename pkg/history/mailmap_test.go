package history

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-sauced/git-quality/pkg/gitlog"
)

const testMailmap = `# canonical identities
Jane Doe <jane@example.com> <jdoe@old.example.com>
<bob@example.com> <BOB@laptop.local>
Carol King <carol@example.com> ck <shared@example.com>
Dave Jones <shared@example.com>
`

func TestParseMailmap(t *testing.T) {
	t.Parallel()

	m, err := ParseMailmap(strings.NewReader(testMailmap))
	require.NoError(t, err)

	tests := []struct {
		name      string
		inName    string
		inEmail   string
		wantName  string
		wantEmail string
	}{
		{
			name:      "Name and email by commit email",
			inName:    "J. Doe",
			inEmail:   "JDoe@old.example.com",
			wantName:  "Jane Doe",
			wantEmail: "jane@example.com",
		},
		{
			name:      "Email only",
			inName:    "Bob Smith",
			inEmail:   "bob@laptop.local",
			wantName:  "Bob Smith",
			wantEmail: "bob@example.com",
		},
		{
			name:      "Commit name and email",
			inName:    "CK",
			inEmail:   "shared@example.com",
			wantName:  "Carol King",
			wantEmail: "carol@example.com",
		},
		{
			name:      "Commit email without matching name",
			inName:    "dj",
			inEmail:   "shared@example.com",
			wantName:  "Dave Jones",
			wantEmail: "shared@example.com",
		},
		{
			name:      "Unknown identity",
			inName:    "Erin Wu",
			inEmail:   "erin@example.com",
			wantName:  "Erin Wu",
			wantEmail: "erin@example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, email := m.Resolve(tt.inName, tt.inEmail)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantEmail, email)
		})
	}
}

func TestParseMailmapErrors(t *testing.T) {
	t.Parallel()

	_, err := ParseMailmap(strings.NewReader("Jane Doe jane@example.com\n"))
	assert.Error(t, err)

	_, err = ParseMailmap(strings.NewReader("Jane Doe <jane@example.com> <>\n"))
	assert.Error(t, err)
}

func TestNilMailmap(t *testing.T) {
	t.Parallel()

	var m *Mailmap
	name, email := m.Resolve("Jane Doe", "jane@example.com")
	assert.Equal(t, "Jane Doe", name)
	assert.Equal(t, "jane@example.com", email)
}

// newMailmapRepo holds commits by one person under two identities, and a
// merge authored by the old identity that the new identity approved.
func newMailmapRepo(t *testing.T) *git.Repository {
	t.Helper()

	fs := memfs.New()
	repo, err := git.Init(memory.NewStorage(), fs)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	old := func(when time.Time) *object.Signature {
		return &object.Signature{Name: "jdoe", Email: "jdoe@old.example.com", When: when}
	}

	writeFile(t, fs, "widget.py", "a\n")
	_, err = wt.Add("widget.py")
	require.NoError(t, err)
	first, err := wt.Commit("Add widget\n", &git.CommitOptions{Author: old(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))})
	require.NoError(t, err)

	writeFile(t, fs, ".mailmap", testMailmap)
	_, err = wt.Add(".mailmap")
	require.NoError(t, err)
	second := commit(t, wt, "Add mailmap\n", "Jane Doe", time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC))

	_, err = wt.Commit("Merged in feature/widget (pull request #2)\n\nShip widget\n\nApproved-by: Jane Doe <jane@example.com>\nApproved-by: Bob Smith <bob@example.com>\n",
		&git.CommitOptions{
			Author:  old(time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)),
			Parents: []plumbing.Hash{second, first},
		})
	require.NoError(t, err)

	return repo
}

func TestLogsUseMailmap(t *testing.T) {
	t.Parallel()

	repo := newMailmapRepo(t)
	parser := gitlog.NewParser(gitlog.MustPatterns(""), nil)

	mergeLog, err := MergeLog(context.Background(), repo)
	require.NoError(t, err)
	assert.NotContains(t, mergeLog, "jdoe")

	prs := parser.ExtractPullRequests(mergeLog)
	require.Len(t, prs, 1)
	assert.Equal(t, "Jane Doe", prs[0].Author)
	assert.Equal(t, []string{"Bob Smith"}, prs[0].Reviewers)
	assert.Equal(t, 1, prs[0].NoReviews)

	statLog, err := StatLog(context.Background(), repo)
	require.NoError(t, err)
	assert.Contains(t, statLog, "Author: Jane Doe <jane@example.com>\n")
	assert.NotContains(t, statLog, "jdoe")

	commits := parser.ExtractCommits(statLog)
	require.Len(t, commits, 2)
	for _, c := range commits {
		assert.Equal(t, "Jane Doe", c.Author)
	}
}

func TestReadMailmapMissing(t *testing.T) {
	t.Parallel()

	m, err := ReadMailmap(newTestRepo(t))
	require.NoError(t, err)
	name, email := m.Resolve("Jane Doe", "jane@example.com")
	assert.Equal(t, "Jane Doe", name)
	assert.Equal(t, "jane@example.com", email)

	empty, err := git.Init(memory.NewStorage(), memfs.New())
	require.NoError(t, err)
	_, err = ReadMailmap(empty)
	require.NoError(t, err)
}
