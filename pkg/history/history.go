// package history renders the commit history of a go-git repository in the
// text layout of the git command line, ready to be fed to package gitlog.
package history

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// DateFormat is the default date layout of "git log".
const DateFormat = "Mon Jan 2 15:04:05 2006 -0700"

// graphWidth caps the +/- bar drawn next to each file in a stat block.
const graphWidth = 50

// MergeLog renders the merge commits reachable from HEAD like
// "git log --use-mailmap --merges", newest first.
func MergeLog(ctx context.Context, repo *git.Repository) (string, error) {
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("could not resolve HEAD: %w", err)
	}

	return render(ctx, repo, &git.LogOptions{
		From:  head.Hash(),
		Order: git.LogOrderCommitterTime,
	}, func(c *object.Commit) bool { return c.NumParents() > 1 }, false)
}

// StatLog renders every non-merge commit of every reference like
// "git log --use-mailmap --no-merges --all --stat", newest first.
func StatLog(ctx context.Context, repo *git.Repository) (string, error) {
	return render(ctx, repo, &git.LogOptions{
		All:   true,
		Order: git.LogOrderCommitterTime,
	}, func(c *object.Commit) bool { return c.NumParents() <= 1 }, true)
}

func render(ctx context.Context, repo *git.Repository, opts *git.LogOptions, keep func(*object.Commit) bool, withStat bool) (string, error) {
	mailmap, err := ReadMailmap(repo)
	if err != nil {
		return "", err
	}

	iter, err := repo.Log(opts)
	if err != nil {
		return "", fmt.Errorf("could not get commit iterator: %w", err)
	}
	defer iter.Close()

	var b strings.Builder
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !keep(c) {
			return nil
		}
		return writeCommit(ctx, &b, c, mailmap, withStat)
	})
	if err != nil {
		return "", fmt.Errorf("could not render commit history: %w", err)
	}

	return b.String(), nil
}

func writeCommit(ctx context.Context, b *strings.Builder, c *object.Commit, mailmap *Mailmap, withStat bool) error {
	fmt.Fprintf(b, "commit %s\n", c.Hash)
	if c.NumParents() > 1 {
		parents := make([]string, 0, c.NumParents())
		for _, h := range c.ParentHashes {
			parents = append(parents, h.String()[:7])
		}
		fmt.Fprintf(b, "Merge: %s\n", strings.Join(parents, " "))
	}
	name, email := mailmap.Resolve(c.Author.Name, c.Author.Email)
	fmt.Fprintf(b, "Author: %s <%s>\n", name, email)
	fmt.Fprintf(b, "Date:   %s\n\n", c.Author.When.Format(DateFormat))

	for _, line := range strings.Split(strings.TrimRight(c.Message, "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			b.WriteString("\n")
			continue
		}
		fmt.Fprintf(b, "    %s\n", line)
	}
	b.WriteString("\n")

	if !withStat {
		return nil
	}

	stats, err := c.StatsContext(ctx)
	if err != nil {
		return fmt.Errorf("could not compute stats for %s: %w", c.Hash, err)
	}
	if len(stats) > 0 {
		writeStat(b, stats)
		b.WriteString("\n")
	}

	return nil
}

// writeStat writes the per-file lines and the summary line of a stat block.
func writeStat(b *strings.Builder, stats object.FileStats) {
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })

	nameWidth, maxChanges := 0, 0
	insertions, deletions := 0, 0
	for _, s := range stats {
		if len(s.Name) > nameWidth {
			nameWidth = len(s.Name)
		}
		if n := s.Addition + s.Deletion; n > maxChanges {
			maxChanges = n
		}
		insertions += s.Addition
		deletions += s.Deletion
	}

	for _, s := range stats {
		plus, minus := s.Addition, s.Deletion
		if maxChanges > graphWidth {
			plus = scale(plus, maxChanges)
			minus = scale(minus, maxChanges)
		}
		fmt.Fprintf(b, " %-*s | %d %s%s\n", nameWidth, s.Name, s.Addition+s.Deletion,
			strings.Repeat("+", plus), strings.Repeat("-", minus))
	}

	fmt.Fprintf(b, " %d %s changed", len(stats), plural(len(stats), "file"))
	if insertions > 0 || deletions == 0 {
		fmt.Fprintf(b, ", %d %s(+)", insertions, plural(insertions, "insertion"))
	}
	if deletions > 0 || insertions == 0 {
		fmt.Fprintf(b, ", %d %s(-)", deletions, plural(deletions, "deletion"))
	}
	b.WriteString("\n")
}

// scale maps n onto the graph width, keeping any change visible.
func scale(n, total int) int {
	if n == 0 {
		return 0
	}
	if s := n * graphWidth / total; s > 0 {
		return s
	}
	return 1
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
