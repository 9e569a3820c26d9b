// package database provides the quality server with a wrapper around an
// sql database connection pool and the public methods to store the extracted
// pull requests and commits of each repository.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/open-sauced/git-quality/pkg/gitlog"
	"github.com/open-sauced/git-quality/pkg/insights"
)

const schema = `
CREATE TABLE IF NOT EXISTS repos (
	id      SERIAL PRIMARY KEY,
	git_url TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS pull_requests (
	id          SERIAL PRIMARY KEY,
	repo_id     INTEGER NOT NULL REFERENCES repos(id),
	commit_hash TEXT NOT NULL,
	author      TEXT NOT NULL,
	merged_at   TIMESTAMPTZ,
	raw_date    TEXT NOT NULL,
	title       TEXT NOT NULL,
	reviewers   TEXT[] NOT NULL,
	no_reviews  INTEGER NOT NULL CHECK (no_reviews >= 0),
	shape       TEXT NOT NULL,
	UNIQUE (repo_id, commit_hash)
);

CREATE TABLE IF NOT EXISTS commits (
	id           SERIAL PRIMARY KEY,
	repo_id      INTEGER NOT NULL REFERENCES repos(id),
	commit_hash  TEXT NOT NULL,
	author       TEXT NOT NULL,
	committed_at TIMESTAMPTZ,
	raw_date     TEXT NOT NULL,
	title        TEXT NOT NULL,
	files        INTEGER NOT NULL CHECK (files >= 0),
	insertions   INTEGER NOT NULL CHECK (insertions >= 0),
	deletions    INTEGER NOT NULL CHECK (deletions >= 0),
	code_files   INTEGER NOT NULL CHECK (code_files >= 0),
	code_changes INTEGER NOT NULL CHECK (code_changes >= 0),
	UNIQUE (repo_id, commit_hash)
);`

// QualityDbHandler is a wrapper around *sql.DB. It provides a single point
// where queries access the quality database connection pool.
type QualityDbHandler struct {
	db *sql.DB
}

// NewQualityDbHandler opens a postgres connection pool with the provided
// connection parameters and pings it once to validate them.
func NewQualityDbHandler(host, port, user, pwd, dbName string) (*QualityDbHandler, error) {
	connectString := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=require", host, port, user, pwd, dbName)

	dbPool, err := sql.Open("postgres", connectString)
	if err != nil {
		return nil, fmt.Errorf("could not open database connection: %w", err)
	}

	if err := dbPool.Ping(); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("could not ping database: %w", err)
	}

	return &QualityDbHandler{
		db: dbPool,
	}, nil
}

// Close closes the connection pool.
func (q *QualityDbHandler) Close() error {
	return q.db.Close()
}

// EnsureSchema creates the tables used by the handler if they are missing.
func (q *QualityDbHandler) EnsureSchema(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, schema)
	return err
}

// RepositoryID returns the id of the repository with the given git URL,
// inserting the repository first if it is unknown.
func (q *QualityDbHandler) RepositoryID(ctx context.Context, gitURL string) (int, error) {
	var id int
	err := q.db.QueryRowContext(ctx, "SELECT id FROM repos WHERE git_url=$1", gitURL).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		err = q.db.QueryRowContext(ctx, "INSERT INTO repos(git_url) VALUES($1) RETURNING id", gitURL).Scan(&id)
	}
	return id, err
}

// SavePullRequests stores the pull requests of a repository in a single
// transaction and returns how many were new. Known commits are left as is.
func (q *QualityDbHandler) SavePullRequests(ctx context.Context, repoID int, prs []gitlog.PullRequest) (int, error) {
	return q.inTx(ctx, func(tx *sql.Tx) (int, error) {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO pull_requests
			(repo_id, commit_hash, author, merged_at, raw_date, title, reviewers, no_reviews, shape)
			VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (repo_id, commit_hash) DO NOTHING`)
		if err != nil {
			return 0, err
		}
		defer stmt.Close()

		inserted := 0
		for _, pr := range prs {
			res, err := stmt.ExecContext(ctx, repoID, pr.CommitHash, pr.Author, nullTime(pr.Date), pr.Date,
				pr.Title, pq.Array(pr.Reviewers), pr.NoReviews, pr.Shape.String())
			if err != nil {
				return 0, fmt.Errorf("could not insert pull request %s: %w", pr.CommitHash, err)
			}
			inserted += affected(res)
		}
		return inserted, nil
	})
}

// SaveCommits stores the commits of a repository in a single transaction and
// returns how many were new.
func (q *QualityDbHandler) SaveCommits(ctx context.Context, repoID int, commits []gitlog.Commit) (int, error) {
	return q.inTx(ctx, func(tx *sql.Tx) (int, error) {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO commits
			(repo_id, commit_hash, author, committed_at, raw_date, title, files, insertions, deletions, code_files, code_changes)
			VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (repo_id, commit_hash) DO NOTHING`)
		if err != nil {
			return 0, err
		}
		defer stmt.Close()

		inserted := 0
		for _, c := range commits {
			res, err := stmt.ExecContext(ctx, repoID, c.CommitHash, c.Author, nullTime(c.Date), c.Date, c.Title,
				c.Files, c.Insertions, c.Deletions, c.CodeFiles, c.CodeChanges)
			if err != nil {
				return 0, fmt.Errorf("could not insert commit %s: %w", c.CommitHash, err)
			}
			inserted += affected(res)
		}
		return inserted, nil
	})
}

func (q *QualityDbHandler) inTx(ctx context.Context, fn func(tx *sql.Tx) (int, error)) (int, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("could not begin transaction: %w", err)
	}

	n, err := fn(tx)
	if err != nil {
		//nolint:errcheck
		tx.Rollback()
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("could not commit transaction: %w", err)
	}
	return n, nil
}

// nullTime parses a git date, storing NULL when the layout is unknown. The
// raw date is always kept alongside.
func nullTime(date string) pq.NullTime {
	t, err := insights.ParseDate(date)
	if err != nil {
		return pq.NullTime{}
	}
	return pq.NullTime{Time: t, Valid: true}
}

func affected(res sql.Result) int {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}
