// package providers acquires the git repositories whose history is analysed.
// Different providers trade memory for disk: see InMemorySource and
// CachedSource.
package providers

import (
	"context"

	"github.com/go-git/go-git/v5"
)

// Source hands out repositories by remote URL.
type Source interface {
	// Fetch returns an up to date repository for url. The caller must call
	// Release on the result once it has finished reading the history.
	Fetch(ctx context.Context, url string) (Repo, error)
}

// Repo is a repository acquired from a Source.
type Repo interface {
	// Repository returns the go-git repository.
	Repository() *git.Repository

	// Release gives the repository back to its Source, which may then update
	// or delete it.
	Release()
}
