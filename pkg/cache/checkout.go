package cache

import (
	"context"
	"errors"
	"sync"

	"github.com/go-git/go-git/v5"
)

// Checkout is a clone of a remote repository kept on disk by a Clones cache.
//
// Checkouts are handed out locked so that the clone is not pulled or evicted
// while its history is being read. Always call Release once done.
type Checkout struct {
	// lock guards the clone on disk, not the Checkout fields which never change
	lock sync.Mutex

	// url is the remote the clone was made from and the key in the cache
	url string

	// dir is where the clone lives on disk
	dir string
}

// URL returns the remote URL of the checkout.
func (c *Checkout) URL() string {
	return c.url
}

// Dir returns the directory of the clone.
func (c *Checkout) Dir() string {
	return c.dir
}

// Open opens the clone and pulls the latest changes from origin. A clone
// that is already up to date, or that has no origin to pull from, is
// returned as is.
func (c *Checkout) Open(ctx context.Context) (*git.Repository, error) {
	repo, err := git.PlainOpen(c.dir)
	if err != nil {
		return nil, err
	}

	if _, err := repo.Remote(git.DefaultRemoteName); errors.Is(err, git.ErrRemoteNotFound) {
		return repo, nil
	}

	w, err := repo.Worktree()
	if err != nil {
		return nil, err
	}

	err = w.PullContext(ctx, &git.PullOptions{RemoteName: git.DefaultRemoteName})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil, err
	}

	return repo, nil
}

// Release unlocks the checkout for other readers. It must be called exactly
// once for every checkout returned by Lookup or Add.
func (c *Checkout) Release() {
	c.lock.Unlock()
}
