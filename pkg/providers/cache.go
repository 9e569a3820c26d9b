package providers

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5"
	"go.uber.org/zap"

	"github.com/open-sauced/git-quality/pkg/cache"
)

// CachedSource keeps clones on disk in a least recently used cache and only
// pulls new commits for repositories it has seen before.
type CachedSource struct {
	logger *zap.SugaredLogger
	clones *cache.Clones
}

// NewCachedSource returns a Source caching clones in cacheDir while keeping at
// least minFreeDiskGb of disk free. Pinned repositories are never evicted.
func NewCachedSource(cacheDir string, minFreeDiskGb uint64, logger *zap.SugaredLogger, pinned map[string]bool) (Source, error) {
	clones, err := cache.NewClones(cacheDir, minFreeDiskGb, pinned)
	if err != nil {
		return nil, fmt.Errorf("could not initialize clone cache: %w", err)
	}

	return &CachedSource{
		logger: logger,
		clones: clones,
	}, nil
}

// Fetch returns the cached clone of url, cloning it on a cache miss, and
// pulls its latest changes.
func (cs *CachedSource) Fetch(ctx context.Context, url string) (Repo, error) {
	var err error

	cs.logger.Debugf("Looking up clone in cache: %s", url)
	co := cs.clones.Lookup(url)
	if co == nil {
		cs.logger.Debugf("Cache miss. Cloning to cache: %s", url)
		co, err = cs.clones.Add(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("could not add to clone cache: %w", err)
		}
	}

	cs.logger.Debugf("Opening and pulling clone: %s", url)
	repo, err := co.Open(ctx)
	if err != nil {
		co.Release()
		return nil, fmt.Errorf("could not open and pull clone: %w", err)
	}

	return &cachedRepo{checkout: co, repo: repo}, nil
}

type cachedRepo struct {
	checkout *cache.Checkout
	repo     *git.Repository
}

func (r *cachedRepo) Repository() *git.Repository {
	return r.repo
}

// Release unlocks the clone so it can be pulled by other requests or evicted.
func (r *cachedRepo) Release() {
	r.checkout.Release()
}
