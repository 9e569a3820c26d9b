package providers

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/storage/memory"
	"go.uber.org/zap"
)

// InMemorySource clones every requested repository into memory from scratch.
type InMemorySource struct {
	logger *zap.SugaredLogger
}

// NewInMemorySource returns a Source keeping nothing between fetches.
func NewInMemorySource(logger *zap.SugaredLogger) Source {
	return &InMemorySource{
		logger: logger,
	}
}

// Fetch clones the default branch of url into memory.
func (im *InMemorySource) Fetch(ctx context.Context, url string) (Repo, error) {
	im.logger.Debugf("Cloning repo into memory: %s", url)

	repo, err := git.CloneContext(ctx, memory.NewStorage(), nil, &git.CloneOptions{
		URL:          url,
		SingleBranch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("could not clone %s into memory: %w", url, err)
	}

	return &inMemoryRepo{repo: repo}, nil
}

type inMemoryRepo struct {
	repo *git.Repository
}

func (r *inMemoryRepo) Repository() *git.Repository {
	return r.repo
}

// Release is a no-op: the clone is garbage collected with the Repo.
func (r *inMemoryRepo) Release() {}
