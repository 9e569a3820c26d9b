package cache

import (
	"container/list"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"golang.org/x/sys/unix"
)

const gigabyte = 1024 * 1024 * 1024

// CloneFunc clones url into the existing, empty directory dir.
type CloneFunc func(ctx context.Context, dir, url string) error

// Clones is a least recently used cache of repository clones on disk.
//
// Instead of a fixed capacity it keeps a minimum amount of free disk: before
// a new clone is made, the least recently used clones are deleted until the
// file system holding the cache has more than minFreeBytes available.
// Repositories listed as pinned are never deleted.
//
// Lookup and Add return their checkout locked. The cache itself has its own
// lock so a long clone does not block other lookups.
type Clones struct {
	lock sync.Mutex

	dir          string
	minFreeBytes uint64
	pinned       map[string]bool

	// order holds *Checkout values, most recently used at the front
	order   *list.List
	entries map[string]*list.Element

	clone     CloneFunc
	freeBytes func(dir string) (uint64, error)
}

// NewClones returns an empty cache storing clones below dir. It fails if dir
// does not exist or already has less than minFreeGb of free space.
func NewClones(dir string, minFreeGb uint64, pinned map[string]bool) (*Clones, error) {
	path, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("could not resolve cache directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("could not use cache directory: %w", err)
	}

	c := &Clones{
		dir:          path,
		minFreeBytes: minFreeGb * gigabyte,
		pinned:       pinned,
		order:        list.New(),
		entries:      make(map[string]*list.Element),
		clone:        plainClone,
		freeBytes:    statfsFree,
	}
	if c.pinned == nil {
		c.pinned = make(map[string]bool)
	}

	free, err := c.freeBytes(path)
	if err != nil {
		return nil, err
	}
	if free <= c.minFreeBytes {
		return nil, fmt.Errorf("minimum free disk space %d exceeds available disk space %d", c.minFreeBytes, free)
	}

	return c, nil
}

// Len returns the number of clones in the cache.
func (c *Clones) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.order.Len()
}

// Keys returns the cached URLs, most recently used first.
func (c *Clones) Keys() []string {
	c.lock.Lock()
	defer c.lock.Unlock()

	keys := make([]string, 0, c.order.Len())
	for e := c.order.Front(); e != nil; e = e.Next() {
		keys = append(keys, e.Value.(*Checkout).url)
	}
	return keys
}

// Lookup returns the locked checkout of url and marks it most recently used,
// or nil if url is not cached.
func (c *Clones) Lookup(url string) *Checkout {
	c.lock.Lock()
	e, ok := c.entries[url]
	if !ok {
		c.lock.Unlock()
		return nil
	}
	c.order.MoveToFront(e)
	c.lock.Unlock()

	co := e.Value.(*Checkout)
	co.lock.Lock()
	return co
}

// Add returns the locked checkout of url, cloning it first if it is not
// cached yet. A directory left over from an earlier process is reused when
// it still holds a valid repository.
func (c *Clones) Add(ctx context.Context, url string) (*Checkout, error) {
	dir, err := c.cloneDir(url)
	if err != nil {
		return nil, err
	}

	c.lock.Lock()

	if e, ok := c.entries[url]; ok {
		c.order.MoveToFront(e)
		c.lock.Unlock()

		co := e.Value.(*Checkout)
		co.lock.Lock()
		return co, nil
	}

	if err := c.evict(); err != nil {
		c.lock.Unlock()
		return nil, fmt.Errorf("could not evict clones from cache: %w", err)
	}

	co := &Checkout{
		url: url,
		dir: dir,
	}
	co.lock.Lock()
	c.entries[url] = c.order.PushFront(co)

	// The new checkout is locked, so it can neither be read nor evicted while
	// the cache is released for the duration of the clone.
	c.lock.Unlock()

	if _, err := os.Stat(co.dir); err == nil {
		if _, err := git.PlainOpen(co.dir); err == nil {
			return co, nil
		}
		if err := os.RemoveAll(co.dir); err != nil {
			c.drop(co)
			return nil, fmt.Errorf("could not remove invalid clone: %w", err)
		}
	}

	if err := os.MkdirAll(co.dir, os.ModePerm); err != nil {
		c.drop(co)
		return nil, fmt.Errorf("could not create clone directory: %w", err)
	}

	if err := c.clone(ctx, co.dir, url); err != nil {
		os.RemoveAll(co.dir)
		c.drop(co)
		return nil, fmt.Errorf("could not clone into cache: %w", err)
	}

	return co, nil
}

// cloneDir returns the directory below the cache holding the clone of
// rawURL, laid out as host and path. Dot segments are refused so a clone is
// never made, or evicted, outside the cache directory.
func (c *Clones) cloneDir(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("could not parse repository URL: %w", err)
	}

	segments := strings.Split(u.Host+"/"+u.Path, "/")
	for _, segment := range segments {
		if segment == "." || segment == ".." {
			return "", fmt.Errorf("repository URL must not contain dot segments: %s", rawURL)
		}
	}

	rel := filepath.Join(segments...)
	if rel == "" {
		return "", fmt.Errorf("repository URL has no path: %s", rawURL)
	}

	dir := filepath.Join(c.dir, rel)
	if !strings.HasPrefix(dir, c.dir+string(filepath.Separator)) {
		return "", fmt.Errorf("clone directory %s is outside the cache", dir)
	}
	return dir, nil
}

// drop removes a checkout whose clone failed and unlocks it.
func (c *Clones) drop(co *Checkout) {
	c.lock.Lock()
	if e, ok := c.entries[co.url]; ok && e.Value.(*Checkout) == co {
		c.order.Remove(e)
		delete(c.entries, co.url)
	}
	c.lock.Unlock()
	co.lock.Unlock()
}

// evict deletes least recently used clones until enough disk is free. The
// caller must hold the cache lock.
func (c *Clones) evict() error {
	for {
		free, err := c.freeBytes(c.dir)
		if err != nil {
			return err
		}
		if free > c.minFreeBytes {
			return nil
		}

		victim := c.order.Back()
		for victim != nil && c.pinned[victim.Value.(*Checkout).url] {
			victim = victim.Prev()
		}
		if victim == nil {
			if c.order.Len() == 0 {
				return nil
			}
			return fmt.Errorf("disk space completely occupied by pinned repositories")
		}

		co := victim.Value.(*Checkout)

		// Wait for readers of the clone to finish before deleting it.
		co.lock.Lock()
		os.RemoveAll(co.dir)
		delete(c.entries, co.url)
		c.order.Remove(victim)
		co.lock.Unlock()
	}
}

func plainClone(ctx context.Context, dir, url string) error {
	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:  url,
		Tags: git.NoTags,
	})
	return err
}

func statfsFree(dir string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return 0, fmt.Errorf("could not calculate disk space using statfs: %w", err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
