// Package cache implements the artifact cache: a TTL-bound, file-backed
// content store keyed by opaque handles. The index structure is grounded on
// the teacher's container/list-based TTL LRU cache, generalized from a
// boolean value to a file path plus metadata, and backed by a sweep
// goroutine that reclaims disk space for artifacts nobody reads again.
package cache

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"evaljudge/internal/apperr"
	"evaljudge/internal/ids"

	"github.com/klauspost/compress/gzip"
)

// ArtifactType partitions the on-disk layout and is informational only —
// the cache does not interpret file contents differently per type.
type ArtifactType string

const (
	Source   ArtifactType = "source"
	Binary   ArtifactType = "binary"
	Input    ArtifactType = "input"
	Output   ArtifactType = "output"
	Checker  ArtifactType = "checker"
)

// Metadata describes the artifact a handle points to.
type Metadata struct {
	FileName string
	Type     ArtifactType
	Size     int64
}

// Ref is what Get returns: where the artifact lives on disk right now, its
// metadata, and when the cache will reclaim it absent a Refresh.
type Ref struct {
	FilePath  string
	Metadata  Metadata
	ExpiresAt time.Time
}

type entry struct {
	path      string
	metadata  Metadata
	createdAt time.Time
	expiresAt time.Time
}

// Cache is the artifact store. All fields after construction are only
// touched under mu; files are written before the index entry is published
// and removed only after the index entry is erased, so a reader never sees
// a handle whose backing file may not exist yet.
type Cache struct {
	root string
	ttl  time.Duration

	mu    sync.RWMutex
	index map[string]*entry

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a cache rooted at dir with the given default TTL, and starts
// its background sweeper. Call Close to stop the sweeper.
func New(dir string, ttl time.Duration) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, apperr.Wrapf(err, apperr.CacheWriteErr, "create cache root %s", dir)
	}
	c := &Cache{
		root:  dir,
		ttl:   ttl,
		index: make(map[string]*entry),
		stop:  make(chan struct{}),
	}
	interval := ttl / 5
	if interval < time.Second {
		interval = time.Second
	}
	c.wg.Add(1)
	go c.sweepLoop(interval)
	return c, nil
}

// Close stops the background sweeper. It does not delete on-disk artifacts.
func (c *Cache) Close() {
	close(c.stop)
	c.wg.Wait()
}

// Put stores data under a freshly generated handle and returns it.
func (c *Cache) Put(ctx context.Context, artifactType ArtifactType, fileName string, data []byte) (string, error) {
	handle := ids.New()
	dir := filepath.Join(c.root, string(artifactType))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", apperr.Wrapf(err, apperr.CacheWriteErr, "create cache dir %s", dir)
	}
	path := filepath.Join(dir, handle)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", apperr.Wrapf(err, apperr.CacheWriteErr, "write artifact %s", handle)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", apperr.Wrapf(err, apperr.CacheWriteErr, "publish artifact %s", handle)
	}

	now := time.Now()
	e := &entry{
		path:      path,
		metadata:  Metadata{FileName: fileName, Type: artifactType, Size: int64(len(data))},
		createdAt: now,
		expiresAt: now.Add(c.ttl),
	}

	c.mu.Lock()
	c.index[handle] = e
	c.mu.Unlock()

	return handle, nil
}

// Get returns the current location and metadata for handle, or false if the
// handle is unknown, expired, or its file was removed out from under the
// index (in which case the stale entry is dropped and false is returned).
func (c *Cache) Get(handle string) (Ref, bool) {
	c.mu.Lock()
	e, ok := c.index[handle]
	if !ok {
		c.mu.Unlock()
		return Ref{}, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.index, handle)
		c.mu.Unlock()
		go os.Remove(e.path)
		return Ref{}, false
	}
	c.mu.Unlock()

	if _, err := os.Stat(e.path); err != nil {
		c.mu.Lock()
		delete(c.index, handle)
		c.mu.Unlock()
		return Ref{}, false
	}

	return Ref{FilePath: e.path, Metadata: e.metadata, ExpiresAt: e.expiresAt}, true
}

// Has reports whether handle currently resolves to a live artifact.
func (c *Cache) Has(handle string) bool {
	_, ok := c.Get(handle)
	return ok
}

// Refresh extends a handle's TTL from now, returning false if it is unknown
// or already expired.
func (c *Cache) Refresh(handle string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.index[handle]
	if !ok || time.Now().After(e.expiresAt) {
		return false
	}
	e.expiresAt = time.Now().Add(c.ttl)
	return true
}

// Delete removes a handle immediately, best-effort removing its file too.
func (c *Cache) Delete(handle string) {
	c.mu.Lock()
	e, ok := c.index[handle]
	if ok {
		delete(c.index, handle)
	}
	c.mu.Unlock()
	if ok {
		os.Remove(e.path)
	}
}

// Stats summarizes the cache's current state.
type Stats struct {
	Count      int
	TotalBytes int64
}

// Stats returns aggregate counters for GET /status.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var s Stats
	s.Count = len(c.index)
	for _, e := range c.index {
		s.TotalBytes += e.metadata.Size
	}
	return s
}

func (c *Cache) sweepLoop(interval time.Duration) {
	defer c.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	now := time.Now()
	var expiredPaths []string

	c.mu.Lock()
	for handle, e := range c.index {
		if now.After(e.expiresAt) {
			expiredPaths = append(expiredPaths, e.path)
			delete(c.index, handle)
		}
	}
	c.mu.Unlock()

	for _, p := range expiredPaths {
		os.Remove(p)
	}
}

// WriteCompressed streams the artifact at path to w gzip-compressed, for the
// GET /cache/:id download path when the client advertises gzip support.
func WriteCompressed(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return apperr.Wrapf(err, apperr.CacheMiss, "open artifact")
	}
	defer f.Close()

	gz, err := gzip.NewWriterLevel(w, gzip.BestSpeed)
	if err != nil {
		return apperr.Wrap(err, apperr.InternalError)
	}
	defer gz.Close()

	if _, err := io.Copy(gz, f); err != nil {
		return fmt.Errorf("stream compressed artifact: %w", err)
	}
	return nil
}
