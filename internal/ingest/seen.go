package ingest

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// SeenCache is the fetcher-layer URL dedup set. It keeps every submitted
// article URL so a feed that re-serves old entries never re-enters the write
// path. The set survives restarts through JSON snapshots on disk.
type SeenCache struct {
	mu   sync.Mutex
	urls map[string]struct{}
	path string // empty disables persistence
}

// NewSeenCache builds the cache and restores the previous snapshot when one
// exists. A missing or unreadable snapshot starts the cache empty; the write
// path's own source-URL dedup makes that safe.
func NewSeenCache(path string) *SeenCache {
	c := &SeenCache{urls: make(map[string]struct{}), path: path}
	if path == "" {
		return c
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[Ingest] Could not read URL snapshot %s: %v", path, err)
		}
		return c
	}

	var urls []string
	if err := json.Unmarshal(raw, &urls); err != nil {
		log.Printf("[Ingest] Corrupt URL snapshot %s, starting empty: %v", path, err)
		return c
	}
	for _, u := range urls {
		c.urls[u] = struct{}{}
	}
	log.Printf("[Ingest] Restored %d seen URLs from %s", len(urls), path)
	return c
}

// Seen reports whether the URL was already submitted.
func (c *SeenCache) Seen(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.urls[url]
	return ok
}

// Mark records a URL as handled.
func (c *SeenCache) Mark(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.urls[url] = struct{}{}
}

// Len returns the number of tracked URLs.
func (c *SeenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.urls)
}

// Snapshot writes the current set to disk atomically (temp file + rename) so
// a crash mid-write never corrupts the previous snapshot.
func (c *SeenCache) Snapshot() error {
	if c.path == "" {
		return nil
	}

	c.mu.Lock()
	urls := make([]string, 0, len(c.urls))
	for u := range c.urls {
		urls = append(urls, u)
	}
	c.mu.Unlock()

	raw, err := json.Marshal(urls)
	if err != nil {
		return fmt.Errorf("encode URL snapshot: %v", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".urlseen-*")
	if err != nil {
		return fmt.Errorf("snapshot temp file: %v", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write URL snapshot: %v", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close URL snapshot: %v", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace URL snapshot: %v", err)
	}
	return nil
}
