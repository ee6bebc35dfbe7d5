package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LocalKV implements KV with one file per key under a directory.
// This is suitable for single-instance deployments.
type LocalKV struct {
	mu  sync.RWMutex
	dir string
}

// NewLocalKV creates a file-backed store rooted at dir.
// The directory is created lazily on first write.
func NewLocalKV(dir string) *LocalKV {
	return &LocalKV{dir: dir}
}

func (c *LocalKV) path(key string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(key)
	return filepath.Join(c.dir, name+".cache")
}

// Get reads the file for key.
func (c *LocalKV) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	return data, nil
}

// Set writes the file for key atomically using a temp file and rename.
func (c *LocalKV) Set(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	target := c.path(key)
	tmpFile := target + ".tmp"
	if err := os.WriteFile(tmpFile, value, 0o644); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmpFile, target); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}
	return nil
}

// Remove deletes the file for key.
func (c *LocalKV) Remove(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cache file: %w", err)
	}
	return nil
}

// Close is a no-op for local files.
func (c *LocalKV) Close() error {
	return nil
}
