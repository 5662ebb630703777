// Package filecache implements the ingestion cache as a "<path>.cache.json"
// sidecar file per source document, written atomically (tmp file, fsync,
// rename) so a crash mid-write never leaves a corrupt cache that a later
// ingestion run would fail to parse.
package filecache

import (
	"context"
	"fmt"
	"os"

	"github.com/quadguard/quadguard/internal/port/outbound"
)

// Cache implements outbound.IngestionCache over sidecar files named
// "<path>.cache.json".
type Cache struct{}

// New returns a filesystem-backed ingestion cache.
func New() *Cache {
	return &Cache{}
}

// Load reads the cache sidecar for path, returning (nil, false, nil) if it
// does not exist.
func (c *Cache) Load(ctx context.Context, path string) ([]byte, bool, error) {
	data, err := os.ReadFile(cachePath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("filecache: read %s: %w", path, err)
	}
	return data, true, nil
}

// Store atomically writes data to the cache sidecar for path: write to a
// temp file in the same directory, fsync, then rename over the target so
// a partial write is never observed by a concurrent reader.
func (c *Cache) Store(ctx context.Context, path string, data []byte) error {
	target := cachePath(path)
	tmp := target + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("filecache: create temp file: %w", err)
	}
	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmp)
	}

	if _, err := f.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("filecache: write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("filecache: fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("filecache: close temp file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("filecache: rename temp file: %w", err)
	}
	return nil
}

func cachePath(path string) string {
	return path + ".cache.json"
}

var _ outbound.IngestionCache = (*Cache)(nil)
