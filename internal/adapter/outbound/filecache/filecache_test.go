package filecache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestStoreThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.txt")
	c := New()

	if err := c.Store(context.Background(), path, []byte(`[{"logic":"a"}]`)); err != nil {
		t.Fatalf("Store: %v", err)
	}

	data, ok, err := c.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if string(data) != `[{"logic":"a"}]` {
		t.Fatalf("unexpected data: %s", data)
	}

	if _, err := os.Stat(path + ".cache.json.tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be cleaned up")
	}
}

func TestLoadMissingReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	c := New()
	_, ok, err := c.Load(context.Background(), filepath.Join(dir, "missing.txt"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected no cache hit for missing file")
	}
}
