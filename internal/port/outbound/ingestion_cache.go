package outbound

import "context"

// IngestionCache persists the extracted rule set for a given source path so
// re-ingesting unchanged policy documents skips the oracle pipeline
// entirely. Keyed by the source path, mirroring the original's
// "<path>.cache.json" sidecar file.
type IngestionCache interface {
	Load(ctx context.Context, path string) ([]byte, bool, error)
	Store(ctx context.Context, path string, data []byte) error
}
