// Package embindex implements an in-memory, content-addressed vector index
// over predicate records, backing the mediator's k-nearest-predicate lookup.
// The index holds only vectors supplied by an llmclient.EmbeddingProvider;
// it never persists anything to disk, matching the system's in-memory-only
// embedding index requirement.
package embindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/quadguard/quadguard/internal/adapter/outbound/llmclient"
	"github.com/quadguard/quadguard/internal/port/outbound"
)

// Index is a flat in-memory vector index keyed by a caller-chosen id
// (typically a predicate name). Safe for concurrent use.
type Index struct {
	embed llmclient.EmbeddingProvider

	mu      sync.RWMutex
	vectors map[string][]float32
}

// New returns an empty Index backed by embed.
func New(embed llmclient.EmbeddingProvider) *Index {
	return &Index{embed: embed, vectors: make(map[string][]float32)}
}

// Upsert embeds text and stores the resulting vector under id, replacing
// any existing entry for id.
func (x *Index) Upsert(ctx context.Context, id, text string) error {
	vecs, err := x.embed.Embed(ctx, []string{text})
	if err != nil {
		return fmt.Errorf("embindex: embed %q: %w", id, err)
	}
	if len(vecs) == 0 {
		return fmt.Errorf("embindex: no embedding returned for %q", id)
	}
	x.mu.Lock()
	x.vectors[id] = vecs[0]
	x.mu.Unlock()
	return nil
}

// Remove deletes id from the index, if present.
func (x *Index) Remove(id string) {
	x.mu.Lock()
	delete(x.vectors, id)
	x.mu.Unlock()
}

// Query embeds queryText and returns the k ids whose vectors are closest to
// it by cosine distance, nearest first. If k exceeds the number of indexed
// vectors, every id is returned. Query implements outbound.PredicateIndex.
func (x *Index) Query(ctx context.Context, queryText string, k int) ([]outbound.PredicateMatch, error) {
	if k <= 0 {
		return nil, nil
	}
	vecs, err := x.embed.Embed(ctx, []string{queryText})
	if err != nil {
		return nil, fmt.Errorf("embindex: embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embindex: no embedding returned for query")
	}
	query := vecs[0]

	x.mu.RLock()
	matches := make([]outbound.PredicateMatch, 0, len(x.vectors))
	for id, v := range x.vectors {
		matches = append(matches, outbound.PredicateMatch{ID: id, Distance: cosineDistance(query, v)})
	}
	x.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].ID < matches[j].ID
	})
	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

// Len returns the number of indexed vectors.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

var _ outbound.PredicateIndex = (*Index)(nil)

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
