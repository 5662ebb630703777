package outbound

import "context"

// PredicateIndex is the outbound port for k-nearest-predicate lookup the
// mediator narrows large predicate sets through on every non-initial
// message. Adapters implement this over an embedding oracle
// (internal/adapter/outbound/embindex).
type PredicateIndex interface {
	Upsert(ctx context.Context, id, text string) error
	Query(ctx context.Context, queryText string, k int) ([]PredicateMatch, error)
}

// PredicateMatch is one ranked nearest-neighbor result.
type PredicateMatch struct {
	ID       string
	Distance float64
}
