package search

import (
	"context"

	"github.com/kailas-cloud/cinedex/internal/domain"
)

// Backend provides candidate retrieval over one corpus. Implementations
// retrieve by vector similarity and answer the lexical fallback.
type Backend interface {
	Name() string
	Embedder() domain.Embedder

	// SearchCandidates returns up to pool candidates ranked by similarity to
	// the query vector. Backends that can push the filter down do so; the
	// ranking layer re-applies it either way.
	SearchCandidates(ctx context.Context, vector []float32, pool int, f *domain.FilterSpec) ([]domain.Candidate, error)

	// LexicalSearch answers a keyword query when vector retrieval yields
	// nothing. Results carry no scores.
	LexicalSearch(ctx context.Context, query string, f *domain.FilterSpec, topK int) ([]domain.Record, error)

	// Lookup fetches a single record by id. Returns ErrRecordNotFound for
	// ids the corpus does not hold.
	Lookup(ctx context.Context, id string) (domain.Record, error)
}

// RankRunner scores a candidate pool against a query.
type RankRunner interface {
	Rank(ctx context.Context, b Backend, q *domain.QuerySpec) (Output, error)
}
