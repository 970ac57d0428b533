package db

import "github.com/kailas-cloud/cinedex/internal/domain"

// KNNQuery is the input for native vector similarity search. The attribute
// filter is pushed down into the same server-side query.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	Filter       *domain.FilterSpec
	ReturnFields []string
}

// LexicalQuery is the input for keyword search: an OR-union of tokens over
// the text fields and exact tag membership, combined with the same pushed-
// down attribute filter.
type LexicalQuery struct {
	IndexName    string
	Tokens       []string
	Filter       *domain.FilterSpec
	TopK         int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
