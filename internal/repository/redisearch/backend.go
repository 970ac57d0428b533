// Package redisearch serves candidate retrieval from hashes indexed by the
// FT search module, with attribute filters pushed down into the query.
package redisearch

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cinedex/internal/db"
	"github.com/kailas-cloud/cinedex/internal/domain"
)

// store is the consumer interface for the search backend (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchLexical(ctx context.Context, q *db.LexicalQuery) (*db.SearchResult, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// metadataFields are the hash fields returned for record assembly.
var metadataFields = []string{
	domain.FieldTitle,
	domain.FieldYear,
	domain.FieldRating,
	domain.FieldDuration,
	domain.FieldGenres,
	domain.FieldLanguages,
	domain.FieldDescription,
}

// knnReturnFields additionally carry the stored embedding so negative-query
// scoring never needs a second round-trip.
var knnReturnFields = append(append([]string{}, metadataFields...), domain.FieldEmbedding)

// Config holds backend settings.
type Config struct {
	Name      string
	KeyPrefix string
	IndexName string
	Embedder  domain.Embedder
	Logger    *zap.Logger
}

// Backend retrieves candidates from an FT vector index.
type Backend struct {
	name      string
	keyPrefix string
	indexName string
	embedder  domain.Embedder
	store     store
	logger    *zap.Logger
}

// New creates a redisearch-backed candidate source.
func New(cfg *Config, s store) *Backend {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		name:      cfg.Name,
		keyPrefix: cfg.KeyPrefix,
		indexName: cfg.IndexName,
		embedder:  cfg.Embedder,
		store:     s,
		logger:    logger,
	}
}

// Name returns the backend name.
func (b *Backend) Name() string { return b.name }

// Embedder returns the embedder this corpus was built with.
func (b *Backend) Embedder() domain.Embedder { return b.embedder }

// SearchCandidates runs a filtered KNN query and assembles candidates with
// their stored vectors.
func (b *Backend) SearchCandidates(
	ctx context.Context, vector []float32, pool int, f *domain.FilterSpec,
) ([]domain.Candidate, error) {
	result, err := b.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    b.indexName,
		Vector:       vector,
		K:            pool,
		Filter:       f,
		ReturnFields: knnReturnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}

	candidates := make([]domain.Candidate, 0, len(result.Entries))
	for _, entry := range result.Entries {
		id := b.recordID(entry.Key)

		var vec []float32
		if blob, ok := entry.Fields[domain.FieldEmbedding]; ok {
			vec, err = db.BytesToVector([]byte(blob))
			if err != nil {
				b.logger.Warn("Skipping candidate with corrupt embedding",
					zap.String("key", entry.Key), zap.Error(err))
				continue
			}
			delete(entry.Fields, domain.FieldEmbedding)
		}

		candidates = append(candidates, domain.Candidate{
			ID:         id,
			Similarity: entry.Score,
			Vector:     vec,
			Record:     domain.ParseRecord(id, entry.Fields),
		})
	}
	return candidates, nil
}

// LexicalSearch runs a keyword query with the filter pushed down.
func (b *Backend) LexicalSearch(
	ctx context.Context, query string, f *domain.FilterSpec, topK int,
) ([]domain.Record, error) {
	tokens := domain.Tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	result, err := b.store.SearchLexical(ctx, &db.LexicalQuery{
		IndexName:    b.indexName,
		Tokens:       tokens,
		Filter:       f,
		TopK:         topK,
		ReturnFields: metadataFields,
	})
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	records := make([]domain.Record, 0, len(result.Entries))
	for _, entry := range result.Entries {
		id := b.recordID(entry.Key)
		records = append(records, domain.ParseRecord(id, entry.Fields))
	}
	return records, nil
}

// Lookup fetches a single record by id.
func (b *Backend) Lookup(ctx context.Context, id string) (domain.Record, error) {
	fields, err := b.store.HGetAll(ctx, b.keyPrefix+id)
	if err != nil {
		return domain.Record{}, fmt.Errorf("lookup %s: %w", id, err)
	}
	if len(fields) == 0 {
		return domain.Record{}, fmt.Errorf("%q: %w", id, domain.ErrRecordNotFound)
	}
	delete(fields, domain.FieldEmbedding)
	return domain.ParseRecord(id, fields), nil
}

// recordID strips the key prefix: "cinedex:movies:m1" -> "m1".
func (b *Backend) recordID(key string) string {
	return strings.TrimPrefix(key, b.keyPrefix)
}
