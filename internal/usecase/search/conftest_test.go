package search

import (
	"context"

	"github.com/kailas-cloud/cinedex/internal/domain"
)

// mockEmbedder returns canned vectors keyed by input text.
type mockEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vectors[text]}, nil
}

// mockBackend serves a fixed candidate pool and lexical results.
type mockBackend struct {
	name         string
	embedder     domain.Embedder
	candidates   []domain.Candidate
	searchErr    error
	lexical      []domain.Record
	lexicalErr   error
	lexicalCalls int
	lookup       map[string]domain.Record

	gotVector []float32
	gotPool   int
	gotFilter *domain.FilterSpec
}

func (m *mockBackend) Name() string { return m.name }

func (m *mockBackend) Embedder() domain.Embedder { return m.embedder }

func (m *mockBackend) SearchCandidates(
	_ context.Context, vector []float32, pool int, f *domain.FilterSpec,
) ([]domain.Candidate, error) {
	m.gotVector = vector
	m.gotPool = pool
	m.gotFilter = f
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.candidates, nil
}

func (m *mockBackend) LexicalSearch(
	_ context.Context, _ string, _ *domain.FilterSpec, _ int,
) ([]domain.Record, error) {
	m.lexicalCalls++
	if m.lexicalErr != nil {
		return nil, m.lexicalErr
	}
	return m.lexical, nil
}

func (m *mockBackend) Lookup(_ context.Context, id string) (domain.Record, error) {
	rec, ok := m.lookup[id]
	if !ok {
		return domain.Record{}, domain.ErrRecordNotFound
	}
	return rec, nil
}

// mockRanker lets service tests control the rank outcome directly.
type mockRanker struct {
	out Output
	err error
	got *domain.QuerySpec
}

func (m *mockRanker) Rank(_ context.Context, _ Backend, q *domain.QuerySpec) (Output, error) {
	m.got = q
	return m.out, m.err
}

func record(id, title string, year int) domain.Record {
	return domain.Record{ID: id, Title: title, Year: year}
}

func candidate(id string, sim float64, vec []float32, year int) domain.Candidate {
	return domain.Candidate{
		ID:         id,
		Similarity: sim,
		Vector:     vec,
		Record:     record(id, "Movie "+id, year),
	}
}
