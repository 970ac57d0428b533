package search

import (
	"context"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cinedex/internal/domain"
)

func newTestRanker(t *testing.T) *Ranker {
	t.Helper()
	r, err := NewRanker(zap.NewNop(), 4)
	if err != nil {
		t.Fatalf("create ranker: %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

// normalizedQuery builds a query and runs Normalize so defaults apply.
func normalizedQuery(t *testing.T, q domain.QuerySpec) *domain.QuerySpec {
	t.Helper()
	if q.Alpha == 0 && q.Beta == 0 {
		q.Alpha, q.Beta = 1.0, 1.0
	}
	if err := q.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return &q
}

func TestRank_DualQueryScoring(t *testing.T) {
	r := newTestRanker(t)

	embedder := &mockEmbedder{vectors: map[string][]float32{
		"feel good space adventure": {1, 0},
		"war and grief":             {0, 1},
	}}
	b := &mockBackend{
		name:     "movies",
		embedder: embedder,
		candidates: []domain.Candidate{
			candidate("pure", 1.0, []float32{1, 0}, 2000),   // posSim 1.0, negSim 0
			candidate("mixed", 0.8, []float32{0.8, 0.6}, 2000), // posSim 0.8, negSim 0.6
			candidate("grim", 0.5, []float32{0, 1}, 2000),   // posSim 0.5, negSim 1.0
		},
	}
	q := normalizedQuery(t, domain.QuerySpec{
		PositiveQuery: "feel good space adventure",
		NegativeQuery: "war and grief",
		Alpha:         1.0,
		Beta:          0.5,
	})

	out, err := r.Rank(context.Background(), b, q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.Retrieved != 3 {
		t.Fatalf("expected Retrieved=3, got %d", out.Retrieved)
	}
	if len(out.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out.Results))
	}

	// Scores: pure = 1.0, mixed = 0.8 - 0.5*0.6 = 0.5, grim = 0.5 - 0.5*1.0 = 0.0
	wantOrder := []string{"pure", "mixed", "grim"}
	wantScores := []float64{1.0, 0.5, 0.0}
	for i := range wantOrder {
		if out.Results[i].ID != wantOrder[i] {
			t.Errorf("position %d: expected %s, got %s", i, wantOrder[i], out.Results[i].ID)
		}
		if math.Abs(out.Results[i].Score-wantScores[i]) > 1e-9 {
			t.Errorf("%s: expected score %f, got %f", wantOrder[i], wantScores[i], out.Results[i].Score)
		}
	}

	if out.Results[1].PositiveSimilarity != 0.8 {
		t.Errorf("expected posSim carried through, got %f", out.Results[1].PositiveSimilarity)
	}
	if math.Abs(out.Results[1].NegativeSimilarity-0.6) > 1e-6 {
		t.Errorf("expected negSim 0.6, got %f", out.Results[1].NegativeSimilarity)
	}
}

func TestRank_NoNegativeQuery(t *testing.T) {
	r := newTestRanker(t)

	embedder := &mockEmbedder{vectors: map[string][]float32{"space": {1, 0}}}
	b := &mockBackend{
		name:     "movies",
		embedder: embedder,
		candidates: []domain.Candidate{
			candidate("a", 0.9, []float32{0, 1}, 2000), // opposite vector must not matter
		},
	}
	q := normalizedQuery(t, domain.QuerySpec{PositiveQuery: "space"})

	out, err := r.Rank(context.Background(), b, q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Results[0].NegativeSimilarity != 0 {
		t.Errorf("expected negSim 0 without negative query, got %f", out.Results[0].NegativeSimilarity)
	}
	if out.Results[0].Score != 0.9 {
		t.Errorf("expected score = posSim, got %f", out.Results[0].Score)
	}
}

func TestRank_FilteredRowsDropped(t *testing.T) {
	r := newTestRanker(t)

	embedder := &mockEmbedder{vectors: map[string][]float32{"space": {1, 0}}}
	b := &mockBackend{
		name:     "movies",
		embedder: embedder,
		candidates: []domain.Candidate{
			candidate("old", 0.95, []float32{1, 0}, 1960),
			candidate("new", 0.70, []float32{1, 0}, 2010),
		},
	}
	minYear := 2000
	q := normalizedQuery(t, domain.QuerySpec{
		PositiveQuery: "space",
		Filter:        &domain.FilterSpec{MinYear: &minYear},
	})

	out, err := r.Rank(context.Background(), b, q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The higher-similarity row fails the filter and must vanish, not pad.
	if len(out.Results) != 1 || out.Results[0].ID != "new" {
		t.Fatalf("expected only 'new', got %v", out.Results)
	}
	if out.Retrieved != 2 {
		t.Errorf("Retrieved must count the raw pool, got %d", out.Retrieved)
	}
}

func TestRank_AllFilteredOut(t *testing.T) {
	r := newTestRanker(t)

	embedder := &mockEmbedder{vectors: map[string][]float32{"space": {1, 0}}}
	b := &mockBackend{
		name:     "movies",
		embedder: embedder,
		candidates: []domain.Candidate{
			candidate("a", 0.9, []float32{1, 0}, 1950),
			candidate("b", 0.8, []float32{1, 0}, 1960),
		},
	}
	minYear := 2000
	q := normalizedQuery(t, domain.QuerySpec{
		PositiveQuery: "space",
		Filter:        &domain.FilterSpec{MinYear: &minYear},
	})

	out, err := r.Rank(context.Background(), b, q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Results) != 0 {
		t.Fatalf("expected empty results, got %v", out.Results)
	}
	// Retrieved > 0 tells the service this is not a fallback case.
	if out.Retrieved != 2 {
		t.Errorf("expected Retrieved=2, got %d", out.Retrieved)
	}
}

func TestRank_TopKTruncation(t *testing.T) {
	r := newTestRanker(t)

	embedder := &mockEmbedder{vectors: map[string][]float32{"space": {1, 0}}}
	candidates := make([]domain.Candidate, 30)
	for i := range candidates {
		candidates[i] = candidate(string(rune('a'+i)), 1.0-float64(i)*0.01, []float32{1, 0}, 2000)
	}
	b := &mockBackend{name: "movies", embedder: embedder, candidates: candidates}
	q := normalizedQuery(t, domain.QuerySpec{PositiveQuery: "space", TopK: 5})

	out, err := r.Rank(context.Background(), b, q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(out.Results))
	}
	if out.Results[0].Score < out.Results[4].Score {
		t.Error("expected descending scores")
	}
}

func TestRank_Deterministic(t *testing.T) {
	r := newTestRanker(t)

	embedder := &mockEmbedder{vectors: map[string][]float32{"space": {1, 0}}}
	// Two candidates with identical scores: stable sort keeps pool order.
	b := &mockBackend{
		name:     "movies",
		embedder: embedder,
		candidates: []domain.Candidate{
			candidate("first", 0.5, []float32{1, 0}, 2000),
			candidate("second", 0.5, []float32{1, 0}, 2000),
		},
	}
	q := normalizedQuery(t, domain.QuerySpec{PositiveQuery: "space"})

	for run := 0; run < 10; run++ {
		out, err := r.Rank(context.Background(), b, q)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Results[0].ID != "first" || out.Results[1].ID != "second" {
			t.Fatalf("run %d: tie order changed: %v", run, out.Results)
		}
	}
}

func TestRank_PositiveEmbedError(t *testing.T) {
	r := newTestRanker(t)

	b := &mockBackend{
		name:     "movies",
		embedder: &mockEmbedder{err: domain.ErrProviderUnavailable},
	}
	q := normalizedQuery(t, domain.QuerySpec{PositiveQuery: "space"})

	_, err := r.Rank(context.Background(), b, q)
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestRank_BackendErrorWrapped(t *testing.T) {
	r := newTestRanker(t)

	b := &mockBackend{
		name:      "movies",
		embedder:  &mockEmbedder{vectors: map[string][]float32{"space": {1, 0}}},
		searchErr: errors.New("connection refused"),
	}
	q := normalizedQuery(t, domain.QuerySpec{PositiveQuery: "space"})

	_, err := r.Rank(context.Background(), b, q)
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestRank_MissingVectorMeansZeroNegSim(t *testing.T) {
	r := newTestRanker(t)

	embedder := &mockEmbedder{vectors: map[string][]float32{
		"space": {1, 0},
		"war":   {0, 1},
	}}
	b := &mockBackend{
		name:     "movies",
		embedder: embedder,
		candidates: []domain.Candidate{
			{ID: "novec", Similarity: 0.7, Record: record("novec", "Movie", 2000)},
		},
	}
	q := normalizedQuery(t, domain.QuerySpec{PositiveQuery: "space", NegativeQuery: "war"})

	out, err := r.Rank(context.Background(), b, q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Results[0].NegativeSimilarity != 0 {
		t.Errorf("expected negSim 0 for candidate without stored vector, got %f",
			out.Results[0].NegativeSimilarity)
	}
}

func TestRank_PassesPoolAndFilterToBackend(t *testing.T) {
	r := newTestRanker(t)

	embedder := &mockEmbedder{vectors: map[string][]float32{"space": {1, 0}}}
	b := &mockBackend{name: "movies", embedder: embedder}
	minYear := 1999
	q := normalizedQuery(t, domain.QuerySpec{
		PositiveQuery:     "space",
		CandidatePoolSize: 300,
		Filter:            &domain.FilterSpec{MinYear: &minYear},
	})

	if _, err := r.Rank(context.Background(), b, q); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.gotPool != 300 {
		t.Errorf("expected pool 300, got %d", b.gotPool)
	}
	if b.gotFilter == nil || b.gotFilter.MinYear == nil || *b.gotFilter.MinYear != 1999 {
		t.Error("expected filter handed to backend")
	}
	if len(b.gotVector) != 2 || b.gotVector[0] != 1 {
		t.Errorf("expected positive query vector, got %v", b.gotVector)
	}
}
