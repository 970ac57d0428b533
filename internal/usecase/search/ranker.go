package search

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cinedex/internal/domain"
)

// Output carries the scored results plus the raw retrieval count, which the
// service needs to tell "nothing retrieved" apart from "all filtered out".
type Output struct {
	Results   []domain.ScoredResult
	Retrieved int
}

// Ranker scores candidate pools with the dual-query formula
// alpha*posSim - beta*negSim, using a shared worker pool.
type Ranker struct {
	pool   *ants.Pool
	logger *zap.Logger
}

// NewRanker creates a ranker with the given scoring concurrency.
func NewRanker(logger *zap.Logger, workers int) (*Ranker, error) {
	if workers <= 0 {
		workers = 8
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &Ranker{pool: pool, logger: logger}, nil
}

// Close releases the worker pool.
func (r *Ranker) Close() {
	r.pool.Release()
}

// Rank embeds the queries, retrieves a candidate pool, scores it, and
// returns the top results. The query must already be normalized.
func (r *Ranker) Rank(ctx context.Context, b Backend, q *domain.QuerySpec) (Output, error) {
	embedder := b.Embedder()

	posRes, err := embedder.Embed(ctx, q.PositiveQuery)
	if err != nil {
		return Output{}, fmt.Errorf("embed positive query: %w", err)
	}

	var negVec []float32
	if q.NegativeQuery != "" {
		negRes, err := embedder.Embed(ctx, q.NegativeQuery)
		if err != nil {
			return Output{}, fmt.Errorf("embed negative query: %w", err)
		}
		negVec = negRes.Embedding
	}

	candidates, err := b.SearchCandidates(ctx, posRes.Embedding, q.CandidatePoolSize, q.Filter)
	if err != nil {
		return Output{}, fmt.Errorf("retrieve candidates from %s: %w: %w",
			b.Name(), domain.ErrBackendUnavailable, err)
	}

	results := r.score(candidates, negVec, q)

	// Rows rejected by the attribute filter carry the sentinel score; they
	// are dropped here, never padded into the response.
	kept := results[:0]
	for _, res := range results {
		if res.Score != domain.SentinelScore {
			kept = append(kept, res)
		}
	}
	results = kept

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if len(results) > q.TopK {
		results = results[:q.TopK]
	}

	r.logger.Debug("Ranked candidate pool",
		zap.String("backend", b.Name()),
		zap.Int("retrieved", len(candidates)),
		zap.Int("returned", len(results)),
		zap.Bool("negative_query", negVec != nil),
	)

	return Output{Results: results, Retrieved: len(candidates)}, nil
}

// score evaluates all candidates on the worker pool. Each slot is written by
// exactly one task, so the slice needs no locking.
func (r *Ranker) score(candidates []domain.Candidate, negVec []float32, q *domain.QuerySpec) []domain.ScoredResult {
	results := make([]domain.ScoredResult, len(candidates))

	var wg sync.WaitGroup
	for i := range candidates {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			results[i] = scoreOne(&candidates[i], negVec, q)
		}
		if err := r.pool.Submit(task); err != nil {
			// Pool released or overloaded; score on the caller goroutine.
			task()
		}
	}
	wg.Wait()

	return results
}

func scoreOne(c *domain.Candidate, negVec []float32, q *domain.QuerySpec) domain.ScoredResult {
	if !q.Filter.Passes(&c.Record) {
		return domain.ScoredResult{ID: c.ID, Score: domain.SentinelScore, Record: c.Record}
	}

	posSim := c.Similarity
	negSim := 0.0
	if negVec != nil && len(c.Vector) > 0 {
		negSim = domain.Dot(c.Vector, negVec)
	}

	return domain.ScoredResult{
		ID:                 c.ID,
		PositiveSimilarity: posSim,
		NegativeSimilarity: negSim,
		Score:              q.Alpha*posSim - q.Beta*negSim,
		Record:             c.Record,
	}
}
