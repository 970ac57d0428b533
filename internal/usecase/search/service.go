package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cinedex/internal/domain"
	"github.com/kailas-cloud/cinedex/internal/metrics"
)

// Response is the search outcome. Results always carries the hits; when the
// lexical fallback answered, the entries are unscored (null similarity
// fields) and Fallback is set.
type Response struct {
	Results  []domain.ScoredResult `json:"results"`
	Fallback string                `json:"fallback,omitempty"`
	Backend  string                `json:"backend"`
}

// Service orchestrates query normalization, backend resolution, ranking,
// and the lexical fallback.
type Service struct {
	backends *Registry
	ranker   RankRunner
	logger   *zap.Logger

	defaultTopK int
	maxTopK     int
	defaultPool int
	maxPool     int
}

// New creates a search service.
func New(backends *Registry, ranker RankRunner, logger *zap.Logger) *Service {
	return &Service{backends: backends, ranker: ranker, logger: logger}
}

// WithLimits overrides the built-in top_k and candidate pool defaults.
// Zero values keep the built-in limits.
func (s *Service) WithLimits(defaultTopK, maxTopK, defaultPool, maxPool int) *Service {
	s.defaultTopK = defaultTopK
	s.maxTopK = maxTopK
	s.defaultPool = defaultPool
	s.maxPool = maxPool
	return s
}

// applyLimits fills configured defaults before Normalize applies the
// built-in ones, and clamps to the configured maximums after.
func (s *Service) applyLimits(q *domain.QuerySpec) {
	if q.TopK <= 0 && s.defaultTopK > 0 {
		q.TopK = s.defaultTopK
	}
	if s.maxTopK > 0 && q.TopK > s.maxTopK {
		q.TopK = s.maxTopK
	}
	if q.CandidatePoolSize <= 0 && s.defaultPool > 0 {
		q.CandidatePoolSize = s.defaultPool
	}
	if s.maxPool > 0 && q.CandidatePoolSize > s.maxPool {
		q.CandidatePoolSize = s.maxPool
	}
}

// Search runs the full hybrid pipeline for one query.
//
// The lexical fallback fires only when retrieval itself comes up empty or
// the backend errors out. A pool that was retrieved and then fully rejected
// by the filter is an honest empty result, not a fallback trigger.
func (s *Service) Search(ctx context.Context, q *domain.QuerySpec) (*Response, error) {
	s.applyLimits(q)
	if err := q.Normalize(); err != nil {
		return nil, fmt.Errorf("normalize query: %w", err)
	}

	b, err := s.backends.Get(q.Backend)
	if err != nil {
		return nil, err
	}
	name := b.Name()

	start := time.Now()
	out, err := s.ranker.Rank(ctx, b, q)
	metrics.SearchDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	switch {
	case err != nil && errors.Is(err, domain.ErrBackendUnavailable):
		s.logger.Warn("Vector retrieval failed, trying lexical fallback",
			zap.String("backend", name), zap.Error(err))
		return s.fallback(ctx, b, q, "backend_error", err)

	case err != nil:
		metrics.SearchesTotal.WithLabelValues(name, "error").Inc()
		return nil, err

	case out.Retrieved == 0:
		s.logger.Info("Empty candidate pool, trying lexical fallback",
			zap.String("backend", name), zap.String("query", q.PositiveQuery))
		return s.fallback(ctx, b, q, "no_candidates", nil)
	}

	metrics.SearchesTotal.WithLabelValues(name, "ok").Inc()
	metrics.SearchCandidatesRetrieved.WithLabelValues(name).Observe(float64(out.Retrieved))

	results := out.Results
	if results == nil {
		// All-filtered pools serialize as an empty array, not null.
		results = []domain.ScoredResult{}
	}
	return &Response{Results: results, Backend: name}, nil
}

// Get fetches a single record by id from the named backend.
func (s *Service) Get(ctx context.Context, backend, id string) (domain.Record, error) {
	b, err := s.backends.Get(backend)
	if err != nil {
		return domain.Record{}, err
	}
	return b.Lookup(ctx, id)
}

func (s *Service) fallback(
	ctx context.Context, b Backend, q *domain.QuerySpec, reason string, rankErr error,
) (*Response, error) {
	records, err := b.LexicalSearch(ctx, q.PositiveQuery, q.Filter, q.TopK)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues(b.Name(), "error").Inc()
		if rankErr != nil {
			return nil, fmt.Errorf("lexical fallback after %w: %w", rankErr, err)
		}
		return nil, fmt.Errorf("lexical fallback: %w", err)
	}

	metrics.SearchesTotal.WithLabelValues(b.Name(), "fallback").Inc()
	metrics.SearchFallbacksTotal.WithLabelValues(b.Name(), reason).Inc()

	results := make([]domain.ScoredResult, len(records))
	for i, rec := range records {
		results[i] = domain.UnscoredResult(rec)
	}
	return &Response{Results: results, Fallback: "lexical", Backend: b.Name()}, nil
}
