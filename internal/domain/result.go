package domain

import (
	"encoding/json"
	"math"
)

// SentinelScore marks a candidate that failed the attribute filter. It is a
// very large negative finite value rather than -Inf so marked rows stay
// sortable and serializable. Sentinel rows never reach the externally
// visible top-k; the ranker drops them before truncation.
const SentinelScore = -1e10

// ScoredResult is a ranked search hit. Score is derived per request and
// never persisted.
type ScoredResult struct {
	ID                 string  `json:"id"`
	PositiveSimilarity float64 `json:"positive_similarity"`
	NegativeSimilarity float64 `json:"negative_similarity"`
	Score              float64 `json:"score"`
	Record             Record  `json:"record"`
}

// MarshalJSON normalizes non-finite similarity values to null. Several
// serialization formats reject NaN, so this is enforced at the type rather
// than left to each caller.
func (r ScoredResult) MarshalJSON() ([]byte, error) {
	type alias struct {
		ID                 string   `json:"id"`
		PositiveSimilarity *float64 `json:"positive_similarity"`
		NegativeSimilarity *float64 `json:"negative_similarity"`
		Score              *float64 `json:"score"`
		Record             Record   `json:"record"`
	}
	return json.Marshal(alias{
		ID:                 r.ID,
		PositiveSimilarity: FiniteOrNil(r.PositiveSimilarity),
		NegativeSimilarity: FiniteOrNil(r.NegativeSimilarity),
		Score:              FiniteOrNil(r.Score),
		Record:             r.Record,
	})
}

// UnscoredResult wraps a record produced without vector scores (the lexical
// fallback). The similarity fields are NaN and serialize as null.
func UnscoredResult(rec Record) ScoredResult {
	return ScoredResult{
		ID:                 rec.ID,
		PositiveSimilarity: math.NaN(),
		NegativeSimilarity: math.NaN(),
		Score:              math.NaN(),
		Record:             rec,
	}
}

// FiniteOrNil returns &f, or nil when f is NaN or infinite.
func FiniteOrNil(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
