package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Query parameter limits.
const (
	MaxQueryLength  = 4096
	DefaultTopK     = 10
	MaxTopK         = 100
	DefaultPoolSize = 200
	MaxPoolSize     = 2000
)

// QuerySpec is a structured discovery query: a positive query, an optional
// negative query, an attribute filter, and ranking knobs. It is created per
// request and discarded after the response.
type QuerySpec struct {
	PositiveQuery     string      `json:"positive_query"`
	NegativeQuery     string      `json:"negative_query,omitempty"`
	Filter            *FilterSpec `json:"filter,omitempty"`
	TopK              int         `json:"top_k,omitempty"`
	CandidatePoolSize int         `json:"candidate_pool_size,omitempty"`
	Alpha             float64     `json:"alpha"`
	Beta              float64     `json:"beta"`
	Backend           string      `json:"backend,omitempty"`
}

// UnmarshalJSON applies the alpha/beta defaults of 1.0 before decoding, so
// an absent weight keeps its default while an explicit zero is honored.
func (q *QuerySpec) UnmarshalJSON(data []byte) error {
	type alias QuerySpec
	tmp := alias{Alpha: 1.0, Beta: 1.0}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*q = QuerySpec(tmp)
	return nil
}

// Normalize validates required fields and fills defaults in place.
// positive_query is required; its absence is a client error.
func (q *QuerySpec) Normalize() error {
	q.PositiveQuery = strings.TrimSpace(q.PositiveQuery)
	q.NegativeQuery = strings.TrimSpace(q.NegativeQuery)

	if q.PositiveQuery == "" {
		return fmt.Errorf("%w: positive_query is required", ErrInvalidQuery)
	}
	if len(q.PositiveQuery) > MaxQueryLength {
		return fmt.Errorf("%w: positive_query too long (max %d chars)", ErrInvalidQuery, MaxQueryLength)
	}

	if q.TopK <= 0 {
		q.TopK = DefaultTopK
	}
	if q.TopK > MaxTopK {
		q.TopK = MaxTopK
	}
	if q.CandidatePoolSize <= 0 {
		q.CandidatePoolSize = DefaultPoolSize
	}
	if q.CandidatePoolSize > MaxPoolSize {
		q.CandidatePoolSize = MaxPoolSize
	}
	if q.CandidatePoolSize < q.TopK {
		q.CandidatePoolSize = q.TopK
	}

	return nil
}
