package domain

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Indexed record field names, shared between the managed-store schema,
// filter translation, and record parsing.
const (
	FieldTitle       = "title"
	FieldYear        = "year"
	FieldRating      = "rating"
	FieldDuration    = "duration"
	FieldGenres      = "genres"
	FieldLanguages   = "languages"
	FieldDescription = "description"
	FieldEmbedding   = "embedding"
)

// Record is a single content item. Records are immutable during a query;
// they are produced by an external ingestion process and owned by whichever
// backend stores them.
type Record struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Year        int       `json:"year"`
	Rating      float64   `json:"rating"`
	Duration    int       `json:"duration"`
	Genres      StringSet `json:"genres"`
	Languages   StringSet `json:"languages"`
	Description string    `json:"description"`
	Embedding   []float32 `json:"-"`
}

// ParseRecord builds a Record from raw string fields (a store hash or a
// metadata table row). Coercion is total: unparsable numerics degrade to
// zero and unparsable collections to the empty set, never to an error.
func ParseRecord(id string, fields map[string]string) Record {
	return Record{
		ID:          id,
		Title:       fields[FieldTitle],
		Year:        CoerceInt(fields[FieldYear]),
		Rating:      CoerceFloat(fields[FieldRating]),
		Duration:    CoerceInt(fields[FieldDuration]),
		Genres:      ParseStringSet(fields[FieldGenres]),
		Languages:   ParseStringSet(fields[FieldLanguages]),
		Description: fields[FieldDescription],
	}
}

// CoerceInt parses s as an integer, accepting a trailing fraction
// ("1999.0"). Anything unparsable coerces to 0.
func CoerceInt(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return int(f)
	}
	return 0
}

// CoerceFloat parses s as a finite float. Unparsable or non-finite input
// coerces to 0.
func CoerceFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// StringSet is a set of lowercase strings.
type StringSet map[string]struct{}

// NewStringSet builds a set from values, lowercasing and trimming each.
func NewStringSet(values ...string) StringSet {
	s := make(StringSet, len(values))
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts a value, lowercased. Empty strings are ignored.
func (s StringSet) Add(v string) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v != "" {
		s[v] = struct{}{}
	}
}

// Contains reports membership of the lowercased value.
func (s StringSet) Contains(v string) bool {
	_, ok := s[strings.ToLower(v)]
	return ok
}

// Intersects reports whether the two sets share any element.
func (s StringSet) Intersects(other StringSet) bool {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	for v := range small {
		if _, ok := large[v]; ok {
			return true
		}
	}
	return false
}

// Values returns the sorted elements.
func (s StringSet) Values() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}

// UnmarshalJSON accepts either an array of strings or a single serialized
// collection string. Any parse failure yields the empty set.
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err == nil {
		*s = NewStringSet(values...)
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*s = ParseStringSet(raw)
		return nil
	}
	*s = StringSet{}
	return nil
}

// ParseStringSet parses a serialized collection defensively. It accepts a
// JSON array ( ["a","b"] ), a single-quoted list literal ( ['a', 'b'] ), or
// a comma/pipe-separated string. A bracketed value that fails to parse is
// discarded entirely rather than split apart.
func ParseStringSet(raw string) StringSet {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return StringSet{}
	}

	if strings.HasPrefix(raw, "[") {
		candidate := raw
		if !strings.Contains(raw, `"`) {
			candidate = strings.ReplaceAll(raw, "'", `"`)
		}
		var values []string
		if err := json.Unmarshal([]byte(candidate), &values); err != nil {
			return StringSet{}
		}
		return NewStringSet(values...)
	}

	sep := ","
	if !strings.Contains(raw, ",") && strings.Contains(raw, "|") {
		sep = "|"
	}
	return NewStringSet(strings.Split(raw, sep)...)
}

// Tokenize splits text into lowercase terms, trimming surrounding
// punctuation. Used by the lexical fallback on both backend variants.
func Tokenize(text string) []string {
	words := strings.Fields(text)
	out := make([]string, 0, len(words))
	for _, w := range words {
		cleaned := strings.ToLower(strings.Trim(w, ".,!?;:'\"-()[]{}"))
		if cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}
