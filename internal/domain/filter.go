package domain

// FilterSpec is a structured attribute predicate. Every field is optional:
// a nil bound means unbounded on that side, never zero. Set-valued fields
// are lowercased on construction and on JSON decode.
type FilterSpec struct {
	MinYear           *int      `json:"min_year,omitempty"`
	MaxYear           *int      `json:"max_year,omitempty"`
	MinRating         *float64  `json:"min_rating,omitempty"`
	MaxRating         *float64  `json:"max_rating,omitempty"`
	MinDuration       *int      `json:"min_duration,omitempty"`
	MaxDuration       *int      `json:"max_duration,omitempty"`
	RequiredGenres    StringSet `json:"required_genres,omitempty"`
	ExcludedGenres    StringSet `json:"excluded_genres,omitempty"`
	RequiredLanguages StringSet `json:"required_languages,omitempty"`
	ExcludedLanguages StringSet `json:"excluded_languages,omitempty"`
}

// IsEmpty reports whether no constraint is set. A nil spec is empty.
func (f *FilterSpec) IsEmpty() bool {
	if f == nil {
		return true
	}
	return f.MinYear == nil && f.MaxYear == nil &&
		f.MinRating == nil && f.MaxRating == nil &&
		f.MinDuration == nil && f.MaxDuration == nil &&
		len(f.RequiredGenres) == 0 && len(f.ExcludedGenres) == 0 &&
		len(f.RequiredLanguages) == 0 && len(f.ExcludedLanguages) == 0
}

// Passes evaluates the record against the filter. All six check groups must
// hold: bounds are inclusive with absent bounds treated as ±infinity,
// required sets pass on any intersection (OR semantics), excluded sets fail
// on any intersection. Evaluation never errors; malformed record fields have
// already been coerced to their defaults by ParseRecord.
func (f *FilterSpec) Passes(r *Record) bool {
	if f == nil {
		return true
	}

	if f.MinYear != nil && r.Year < *f.MinYear {
		return false
	}
	if f.MaxYear != nil && r.Year > *f.MaxYear {
		return false
	}
	if f.MinRating != nil && r.Rating < *f.MinRating {
		return false
	}
	if f.MaxRating != nil && r.Rating > *f.MaxRating {
		return false
	}
	if f.MinDuration != nil && r.Duration < *f.MinDuration {
		return false
	}
	if f.MaxDuration != nil && r.Duration > *f.MaxDuration {
		return false
	}

	if len(f.RequiredGenres) > 0 && !r.Genres.Intersects(f.RequiredGenres) {
		return false
	}
	if r.Genres.Intersects(f.ExcludedGenres) {
		return false
	}
	if len(f.RequiredLanguages) > 0 && !r.Languages.Intersects(f.RequiredLanguages) {
		return false
	}
	if r.Languages.Intersects(f.ExcludedLanguages) {
		return false
	}

	return true
}
