package domain

// Candidate is one retrieved row from a backend's candidate pool, before
// rank-filter scoring. Similarity is against the positive query vector.
// Vector is the stored embedding, needed for negative-query scoring.
type Candidate struct {
	ID         string
	Similarity float64
	Vector     []float32
	Record     Record
}
