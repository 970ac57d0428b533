// Package dataset reads and writes the movie metadata parquet files used by
// the loader and the local index backend.
package dataset

import (
	"fmt"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/kailas-cloud/cinedex/internal/domain"
)

// Row is one movie record as stored in parquet. All columns are strings:
// upstream dumps carry junk like "N/A" in numeric columns, and coercion
// rules live in domain.ParseRecord, not in the file format.
type Row struct {
	ID          string `parquet:"id,optional"`
	Title       string `parquet:"title,optional"`
	Year        string `parquet:"year,optional"`
	Rating      string `parquet:"rating,optional"`
	Duration    string `parquet:"duration,optional"`
	Genres      string `parquet:"genres,optional"`
	Languages   string `parquet:"languages,optional"`
	Description string `parquet:"description,optional"`
}

// Fields returns the row as the field map domain.ParseRecord consumes.
func (r Row) Fields() map[string]string {
	return map[string]string{
		domain.FieldTitle:       r.Title,
		domain.FieldYear:        r.Year,
		domain.FieldRating:      r.Rating,
		domain.FieldDuration:    r.Duration,
		domain.FieldGenres:      r.Genres,
		domain.FieldLanguages:   r.Languages,
		domain.FieldDescription: r.Description,
	}
}

// Record parses the row into a domain record.
func (r Row) Record() domain.Record {
	return domain.ParseRecord(r.ID, r.Fields())
}

// ReadFile reads all rows from a parquet file.
func ReadFile(path string) ([]Row, error) {
	rows, err := parquet.ReadFile[Row](filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return rows, nil
}

// WriteFile writes rows to a parquet file, replacing any existing content.
func WriteFile(path string, rows []Row) error {
	if err := parquet.WriteFile(filepath.Clean(path), rows); err != nil {
		return fmt.Errorf("write parquet %s: %w", path, err)
	}
	return nil
}
