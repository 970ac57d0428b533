// Package localindex serves candidate retrieval from index artifacts on
// disk: a flat float32 vector file, an id list, and a metadata parquet.
// Search is an exact inner-product scan, no ANN structures involved.
package localindex

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cinedex/internal/domain"
	"github.com/kailas-cloud/cinedex/internal/repository/dataset"
)

// Artifact file names inside the index directory.
const (
	VectorsFile  = "vectors.bin"
	IDsFile      = "ids.json"
	MetadataFile = "metadata.parquet"
)

// Config holds local index settings.
type Config struct {
	Name       string
	Dir        string
	Dimensions int
	Embedder   domain.Embedder
	Logger     *zap.Logger
}

// Index is an in-memory flat vector index over a movie corpus.
type Index struct {
	name      string
	dim       int
	ids       []string
	vectors   []float32 // len(ids) * dim, row-major
	records   []domain.Record
	positions map[string]int
	embedder  domain.Embedder
	logger    *zap.Logger
}

// Load reads the index artifacts from cfg.Dir into memory.
func Load(cfg *Config) (*Index, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}

	ids, err := loadIDs(filepath.Join(cfg.Dir, IDsFile))
	if err != nil {
		return nil, err
	}

	vectors, err := loadVectors(filepath.Join(cfg.Dir, VectorsFile))
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(ids)*cfg.Dimensions {
		return nil, fmt.Errorf("vector file holds %d floats, want %d (%d ids x %d dims)",
			len(vectors), len(ids)*cfg.Dimensions, len(ids), cfg.Dimensions)
	}

	records, err := loadRecords(filepath.Join(cfg.Dir, MetadataFile), ids)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("Local index loaded",
		zap.String("backend", cfg.Name),
		zap.String("dir", cfg.Dir),
		zap.Int("rows", len(ids)),
		zap.Int("dimensions", cfg.Dimensions),
	)

	positions := make(map[string]int, len(ids))
	for i, id := range ids {
		positions[id] = i
	}

	return &Index{
		name:      cfg.Name,
		dim:       cfg.Dimensions,
		ids:       ids,
		vectors:   vectors,
		records:   records,
		positions: positions,
		embedder:  cfg.Embedder,
		logger:    logger,
	}, nil
}

// Name returns the backend name.
func (x *Index) Name() string { return x.name }

// Embedder returns the embedder this corpus was built with.
func (x *Index) Embedder() domain.Embedder { return x.embedder }

// Len returns the number of indexed rows.
func (x *Index) Len() int { return len(x.ids) }

// Lookup fetches a single record by id.
func (x *Index) Lookup(_ context.Context, id string) (domain.Record, error) {
	pos, ok := x.positions[id]
	if !ok {
		return domain.Record{}, fmt.Errorf("%q: %w", id, domain.ErrRecordNotFound)
	}
	return x.records[pos], nil
}

// SearchCandidates scans the whole corpus by inner product and returns the
// pool highest-scoring rows. Attribute filters are not pushed down here;
// the ranking layer applies them to the returned candidates.
func (x *Index) SearchCandidates(
	ctx context.Context, vector []float32, pool int, _ *domain.FilterSpec,
) ([]domain.Candidate, error) {
	if len(vector) != x.dim {
		return nil, fmt.Errorf("query vector has %d dims, index has %d", len(vector), x.dim)
	}
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // context cancellation passes through
	}

	type scored struct {
		pos int
		sim float64
	}
	all := make([]scored, len(x.ids))
	for i := range x.ids {
		all[i] = scored{pos: i, sim: x.dot(i, vector)}
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].sim > all[j].sim })

	if pool > len(all) {
		pool = len(all)
	}

	candidates := make([]domain.Candidate, pool)
	for i := 0; i < pool; i++ {
		pos := all[i].pos
		candidates[i] = domain.Candidate{
			ID:         x.ids[pos],
			Similarity: all[i].sim,
			Vector:     x.row(pos),
			Record:     x.records[pos],
		}
	}
	return candidates, nil
}

// LexicalSearch scans records in storage order and returns up to topK rows
// whose text or tags mention any query token and that pass the filter.
func (x *Index) LexicalSearch(
	_ context.Context, query string, f *domain.FilterSpec, topK int,
) ([]domain.Record, error) {
	tokens := domain.Tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	var out []domain.Record
	for i := range x.records {
		r := &x.records[i]
		if !matchesTokens(r, tokens) {
			continue
		}
		if !f.Passes(r) {
			continue
		}
		out = append(out, *r)
		if len(out) >= topK {
			break
		}
	}
	return out, nil
}

func matchesTokens(r *domain.Record, tokens []string) bool {
	title := strings.ToLower(r.Title)
	desc := strings.ToLower(r.Description)
	for _, tok := range tokens {
		if strings.Contains(title, tok) || strings.Contains(desc, tok) {
			return true
		}
		if r.Genres.Contains(tok) || r.Languages.Contains(tok) {
			return true
		}
	}
	return false
}

// dot computes the inner product of row i against the query vector.
func (x *Index) dot(i int, vector []float32) float64 {
	row := x.vectors[i*x.dim : (i+1)*x.dim]
	var sum float64
	for j, v := range row {
		sum += float64(v) * float64(vector[j])
	}
	return sum
}

// row returns the stored vector for row i. Callers must not mutate it.
func (x *Index) row(i int) []float32 {
	return x.vectors[i*x.dim : (i+1)*x.dim]
}

func loadIDs(path string) ([]string, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read ids: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("parse ids: %w", err)
	}
	return ids, nil
}

func loadVectors(path string) ([]float32, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read vectors: %w", err)
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("vector file size %d is not a multiple of 4", len(data))
	}
	vectors := make([]float32, len(data)/4)
	for i := range vectors {
		vectors[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vectors, nil
}

// loadRecords reads metadata rows and aligns them with the id list. Rows
// missing from the metadata file become empty records rather than failures.
func loadRecords(path string, ids []string) ([]domain.Record, error) {
	rows, err := dataset.ReadFile(path)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Record, len(rows))
	for _, row := range rows {
		byID[row.ID] = row.Record()
	}

	records := make([]domain.Record, len(ids))
	for i, id := range ids {
		if r, ok := byID[id]; ok {
			records[i] = r
		} else {
			records[i] = domain.Record{ID: id}
		}
	}
	return records, nil
}

// WriteVectors serializes vectors to the flat little-endian file format.
func WriteVectors(path string, vectors [][]float32) error {
	var buf []byte
	for _, vec := range vectors {
		for _, f := range vec {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], math.Float32bits(f))
			buf = append(buf, b[:]...)
		}
	}
	if err := os.WriteFile(filepath.Clean(path), buf, 0o600); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}
	return nil
}

// WriteIDs serializes the id list next to the vector file.
func WriteIDs(path string, ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal ids: %w", err)
	}
	if err := os.WriteFile(filepath.Clean(path), data, 0o600); err != nil {
		return fmt.Errorf("write ids: %w", err)
	}
	return nil
}
