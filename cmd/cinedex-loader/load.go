package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cinedex/internal/config"
	"github.com/kailas-cloud/cinedex/internal/db"
	dbRedis "github.com/kailas-cloud/cinedex/internal/db/redis"
	"github.com/kailas-cloud/cinedex/internal/domain"
	"github.com/kailas-cloud/cinedex/internal/embedding"
	"github.com/kailas-cloud/cinedex/internal/repository/dataset"
	"github.com/kailas-cloud/cinedex/internal/repository/localindex"
	openaiTransport "github.com/kailas-cloud/cinedex/internal/transport/openai"
)

var (
	flagBackend   string
	flagDataset   string
	flagBatchSize int
	flagReplace   bool
)

const hsetChunkSize = 100

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Embed a parquet dataset and write it into one backend",
	RunE: func(cmd *cobra.Command, _ []string) error {
		bcfg, ok := globalConfig.Backends[flagBackend]
		if !ok {
			return fmt.Errorf("backend %q is not configured", flagBackend)
		}

		rows, err := dataset.ReadFile(flagDataset)
		if err != nil {
			return err
		}
		globalLogger.Info("Dataset read",
			zap.String("path", flagDataset), zap.Int("rows", len(rows)))

		// Rows without an ID cannot be addressed later; drop them up front.
		kept := rows[:0]
		for _, row := range rows {
			if row.ID != "" {
				kept = append(kept, row)
			}
		}
		if dropped := len(rows) - len(kept); dropped > 0 {
			globalLogger.Warn("Dropped rows without an id", zap.Int("count", dropped))
		}
		rows = kept

		ctx := cmd.Context()
		embedder := buildLoaderEmbedder(bcfg, globalConfig, globalLogger)

		vectors, err := embedRows(ctx, embedder, rows, flagBatchSize)
		if err != nil {
			return err
		}

		switch bcfg.Type {
		case "local":
			return writeLocalIndex(bcfg, rows, vectors)
		case "redis":
			return writeRedisIndex(ctx, bcfg, globalConfig, rows, vectors)
		default:
			return fmt.Errorf("backend %q has unknown type %q", flagBackend, bcfg.Type)
		}
	},
}

func init() {
	loadCmd.Flags().StringVar(&flagBackend, "backend", "", "backend name from the config")
	loadCmd.Flags().StringVar(&flagDataset, "dataset", "", "path to the movie metadata parquet file")
	loadCmd.Flags().IntVar(&flagBatchSize, "batch-size", 64, "records embedded per provider call")
	loadCmd.Flags().BoolVar(&flagReplace, "replace", false, "drop an existing search index before loading")
	_ = loadCmd.MarkFlagRequired("backend")
	_ = loadCmd.MarkFlagRequired("dataset")
}

func buildLoaderEmbedder(bcfg config.BackendConfig, cfg config.Config, logger *zap.Logger) domain.Embedder {
	if bcfg.Provider == "local" {
		return embedding.NewHashEmbedder(bcfg.Dimensions)
	}

	provCfg := cfg.Embedding.Providers[bcfg.Provider]
	return openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     provCfg.APIKey,
		BaseURL:    provCfg.BaseURL,
		Model:      bcfg.Model,
		Dimensions: bcfg.Dimensions,
		Provider:   bcfg.Provider,
		Logger:     logger,
	})
}

// embedText is the canonical document text: title plus description, so that
// both contribute to the stored vector.
func embedText(row dataset.Row) string {
	text := strings.TrimSpace(row.Title)
	if desc := strings.TrimSpace(row.Description); desc != "" {
		if text != "" {
			text += ". "
		}
		text += desc
	}
	return text
}

func embedRows(
	ctx context.Context, embedder domain.Embedder, rows []dataset.Row, batchSize int,
) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = 64
	}

	texts := make([]string, len(rows))
	for i, row := range rows {
		texts[i] = embedText(row)
	}

	vectors := make([][]float32, 0, len(texts))
	start := time.Now()
	for lo := 0; lo < len(texts); lo += batchSize {
		hi := lo + batchSize
		if hi > len(texts) {
			hi = len(texts)
		}

		var res domain.BatchEmbeddingResult
		var err error
		if be, ok := embedder.(domain.BatchEmbedder); ok {
			res, err = be.BatchEmbed(ctx, texts[lo:hi])
		} else {
			res, err = domain.BatchFallback(ctx, embedder, texts[lo:hi])
		}
		if err != nil {
			return nil, fmt.Errorf("embed rows %d..%d: %w", lo, hi, err)
		}
		vectors = append(vectors, res.Embeddings...)

		globalLogger.Info("Embedded batch",
			zap.Int("done", hi),
			zap.Int("total", len(texts)),
			zap.Int("tokens", res.TotalTokens),
			zap.Duration("elapsed", time.Since(start)),
		)
	}

	return vectors, nil
}

func writeLocalIndex(bcfg config.BackendConfig, rows []dataset.Row, vectors [][]float32) error {
	dir := bcfg.IndexDir
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}

	if err := localindex.WriteVectors(dir+"/"+localindex.VectorsFile, vectors); err != nil {
		return err
	}
	if err := localindex.WriteIDs(dir+"/"+localindex.IDsFile, ids); err != nil {
		return err
	}
	if err := dataset.WriteFile(dir+"/"+localindex.MetadataFile, rows); err != nil {
		return err
	}

	globalLogger.Info("Local index written",
		zap.String("dir", dir), zap.Int("records", len(rows)))
	return nil
}

func writeRedisIndex(
	ctx context.Context,
	bcfg config.BackendConfig,
	cfg config.Config,
	rows []dataset.Row,
	vectors [][]float32,
) error {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}

	if flagReplace {
		exists, err := store.IndexExists(ctx, bcfg.IndexName)
		if err != nil {
			return fmt.Errorf("check index: %w", err)
		}
		if exists {
			if err := store.DropIndex(ctx, bcfg.IndexName); err != nil {
				return fmt.Errorf("drop index: %w", err)
			}
			globalLogger.Info("Dropped existing index", zap.String("index", bcfg.IndexName))
		}
	}

	err = store.CreateIndex(ctx, movieIndexDefinition(bcfg, cfg.Index))
	switch {
	case errors.Is(err, db.ErrIndexExists):
		globalLogger.Info("Index already exists, keeping it", zap.String("index", bcfg.IndexName))
	case err != nil:
		return fmt.Errorf("create index: %w", err)
	default:
		globalLogger.Info("Index created", zap.String("index", bcfg.IndexName))
	}

	items := make([]db.HashSetItem, len(rows))
	for i, row := range rows {
		fields := storageFields(row)
		fields[domain.FieldEmbedding] = db.VectorToBytes(vectors[i])
		items[i] = db.HashSetItem{Key: bcfg.KeyPrefix + row.ID, Fields: fields}
	}

	for lo := 0; lo < len(items); lo += hsetChunkSize {
		hi := lo + hsetChunkSize
		if hi > len(items) {
			hi = len(items)
		}
		if err := store.HSetMulti(ctx, items[lo:hi]); err != nil {
			return fmt.Errorf("write records %d..%d: %w", lo, hi, err)
		}
	}

	globalLogger.Info("Records written",
		zap.String("prefix", bcfg.KeyPrefix), zap.Int("records", len(items)))
	return nil
}

// storageFields normalizes raw dataset values into the representation the
// FT schema indexes: numerics as plain digits, tag sets lowercased and
// comma-joined. Raw list literals like "['sci-fi']" would otherwise become
// a single unmatchable tag, and values like "N/A" in a NUMERIC field make
// the server skip the whole document.
func storageFields(row dataset.Row) map[string]string {
	rec := row.Record()
	return map[string]string{
		domain.FieldTitle:       rec.Title,
		domain.FieldYear:        strconv.Itoa(rec.Year),
		domain.FieldRating:      strconv.FormatFloat(rec.Rating, 'f', -1, 64),
		domain.FieldDuration:    strconv.Itoa(rec.Duration),
		domain.FieldGenres:      strings.Join(rec.Genres.Values(), ","),
		domain.FieldLanguages:   strings.Join(rec.Languages.Values(), ","),
		domain.FieldDescription: rec.Description,
	}
}

func movieIndexDefinition(bcfg config.BackendConfig, idx config.IndexConfig) *db.IndexDefinition {
	return &db.IndexDefinition{
		Name:     bcfg.IndexName,
		Prefixes: []string{bcfg.KeyPrefix},
		Fields: []db.IndexField{
			{Name: domain.FieldTitle, Type: db.IndexFieldText},
			{Name: domain.FieldDescription, Type: db.IndexFieldText},
			{Name: domain.FieldYear, Type: db.IndexFieldNumeric},
			{Name: domain.FieldRating, Type: db.IndexFieldNumeric},
			{Name: domain.FieldDuration, Type: db.IndexFieldNumeric},
			{Name: domain.FieldGenres, Type: db.IndexFieldTag, TagSeparator: ","},
			{Name: domain.FieldLanguages, Type: db.IndexFieldTag, TagSeparator: ","},
			{
				Name:              domain.FieldEmbedding,
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         bcfg.Dimensions,
				VectorDistance:    db.DistanceCosine,
				VectorM:           idx.HNSWM,
				VectorEFConstruct: idx.HNSWEFConstruct,
			},
		},
	}
}
