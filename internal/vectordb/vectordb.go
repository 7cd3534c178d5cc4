package vectordb

import (
	"context"
	"fmt"
	"sort"

	"emergency-rag/internal/config"
	"emergency-rag/internal/models"
)

// Entry is one (chunk, vector) pair to persist. The payload stored with
// the vector is the chunk itself; the index is the sole source of truth
// for what has been ingested.
type Entry struct {
	Chunk  models.Chunk
	Vector []float32
}

// Index persists chunk vectors and answers nearest-neighbor queries.
// Upsert is idempotent by chunk ID, which is what makes re-running
// ingestion over an unchanged manual a no-op at the data level.
type Index interface {
	Upsert(ctx context.Context, entries []Entry) error
	Search(ctx context.Context, vector []float32, topK int) ([]models.ScoredChunk, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Model() string
	Close() error
}

// Open opens the backend selected by the config. The model identifier
// is checked against the one the index was built with; dim may be zero
// when the caller has not probed the embedding dimension (query path).
func Open(cfg *config.IndexConfig, model string, dim int) (Index, error) {
	switch cfg.Type {
	case "postgres":
		return openPostgres(cfg, model, dim)
	case "chromem":
		return openChromem(cfg, model, dim)
	default:
		return nil, fmt.Errorf("unknown index type %q", cfg.Type)
	}
}

// sortResults orders by descending score, ties broken by ascending
// chunk ID for determinism, and truncates to topK.
func sortResults(results []models.ScoredChunk, topK int) []models.ScoredChunk {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ChunkID < results[j].Chunk.ChunkID
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}
