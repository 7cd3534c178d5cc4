package vectordb

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	"emergency-rag/internal/config"
	"emergency-rag/internal/helper"
	"emergency-rag/internal/models"
)

const compress = false

// ChromemIndex is the default local index: a chromem-go persistent DB
// with cosine similarity, no external service required. The special
// path ":memory:" keeps everything in memory, which the tests use.
type ChromemIndex struct {
	mu         sync.Mutex
	db         *chromem.DB
	collection *chromem.Collection
	path       string
	name       string
	inMemory   bool
	model      string
}

func openChromem(cfg *config.IndexConfig, model string, dim int) (*ChromemIndex, error) {
	inMemory := cfg.Path == ":memory:"

	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		if err := helper.CreateFolder(cfg.Path); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrIndexUnavailable, err)
		}
		db, err = chromem.NewPersistentDB(cfg.Path, compress)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to open %s: %v", models.ErrIndexUnavailable, cfg.Path, err)
		}
	}

	idx := &ChromemIndex{
		db:       db,
		path:     cfg.Path,
		name:     cfg.Collection,
		inMemory: inMemory,
		model:    model,
	}

	if !inMemory {
		manifest, err := loadManifest(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrIndexUnavailable, err)
		}
		if manifest != nil {
			if err := manifest.check(model, dim); err != nil {
				return nil, err
			}
			idx.model = manifest.Model
		} else {
			m := &Manifest{Model: model, Dimension: dim, CreatedAt: time.Now().UTC()}
			if err := saveManifest(cfg.Path, m); err != nil {
				return nil, fmt.Errorf("%w: %v", models.ErrIndexUnavailable, err)
			}
		}
	}

	c, err := db.GetOrCreateCollection(cfg.Collection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open collection %s: %v", models.ErrIndexUnavailable, cfg.Collection, err)
	}
	idx.collection = c
	return idx, nil
}

func (x *ChromemIndex) Model() string { return x.model }

// Upsert adds or replaces entries by chunk ID. The chromem document ID
// is a deterministic UUID derived from the chunk ID, so re-ingesting
// the same chunk replaces rather than duplicates it.
func (x *ChromemIndex) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	docs := make([]chromem.Document, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, chromem.Document{
			ID:        pointID(e.Chunk.ChunkID),
			Content:   e.Chunk.Text,
			Embedding: e.Vector,
			Metadata: map[string]string{
				"chunk_id": e.Chunk.ChunkID,
				"page":     strconv.Itoa(e.Chunk.Page),
			},
		})
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

func (x *ChromemIndex) Search(ctx context.Context, vector []float32, topK int) ([]models.ScoredChunk, error) {
	count := x.collection.Count()
	if count == 0 {
		return nil, nil
	}
	n := topK
	if n > count {
		n = count
	}

	raw, err := x.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: vector,
		NResults:       n,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	results := make([]models.ScoredChunk, 0, len(raw))
	for _, r := range raw {
		page, _ := strconv.Atoi(r.Metadata["page"])
		results = append(results, models.ScoredChunk{
			Chunk: models.Chunk{
				ChunkID: r.Metadata["chunk_id"],
				Page:    page,
				Text:    r.Content,
			},
			Score: float64(r.Similarity),
		})
	}
	return sortResults(results, topK), nil
}

func (x *ChromemIndex) Count(ctx context.Context) (int, error) {
	return x.collection.Count(), nil
}

// Clear drops and recreates the collection. The manifest stays; a full
// re-ingestion with the same model may follow.
func (x *ChromemIndex) Clear(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.db.DeleteCollection(x.name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	c, err := x.db.GetOrCreateCollection(x.name, nil, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to recreate collection: %v", models.ErrIndexUnavailable, err)
	}
	x.collection = c
	return nil
}

func (x *ChromemIndex) Close() error { return nil }

// pointID derives a stable UUID from a chunk ID, the same way the
// chunk IDs themselves derive from page and window position.
func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("emergency-rag/"+chunkID)).String()
}
