package retriever

import (
	"context"
	"fmt"

	"emergency-rag/internal/embedding"
	"emergency-rag/internal/models"
	"emergency-rag/internal/vectordb"
)

// Retriever embeds a query and searches the vector index, returning the
// scored chunks unmodified. It holds injected references to the
// embedder and index; lifecycle belongs to the caller.
type Retriever struct {
	embedder embedding.Embedder
	index    vectordb.Index
	topK     int
}

func New(em embedding.Embedder, idx vectordb.Index, topK int) *Retriever {
	if topK <= 0 {
		topK = 4
	}
	return &Retriever{embedder: em, index: idx, topK: topK}
}

// Retrieve returns the topK most similar chunks. topK zero uses the
// configured default. An empty index is a state error so the caller can
// say "run ingestion first" instead of returning nothing.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]models.ScoredChunk, error) {
	if topK <= 0 {
		topK = r.topK
	}

	count, err := r.index.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: run ingestion first", models.ErrIndexEmpty)
	}

	vector, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}

	return r.index.Search(ctx, vector, topK)
}

// Count exposes the index entry count for health reporting.
func (r *Retriever) Count(ctx context.Context) (int, error) {
	return r.index.Count(ctx)
}
