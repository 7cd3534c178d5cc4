package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"emergency-rag/internal/chunker"
	"emergency-rag/internal/embedding"
	"emergency-rag/internal/extractor"
	"emergency-rag/internal/models"
	"emergency-rag/internal/vectordb"
)

// Pipeline orchestrates extract, chunk, embed and upsert. It is not
// transactional: a failed run can be re-run to completion because
// upsert is idempotent by chunk ID.
type Pipeline struct {
	extractor *extractor.Extractor
	chunker   *chunker.Chunker
	embedder  embedding.Embedder
	index     vectordb.Index
	batchSize int
}

func New(ex *extractor.Extractor, ch *chunker.Chunker, em embedding.Embedder, idx vectordb.Index, batchSize int) *Pipeline {
	if batchSize <= 0 {
		batchSize = 16
	}
	return &Pipeline{extractor: ex, chunker: ch, embedder: em, index: idx, batchSize: batchSize}
}

// Run ingests one document. A batch whose embedding fails after retries
// is skipped and logged so a single bad page does not abort the whole
// run; the report distinguishes indexed from skipped chunks. Only when
// every batch fails does the run fail as a whole.
func (p *Pipeline) Run(ctx context.Context, filePath string) (*models.IngestReport, error) {
	pages, err := p.extractor.Extract(filePath)
	if err != nil {
		return nil, err
	}
	log.Info().Int("pages", len(pages)).Str("file", filePath).Msg("Extracted document")

	chunks := p.chunker.Chunk(pages)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: document produced no chunks", models.ErrExtraction)
	}
	log.Info().Int("chunks", len(chunks)).Msg("Chunked document")

	report := &models.IngestReport{Pages: len(pages)}
	var lastErr error
	for start := 0; start < len(chunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := p.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			report.Skipped += len(batch)
			log.Warn().Err(err).
				Str("first_chunk", batch[0].ChunkID).Int("size", len(batch)).
				Msg("Skipping batch, embedding failed")
			continue
		}

		entries := make([]vectordb.Entry, len(batch))
		for i := range batch {
			entries[i] = vectordb.Entry{Chunk: batch[i], Vector: vectors[i]}
		}
		if err := p.index.Upsert(ctx, entries); err != nil {
			// Index failures are storage problems, not page problems;
			// continuing would lose data silently.
			return nil, err
		}
		report.Indexed += len(batch)
	}

	if report.Indexed == 0 {
		return nil, fmt.Errorf("%w: every batch failed: %v", models.ErrEmbeddingUnavailable, lastErr)
	}

	log.Info().Int("indexed", report.Indexed).Int("skipped", report.Skipped).
		Msg("Ingestion finished")
	return report, nil
}
