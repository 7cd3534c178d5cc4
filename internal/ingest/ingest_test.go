package ingest

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"emergency-rag/internal/chunker"
	"emergency-rag/internal/config"
	"emergency-rag/internal/extractor"
	"emergency-rag/internal/models"
	"emergency-rag/internal/vectordb"
)

// fakeEmbedder maps text to a deterministic bag-of-words vector, so
// identical text always embeds identically. failOn makes batches
// containing that substring fail, simulating retry exhaustion.
type fakeEmbedder struct {
	dim    int
	failOn string
	calls  int
}

func (f *fakeEmbedder) Model() string { return "fake-embed" }

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if f.failOn != "" && strings.Contains(text, f.failOn) {
			return nil, fmt.Errorf("%w: injected failure", models.ErrEmbeddingUnavailable)
		}
		vectors[i] = bagVector(text, f.dim)
	}
	return vectors, nil
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func bagVector(text string, dim int) []float32 {
	vec := make([]float32, dim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,:;!?")
		if w == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%uint32(dim)]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range vec {
			vec[i] /= n
		}
	}
	return vec
}

func writeManual(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manual.txt")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newPipeline(t *testing.T, em *fakeEmbedder, batchSize int) (*Pipeline, vectordb.Index) {
	t.Helper()
	ragCfg := &config.RAGConfig{ChunkSize: 80, ChunkOverlap: 10, MinPageChars: 200, OCRDPI: 300, OCRLanguage: "eng"}
	idxCfg := &config.IndexConfig{Type: "chromem", Path: ":memory:", Collection: "test_chunks"}

	idx, err := vectordb.Open(idxCfg, em.Model(), em.dim)
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	ch, err := chunker.New(ragCfg.ChunkSize, ragCfg.ChunkOverlap)
	if err != nil {
		t.Fatal(err)
	}
	return New(extractor.New(ragCfg), ch, em, idx, batchSize), idx
}

const manualText = "Engine overheating procedure follows here with enough text to span windows.\n" +
	"1. Turn off the engine. 2. Open the hood.\n" +
	"WARNING: Let the engine cool before touching any parts.\n" +
	"Tools needed: gloves, flashlight.\n"

func TestRun_IdempotentIngestion(t *testing.T) {
	ctx := context.Background()
	em := &fakeEmbedder{dim: 64}
	pipeline, idx := newPipeline(t, em, 4)
	defer idx.Close()

	path := writeManual(t, manualText)

	first, err := pipeline.Run(ctx, path)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	countAfterFirst, _ := idx.Count(ctx)

	second, err := pipeline.Run(ctx, path)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	countAfterSecond, _ := idx.Count(ctx)

	if countAfterFirst != countAfterSecond {
		t.Fatalf("re-ingestion changed count: %d vs %d", countAfterFirst, countAfterSecond)
	}
	if first.Indexed != second.Indexed {
		t.Fatalf("re-ingestion changed indexed report: %d vs %d", first.Indexed, second.Indexed)
	}
	if first.Skipped != 0 {
		t.Fatalf("unexpected skips: %d", first.Skipped)
	}
	if countAfterFirst != first.Indexed {
		t.Fatalf("index count %d disagrees with report %d", countAfterFirst, first.Indexed)
	}
}

func TestRun_SkipsFailingBatchAndContinues(t *testing.T) {
	ctx := context.Background()
	em := &fakeEmbedder{dim: 64, failOn: "flashlight"}
	// Batch size 1: only the windows containing the poisoned word skip.
	pipeline, idx := newPipeline(t, em, 1)
	defer idx.Close()

	report, err := pipeline.Run(ctx, writeManual(t, manualText))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Skipped == 0 {
		t.Fatal("expected at least one skipped batch")
	}
	if report.Indexed == 0 {
		t.Fatal("expected the healthy batches to be indexed")
	}
	count, _ := idx.Count(ctx)
	if count != report.Indexed {
		t.Fatalf("index count %d disagrees with report %d", count, report.Indexed)
	}
}

func TestRun_AllBatchesFailing(t *testing.T) {
	ctx := context.Background()
	em := &fakeEmbedder{dim: 64, failOn: "e"} // everything contains an 'e'
	pipeline, idx := newPipeline(t, em, 4)
	defer idx.Close()

	_, err := pipeline.Run(ctx, writeManual(t, manualText))
	if !errors.Is(err, models.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable when every batch fails, got %v", err)
	}
}

func TestRun_DocumentNotFound(t *testing.T) {
	ctx := context.Background()
	em := &fakeEmbedder{dim: 64}
	pipeline, idx := newPipeline(t, em, 4)
	defer idx.Close()

	_, err := pipeline.Run(ctx, filepath.Join(t.TempDir(), "missing.pdf"))
	if !errors.Is(err, models.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestRun_ExactTextIsTopResult(t *testing.T) {
	ctx := context.Background()
	em := &fakeEmbedder{dim: 64}
	pipeline, idx := newPipeline(t, em, 4)
	defer idx.Close()

	if _, err := pipeline.Run(ctx, writeManual(t, manualText)); err != nil {
		t.Fatalf("run: %v", err)
	}

	results, err := idx.Search(ctx, bagVector(manualText[:80], em.dim), 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Score < 0.99 {
		t.Fatalf("querying with an indexed chunk's own text should score ~1, got %f", results[0].Score)
	}
}
