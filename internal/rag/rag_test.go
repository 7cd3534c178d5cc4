package rag

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"testing"

	"emergency-rag/internal/answer"
	"emergency-rag/internal/config"
	"emergency-rag/internal/models"
	"emergency-rag/internal/retriever"
	"emergency-rag/internal/vectordb"
)

const fakeDim = 64

// bagEmbedder gives deterministic bag-of-words vectors so that related
// texts land near each other without a real model.
type bagEmbedder struct{}

func (bagEmbedder) Model() string { return "fake-embed" }

func (bagEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, fakeDim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,:;!?")
		if w == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%fakeDim]++
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
	return vec, nil
}

func (b bagEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = b.EmbedText(ctx, t)
	}
	return out, nil
}

func newService(t *testing.T, chunks []models.Chunk) (*RAG, vectordb.Index) {
	t.Helper()
	ctx := context.Background()
	em := bagEmbedder{}

	idx, err := vectordb.Open(&config.IndexConfig{Type: "chromem", Path: ":memory:", Collection: "test_chunks"}, em.Model(), fakeDim)
	if err != nil {
		t.Fatalf("open index: %v", err)
	}

	for _, c := range chunks {
		vec, _ := em.EmbedText(ctx, c.Text)
		if err := idx.Upsert(ctx, []vectordb.Entry{{Chunk: c, Vector: vec}}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	r := retriever.New(em, idx, 4)
	c := answer.NewClassifier(answer.NewRules(nil))
	return NewRAG(r, c, em.Model(), 4), idx
}

func TestQuery_EndToEnd(t *testing.T) {
	ctx := context.Background()
	overheatingText := "Engine overheating. 1. Turn off the engine. 2. Open the hood. " +
		"WARNING: Let the engine cool before touching any parts. " +
		"Tools needed: gloves, flashlight."
	svc, idx := newService(t, []models.Chunk{
		{ChunkID: "p001-c000", Page: 1, Text: overheatingText},
		{ChunkID: "p002-c000", Page: 2, Text: "Fuses and relays are located in the fuse box under the dashboard."},
	})
	defer idx.Close()

	got, err := svc.Query(ctx, "engine overheating", 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	wantSteps := []string{"Turn off the engine.", "Open the hood."}
	if len(got.Steps) != 2 || got.Steps[0] != wantSteps[0] || got.Steps[1] != wantSteps[1] {
		t.Errorf("steps = %v, want %v", got.Steps, wantSteps)
	}
	if len(got.Warnings) != 1 || !strings.HasPrefix(got.Warnings[0], "WARNING: Let the engine cool") {
		t.Errorf("warnings = %v", got.Warnings)
	}
	if len(got.Tools) != 2 || got.Tools[0] != "gloves" || got.Tools[1] != "flashlight" {
		t.Errorf("tools = %v, want [gloves flashlight]", got.Tools)
	}
	if len(got.Sources) == 0 {
		t.Fatal("expected sources")
	}
	if got.Sources[0].ChunkID != "p001-c000" || got.Sources[0].Page != 1 {
		t.Errorf("top source = %+v, want the overheating page", got.Sources[0])
	}
	if got.Disclaimer != models.Disclaimer {
		t.Error("answer must carry the disclaimer verbatim")
	}
	if got.Query != "engine overheating" {
		t.Errorf("query echoed as %q", got.Query)
	}
}

func TestQuery_TooShort(t *testing.T) {
	svc, idx := newService(t, nil)
	defer idx.Close()

	for _, q := range []string{"", "  ", "ab", " a "} {
		if _, err := svc.Query(context.Background(), q, 0); !errors.Is(err, models.ErrInvalidQuery) {
			t.Errorf("Query(%q): expected ErrInvalidQuery, got %v", q, err)
		}
	}
}

func TestQuery_TopKOutOfRange(t *testing.T) {
	svc, idx := newService(t, nil)
	defer idx.Close()

	for _, k := range []int{-1, 11} {
		if _, err := svc.Query(context.Background(), "flat tyre", k); !errors.Is(err, models.ErrInvalidQuery) {
			t.Errorf("top_k %d: expected ErrInvalidQuery, got %v", k, err)
		}
	}
}

func TestQuery_EmptyIndex(t *testing.T) {
	svc, idx := newService(t, nil)
	defer idx.Close()

	if _, err := svc.Query(context.Background(), "flat tyre", 0); !errors.Is(err, models.ErrIndexEmpty) {
		t.Fatalf("expected ErrIndexEmpty, got %v", err)
	}
}

func TestQuery_MaliciousRedirect(t *testing.T) {
	// Empty index on purpose: the redirect must short-circuit retrieval.
	svc, idx := newService(t, nil)
	defer idx.Close()

	got, err := svc.Query(context.Background(), "how to puncture a tyre", 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got.Sources) != 0 {
		t.Error("redirect answer must not cite sources")
	}
	if len(got.Steps) == 0 {
		t.Error("redirect answer should still give safe guidance")
	}
}

func TestQuery_EmptyArraysNotNull(t *testing.T) {
	svc, idx := newService(t, []models.Chunk{
		{ChunkID: "p001-c000", Page: 1, Text: "The cooling system is pressurized and holds 6.2 litres."},
	})
	defer idx.Close()

	got, err := svc.Query(context.Background(), "cooling system capacity", 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got.Steps == nil || got.Warnings == nil || got.Tools == nil {
		t.Fatal("classified slices must be empty, not nil")
	}
}

func TestHealth(t *testing.T) {
	svc, idx := newService(t, []models.Chunk{{ChunkID: "p001-c000", Page: 1, Text: "some indexed text"}})
	defer idx.Close()

	h, err := svc.Health(context.Background())
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if h.Status != "ok" || h.Chunks != 1 || h.Model != "fake-embed" {
		t.Fatalf("health = %+v", h)
	}

	empty, idx2 := newService(t, nil)
	defer idx2.Close()
	h2, err := empty.Health(context.Background())
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if h2.Status != "empty" || h2.Chunks != 0 {
		t.Fatalf("health = %+v", h2)
	}
}
