package chunker

import (
	"fmt"

	"emergency-rag/internal/models"
)

// Chunker slides a fixed-size window with overlap across each page's
// text. Windows never span a page boundary, so page attribution of
// every chunk is exact, and the ordering (page ascending, then start
// offset ascending) makes chunk IDs reproducible across runs.
type Chunker struct {
	size    int
	overlap int
}

// New validates the window configuration. Overlap must be strictly
// smaller than the chunk size or the window cannot advance.
func New(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap must be in [0, chunk size), got %d", overlap)
	}
	return &Chunker{size: chunkSize, overlap: overlap}, nil
}

// Chunk emits one chunk per window over every page. The last window on
// a page may be shorter than the configured size; no padding.
func (c *Chunker) Chunk(pages []models.PageText) []models.Chunk {
	var chunks []models.Chunk
	for _, page := range pages {
		chunks = append(chunks, c.chunkPage(page)...)
	}
	return chunks
}

func (c *Chunker) chunkPage(page models.PageText) []models.Chunk {
	runes := []rune(page.Text)
	if len(runes) == 0 {
		return nil
	}

	step := c.size - c.overlap
	var chunks []models.Chunk
	for start, seq := 0, 0; start < len(runes); start, seq = start+step, seq+1 {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		text := string(runes[start:end])
		if !isBlank(text) {
			chunks = append(chunks, models.Chunk{
				ChunkID: ChunkID(page.Page, seq),
				Page:    page.Page,
				Text:    text,
				Start:   start,
				End:     end,
			})
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// ChunkID derives the stable identifier for the seq-th window of a page.
func ChunkID(page, seq int) string {
	return fmt.Sprintf("p%03d-c%03d", page, seq)
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
