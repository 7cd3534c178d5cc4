package models

// PageText is one extracted page of the source manual, 1-indexed.
type PageText struct {
	Page int
	Text string
}

// Chunk represents a page-bound window of manual text with a stable ID.
// ChunkID is derived from page and window sequence, so re-ingesting the
// same document reproduces the same chunk set.
type Chunk struct {
	ChunkID string `json:"chunk_id"`
	Page    int    `json:"page"`
	Text    string `json:"text"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
}

// ScoredChunk is a retrieved chunk with its similarity score, higher is
// more relevant. Produced per query, never persisted.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Source is the wire form of a scored chunk in a query response.
type Source struct {
	ID      string  `json:"id"`
	Page    int     `json:"page"`
	ChunkID string  `json:"chunk_id"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
}

// Answer is the structured response for one query. Every steps/warnings/
// tools entry is traceable to a chunk in Sources.
type Answer struct {
	Query      string   `json:"query"`
	Steps      []string `json:"steps"`
	Warnings   []string `json:"warnings"`
	Tools      []string `json:"tools"`
	Sources    []Source `json:"sources"`
	Disclaimer string   `json:"disclaimer"`
}

// Health reports index reachability, distinct from process liveness.
type Health struct {
	Status string `json:"status"`
	Chunks int    `json:"chunks"`
	Model  string `json:"model,omitempty"`
}

// IngestReport is the final summary of an ingestion run.
type IngestReport struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Pages   int `json:"pages"`
}

// Disclaimer is attached to every answer.
const Disclaimer = "Information is retrieved from the owner's manual excerpts. " +
	"Always prioritize safety and your local regulations. " +
	"If you are in danger, contact emergency services or roadside assistance."
