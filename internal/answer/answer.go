package answer

import (
	"regexp"
	"strings"

	"emergency-rag/internal/models"
)

// Classifier turns retrieved chunks into categorized guidance using the
// rule table alone. It never touches the embedder or the index, which
// keeps it testable as pure text processing.
type Classifier struct {
	rules *Rules
}

func NewClassifier(rules *Rules) *Classifier {
	return &Classifier{rules: rules}
}

// Classify walks the chunks in retrieval rank order and the segments in
// text order within each chunk, so the most relevant chunk's steps
// lead. Steps and warnings are deduplicated by normalized text because
// overlapping windows repeat lines. A segment may land in more than one
// category; segments matching no rule are discarded.
func (c *Classifier) Classify(results []models.ScoredChunk) (steps, warnings, tools []string) {
	seenSteps := make(map[string]struct{})
	seenWarnings := make(map[string]struct{})

	var allText strings.Builder
	for _, r := range results {
		allText.WriteString(r.Chunk.Text)
		allText.WriteString(" ")

		for _, segment := range segments(r.Chunk.Text) {
			if step, ok := c.rules.MatchStep(segment); ok {
				key := Normalize(step)
				if _, dup := seenSteps[key]; !dup {
					seenSteps[key] = struct{}{}
					steps = append(steps, step)
				}
			}
			if c.rules.MatchWarning(segment) {
				key := Normalize(segment)
				if _, dup := seenWarnings[key]; !dup && len(warnings) < c.rules.maxWarnings {
					seenWarnings[key] = struct{}{}
					warnings = append(warnings, segment)
				}
			}
		}
	}

	tools = c.rules.ToolsIn(allText.String())
	return steps, warnings, tools
}

var sentenceEnd = regexp.MustCompile(`[.!?]\s+`)

// segments splits chunk text into classifiable units: lines first, then
// sentences within a line. A period that terminates an ordinal marker
// ("2. Open the hood.") does not end a sentence, so numbered steps that
// share a line stay intact.
func segments(text string) []string {
	var segs []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		segs = append(segs, splitSentences(line)...)
	}
	return segs
}

func splitSentences(line string) []string {
	var segs []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(line, -1) {
		p := loc[0]
		q := p
		for q > start && line[q-1] >= '0' && line[q-1] <= '9' {
			q--
		}
		if q < p && (q == start || line[q-1] == ' ') {
			// Ordinal marker, keep it attached to its step text.
			continue
		}
		if seg := strings.TrimSpace(line[start:loc[1]]); seg != "" {
			segs = append(segs, seg)
		}
		start = loc[1]
	}
	if seg := strings.TrimSpace(line[start:]); seg != "" {
		segs = append(segs, seg)
	}
	return segs
}

// Sources converts scored chunks to their wire form, most relevant
// first, preserving the retriever's ordering.
func Sources(results []models.ScoredChunk) []models.Source {
	sources := make([]models.Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, models.Source{
			ID:      r.Chunk.ChunkID,
			Page:    r.Chunk.Page,
			ChunkID: r.Chunk.ChunkID,
			Text:    r.Chunk.Text,
			Score:   r.Score,
		})
	}
	return sources
}
