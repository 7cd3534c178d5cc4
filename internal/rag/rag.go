package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"emergency-rag/internal/answer"
	"emergency-rag/internal/models"
	"emergency-rag/internal/retriever"
)

const minQueryLen = 3

// RAG composes the retriever and the classifier into one request cycle.
// It performs no retries of its own; retry policy lives in the
// embedding client.
type RAG struct {
	retriever  *retriever.Retriever
	classifier *answer.Classifier
	model      string
	topK       int
}

func NewRAG(r *retriever.Retriever, c *answer.Classifier, model string, topK int) *RAG {
	return &RAG{retriever: r, classifier: c, model: model, topK: topK}
}

// Query returns the structured answer for one free-text query. topK
// zero uses the configured default; values are clamped to [1, 10].
func (r *RAG) Query(ctx context.Context, query string, topK int) (*models.Answer, error) {
	query = strings.TrimSpace(query)
	if len(query) < minQueryLen {
		return nil, fmt.Errorf("%w: query must be at least %d characters", models.ErrInvalidQuery, minQueryLen)
	}
	if topK < 0 || topK > 10 {
		return nil, fmt.Errorf("%w: top_k must be in [1, 10]", models.ErrInvalidQuery)
	}
	if topK == 0 {
		topK = r.topK
	}

	if answer.IsMalicious(query) {
		log.Warn().Str("query", query).Msg("Redirecting malicious query")
		return answer.SafetyRedirect(query), nil
	}

	results, err := r.retriever.Retrieve(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	steps, warnings, tools := r.classifier.Classify(results)
	return &models.Answer{
		Query:      query,
		Steps:      orEmpty(steps),
		Warnings:   orEmpty(warnings),
		Tools:      orEmpty(tools),
		Sources:    answer.Sources(results),
		Disclaimer: models.Disclaimer,
	}, nil
}

// Health reports whether the index is reachable and populated,
// distinct from plain process liveness.
func (r *RAG) Health(ctx context.Context) (*models.Health, error) {
	count, err := r.retriever.Count(ctx)
	if err != nil {
		return nil, err
	}
	status := "ok"
	if count == 0 {
		status = "empty"
	}
	return &models.Health{Status: status, Chunks: count, Model: r.model}, nil
}

// orEmpty keeps response arrays as [] rather than null on the wire.
func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
