package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"emergency-rag/internal/config"
	"emergency-rag/internal/models"
)

// Embedder maps text to fixed-dimension vectors. The same model and
// configuration must be used at ingestion and query time; the vector
// index records Model() so a mismatch fails fast instead of returning
// silently wrong neighbors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// Client wraps a langchaingo embedder with a per-call timeout and
// bounded exponential-backoff retry. Exhausting retries surfaces
// models.ErrEmbeddingUnavailable.
type Client struct {
	impl       *embeddings.EmbedderImpl
	model      string
	timeout    time.Duration
	maxRetries int
}

// NewClient builds the embedder selected by the config: a local ollama
// server or any OpenAI-compatible endpoint.
func NewClient(cfg *config.LLMConfig) (*Client, error) {
	var impl *embeddings.EmbedderImpl
	switch cfg.Provider {
	case "openai":
		llm, err := openai.New(
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithToken(strings.TrimPrefix(cfg.APIKey, "Bearer ")),
			openai.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai client: %w", err)
		}
		impl, err = embeddings.NewEmbedder(llm)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
	default:
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
		}
		impl, err = embeddings.NewEmbedder(llm)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
	}

	return &Client{
		impl:       impl,
		model:      cfg.Model,
		timeout:    time.Duration(cfg.TimeoutSecs) * time.Second,
		maxRetries: cfg.MaxRetries,
	}, nil
}

func (c *Client) Model() string { return c.model }

// EmbedTexts returns one vector per input, in input order.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	err := withRetry(ctx, c.maxRetries, func(attemptCtx context.Context) error {
		var err error
		vectors, err = c.impl.EmbedDocuments(attemptCtx, texts)
		return err
	}, c.timeout)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs",
			models.ErrEmbeddingUnavailable, len(vectors), len(texts))
	}
	return vectors, nil
}

// EmbedText embeds a single string, used for queries.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := withRetry(ctx, c.maxRetries, func(attemptCtx context.Context) error {
		var err error
		vector, err = c.impl.EmbedQuery(attemptCtx, text)
		return err
	}, c.timeout)
	if err != nil {
		return nil, err
	}
	return vector, nil
}

// Dimension probes the model once. The result is recorded in the index
// manifest so a dimensionality mismatch is caught at open time.
func (c *Client) Dimension(ctx context.Context) (int, error) {
	vector, err := c.EmbedText(ctx, "dim probe")
	if err != nil {
		return 0, err
	}
	if len(vector) == 0 {
		return 0, fmt.Errorf("%w: model returned an empty vector", models.ErrEmbeddingUnavailable)
	}
	log.Debug().Str("model", c.model).Int("dim", len(vector)).Msg("Probed embedding dimension")
	return len(vector), nil
}
