package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LLMConfig configures the embedding backend. Provider selects the
// langchaingo client: "ollama" (default) or "openai" for any
// OpenAI-compatible endpoint.
type LLMConfig struct {
	Provider    string `yaml:"provider"`
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
	BatchSize   int    `yaml:"batch_size"`
}

// IndexConfig selects and configures the vector index backend.
// "chromem" persists locally and needs no external service; "postgres"
// targets a pgvector-enabled database for server deployments.
type IndexConfig struct {
	Type       string `yaml:"type"`
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	DSN        string `yaml:"dsn"`
	Password   string `yaml:"password"`
	Debug      bool   `yaml:"debug"`
}

// RAGConfig configures chunking and retrieval.
type RAGConfig struct {
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	TopK         int    `yaml:"top_k"`
	MinPageChars int    `yaml:"min_page_chars"`
	OCRDPI       int    `yaml:"ocr_dpi"`
	OCRLanguage  string `yaml:"ocr_language"`
}

// AnswerConfig optionally overrides the classification lexicons. Empty
// lists keep the compiled defaults.
type AnswerConfig struct {
	WarningWords []string `yaml:"warning_words"`
	ToolWords    []string `yaml:"tool_words"`
	MaxWarnings  int      `yaml:"max_warnings"`
}

// ServerConfig configures the query endpoint.
type ServerConfig struct {
	Host         string   `yaml:"host"`
	Port         int      `yaml:"port"`
	AllowOrigins []string `yaml:"allow_origins"`
	TimeoutSecs  int      `yaml:"timeout_secs"`
}

type Config struct {
	EmbedLLM LLMConfig    `yaml:"embed_llm"`
	Index    IndexConfig  `yaml:"index"`
	RAG      RAGConfig    `yaml:"rag"`
	Answer   AnswerConfig `yaml:"answer"`
	Server   ServerConfig `yaml:"server"`
}

// LoadConfig reads the YAML config from path. A missing file yields the
// defaults so the tool works out of the box against a local ollama.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("rag.chunk_size must be positive, got %d", c.RAG.ChunkSize)
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap must be in [0, chunk_size), got %d", c.RAG.ChunkOverlap)
	}
	if c.RAG.TopK < 1 || c.RAG.TopK > 10 {
		return fmt.Errorf("rag.top_k must be in [1, 10], got %d", c.RAG.TopK)
	}
	switch c.Index.Type {
	case "chromem", "postgres":
	default:
		return fmt.Errorf("index.type must be chromem or postgres, got %q", c.Index.Type)
	}
	switch c.EmbedLLM.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("embed_llm.provider must be ollama or openai, got %q", c.EmbedLLM.Provider)
	}
	if c.Index.Type == "postgres" && strings.TrimSpace(c.Index.DSN) == "" {
		return fmt.Errorf("index.dsn is required when index.type is postgres")
	}
	return nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = "ollama"
	}
	if cfg.EmbedLLM.BaseURL == "" {
		if cfg.EmbedLLM.Provider == "ollama" {
			cfg.EmbedLLM.BaseURL = "http://localhost:11434"
		} else {
			cfg.EmbedLLM.BaseURL = "https://api.openai.com/v1"
		}
	}
	if cfg.EmbedLLM.Model == "" {
		cfg.EmbedLLM.Model = "nomic-embed-text"
	}
	if cfg.EmbedLLM.TimeoutSecs == 0 {
		cfg.EmbedLLM.TimeoutSecs = 30
	}
	if cfg.EmbedLLM.MaxRetries == 0 {
		cfg.EmbedLLM.MaxRetries = 3
	}
	if cfg.EmbedLLM.BatchSize == 0 {
		cfg.EmbedLLM.BatchSize = 16
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "chromem"
	}
	if cfg.Index.Path == "" {
		cfg.Index.Path = "./data/index"
	}
	if cfg.Index.Collection == "" {
		cfg.Index.Collection = "manual_chunks"
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 1100
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = 200
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 4
	}
	if cfg.RAG.MinPageChars == 0 {
		cfg.RAG.MinPageChars = 200
	}
	if cfg.RAG.OCRDPI == 0 {
		cfg.RAG.OCRDPI = 300
	}
	if cfg.RAG.OCRLanguage == "" {
		cfg.RAG.OCRLanguage = "eng"
	}
	if cfg.Answer.MaxWarnings == 0 {
		cfg.Answer.MaxWarnings = 10
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if len(cfg.Server.AllowOrigins) == 0 {
		cfg.Server.AllowOrigins = []string{"http://localhost:5173"}
	}
	if cfg.Server.TimeoutSecs == 0 {
		cfg.Server.TimeoutSecs = 60
	}
}
