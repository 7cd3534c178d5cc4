package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"emergency-rag/internal/answer"
	"emergency-rag/internal/chunker"
	"emergency-rag/internal/config"
	"emergency-rag/internal/embedding"
	"emergency-rag/internal/extractor"
	"emergency-rag/internal/helper"
	"emergency-rag/internal/ingest"
	"emergency-rag/internal/rag"
	"emergency-rag/internal/retriever"
	"emergency-rag/internal/server"
	"emergency-rag/internal/vectordb"
)

var (
	configPath string
	topK       int
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	rootCmd := &cobra.Command{
		Use:   "emergency-rag",
		Short: "Vehicle emergency assistant over an owner's manual",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env is optional; config values win over its absence.
			_ = godotenv.Load()
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./configs/config.yaml", "Path to the config file")

	ingestCmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Parse, chunk, embed and index a manual (PDF, DOCX or TXT)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runIngest(cmd.Context(), args[0])
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query endpoint over HTTP",
		Run: func(cmd *cobra.Command, args []string) {
			runServe(cmd.Context())
		},
	}

	queryCmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Run a single query against the built index",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runQuery(cmd.Context(), args[0])
		},
	}
	queryCmd.Flags().IntVar(&topK, "top-k", 0, "Number of chunks to retrieve (default from config)")

	rootCmd.AddCommand(ingestCmd, serveCmd, queryCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func runIngest(ctx context.Context, filePath string) {
	cfg := loadConfig()

	embedder, err := embedding.NewClient(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	// Probing the dimension up front both verifies the model is
	// reachable and pins the dimension in the index manifest.
	dim, err := embedder.Dimension(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Embedding model unreachable")
	}

	index, err := vectordb.Open(&cfg.Index, embedder.Model(), dim)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector index")
	}
	defer index.Close()

	ch, err := chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid chunking configuration")
	}

	pipeline := ingest.New(extractor.New(&cfg.RAG), ch, embedder, index, cfg.EmbedLLM.BatchSize)
	report, err := pipeline.Run(ctx, filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	log.Info().Msgf("Indexed %d chunks, skipped %d (from %d pages)",
		report.Indexed, report.Skipped, report.Pages)
}

func runServe(ctx context.Context) {
	cfg := loadConfig()

	svc, index := buildService(ctx, cfg)
	defer index.Close()

	srv := server.New(svc, &cfg.Server)
	if err := srv.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func runQuery(ctx context.Context, query string) {
	cfg := loadConfig()

	svc, index := buildService(ctx, cfg)
	defer index.Close()

	response, err := svc.Query(ctx, query, topK)
	if err != nil {
		log.Fatal().Err(err).Msg("Error querying")
	}
	helper.PrettyPrint(response)
}

func buildService(ctx context.Context, cfg *config.Config) (*rag.RAG, vectordb.Index) {
	embedder, err := embedding.NewClient(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	index, err := vectordb.Open(&cfg.Index, embedder.Model(), 0)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector index")
	}

	r := retriever.New(embedder, index, cfg.RAG.TopK)
	classifier := answer.NewClassifier(answer.NewRules(&cfg.Answer))
	return rag.NewRAG(r, classifier, index.Model(), cfg.RAG.TopK), index
}

func loadConfig() *config.Config {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	log.Debug().Interface("config", cfg).Msg("Loaded config")
	return cfg
}
