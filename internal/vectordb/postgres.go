package vectordb

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"emergency-rag/internal/config"
	"emergency-rag/internal/models"
)

// pgChunk is the pgvector-backed index row. The vector column is sized
// for the 768-dimension models the server deployment runs with.
type pgChunk struct {
	bun.BaseModel `bun:"table:manual_chunks,alias:mc"`
	ChunkID       string    `bun:"chunk_id,pk"`
	Page          int       `bun:"page,notnull"`
	Content       string    `bun:"content,notnull"`
	Embedding     []float32 `bun:"embedding,notnull,type:vector(768)"`
	Score         float64   `bun:"score,scanonly"`
}

type pgMeta struct {
	bun.BaseModel `bun:"table:index_meta,alias:im"`
	Key           string `bun:"key,pk"`
	Value         string `bun:"value,notnull"`
}

// PostgresIndex is the non-default network mode: a pgvector-enabled
// database shared between the ingestion writer and query readers.
type PostgresIndex struct {
	db    *bun.DB
	model string
}

func openPostgres(cfg *config.IndexConfig, model string, dim int) (*PostgresIndex, error) {
	dsn := cfg.DSN
	if !strings.Contains(dsn, "sslmode=") {
		dsn += "?sslmode=disable"
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn), pgdriver.WithPassword(cfg.Password)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	ctx := context.Background()
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", models.ErrIndexUnavailable, err)
	}

	if _, err := db.NewCreateTable().Model((*pgChunk)(nil)).IfNotExists().Exec(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", models.ErrIndexUnavailable, err)
	}
	if _, err := db.NewCreateTable().Model((*pgMeta)(nil)).IfNotExists().Exec(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", models.ErrIndexUnavailable, err)
	}

	idx := &PostgresIndex{db: db, model: model}
	if err := idx.checkMeta(ctx, model, dim); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

// checkMeta enforces the model-mismatch contract against the recorded
// build configuration, recording it on first use.
func (x *PostgresIndex) checkMeta(ctx context.Context, model string, dim int) error {
	var rows []pgMeta
	if err := x.db.NewSelect().Model(&rows).Scan(ctx); err != nil {
		return fmt.Errorf("%w: %v", models.ErrIndexUnavailable, err)
	}
	meta := make(map[string]string, len(rows))
	for _, r := range rows {
		meta[r.Key] = r.Value
	}

	if recorded, ok := meta["embed_model"]; ok {
		m := &Manifest{Model: recorded}
		if d, err := strconv.Atoi(meta["embed_dim"]); err == nil {
			m.Dimension = d
		}
		if err := m.check(model, dim); err != nil {
			return err
		}
		x.model = recorded
		return nil
	}

	toStore := []pgMeta{{Key: "embed_model", Value: model}}
	if dim > 0 {
		toStore = append(toStore, pgMeta{Key: "embed_dim", Value: strconv.Itoa(dim)})
	}
	_, err := x.db.NewInsert().Model(&toStore).
		On("CONFLICT (key) DO UPDATE").Set("value = EXCLUDED.value").Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrIndexUnavailable, err)
	}
	return nil
}

func (x *PostgresIndex) Model() string { return x.model }

func (x *PostgresIndex) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]pgChunk, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, pgChunk{
			ChunkID:   e.Chunk.ChunkID,
			Page:      e.Chunk.Page,
			Content:   e.Chunk.Text,
			Embedding: e.Vector,
		})
	}
	_, err := x.db.NewInsert().Model(&rows).
		On("CONFLICT (chunk_id) DO UPDATE").
		Set("page = EXCLUDED.page").
		Set("content = EXCLUDED.content").
		Set("embedding = EXCLUDED.embedding").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert chunks: %w", err)
	}
	return nil
}

func (x *PostgresIndex) Search(ctx context.Context, vector []float32, topK int) ([]models.ScoredChunk, error) {
	var rows []pgChunk
	lit := vectorLiteral(vector)
	err := x.db.NewSelect().Model(&rows).
		Column("chunk_id", "page", "content").
		ColumnExpr("1 - (embedding <=> ?::vector) AS score", lit).
		OrderExpr("embedding <=> ?::vector, chunk_id ASC", lit).
		Limit(topK).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	results := make([]models.ScoredChunk, 0, len(rows))
	for _, r := range rows {
		results = append(results, models.ScoredChunk{
			Chunk: models.Chunk{ChunkID: r.ChunkID, Page: r.Page, Text: r.Content},
			Score: r.Score,
		})
	}
	return sortResults(results, topK), nil
}

func (x *PostgresIndex) Count(ctx context.Context) (int, error) {
	count, err := x.db.NewSelect().Model((*pgChunk)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrIndexUnavailable, err)
	}
	return count, nil
}

func (x *PostgresIndex) Clear(ctx context.Context) error {
	_, err := x.db.NewTruncateTable().Model((*pgChunk)(nil)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}
	return nil
}

func (x *PostgresIndex) Close() error { return x.db.Close() }

// vectorLiteral formats a vector the way pgvector parses it: [a,b,c].
func vectorLiteral(v []float32) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(float64(f), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
