package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/screener/internal/models"
)

type VectorStoreConfig struct {
	ConnString string
	// Schema namespaces the table; empty means the connection's default schema.
	Schema    string
	TableName string
	VectorDim int
}

// PGVectorStore keeps résumé nodes in a Postgres table with a pgvector column.
type PGVectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
	table  string
}

func NewPGVector(ctx context.Context, config VectorStoreConfig) (*PGVectorStore, error) {
	if config.TableName == "" {
		config.TableName = "resume_nodes"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 1024
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ident := pgx.Identifier{config.TableName}
	if config.Schema != "" {
		ident = pgx.Identifier{config.Schema, config.TableName}
	}

	vs := &PGVectorStore{
		config: config,
		pool:   pool,
		table:  ident.Sanitize(),
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *PGVectorStore) initialize(ctx context.Context) error {
	// Enable pgvector extension
	if _, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	if vs.config.Schema != "" {
		stmt := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{vs.config.Schema}.Sanitize())
		if _, err := vs.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			position_id BIGINT NOT NULL,
			candidate_name TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d),
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, vs.table, vs.config.VectorDim)

	if _, err := vs.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	idxPrefix := pgx.Identifier{vs.config.TableName + "_position_idx"}.Sanitize()
	createPositionIndex := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (position_id)`, idxPrefix, vs.table)
	if _, err := vs.pool.Exec(ctx, createPositionIndex); err != nil {
		return fmt.Errorf("failed to create position index: %w", err)
	}

	// Create vector index
	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		pgx.Identifier{vs.config.TableName + "_embedding_idx"}.Sanitize(), vs.table)

	if _, err := vs.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

func (vs *PGVectorStore) insertSQL() string {
	return fmt.Sprintf(`
		INSERT INTO %s (id, position_id, candidate_name, content, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			position_id = EXCLUDED.position_id,
			candidate_name = EXCLUDED.candidate_name,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`,
		vs.table)
}

func (vs *PGVectorStore) insertAll(ctx context.Context, tx pgx.Tx, nodes []models.EmbeddedNode) error {
	stmt := vs.insertSQL()
	for _, n := range nodes {
		if len(n.Embedding) != vs.config.VectorDim {
			return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(n.Embedding), vs.config.VectorDim)
		}
		_, err := tx.Exec(ctx, stmt,
			n.ID,
			n.Metadata.PositionID,
			n.Metadata.CandidateName,
			n.Text,
			pgvector.NewVector(n.Embedding),
			n.Metadata,
		)
		if err != nil {
			return fmt.Errorf("failed to insert node %s: %w", n.ID, err)
		}
	}
	return nil
}

func (vs *PGVectorStore) Upsert(ctx context.Context, nodes []models.EmbeddedNode) error {
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := vs.insertAll(ctx, tx, nodes); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (vs *PGVectorStore) Search(ctx context.Context, query []float32, limit int, filter *models.TenantFilter) ([]models.RetrievedPassage, error) {
	args := []interface{}{pgvector.NewVector(query), limit}
	where := ""
	if filter != nil {
		where = "WHERE position_id = $3"
		args = append(args, filter.PositionID)
	}

	sql := fmt.Sprintf(`
		SELECT id, content, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		%s
		ORDER BY embedding <=> $1, created_at
		LIMIT $2`,
		vs.table, where)

	rows, err := vs.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var passages []models.RetrievedPassage
	for rows.Next() {
		var p models.RetrievedPassage
		if err := rows.Scan(&p.NodeID, &p.Text, &p.Metadata, &p.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		passages = append(passages, p)
	}
	return passages, rows.Err()
}

func (vs *PGVectorStore) Scan(ctx context.Context) ([]models.EmbeddedNode, error) {
	rows, err := vs.pool.Query(ctx, fmt.Sprintf(
		`SELECT id, content, metadata, embedding FROM %s ORDER BY created_at`, vs.table))
	if err != nil {
		return nil, fmt.Errorf("failed to scan nodes: %w", err)
	}
	defer rows.Close()

	var nodes []models.EmbeddedNode
	for rows.Next() {
		var (
			n   models.EmbeddedNode
			vec pgvector.Vector
		)
		if err := rows.Scan(&n.ID, &n.Text, &n.Metadata, &vec); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		n.Embedding = vec.Slice()
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// Rewrite replaces the table contents with nodes in one transaction.
func (vs *PGVectorStore) Rewrite(ctx context.Context, nodes []models.EmbeddedNode) error {
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", vs.table)); err != nil {
		return fmt.Errorf("failed to clear table: %w", err)
	}
	if err := vs.insertAll(ctx, tx, nodes); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (vs *PGVectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}
