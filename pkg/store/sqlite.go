package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"time"

	_ "modernc.org/sqlite"

	"github.com/xhad/screener/internal/models"
)

const sqliteFileName = "index.db"

// ErrInvalidIdentity is returned when a tenant or database name cannot be used
// to namespace a collection.
var ErrInvalidIdentity = errors.New("invalid collection identity")

var identityPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-]{1,61}[A-Za-z0-9]$`)

// Identity namespaces a collection. A nil Identity opens the collection by
// name only.
type Identity struct {
	Tenant   string
	Database string
}

func (id *Identity) validate() error {
	if id == nil {
		return nil
	}
	for _, v := range []string{id.Tenant, id.Database} {
		if !identityPattern.MatchString(v) {
			return fmt.Errorf("%w: %q", ErrInvalidIdentity, v)
		}
	}
	return nil
}

// SQLiteStore persists nodes in a single-file database under a directory.
type SQLiteStore struct {
	db           *sql.DB
	collectionID int64
}

// NewSQLiteStore opens or creates the collection named name in dir.
func NewSQLiteStore(ctx context.Context, dir, name string, identity *Identity) (*SQLiteStore, error) {
	if err := identity.validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	dsn := filepath.Join(dir, sqliteFileName) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	// one writer keeps WAL mode simple
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	id, err := s.collection(ctx, name, identity)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.collectionID = id
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS collections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant TEXT NOT NULL DEFAULT '',
			database_name TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			created_at TEXT NOT NULL,
			UNIQUE (tenant, database_name, name)
		)`,
		`CREATE TABLE IF NOT EXISTS nodes (
			id TEXT PRIMARY KEY,
			collection_id INTEGER NOT NULL REFERENCES collections(id),
			position_id INTEGER NOT NULL,
			candidate_name TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata TEXT NOT NULL,
			embedding BLOB NOT NULL,
			seq INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_position ON nodes(collection_id, position_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate index: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) collection(ctx context.Context, name string, identity *Identity) (int64, error) {
	tenant, database := "", ""
	if identity != nil {
		tenant, database = identity.Tenant, identity.Database
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO collections (tenant, database_name, name, created_at) VALUES (?, ?, ?, ?)`,
		tenant, database, name, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to create collection: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM collections WHERE tenant = ? AND database_name = ? AND name = ?`,
		tenant, database, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to load collection: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, nodes []models.EmbeddedNode) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.insertAll(ctx, tx, nodes); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) insertAll(ctx context.Context, tx *sql.Tx, nodes []models.EmbeddedNode) error {
	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM nodes WHERE collection_id = ?`, s.collectionID).Scan(&seq); err != nil {
		return fmt.Errorf("failed to read sequence: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (id, collection_id, position_id, candidate_name, content, metadata, embedding, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			position_id = excluded.position_id,
			candidate_name = excluded.candidate_name,
			content = excluded.content,
			metadata = excluded.metadata,
			embedding = excluded.embedding`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, n := range nodes {
		if len(n.Embedding) == 0 {
			return fmt.Errorf("node %s has no embedding", n.ID)
		}
		md, err := json.Marshal(n.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		seq++
		_, err = stmt.ExecContext(ctx,
			n.ID, s.collectionID, n.Metadata.PositionID, n.Metadata.CandidateName,
			n.Text, string(md), encodeVector(n.Embedding), seq)
		if err != nil {
			return fmt.Errorf("failed to insert node %s: %w", n.ID, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Search(ctx context.Context, query []float32, limit int, filter *models.TenantFilter) ([]models.RetrievedPassage, error) {
	q := `SELECT id, content, metadata, embedding FROM nodes WHERE collection_id = ?`
	args := []interface{}{s.collectionID}
	if filter != nil {
		q += ` AND position_id = ?`
		args = append(args, filter.PositionID)
	}
	q += ` ORDER BY seq`

	nodes, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}

	results := make([]models.RetrievedPassage, 0, len(nodes))
	for _, n := range nodes {
		if len(n.Embedding) != len(query) {
			return nil, fmt.Errorf("query dimension mismatch: got %d, want %d", len(query), len(n.Embedding))
		}
		results = append(results, passageOf(n, cosine(query, n.Embedding)))
	}
	return rankTopK(results, limit), nil
}

func (s *SQLiteStore) Scan(ctx context.Context) ([]models.EmbeddedNode, error) {
	return s.query(ctx,
		`SELECT id, content, metadata, embedding FROM nodes WHERE collection_id = ? ORDER BY seq`,
		s.collectionID)
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...interface{}) ([]models.EmbeddedNode, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []models.EmbeddedNode
	for rows.Next() {
		var (
			n    models.EmbeddedNode
			md   string
			blob []byte
		)
		if err := rows.Scan(&n.ID, &n.Text, &md, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(md), &n.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for %s: %w", n.ID, err)
		}
		n.Embedding = decodeVector(blob)
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// Rewrite replaces the collection contents with nodes in one transaction.
func (s *SQLiteStore) Rewrite(ctx context.Context, nodes []models.EmbeddedNode) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE collection_id = ?`, s.collectionID); err != nil {
		return fmt.Errorf("failed to clear collection: %w", err)
	}
	if err := s.insertAll(ctx, tx, nodes); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
