package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xhad/screener/internal/models"
	"github.com/xhad/screener/internal/types"
)

const (
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
	BackendPGVector = "pgvector"

	PurgeRebuild  = "rebuild"
	PurgeDisabled = "disabled"
)

// ErrPositionMismatch is returned when a node is inserted under a position
// other than the one in its metadata.
var ErrPositionMismatch = errors.New("node position does not match insert position")

type IndexConfig struct {
	Backend    string
	Path       string
	Tenant     string
	Database   string
	Collection string
	ConnString string
	TableName  string
	VectorDim  int
	BatchSize  int
	PurgeMode  string
	Logger     *zap.Logger
}

func (c *IndexConfig) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendSQLite
	}
	if c.Path == "" {
		c.Path = "./vector_db"
	}
	if c.Collection == "" {
		c.Collection = "resume_collection"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.PurgeMode == "" {
		c.PurgeMode = PurgeRebuild
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Index is the shared, persistent résumé collection. Inserts and searches
// may run concurrently; a purge excludes both.
type Index struct {
	store  types.VectorStore
	config IndexConfig
	logger *zap.Logger

	mu sync.RWMutex

	posMu     sync.Mutex
	positions map[int64]*sync.Mutex
}

// PurgeResult reports what a purge did.
type PurgeResult struct {
	Mode    string
	Removed int
	Kept    int
}

// OpenOrCreate opens the configured collection, creating it when absent.
// When the namespaced identity is rejected the collection is opened by name
// alone and a warning is logged.
func OpenOrCreate(ctx context.Context, config IndexConfig) (*Index, error) {
	config.applyDefaults()
	logger := config.Logger

	var (
		vs  types.VectorStore
		err error
	)
	switch config.Backend {
	case BackendMemory:
		vs = NewMemoryStore()
	case BackendSQLite:
		identity := &Identity{Tenant: config.Tenant, Database: config.Database}
		vs, err = NewSQLiteStore(ctx, config.Path, config.Collection, identity)
		if err != nil {
			logger.Warn("namespaced collection unavailable, using legacy mode",
				zap.String("tenant", config.Tenant),
				zap.String("database", config.Database),
				zap.Error(err),
			)
			vs, err = NewSQLiteStore(ctx, config.Path, config.Collection, nil)
		}
	case BackendPGVector:
		pgConfig := VectorStoreConfig{
			ConnString: config.ConnString,
			Schema:     config.Database,
			TableName:  config.TableName,
			VectorDim:  config.VectorDim,
		}
		vs, err = NewPGVector(ctx, pgConfig)
		if err != nil && pgConfig.Schema != "" {
			logger.Warn("schema unavailable, using default schema",
				zap.String("schema", pgConfig.Schema),
				zap.Error(err),
			)
			pgConfig.Schema = ""
			vs, err = NewPGVector(ctx, pgConfig)
		}
	default:
		return nil, fmt.Errorf("unsupported index backend: %s", config.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	logger.Info("index ready",
		zap.String("backend", config.Backend),
		zap.String("collection", config.Collection),
	)
	return NewIndex(vs, config), nil
}

// NewIndex wraps an already opened store.
func NewIndex(vs types.VectorStore, config IndexConfig) *Index {
	config.applyDefaults()
	return &Index{
		store:     vs,
		config:    config,
		logger:    config.Logger,
		positions: make(map[int64]*sync.Mutex),
	}
}

func (ix *Index) positionLock(positionID int64) *sync.Mutex {
	ix.posMu.Lock()
	defer ix.posMu.Unlock()

	m, ok := ix.positions[positionID]
	if !ok {
		m = &sync.Mutex{}
		ix.positions[positionID] = m
	}
	return m
}

// Insert appends nodes for one position in batches. Batches committed before
// a failure stay in the index.
func (ix *Index) Insert(ctx context.Context, positionID int64, nodes []models.EmbeddedNode) error {
	for _, n := range nodes {
		if n.Metadata.PositionID != positionID {
			return fmt.Errorf("%w: node %s has %d, want %d", ErrPositionMismatch, n.ID, n.Metadata.PositionID, positionID)
		}
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	lock := ix.positionLock(positionID)
	lock.Lock()
	defer lock.Unlock()

	for i := 0; i < len(nodes); i += ix.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := i + ix.config.BatchSize
		if end > len(nodes) {
			end = len(nodes)
		}
		if err := ix.store.Upsert(ctx, nodes[i:end]); err != nil {
			return fmt.Errorf("failed to insert batch %d-%d: %w", i, end, err)
		}
	}

	ix.logger.Debug("inserted nodes",
		zap.Int64("position_id", positionID),
		zap.Int("count", len(nodes)),
	)
	return nil
}

// Search runs a similarity query. A nil filter searches every position.
func (ix *Index) Search(ctx context.Context, query []float32, limit int, filter *models.TenantFilter) ([]models.RetrievedPassage, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	return ix.store.Search(ctx, query, limit, filter)
}

// PurgePosition removes every node of positionID by rebuilding the
// collection without them.
func (ix *Index) PurgePosition(ctx context.Context, positionID int64) (PurgeResult, error) {
	if ix.config.PurgeMode == PurgeDisabled {
		ix.logger.Warn("purge is disabled, index left unchanged",
			zap.Int64("position_id", positionID),
		)
		return PurgeResult{Mode: PurgeDisabled}, nil
	}

	rb, ok := ix.store.(types.Rebuildable)
	if !ok {
		return PurgeResult{}, fmt.Errorf("index backend %s cannot be rebuilt", ix.config.Backend)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	all, err := rb.Scan(ctx)
	if err != nil {
		return PurgeResult{}, fmt.Errorf("failed to read index: %w", err)
	}

	kept := make([]models.EmbeddedNode, 0, len(all))
	for _, n := range all {
		if n.Metadata.PositionID != positionID {
			kept = append(kept, n)
		}
	}
	removed := len(all) - len(kept)

	if removed > 0 {
		if err := rb.Rewrite(ctx, kept); err != nil {
			return PurgeResult{}, fmt.Errorf("failed to rebuild index: %w", err)
		}
	}

	ix.logger.Info("purged position",
		zap.Int64("position_id", positionID),
		zap.Int("removed", removed),
		zap.Int("kept", len(kept)),
	)
	return PurgeResult{Mode: PurgeRebuild, Removed: removed, Kept: len(kept)}, nil
}

func (ix *Index) Close() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.store.Close()
}
