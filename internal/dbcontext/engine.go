package dbcontext

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dbscope/dbscope/internal/cache"
	"github.com/dbscope/dbscope/internal/config"
	"github.com/dbscope/dbscope/internal/database"
	"github.com/dbscope/dbscope/internal/schema"
)

// Engine ties the database connection, the snapshot manager and the query
// executor together behind the operations the serving layer exposes.
type Engine struct {
	db             *database.DB
	manager        *schema.Manager
	executor       *database.Executor
	store          cache.Store
	logger         *zap.Logger
	targetSchema   string
	catalogTimeout time.Duration

	schemaMu       sync.Mutex
	resolvedSchema string
}

// New connects to the configured database, verifies the connection and
// assembles the engine. The snapshot itself is not built yet; that happens
// on first use or through Initialize.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	store, err := cache.New(cfg.Cache)
	if err != nil {
		db.Close()
		return nil, err
	}

	extractor := schema.NewExtractor(db, cfg.Database.CatalogTimeout, logger)
	signature := db.Fingerprint(cfg.Database.TargetSchema)
	manager := schema.NewManager(extractor, store, signature, cfg.Database.TargetSchema, logger)
	executor := database.NewExecutor(db, cfg.Database.QueryTimeout)

	e := NewEngine(db, manager, executor, store, logger)
	e.targetSchema = cfg.Database.TargetSchema
	e.catalogTimeout = cfg.Database.CatalogTimeout
	return e, nil
}

// NewEngine assembles an engine from prepared components.
func NewEngine(db *database.DB, manager *schema.Manager, executor *database.Executor, store cache.Store, logger *zap.Logger) *Engine {
	return &Engine{
		db:       db,
		manager:  manager,
		executor: executor,
		store:    store,
		logger:   logger,
	}
}

// Initialize warms the snapshot eagerly.
func (e *Engine) Initialize(ctx context.Context) error {
	return e.manager.Initialize(ctx)
}

// Snapshot returns the current snapshot, building it on first use.
func (e *Engine) Snapshot(ctx context.Context) (*schema.Snapshot, error) {
	return e.manager.Snapshot(ctx)
}

// Rebuild discards the cached snapshot state and extracts a fresh one.
func (e *Engine) Rebuild(ctx context.Context) (*schema.Snapshot, error) {
	return e.manager.Rebuild(ctx)
}

// Table returns one table's metadata, or name suggestions when it misses.
func (e *Engine) Table(ctx context.Context, name string) (*database.TableInfo, []string, error) {
	return e.manager.Table(ctx, name)
}

// TableResult pairs a requested name with its lookup outcome.
type TableResult struct {
	Name        string
	Table       *database.TableInfo
	Suggestions []string
}

// Tables resolves several tables at once, preserving request order.
func (e *Engine) Tables(ctx context.Context, names []string) ([]TableResult, error) {
	results := make([]TableResult, 0, len(names))
	for _, name := range names {
		t, suggestions, err := e.manager.Table(ctx, name)
		if err != nil {
			return nil, err
		}
		results = append(results, TableResult{Name: name, Table: t, Suggestions: suggestions})
	}
	return results, nil
}

func (e *Engine) SearchTables(ctx context.Context, term string, limit int) ([]*database.TableInfo, error) {
	return e.manager.SearchTables(ctx, term, limit)
}

func (e *Engine) SearchColumns(ctx context.Context, term string, limit int) ([]schema.ColumnMatch, error) {
	return e.manager.SearchColumns(ctx, term, limit)
}

func (e *Engine) Dependents(ctx context.Context, table string) ([]schema.Dependent, error) {
	return e.manager.Dependents(ctx, table)
}

func (e *Engine) Related(ctx context.Context, table string) (schema.Relations, error) {
	return e.manager.Related(ctx, table)
}

func (e *Engine) CodeObjects(ctx context.Context, kind, namePattern string) ([]*database.CodeObjectInfo, error) {
	return e.manager.CodeObjects(ctx, kind, namePattern)
}

func (e *Engine) UserTypes(ctx context.Context, namePattern string) ([]*database.UserTypeInfo, error) {
	return e.manager.UserTypes(ctx, namePattern)
}

// ObjectSource reads an object's definition live from the database; source
// text is never cached. The second return is false when the object does
// not exist or cannot be read, matching how the catalog hides objects the
// caller may not see.
func (e *Engine) ObjectSource(ctx context.Context, kind, name string) (string, bool, error) {
	sch, err := e.querySchema(ctx)
	if err != nil {
		return "", false, err
	}

	if e.catalogTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.catalogTimeout)
		defer cancel()
	}

	src, err := e.db.ObjectSource(ctx, sch, kind, name)
	if err != nil {
		e.logger.Warn("object source unavailable",
			zap.String("kind", kind),
			zap.String("object", name),
			zap.Error(err))
		return "", false, nil
	}
	if src == "" {
		return "", false, nil
	}
	return src, true, nil
}

// Execute runs an arbitrary SQL statement. The result always reports the
// outcome in-band; see database.Executor.
func (e *Engine) Execute(ctx context.Context, query string) *database.QueryResult {
	return e.executor.Execute(ctx, query)
}

// Dialect names the connected database dialect.
func (e *Engine) Dialect() string {
	return e.db.GetConfig().Dialect
}

// Ping verifies the database connection is still alive.
func (e *Engine) Ping(ctx context.Context) error {
	return e.db.Ping(ctx)
}

// Close releases the connection pool and the cache backend.
func (e *Engine) Close() error {
	var firstErr error
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			e.logger.Warn("cache close failed", zap.Error(err))
			firstErr = err
		}
	}
	if e.db != nil {
		if err := e.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// querySchema resolves the schema used for live reads: the configured
// target when set, otherwise the connection's default, fetched once.
func (e *Engine) querySchema(ctx context.Context) (string, error) {
	e.schemaMu.Lock()
	defer e.schemaMu.Unlock()

	if e.resolvedSchema != "" {
		return e.resolvedSchema, nil
	}
	if s := strings.TrimSpace(e.targetSchema); s != "" {
		e.resolvedSchema = s
		return s, nil
	}
	s, err := e.db.DefaultSchema(ctx)
	if err != nil {
		return "", err
	}
	e.resolvedSchema = s
	return s, nil
}
