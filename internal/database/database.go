package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/dbscope/dbscope/internal/config"
)

// Catalog defines the interface for metadata operations needed by the
// schema extractor and the live lookup paths.
type Catalog interface {
	DefaultSchema(ctx context.Context) (string, error)
	ListTables(ctx context.Context, schema string) ([]string, error)
	ListColumns(ctx context.Context, schema, table string) ([]ColumnInfo, error)
	ListConstraints(ctx context.Context, schema, table string) ([]ConstraintInfo, error)
	ListIndexes(ctx context.Context, schema, table string) ([]IndexInfo, error)
	ListCodeObjects(ctx context.Context, schema string) ([]CodeObjectInfo, error)
	ListUserTypes(ctx context.Context, schema string) ([]UserTypeInfo, error)
	ObjectSource(ctx context.Context, schema, kind, name string) (string, error)
	VendorInfo(ctx context.Context) (*VendorInfo, error)
	Fingerprint(schema string) string
	Ping(ctx context.Context) error
	Close() error
}

var _ Catalog = (*DB)(nil)

// DB holds the database connection pool and dialect handler.
type DB struct {
	Pool    *sql.DB
	Handler DialectHandler
	Config  config.DatabaseConfig
}

var (
	dialectHandlers = make(map[string]DialectHandler)
	mu              sync.RWMutex
)

func RegisterDialectHandler(dialect string, handler DialectHandler) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := dialectHandlers[dialect]; exists {
		log.Printf("WARN: Dialect handler for '%s' is being overwritten.", dialect)
	}
	dialectHandlers[dialect] = handler
}

func GetDialectHandler(dialect string) (DialectHandler, error) {
	mu.RLock()
	defer mu.RUnlock()
	handler, ok := dialectHandlers[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported database dialect: %s", dialect)
	}
	return handler, nil
}

// New opens a connection pool for the configured dialect and verifies it
// with a ping. A ping failure is a connection error: fatal at startup.
func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	handler, err := GetDialectHandler(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	var pool *sql.DB
	if strings.HasPrefix(cfg.Dialect, "cloudsql") {
		pool, err = handler.CreateCloudSQLPool(cfg)
	} else {
		pool, err = handler.CreateStandardPool(cfg)
	}

	if err != nil {
		return nil, &ErrConnection{
			Msg: fmt.Sprintf("failed to create pool for dialect %s", cfg.Dialect),
			Err: err,
		}
	}

	if cfg.MaxOpenConns > 0 {
		pool.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, &ErrConnection{
			Msg: fmt.Sprintf("ping failed for dialect %s", cfg.Dialect),
			Err: err,
		}
	}

	return &DB{
		Pool:    pool,
		Handler: handler,
		Config:  cfg,
	}, nil
}

func (db *DB) GetConfig() config.DatabaseConfig {
	return db.Config
}

func (db *DB) Ping(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("database connection pool is not initialized")
	}
	return db.Pool.PingContext(ctx)
}

// Close releases the pool. Idempotent: closing twice is harmless.
func (db *DB) Close() error {
	if db.Pool != nil {
		return db.Pool.Close()
	}
	log.Println("WARN: Attempted to close a nil database connection pool.")
	return nil
}

// Fingerprint identifies a connection target and schema. Snapshots persisted
// under a different fingerprint are stale. Computable from configuration
// alone, without opening a connection.
func Fingerprint(cfg config.DatabaseConfig, schema string) string {
	target := cfg.Host
	if strings.HasPrefix(cfg.Dialect, "cloudsql") {
		target = cfg.CloudSQLInstanceConnectionName
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%s|%s|%s",
		cfg.Dialect, target, cfg.Port, cfg.DBName, cfg.User, strings.ToUpper(schema))))
	return hex.EncodeToString(sum[:16])
}

func (db *DB) Fingerprint(schema string) string {
	return Fingerprint(db.Config, schema)
}

func (db *DB) QuoteIdentifier(name string) string {
	if db.Handler == nil {
		return name
	}
	return db.Handler.QuoteIdentifier(name)
}

func (db *DB) DefaultSchema(ctx context.Context) (string, error) {
	if db.Handler == nil {
		return "", fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.DefaultSchema(ctx, db)
}

func (db *DB) ListTables(ctx context.Context, schema string) ([]string, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.ListTables(ctx, db, schema)
}

func (db *DB) ListColumns(ctx context.Context, schema, table string) ([]ColumnInfo, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.ListColumns(ctx, db, schema, table)
}

func (db *DB) ListConstraints(ctx context.Context, schema, table string) ([]ConstraintInfo, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.ListConstraints(ctx, db, schema, table)
}

func (db *DB) ListIndexes(ctx context.Context, schema, table string) ([]IndexInfo, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.ListIndexes(ctx, db, schema, table)
}

func (db *DB) ListCodeObjects(ctx context.Context, schema string) ([]CodeObjectInfo, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.ListCodeObjects(ctx, db, schema)
}

func (db *DB) ListUserTypes(ctx context.Context, schema string) ([]UserTypeInfo, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.ListUserTypes(ctx, db, schema)
}

func (db *DB) ObjectSource(ctx context.Context, schema, kind, name string) (string, error) {
	if db.Handler == nil {
		return "", fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.ObjectSource(ctx, db, schema, kind, name)
}

func (db *DB) VendorInfo(ctx context.Context) (*VendorInfo, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.VendorInfo(ctx, db)
}

// DialectHandler is implemented once per supported dialect. Handlers are
// stateless; they self-register from the dialect package's init.
type DialectHandler interface {
	CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error)
	CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error)
	QuoteIdentifier(name string) string
	DefaultSchema(ctx context.Context, db *DB) (string, error)
	ListTables(ctx context.Context, db *DB, schema string) ([]string, error)
	ListColumns(ctx context.Context, db *DB, schema, table string) ([]ColumnInfo, error)
	ListConstraints(ctx context.Context, db *DB, schema, table string) ([]ConstraintInfo, error)
	ListIndexes(ctx context.Context, db *DB, schema, table string) ([]IndexInfo, error)
	ListCodeObjects(ctx context.Context, db *DB, schema string) ([]CodeObjectInfo, error)
	ListUserTypes(ctx context.Context, db *DB, schema string) ([]UserTypeInfo, error)
	ObjectSource(ctx context.Context, db *DB, schema, kind, name string) (string, error)
	VendorInfo(ctx context.Context, db *DB) (*VendorInfo, error)
}
