package schema

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dbscope/dbscope/internal/database"
)

// Extractor builds snapshots by walking the database catalog. Per-table
// metadata is fetched concurrently; the connection pool bounds how many
// catalog queries actually run at once.
type Extractor struct {
	catalog database.Catalog
	timeout time.Duration // per catalog query, zero disables
	retry   RetryOptions
	logger  *zap.Logger
}

func NewExtractor(catalog database.Catalog, timeout time.Duration, logger *zap.Logger) *Extractor {
	return &Extractor{
		catalog: catalog,
		timeout: timeout,
		retry:   DefaultRetryOptions,
		logger:  logger,
	}
}

func (e *Extractor) queryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		return context.WithTimeout(ctx, e.timeout)
	}
	return context.WithCancel(ctx)
}

// Build extracts a complete snapshot of targetSchema. An empty target uses
// the connection's default schema. Only a failed table list aborts the
// build; any other failed catalog query degrades its piece of the snapshot
// to an empty inventory, and the omissions come back as a warning list
// alongside the snapshot.
func (e *Extractor) Build(ctx context.Context, targetSchema string) (*Snapshot, []string, error) {
	start := time.Now()

	querySchema := strings.TrimSpace(targetSchema)
	if querySchema == "" {
		ds, err := withRetry(ctx, e.retry, e.logger, func(ctx context.Context) (string, error) {
			qctx, cancel := e.queryCtx(ctx)
			defer cancel()
			return e.catalog.DefaultSchema(qctx)
		})
		if err != nil {
			return nil, nil, &ErrExtraction{Msg: "failed to resolve default schema", Err: err}
		}
		querySchema = ds
	}
	if querySchema == "" {
		return nil, nil, &ErrExtraction{Msg: "no target schema configured and none reported by the database"}
	}

	e.logger.Info("building schema snapshot", zap.String("schema", querySchema))

	tables, err := withRetry(ctx, e.retry, e.logger, func(ctx context.Context) ([]string, error) {
		qctx, cancel := e.queryCtx(ctx)
		defer cancel()
		return e.catalog.ListTables(qctx, querySchema)
	})
	if err != nil {
		return nil, nil, &ErrExtraction{Msg: "failed to list tables", Err: err}
	}

	// The signature uses the configured target, not the resolved schema;
	// cache loads compute the expected value from configuration alone.
	snap := &Snapshot{
		TargetSchema: strings.ToUpper(querySchema),
		Signature:    e.catalog.Fingerprint(targetSchema),
		TableNames:   make([]string, 0, len(tables)),
		Tables:       make(map[string]*database.TableInfo, len(tables)),
		ObjectNames:  []string{},
		Objects:      map[string]*database.CodeObjectInfo{},
		TypeNames:    []string{},
		Types:        map[string]*database.UserTypeInfo{},
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	warningChannel := make(chan string, len(tables)*3)
	built := make(map[string]*database.TableInfo, len(tables))

	for _, tableName := range tables {
		wg.Add(1)
		go func(table string) {
			defer wg.Done()
			info := e.buildTable(ctx, querySchema, table, warningChannel)
			mu.Lock()
			built[info.Name] = info
			mu.Unlock()
		}(tableName)
	}
	wg.Wait()
	close(warningChannel)

	var warnings []string
	for w := range warningChannel {
		warnings = append(warnings, w)
	}

	// A canceled context fails every remaining query; the degraded snapshot
	// that would come out of that is not worth keeping.
	if err := ctx.Err(); err != nil {
		return nil, nil, &ErrExtraction{Msg: "extraction canceled", Err: err}
	}

	for _, tableName := range tables {
		upper := strings.ToUpper(tableName)
		info, ok := built[upper]
		if !ok {
			continue
		}
		if _, dup := snap.Tables[upper]; dup {
			continue
		}
		snap.Tables[upper] = info
		snap.TableNames = append(snap.TableNames, upper)
	}

	objects, err := withRetry(ctx, e.retry, e.logger, func(ctx context.Context) ([]database.CodeObjectInfo, error) {
		qctx, cancel := e.queryCtx(ctx)
		defer cancel()
		return e.catalog.ListCodeObjects(qctx, querySchema)
	})
	if err != nil {
		e.logger.Warn("code object inventory unavailable", zap.Error(err))
		warnings = append(warnings, fmt.Sprintf("code objects unavailable: %v", err))
	}
	for i := range objects {
		o := objects[i]
		o.Name = strings.ToUpper(o.Name)
		o.Kind = strings.ToUpper(o.Kind)
		o.Owner = strings.ToUpper(o.Owner)
		if _, dup := snap.Objects[o.Name]; !dup {
			snap.ObjectNames = append(snap.ObjectNames, o.Name)
		}
		snap.Objects[o.Name] = &o
	}

	types, err := withRetry(ctx, e.retry, e.logger, func(ctx context.Context) ([]database.UserTypeInfo, error) {
		qctx, cancel := e.queryCtx(ctx)
		defer cancel()
		return e.catalog.ListUserTypes(qctx, querySchema)
	})
	if err != nil {
		e.logger.Warn("user type inventory unavailable", zap.Error(err))
		warnings = append(warnings, fmt.Sprintf("user-defined types unavailable: %v", err))
	}
	for i := range types {
		t := types[i]
		t.Name = strings.ToUpper(t.Name)
		t.Owner = strings.ToUpper(t.Owner)
		if _, dup := snap.Types[t.Name]; !dup {
			snap.TypeNames = append(snap.TypeNames, t.Name)
		}
		snap.Types[t.Name] = &t
	}

	vendor, err := withRetry(ctx, e.retry, e.logger, func(ctx context.Context) (*database.VendorInfo, error) {
		qctx, cancel := e.queryCtx(ctx)
		defer cancel()
		return e.catalog.VendorInfo(qctx)
	})
	if err != nil {
		e.logger.Warn("vendor info unavailable", zap.Error(err))
		warnings = append(warnings, fmt.Sprintf("vendor info unavailable: %v", err))
	} else {
		vendor.Schema = snap.TargetSchema
		snap.Vendor = vendor
	}

	snap.BuiltAt = time.Now().UTC()

	e.logger.Info("schema snapshot built",
		zap.Int("tables", len(snap.TableNames)),
		zap.Int("objects", len(snap.ObjectNames)),
		zap.Int("types", len(snap.TypeNames)),
		zap.Int("warnings", len(warnings)),
		zap.Duration("elapsed", time.Since(start)))

	return snap, warnings, nil
}

// buildTable fetches one table's columns, constraints and indexes. A failed
// piece leaves that list empty and records a warning; the table itself stays
// in the snapshot.
func (e *Extractor) buildTable(ctx context.Context, querySchema, table string, warnings chan<- string) *database.TableInfo {
	columns, err := withRetry(ctx, e.retry, e.logger, func(ctx context.Context) ([]database.ColumnInfo, error) {
		qctx, cancel := e.queryCtx(ctx)
		defer cancel()
		return e.catalog.ListColumns(qctx, querySchema, table)
	})
	if err != nil {
		e.logger.Warn("columns unavailable", zap.String("table", table), zap.Error(err))
		warnings <- fmt.Sprintf("table %s: columns unavailable: %v", table, err)
		columns = nil
	}

	constraints, err := withRetry(ctx, e.retry, e.logger, func(ctx context.Context) ([]database.ConstraintInfo, error) {
		qctx, cancel := e.queryCtx(ctx)
		defer cancel()
		return e.catalog.ListConstraints(qctx, querySchema, table)
	})
	if err != nil {
		e.logger.Warn("constraints unavailable", zap.String("table", table), zap.Error(err))
		warnings <- fmt.Sprintf("table %s: constraints unavailable: %v", table, err)
		constraints = nil
	}

	indexes, err := withRetry(ctx, e.retry, e.logger, func(ctx context.Context) ([]database.IndexInfo, error) {
		qctx, cancel := e.queryCtx(ctx)
		defer cancel()
		return e.catalog.ListIndexes(qctx, querySchema, table)
	})
	if err != nil {
		e.logger.Warn("indexes unavailable", zap.String("table", table), zap.Error(err))
		warnings <- fmt.Sprintf("table %s: indexes unavailable: %v", table, err)
		indexes = nil
	}

	info := &database.TableInfo{
		Name:        strings.ToUpper(table),
		Schema:      strings.ToUpper(querySchema),
		Columns:     columns,
		Constraints: constraints,
		Indexes:     indexes,
	}
	// Referenced table names feed relationship lookups keyed by the
	// upper-cased table names, so normalize them here once.
	for i := range info.Constraints {
		info.Constraints[i].ReferencedTable = strings.ToUpper(info.Constraints[i].ReferencedTable)
	}
	return info
}
