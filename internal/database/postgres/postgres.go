/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strings"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq" // registers the "postgres" driver

	"github.com/dbscope/dbscope/internal/config"
	"github.com/dbscope/dbscope/internal/database"
)

// postgresHandler struct implements database.DialectHandler for PostgreSQL.
type postgresHandler struct{}

var _ database.DialectHandler = (*postgresHandler)(nil)

// CreateCloudSQLPool for PostgreSQL
func (h postgresHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("user=%s password=%s database=%s", cfg.User, cfg.Password, cfg.DBName)
	pgxCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	var opts []cloudsqlconn.Option
	if cfg.UsePrivateIP {
		opts = append(opts, cloudsqlconn.WithDefaultDialOptions(cloudsqlconn.WithPrivateIP()))
	}
	d, err := cloudsqlconn.NewDialer(context.Background(), opts...)
	if err != nil {
		return nil, err
	}

	instanceConnectionName := cfg.CloudSQLInstanceConnectionName
	pgxCfg.DialFunc = func(ctx context.Context, network, instance string) (net.Conn, error) {
		return d.Dial(ctx, instanceConnectionName)
	}

	dbURI := stdlib.RegisterConnConfig(pgxCfg)
	dbPool, err := sql.Open("pgx", dbURI)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	return dbPool, nil
}

// CreateStandardPool creates a standard PostgreSQL connection pool. With
// native driver mode enabled the pool runs on pgx; otherwise on lib/pq.
func (h postgresHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	if cfg.NativeDriver {
		pgxCfg, err := pgx.ParseConfig(connStr)
		if err != nil {
			return nil, fmt.Errorf("pgx.ParseConfig: %w", err)
		}
		dbPool, err := sql.Open("pgx", stdlib.RegisterConnConfig(pgxCfg))
		if err != nil {
			return nil, fmt.Errorf("sql.Open (pgx): %w", err)
		}
		return dbPool, nil
	}

	dbPool, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	return dbPool, nil
}

// QuoteIdentifier for PostgreSQL
func (h postgresHandler) QuoteIdentifier(name string) string {
	name = strings.Replace(name, `"`, `""`, -1)
	return fmt.Sprintf(`"%s"`, name)
}

// DefaultSchema for PostgreSQL
func (h postgresHandler) DefaultSchema(ctx context.Context, db *database.DB) (string, error) {
	var schema string
	if err := db.Pool.QueryRowContext(ctx, "SELECT current_schema()").Scan(&schema); err != nil {
		return "", fmt.Errorf("error querying current schema: %w", err)
	}
	return schema, nil
}

// ListTables for PostgreSQL
func (h postgresHandler) ListTables(ctx context.Context, db *database.DB, schema string) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		AND table_type = 'BASE TABLE'
		ORDER BY table_name;`

	rows, err := db.Pool.QueryContext(ctx, query, schema)
	if err != nil {
		return nil, fmt.Errorf("error querying tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("error scanning table name: %w", err)
		}
		tables = append(tables, tableName)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table rows: %w", err)
	}

	return tables, nil
}

// ListColumns for PostgreSQL
func (h postgresHandler) ListColumns(ctx context.Context, db *database.DB, schema, table string) ([]database.ColumnInfo, error) {
	query := `
		SELECT column_name, data_type, is_nullable, column_default, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = $1
		AND table_name = $2
		ORDER BY ordinal_position;`

	rows, err := db.Pool.QueryContext(ctx, query, schema, table)
	if err != nil {
		return nil, fmt.Errorf("error querying columns for table %s: %w", table, err)
	}
	defer rows.Close()

	var columns []database.ColumnInfo
	for rows.Next() {
		var (
			col        database.ColumnInfo
			isNullable string
			colDefault sql.NullString
		)
		if err := rows.Scan(&col.Name, &col.NativeType, &isNullable, &colDefault, &col.Position); err != nil {
			return nil, fmt.Errorf("error scanning column row: %w", err)
		}
		col.DataType = database.TypeCategory(col.NativeType)
		col.Nullable = isNullable == "YES"
		if colDefault.Valid {
			col.Default = &colDefault.String
		}
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column rows: %w", err)
	}

	return columns, nil
}

// ListConstraints for PostgreSQL. Key constraints come from the standard
// information_schema views; check constraints need a second query because
// check_clause lives in a separate view.
func (h postgresHandler) ListConstraints(ctx context.Context, db *database.DB, schema, table string) ([]database.ConstraintInfo, error) {
	query := `
		SELECT
			tc.constraint_name,
			tc.constraint_type,
			kcu.column_name,
			ccu.table_name AS referenced_table,
			ccu.column_name AS referenced_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		LEFT JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
			AND tc.constraint_type = 'FOREIGN KEY'
		WHERE tc.table_schema = $1
			AND tc.table_name = $2
			AND tc.constraint_type IN ('PRIMARY KEY', 'FOREIGN KEY', 'UNIQUE')
		ORDER BY tc.constraint_name, kcu.ordinal_position;`

	rows, err := db.Pool.QueryContext(ctx, query, schema, table)
	if err != nil {
		return nil, fmt.Errorf("error querying constraints for table %s: %w", table, err)
	}
	defer rows.Close()

	var constraints []database.ConstraintInfo
	index := make(map[string]int)
	for rows.Next() {
		var (
			name, kind, column string
			refTable, refCol   sql.NullString
		)
		if err := rows.Scan(&name, &kind, &column, &refTable, &refCol); err != nil {
			return nil, fmt.Errorf("error scanning constraint row: %w", err)
		}
		i, ok := index[name]
		if !ok {
			constraints = append(constraints, database.ConstraintInfo{Name: name, Kind: kind})
			i = len(constraints) - 1
			index[name] = i
		}
		c := &constraints[i]
		c.Columns = appendUnique(c.Columns, column)
		if refTable.Valid {
			c.ReferencedTable = refTable.String
		}
		if refCol.Valid {
			c.ReferencedColumns = appendUnique(c.ReferencedColumns, refCol.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating constraint rows: %w", err)
	}

	checks, err := h.listCheckConstraints(ctx, db, schema, table)
	if err != nil {
		return nil, err
	}
	return append(constraints, checks...), nil
}

func (h postgresHandler) listCheckConstraints(ctx context.Context, db *database.DB, schema, table string) ([]database.ConstraintInfo, error) {
	query := `
		SELECT cc.constraint_name, cc.check_clause
		FROM information_schema.check_constraints cc
		JOIN information_schema.table_constraints tc
			ON tc.constraint_name = cc.constraint_name
			AND tc.constraint_schema = cc.constraint_schema
		WHERE tc.table_schema = $1
			AND tc.table_name = $2
			AND tc.constraint_type = 'CHECK'
		ORDER BY cc.constraint_name;`

	rows, err := db.Pool.QueryContext(ctx, query, schema, table)
	if err != nil {
		return nil, fmt.Errorf("error querying check constraints for table %s: %w", table, err)
	}
	defer rows.Close()

	var checks []database.ConstraintInfo
	for rows.Next() {
		var name, clause string
		if err := rows.Scan(&name, &clause); err != nil {
			return nil, fmt.Errorf("error scanning check constraint row: %w", err)
		}
		kind := database.ConstraintCheck
		if strings.HasSuffix(strings.ToUpper(clause), "IS NOT NULL") {
			kind = database.ConstraintNotNull
		}
		checks = append(checks, database.ConstraintInfo{
			Name:        name,
			Kind:        kind,
			CheckClause: clause,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating check constraint rows: %w", err)
	}
	return checks, nil
}

// ListIndexes for PostgreSQL, one row per indexed column.
func (h postgresHandler) ListIndexes(ctx context.Context, db *database.DB, schema, table string) ([]database.IndexInfo, error) {
	query := `
		SELECT i.relname AS index_name,
			a.attname AS column_name,
			ix.indisunique,
			ix.indisvalid,
			COALESCE(ts.spcname, '') AS tablespace
		FROM pg_class t
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_index ix ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		LEFT JOIN pg_tablespace ts ON i.reltablespace = ts.oid
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		WHERE n.nspname = $1
			AND t.relname = $2
		ORDER BY i.relname, array_position(ix.indkey, a.attnum);`

	rows, err := db.Pool.QueryContext(ctx, query, schema, table)
	if err != nil {
		return nil, fmt.Errorf("error querying indexes for table %s: %w", table, err)
	}
	defer rows.Close()

	var indexes []database.IndexInfo
	index := make(map[string]int)
	for rows.Next() {
		var (
			name, column, tablespace string
			unique, valid            bool
		)
		if err := rows.Scan(&name, &column, &unique, &valid, &tablespace); err != nil {
			return nil, fmt.Errorf("error scanning index row: %w", err)
		}
		i, ok := index[name]
		if !ok {
			status := "VALID"
			if !valid {
				status = "INVALID"
			}
			indexes = append(indexes, database.IndexInfo{
				Name:     name,
				Unique:   unique,
				Location: tablespace,
				Status:   status,
			})
			i = len(indexes) - 1
			index[name] = i
		}
		indexes[i].Columns = appendUnique(indexes[i].Columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating index rows: %w", err)
	}
	return indexes, nil
}

// ListCodeObjects for PostgreSQL: routines plus triggers. PostgreSQL has no
// invalid-object state, so status is always VALID and timestamps are absent.
func (h postgresHandler) ListCodeObjects(ctx context.Context, db *database.DB, schema string) ([]database.CodeObjectInfo, error) {
	query := `
		SELECT routine_name, routine_type
		FROM information_schema.routines
		WHERE routine_schema = $1
		ORDER BY routine_name;`

	rows, err := db.Pool.QueryContext(ctx, query, schema)
	if err != nil {
		return nil, fmt.Errorf("error querying routines: %w", err)
	}
	defer rows.Close()

	var objects []database.CodeObjectInfo
	for rows.Next() {
		var name string
		var kind sql.NullString
		if err := rows.Scan(&name, &kind); err != nil {
			return nil, fmt.Errorf("error scanning routine row: %w", err)
		}
		objects = append(objects, database.CodeObjectInfo{
			Name:   name,
			Kind:   kind.String,
			Owner:  schema,
			Status: "VALID",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating routine rows: %w", err)
	}

	triggerQuery := `
		SELECT DISTINCT trigger_name
		FROM information_schema.triggers
		WHERE trigger_schema = $1
		ORDER BY trigger_name;`

	trows, err := db.Pool.QueryContext(ctx, triggerQuery, schema)
	if err != nil {
		return nil, fmt.Errorf("error querying triggers: %w", err)
	}
	defer trows.Close()

	for trows.Next() {
		var name string
		if err := trows.Scan(&name); err != nil {
			return nil, fmt.Errorf("error scanning trigger row: %w", err)
		}
		objects = append(objects, database.CodeObjectInfo{
			Name:   name,
			Kind:   "TRIGGER",
			Owner:  schema,
			Status: "VALID",
		})
	}
	if err := trows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trigger rows: %w", err)
	}

	return objects, nil
}

// ListUserTypes for PostgreSQL: standalone composite types map to OBJECT,
// domains over array types map to VARRAY.
func (h postgresHandler) ListUserTypes(ctx context.Context, db *database.DB, schema string) ([]database.UserTypeInfo, error) {
	query := `
		SELECT t.typname
		FROM pg_type t
		JOIN pg_namespace n ON t.typnamespace = n.oid
		JOIN pg_class c ON c.oid = t.typrelid
		WHERE n.nspname = $1
			AND t.typtype = 'c'
			AND c.relkind = 'c'
		ORDER BY t.typname;`

	rows, err := db.Pool.QueryContext(ctx, query, schema)
	if err != nil {
		return nil, fmt.Errorf("error querying composite types: %w", err)
	}
	defer rows.Close()

	var types []database.UserTypeInfo
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("error scanning composite type row: %w", err)
		}
		types = append(types, database.UserTypeInfo{
			Name:     name,
			Category: database.UserTypeObject,
			Owner:    schema,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating composite type rows: %w", err)
	}

	for i := range types {
		attrs, err := h.listTypeAttributes(ctx, db, schema, types[i].Name)
		if err != nil {
			return nil, err
		}
		types[i].Attributes = attrs
	}

	domainQuery := `
		SELECT t.typname, bt.typcategory
		FROM pg_type t
		JOIN pg_namespace n ON t.typnamespace = n.oid
		JOIN pg_type bt ON t.typbasetype = bt.oid
		WHERE n.nspname = $1
			AND t.typtype = 'd'
		ORDER BY t.typname;`

	drows, err := db.Pool.QueryContext(ctx, domainQuery, schema)
	if err != nil {
		return nil, fmt.Errorf("error querying domain types: %w", err)
	}
	defer drows.Close()

	for drows.Next() {
		var name, baseCategory string
		if err := drows.Scan(&name, &baseCategory); err != nil {
			return nil, fmt.Errorf("error scanning domain type row: %w", err)
		}
		category := database.UserTypeObject
		if baseCategory == "A" {
			category = database.UserTypeVarray
		}
		types = append(types, database.UserTypeInfo{
			Name:     name,
			Category: category,
			Owner:    schema,
		})
	}
	if err := drows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating domain type rows: %w", err)
	}

	return types, nil
}

func (h postgresHandler) listTypeAttributes(ctx context.Context, db *database.DB, schema, typeName string) ([]database.TypeAttribute, error) {
	query := `
		SELECT a.attname, format_type(a.atttypid, a.atttypmod)
		FROM pg_attribute a
		JOIN pg_class c ON a.attrelid = c.oid
		JOIN pg_type t ON t.typrelid = c.oid
		JOIN pg_namespace n ON t.typnamespace = n.oid
		WHERE n.nspname = $1
			AND t.typname = $2
			AND a.attnum > 0
		ORDER BY a.attnum;`

	rows, err := db.Pool.QueryContext(ctx, query, schema, typeName)
	if err != nil {
		return nil, fmt.Errorf("error querying attributes for type %s: %w", typeName, err)
	}
	defer rows.Close()

	var attrs []database.TypeAttribute
	for rows.Next() {
		var attr database.TypeAttribute
		if err := rows.Scan(&attr.Name, &attr.DataType); err != nil {
			return nil, fmt.Errorf("error scanning type attribute row: %w", err)
		}
		attrs = append(attrs, attr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating type attribute rows: %w", err)
	}
	return attrs, nil
}

// ObjectSource for PostgreSQL. An unknown object yields an empty string,
// not an error: the catalog hides objects the caller may not see.
func (h postgresHandler) ObjectSource(ctx context.Context, db *database.DB, schema, kind, name string) (string, error) {
	var query string
	switch strings.ToUpper(kind) {
	case "FUNCTION", "PROCEDURE":
		query = `
			SELECT pg_get_functiondef(p.oid)
			FROM pg_proc p
			JOIN pg_namespace n ON p.pronamespace = n.oid
			WHERE n.nspname = $1 AND p.proname = $2
			LIMIT 1;`
	case "TRIGGER":
		query = `
			SELECT pg_get_triggerdef(trg.oid)
			FROM pg_trigger trg
			JOIN pg_class c ON trg.tgrelid = c.oid
			JOIN pg_namespace n ON c.relnamespace = n.oid
			WHERE n.nspname = $1 AND trg.tgname = $2 AND NOT trg.tgisinternal
			LIMIT 1;`
	case "VIEW":
		query = `
			SELECT pg_get_viewdef(c.oid, true)
			FROM pg_class c
			JOIN pg_namespace n ON c.relnamespace = n.oid
			WHERE n.nspname = $1 AND c.relname = $2 AND c.relkind IN ('v', 'm');`
	default:
		return "", nil
	}

	var source sql.NullString
	err := db.Pool.QueryRowContext(ctx, query, schema, name).Scan(&source)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("failed to retrieve source of %s %s: %w", strings.ToLower(kind), name, err)
	}
	return source.String, nil
}

// VendorInfo for PostgreSQL
func (h postgresHandler) VendorInfo(ctx context.Context, db *database.DB) (*database.VendorInfo, error) {
	query := `SELECT current_setting('server_version'), current_schema(), version()`

	var version, schema, fullVersion string
	if err := db.Pool.QueryRowContext(ctx, query).Scan(&version, &schema, &fullVersion); err != nil {
		return nil, fmt.Errorf("error querying server version: %w", err)
	}

	return &database.VendorInfo{
		Vendor:         "PostgreSQL",
		Version:        version,
		Schema:         schema,
		AdditionalInfo: []string{fullVersion},
	}, nil
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}

func init() {
	database.RegisterDialectHandler("postgres", postgresHandler{})
	database.RegisterDialectHandler("cloudsqlpostgres", postgresHandler{})
}
