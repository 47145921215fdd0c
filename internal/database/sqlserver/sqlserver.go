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
package sqlserver

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strings"
	"time"

	"cloud.google.com/go/cloudsqlconn"
	mssql "github.com/denisenkom/go-mssqldb"

	"github.com/dbscope/dbscope/internal/config"
	"github.com/dbscope/dbscope/internal/database"
)

// sqlServerHandler struct implements database.DialectHandler for SQL Server.
type sqlServerHandler struct{}

var _ database.DialectHandler = (*sqlServerHandler)(nil)

type csqlDialer struct {
	dialer     *cloudsqlconn.Dialer
	connName   string
	usePrivate bool
}

// DialContext adheres to the mssql.Dialer interface.
func (c *csqlDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	var opts []cloudsqlconn.DialOption
	if c.usePrivate {
		opts = append(opts, cloudsqlconn.WithPrivateIP())
	}
	return c.dialer.Dial(ctx, c.connName, opts...)
}

// CreateCloudSQLPool for SQL Server
func (h sqlServerHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	instanceConnectionName := cfg.CloudSQLInstanceConnectionName
	if cfg.User == "" || cfg.Password == "" || cfg.DBName == "" || instanceConnectionName == "" {
		return nil, fmt.Errorf("missing required CloudSQL connection parameter (user, pass, db, instance)")
	}

	// WithLazyRefresh() Option is used to perform refresh
	// when needed, rather than on a scheduled interval.
	// This is recommended for serverless environments to
	// avoid background refreshes from throttling CPU.
	dialer, err := cloudsqlconn.NewDialer(context.Background(), cloudsqlconn.WithLazyRefresh())
	if err != nil {
		return nil, fmt.Errorf("cloudsqlconn.NewDailer: %w", err)
	}
	connector, err := mssql.NewConnector(fmt.Sprintf("sqlserver://%s:%s@localhost:1433?database=%s&dial=cloudsqlconn&instance=%s",
		cfg.User, cfg.Password, cfg.DBName, instanceConnectionName))
	if err != nil {
		return nil, fmt.Errorf("mssql.NewConnector: %w", err)
	}
	connector.Dialer = &csqlDialer{
		dialer:     dialer,
		connName:   instanceConnectionName,
		usePrivate: cfg.UsePrivateIP,
	}

	dbPool := sql.OpenDB(connector)

	return dbPool, nil
}

// CreateStandardPool creates a standard SQL Server connection pool. Native
// driver mode opens through an mssql connector instead of the DSN path.
func (h sqlServerHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	port := cfg.Port
	if port == 0 {
		port = 1433 // Default SQL Server port
	}
	connStr := fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s",
		cfg.User, cfg.Password, cfg.Host, port, cfg.DBName)

	if cfg.NativeDriver {
		connector, err := mssql.NewConnector(connStr)
		if err != nil {
			return nil, fmt.Errorf("mssql.NewConnector: %w", err)
		}
		return sql.OpenDB(connector), nil
	}

	dbPool, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return nil, fmt.Errorf("sql.Open (standard sqlserver): %w", err)
	}
	return dbPool, nil
}

// QuoteIdentifier for SQL Server
// SQL Server uses square brackets [] for identifiers.
// Double quotes "" are also accepted in some contexts but square brackets are standard and safer.
func (h sqlServerHandler) QuoteIdentifier(name string) string {
	return fmt.Sprintf("[%s]", name)
}

// DefaultSchema for SQL Server
func (h sqlServerHandler) DefaultSchema(ctx context.Context, db *database.DB) (string, error) {
	var schema string
	if err := db.Pool.QueryRowContext(ctx, "SELECT SCHEMA_NAME()").Scan(&schema); err != nil {
		return "", fmt.Errorf("error querying default schema: %w", err)
	}
	return schema, nil
}

// ListTables for SQL Server
func (h sqlServerHandler) ListTables(ctx context.Context, db *database.DB, schema string) ([]string, error) {
	query := `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`

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

// ListColumns for SQL Server
func (h sqlServerHandler) ListColumns(ctx context.Context, db *database.DB, schema, table string) ([]database.ColumnInfo, error) {
	query := `SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE, COLUMN_DEFAULT, ORDINAL_POSITION
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
		ORDER BY ORDINAL_POSITION`

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

// ListConstraints for SQL Server. Foreign key targets resolve through
// REFERENTIAL_CONSTRAINTS into the referenced key's column usage, matched
// by ordinal position so composite keys line up column for column.
func (h sqlServerHandler) ListConstraints(ctx context.Context, db *database.DB, schema, table string) ([]database.ConstraintInfo, error) {
	query := `SELECT
			tc.CONSTRAINT_NAME,
			tc.CONSTRAINT_TYPE,
			kcu.COLUMN_NAME,
			kcu2.TABLE_NAME AS referenced_table,
			kcu2.COLUMN_NAME AS referenced_column
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
			ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
			AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
		LEFT JOIN INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS rc
			ON rc.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
			AND rc.CONSTRAINT_SCHEMA = tc.CONSTRAINT_SCHEMA
		LEFT JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu2
			ON kcu2.CONSTRAINT_NAME = rc.UNIQUE_CONSTRAINT_NAME
			AND kcu2.CONSTRAINT_SCHEMA = rc.UNIQUE_CONSTRAINT_SCHEMA
			AND kcu2.ORDINAL_POSITION = kcu.ORDINAL_POSITION
		WHERE tc.TABLE_SCHEMA = @p1
			AND tc.TABLE_NAME = @p2
			AND tc.CONSTRAINT_TYPE IN ('PRIMARY KEY', 'FOREIGN KEY', 'UNIQUE')
		ORDER BY tc.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`

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
		c.Columns = append(c.Columns, column)
		if refTable.Valid {
			c.ReferencedTable = refTable.String
		}
		if refCol.Valid {
			c.ReferencedColumns = append(c.ReferencedColumns, refCol.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating constraint rows: %w", err)
	}

	checkQuery := `SELECT cc.CONSTRAINT_NAME, cc.CHECK_CLAUSE
		FROM INFORMATION_SCHEMA.CHECK_CONSTRAINTS cc
		JOIN INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
			ON tc.CONSTRAINT_NAME = cc.CONSTRAINT_NAME
			AND tc.CONSTRAINT_SCHEMA = cc.CONSTRAINT_SCHEMA
		WHERE tc.TABLE_SCHEMA = @p1
			AND tc.TABLE_NAME = @p2
			AND tc.CONSTRAINT_TYPE = 'CHECK'
		ORDER BY cc.CONSTRAINT_NAME`

	crows, err := db.Pool.QueryContext(ctx, checkQuery, schema, table)
	if err != nil {
		return nil, fmt.Errorf("error querying check constraints for table %s: %w", table, err)
	}
	defer crows.Close()

	for crows.Next() {
		var name, clause string
		if err := crows.Scan(&name, &clause); err != nil {
			return nil, fmt.Errorf("error scanning check constraint row: %w", err)
		}
		kind := database.ConstraintCheck
		if strings.HasSuffix(strings.ToUpper(clause), "IS NOT NULL") {
			kind = database.ConstraintNotNull
		}
		constraints = append(constraints, database.ConstraintInfo{
			Name:        name,
			Kind:        kind,
			CheckClause: clause,
		})
	}
	if err := crows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating check constraint rows: %w", err)
	}

	return constraints, nil
}

// ListIndexes for SQL Server through the sys catalog, which exposes the
// filegroup and the disabled flag the INFORMATION_SCHEMA views lack.
func (h sqlServerHandler) ListIndexes(ctx context.Context, db *database.DB, schema, table string) ([]database.IndexInfo, error) {
	query := `SELECT i.name,
			c.name,
			i.is_unique,
			CASE WHEN i.is_disabled = 1 THEN 'DISABLED' ELSE 'VALID' END,
			COALESCE(fg.name, '')
		FROM sys.indexes i
		JOIN sys.tables t ON i.object_id = t.object_id
		JOIN sys.schemas s ON t.schema_id = s.schema_id
		JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
		JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
		LEFT JOIN sys.filegroups fg ON i.data_space_id = fg.data_space_id
		WHERE s.name = @p1 AND t.name = @p2 AND i.name IS NOT NULL
		ORDER BY i.name, ic.key_ordinal`

	rows, err := db.Pool.QueryContext(ctx, query, schema, table)
	if err != nil {
		return nil, fmt.Errorf("error querying indexes for table %s: %w", table, err)
	}
	defer rows.Close()

	var indexes []database.IndexInfo
	index := make(map[string]int)
	for rows.Next() {
		var (
			name, column, status, filegroup string
			unique                          bool
		)
		if err := rows.Scan(&name, &column, &unique, &status, &filegroup); err != nil {
			return nil, fmt.Errorf("error scanning index row: %w", err)
		}
		i, ok := index[name]
		if !ok {
			indexes = append(indexes, database.IndexInfo{
				Name:     name,
				Unique:   unique,
				Location: filegroup,
				Status:   status,
			})
			i = len(indexes) - 1
			index[name] = i
		}
		indexes[i].Columns = append(indexes[i].Columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating index rows: %w", err)
	}
	return indexes, nil
}

// ListCodeObjects for SQL Server: stored procedures, functions and triggers
// from sys.objects with their creation and modification timestamps.
func (h sqlServerHandler) ListCodeObjects(ctx context.Context, db *database.DB, schema string) ([]database.CodeObjectInfo, error) {
	query := `SELECT o.name, RTRIM(o.type), o.create_date, o.modify_date
		FROM sys.objects o
		JOIN sys.schemas s ON o.schema_id = s.schema_id
		WHERE s.name = @p1
			AND o.type IN ('P', 'FN', 'IF', 'TF', 'TR')
		ORDER BY o.name`

	rows, err := db.Pool.QueryContext(ctx, query, schema)
	if err != nil {
		return nil, fmt.Errorf("error querying code objects: %w", err)
	}
	defer rows.Close()

	var objects []database.CodeObjectInfo
	for rows.Next() {
		var (
			name, typeCode    string
			created, modified time.Time
		)
		if err := rows.Scan(&name, &typeCode, &created, &modified); err != nil {
			return nil, fmt.Errorf("error scanning code object row: %w", err)
		}
		objects = append(objects, database.CodeObjectInfo{
			Name:     name,
			Kind:     objectKind(typeCode),
			Owner:    schema,
			Status:   "VALID",
			Created:  &created,
			Modified: &modified,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating code object rows: %w", err)
	}
	return objects, nil
}

func objectKind(typeCode string) string {
	switch typeCode {
	case "P":
		return "PROCEDURE"
	case "FN", "IF", "TF":
		return "FUNCTION"
	case "TR":
		return "TRIGGER"
	default:
		return typeCode
	}
}

// ListUserTypes for SQL Server. Table types carry column attributes; scalar
// alias types come back without them.
func (h sqlServerHandler) ListUserTypes(ctx context.Context, db *database.DB, schema string) ([]database.UserTypeInfo, error) {
	query := `SELECT t.name, t.is_table_type
		FROM sys.types t
		JOIN sys.schemas s ON t.schema_id = s.schema_id
		WHERE t.is_user_defined = 1 AND s.name = @p1
		ORDER BY t.name`

	rows, err := db.Pool.QueryContext(ctx, query, schema)
	if err != nil {
		return nil, fmt.Errorf("error querying user types: %w", err)
	}
	defer rows.Close()

	var types []database.UserTypeInfo
	for rows.Next() {
		var (
			name        string
			isTableType bool
		)
		if err := rows.Scan(&name, &isTableType); err != nil {
			return nil, fmt.Errorf("error scanning user type row: %w", err)
		}
		category := database.UserTypeObject
		if isTableType {
			category = database.UserTypeNestedTable
		}
		types = append(types, database.UserTypeInfo{
			Name:     name,
			Category: category,
			Owner:    schema,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user type rows: %w", err)
	}

	for i := range types {
		if types[i].Category != database.UserTypeNestedTable {
			continue
		}
		attrs, err := h.listTableTypeColumns(ctx, db, schema, types[i].Name)
		if err != nil {
			return nil, err
		}
		types[i].Attributes = attrs
	}

	return types, nil
}

func (h sqlServerHandler) listTableTypeColumns(ctx context.Context, db *database.DB, schema, typeName string) ([]database.TypeAttribute, error) {
	query := `SELECT c.name, ty.name
		FROM sys.table_types tt
		JOIN sys.schemas s ON tt.schema_id = s.schema_id
		JOIN sys.columns c ON c.object_id = tt.type_table_object_id
		JOIN sys.types ty ON ty.user_type_id = c.user_type_id
		WHERE s.name = @p1 AND tt.name = @p2
		ORDER BY c.column_id`

	rows, err := db.Pool.QueryContext(ctx, query, schema, typeName)
	if err != nil {
		return nil, fmt.Errorf("error querying columns for type %s: %w", typeName, err)
	}
	defer rows.Close()

	var attrs []database.TypeAttribute
	for rows.Next() {
		var attr database.TypeAttribute
		if err := rows.Scan(&attr.Name, &attr.DataType); err != nil {
			return nil, fmt.Errorf("error scanning type column row: %w", err)
		}
		attrs = append(attrs, attr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating type column rows: %w", err)
	}
	return attrs, nil
}

// ObjectSource for SQL Server. sys.sql_modules holds one definition per
// module regardless of kind; encrypted modules surface as NULL and are
// treated as unavailable.
func (h sqlServerHandler) ObjectSource(ctx context.Context, db *database.DB, schema, kind, name string) (string, error) {
	switch strings.ToUpper(kind) {
	case "FUNCTION", "PROCEDURE", "TRIGGER", "VIEW":
	default:
		return "", nil
	}

	query := `SELECT sm.definition
		FROM sys.sql_modules sm
		JOIN sys.objects o ON sm.object_id = o.object_id
		JOIN sys.schemas s ON o.schema_id = s.schema_id
		WHERE s.name = @p1 AND o.name = @p2`

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

// VendorInfo for SQL Server
func (h sqlServerHandler) VendorInfo(ctx context.Context, db *database.DB) (*database.VendorInfo, error) {
	query := `SELECT CONVERT(varchar(128), SERVERPROPERTY('productversion')),
		CONVERT(varchar(128), SERVERPROPERTY('edition')),
		SCHEMA_NAME(),
		@@VERSION`

	var version, edition, schema, fullVersion string
	if err := db.Pool.QueryRowContext(ctx, query).Scan(&version, &edition, &schema, &fullVersion); err != nil {
		return nil, fmt.Errorf("error querying server version: %w", err)
	}

	return &database.VendorInfo{
		Vendor:         "Microsoft SQL Server",
		Version:        version,
		Schema:         schema,
		AdditionalInfo: []string{edition, fullVersion},
	}, nil
}

func init() {
	database.RegisterDialectHandler("sqlserver", sqlServerHandler{})
	database.RegisterDialectHandler("cloudsqlsqlserver", sqlServerHandler{})
}
