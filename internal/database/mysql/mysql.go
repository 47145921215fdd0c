package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"strings"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/go-sql-driver/mysql"

	"github.com/dbscope/dbscope/internal/config"
	"github.com/dbscope/dbscope/internal/database"
)

type mysqlHandler struct{}

var _ database.DialectHandler = (*mysqlHandler)(nil)

func (h mysqlHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	instanceConnectionName := cfg.CloudSQLInstanceConnectionName
	if cfg.User == "" || cfg.Password == "" || cfg.DBName == "" || instanceConnectionName == "" {
		return nil, fmt.Errorf("missing required CloudSQL connection parameter (user, pass, db, instance)")
	}

	d, err := cloudsqlconn.NewDialer(context.Background())
	if err != nil {
		return nil, fmt.Errorf("cloudsqlconn.NewDialer: %w", err)
	}

	var opts []cloudsqlconn.DialOption
	if cfg.UsePrivateIP {
		opts = append(opts, cloudsqlconn.WithPrivateIP())
	}

	network := fmt.Sprintf("cloudsql-%s", instanceConnectionName)

	mysql.RegisterDialContext(network,
		func(ctx context.Context, addr string) (net.Conn, error) {
			conn, dialErr := d.Dial(ctx, instanceConnectionName, opts...)
			if dialErr != nil {
				log.Printf("ERROR: Cloud SQL dial failed for %s: %v", instanceConnectionName, dialErr)
			}
			return conn, dialErr
		})

	mysqlCfg := mysql.Config{
		User:                 cfg.User,
		Passwd:               cfg.Password,
		Net:                  network,
		Addr:                 instanceConnectionName,
		DBName:               cfg.DBName,
		AllowNativePasswords: true,
		ParseTime:            true,
	}

	dbPool, err := sql.Open("mysql", mysqlCfg.FormatDSN())
	if err != nil {
		mysql.DeregisterDialContext(network)
		d.Close()
		return nil, fmt.Errorf("sql.Open failed for CloudSQL MySQL: %w", err)
	}
	return dbPool, nil
}

func (h mysqlHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	mysqlCfg := mysql.Config{
		User:                 cfg.User,
		Passwd:               cfg.Password,
		Net:                  "tcp",
		Addr:                 fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		DBName:               cfg.DBName,
		AllowNativePasswords: true,
		ParseTime:            true,
	}

	if cfg.NativeDriver {
		connector, err := mysql.NewConnector(&mysqlCfg)
		if err != nil {
			return nil, fmt.Errorf("mysql.NewConnector: %w", err)
		}
		return sql.OpenDB(connector), nil
	}

	dbPool, err := sql.Open("mysql", mysqlCfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("sql.Open (standard mysql): %w", err)
	}
	return dbPool, nil
}

func (h mysqlHandler) QuoteIdentifier(name string) string {
	name = strings.ReplaceAll(name, "`", "``")
	return fmt.Sprintf("`%s`", name)
}

func (h mysqlHandler) DefaultSchema(ctx context.Context, db *database.DB) (string, error) {
	var schema sql.NullString
	if err := db.Pool.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&schema); err != nil {
		return "", fmt.Errorf("error querying current database: %w", err)
	}
	return schema.String, nil
}

func (h mysqlHandler) ListTables(ctx context.Context, db *database.DB, schema string) ([]string, error) {
	query := "SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME"

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

// ListColumns for MySQL. COLUMN_TYPE carries the display width and
// signedness, which makes a better native label than DATA_TYPE.
func (h mysqlHandler) ListColumns(ctx context.Context, db *database.DB, schema, table string) ([]database.ColumnInfo, error) {
	query := `SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT, ORDINAL_POSITION
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
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

// ListConstraints for MySQL. KEY_COLUMN_USAGE exposes referenced table and
// column directly, so no third join is needed for foreign keys.
func (h mysqlHandler) ListConstraints(ctx context.Context, db *database.DB, schema, table string) ([]database.ConstraintInfo, error) {
	query := `SELECT
			tc.CONSTRAINT_NAME,
			tc.CONSTRAINT_TYPE,
			kcu.COLUMN_NAME,
			kcu.REFERENCED_TABLE_NAME,
			kcu.REFERENCED_COLUMN_NAME
		FROM information_schema.TABLE_CONSTRAINTS tc
		JOIN information_schema.KEY_COLUMN_USAGE kcu
			ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
			AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
			AND tc.TABLE_NAME = kcu.TABLE_NAME
		WHERE tc.TABLE_SCHEMA = ?
			AND tc.TABLE_NAME = ?
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
		FROM information_schema.CHECK_CONSTRAINTS cc
		JOIN information_schema.TABLE_CONSTRAINTS tc
			ON tc.CONSTRAINT_NAME = cc.CONSTRAINT_NAME
			AND tc.CONSTRAINT_SCHEMA = cc.CONSTRAINT_SCHEMA
		WHERE tc.TABLE_SCHEMA = ?
			AND tc.TABLE_NAME = ?
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

// ListIndexes for MySQL via the STATISTICS view. MySQL keeps indexes inside
// the table's storage, so the location field stays empty.
func (h mysqlHandler) ListIndexes(ctx context.Context, db *database.DB, schema, table string) ([]database.IndexInfo, error) {
	query := `SELECT INDEX_NAME, COLUMN_NAME, NON_UNIQUE
		FROM information_schema.STATISTICS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY INDEX_NAME, SEQ_IN_INDEX`

	rows, err := db.Pool.QueryContext(ctx, query, schema, table)
	if err != nil {
		return nil, fmt.Errorf("error querying indexes for table %s: %w", table, err)
	}
	defer rows.Close()

	var indexes []database.IndexInfo
	index := make(map[string]int)
	for rows.Next() {
		var (
			name, column string
			nonUnique    int
		)
		if err := rows.Scan(&name, &column, &nonUnique); err != nil {
			return nil, fmt.Errorf("error scanning index row: %w", err)
		}
		i, ok := index[name]
		if !ok {
			indexes = append(indexes, database.IndexInfo{
				Name:   name,
				Unique: nonUnique == 0,
				Status: "VALID",
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

func (h mysqlHandler) ListCodeObjects(ctx context.Context, db *database.DB, schema string) ([]database.CodeObjectInfo, error) {
	query := `SELECT ROUTINE_NAME, ROUTINE_TYPE, CREATED, LAST_ALTERED
		FROM information_schema.ROUTINES
		WHERE ROUTINE_SCHEMA = ?
		ORDER BY ROUTINE_NAME`

	rows, err := db.Pool.QueryContext(ctx, query, schema)
	if err != nil {
		return nil, fmt.Errorf("error querying routines: %w", err)
	}
	defer rows.Close()

	var objects []database.CodeObjectInfo
	for rows.Next() {
		var (
			obj               database.CodeObjectInfo
			created, modified sql.NullTime
		)
		if err := rows.Scan(&obj.Name, &obj.Kind, &created, &modified); err != nil {
			return nil, fmt.Errorf("error scanning routine row: %w", err)
		}
		obj.Owner = schema
		obj.Status = "VALID"
		if created.Valid {
			obj.Created = &created.Time
		}
		if modified.Valid {
			obj.Modified = &modified.Time
		}
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating routine rows: %w", err)
	}

	triggerQuery := `SELECT TRIGGER_NAME, CREATED
		FROM information_schema.TRIGGERS
		WHERE TRIGGER_SCHEMA = ?
		ORDER BY TRIGGER_NAME`

	trows, err := db.Pool.QueryContext(ctx, triggerQuery, schema)
	if err != nil {
		return nil, fmt.Errorf("error querying triggers: %w", err)
	}
	defer trows.Close()

	for trows.Next() {
		var (
			obj     database.CodeObjectInfo
			created sql.NullTime
		)
		if err := trows.Scan(&obj.Name, &created); err != nil {
			return nil, fmt.Errorf("error scanning trigger row: %w", err)
		}
		obj.Kind = "TRIGGER"
		obj.Owner = schema
		obj.Status = "VALID"
		if created.Valid {
			obj.Created = &created.Time
		}
		objects = append(objects, obj)
	}
	if err := trows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trigger rows: %w", err)
	}

	return objects, nil
}

// ListUserTypes for MySQL. MySQL has no user-defined composite types.
func (h mysqlHandler) ListUserTypes(ctx context.Context, db *database.DB, schema string) ([]database.UserTypeInfo, error) {
	return nil, nil
}

func (h mysqlHandler) ObjectSource(ctx context.Context, db *database.DB, schema, kind, name string) (string, error) {
	var (
		query string
		args  []any
	)
	switch strings.ToUpper(kind) {
	case "FUNCTION", "PROCEDURE":
		query = `SELECT ROUTINE_DEFINITION FROM information_schema.ROUTINES
			WHERE ROUTINE_SCHEMA = ? AND ROUTINE_NAME = ? AND ROUTINE_TYPE = ? LIMIT 1`
		args = []any{schema, name, strings.ToUpper(kind)}
	case "TRIGGER":
		query = `SELECT ACTION_STATEMENT FROM information_schema.TRIGGERS
			WHERE TRIGGER_SCHEMA = ? AND TRIGGER_NAME = ? LIMIT 1`
		args = []any{schema, name}
	case "VIEW":
		query = `SELECT VIEW_DEFINITION FROM information_schema.VIEWS
			WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? LIMIT 1`
		args = []any{schema, name}
	default:
		return "", nil
	}

	// ROUTINE_DEFINITION comes back NULL when the caller lacks privileges
	// on the routine body, which collapses to an empty source.
	var source sql.NullString
	err := db.Pool.QueryRowContext(ctx, query, args...).Scan(&source)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("failed to retrieve source of %s %s: %w", strings.ToLower(kind), name, err)
	}
	return source.String, nil
}

func (h mysqlHandler) VendorInfo(ctx context.Context, db *database.DB) (*database.VendorInfo, error) {
	query := "SELECT VERSION(), DATABASE(), @@version_comment"

	var (
		version, comment string
		schema           sql.NullString
	)
	if err := db.Pool.QueryRowContext(ctx, query).Scan(&version, &schema, &comment); err != nil {
		return nil, fmt.Errorf("error querying server version: %w", err)
	}

	return &database.VendorInfo{
		Vendor:         "MySQL",
		Version:        version,
		Schema:         schema.String,
		AdditionalInfo: []string{comment},
	}, nil
}

func init() {
	database.RegisterDialectHandler("mysql", mysqlHandler{})
	database.RegisterDialectHandler("cloudsqlmysql", mysqlHandler{})
}
