package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dbscope/dbscope/internal/config"
	"github.com/dbscope/dbscope/internal/database"
)

// Helper to create a mock DB and handler for testing
func newMockPostgresDB(t *testing.T) (*database.DB, sqlmock.Sqlmock, *postgresHandler) {
	t.Helper()
	mockDb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}

	handler := postgresHandler{}
	db := &database.DB{
		Pool:    mockDb,
		Handler: &handler,
		Config: config.DatabaseConfig{
			Dialect: "postgres",
		},
	}
	return db, mock, &handler
}

func TestPostgresQuoteIdentifier(t *testing.T) {
	handler := postgresHandler{}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Simple name", "mytable", `"mytable"`},
		{"Name with spaces", "my table", `"my table"`},
		{"Name with quotes", `my"table`, `"my""table"`},
		{"Empty name", "", `""`},
		{"Keyword", "user", `"user"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := handler.QuoteIdentifier(tt.in); got != tt.want {
				t.Errorf("QuoteIdentifier() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPostgresDefaultSchema(t *testing.T) {
	db, mock, handler := newMockPostgresDB(t)
	defer db.Close()
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT current_schema()")).
		WillReturnRows(sqlmock.NewRows([]string{"current_schema"}).AddRow("public"))

	schema, err := handler.DefaultSchema(ctx, db)
	if err != nil {
		t.Fatalf("DefaultSchema() unexpected error: %v", err)
	}
	if schema != "public" {
		t.Errorf("DefaultSchema() got %q, want %q", schema, "public")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgresListTables(t *testing.T) {
	db, mock, handler := newMockPostgresDB(t)
	defer db.Close()
	ctx := context.Background()

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		AND table_type = 'BASE TABLE'
		ORDER BY table_name;`

	expectedQuery := regexp.QuoteMeta(query)

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"table_name"}).
			AddRow("customers").
			AddRow("orders")
		mock.ExpectQuery(expectedQuery).WithArgs("public").WillReturnRows(rows)

		tables, err := handler.ListTables(ctx, db, "public")
		if err != nil {
			t.Fatalf("ListTables() unexpected error: %v", err)
		}

		if len(tables) != 2 || tables[0] != "customers" || tables[1] != "orders" {
			t.Errorf("ListTables() got %v, want [customers orders]", tables)
		}
	})

	t.Run("Query Error", func(t *testing.T) {
		dbError := errors.New("connection failed")
		mock.ExpectQuery(expectedQuery).WithArgs("public").WillReturnError(dbError)

		_, err := handler.ListTables(ctx, db, "public")
		if err == nil {
			t.Fatalf("ListTables() expected error, got nil")
		}
		if !errors.Is(err, dbError) {
			t.Errorf("ListTables() got error %v, want error containing %v", err, dbError)
		}
	})

	t.Run("Scan Error", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"table_name"}).
			AddRow("customers").
			AddRow(nil) // Simulate a scan error
		mock.ExpectQuery(expectedQuery).WithArgs("public").WillReturnRows(rows)

		_, err := handler.ListTables(ctx, db, "public")
		if err == nil {
			t.Fatalf("ListTables() expected scan error, got nil")
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgresListColumns(t *testing.T) {
	db, mock, handler := newMockPostgresDB(t)
	defer db.Close()
	ctx := context.Background()
	tableName := "orders"

	query := `
		SELECT column_name, data_type, is_nullable, column_default, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = $1
		AND table_name = $2
		ORDER BY ordinal_position;`
	expectedQuery := regexp.QuoteMeta(query)

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "column_default", "ordinal_position"}).
			AddRow("id", "integer", "NO", nil, 1).
			AddRow("email", "character varying", "YES", "''::character varying", 2)
		mock.ExpectQuery(expectedQuery).WithArgs("public", tableName).WillReturnRows(rows)

		cols, err := handler.ListColumns(ctx, db, "public", tableName)
		if err != nil {
			t.Fatalf("ListColumns() unexpected error: %v", err)
		}
		if len(cols) != 2 {
			t.Fatalf("ListColumns() got %d columns, want 2", len(cols))
		}

		id := cols[0]
		if id.Name != "id" || id.NativeType != "integer" || id.DataType != database.CategoryNumber {
			t.Errorf("ListColumns() col 0 got %+v", id)
		}
		if id.Nullable || id.Default != nil {
			t.Errorf("ListColumns() col 0 nullable/default got %+v", id)
		}

		email := cols[1]
		if email.DataType != database.CategoryString || !email.Nullable {
			t.Errorf("ListColumns() col 1 got %+v", email)
		}
		if email.Default == nil || *email.Default != "''::character varying" {
			t.Errorf("ListColumns() col 1 default got %v", email.Default)
		}
	})

	t.Run("Query Error", func(t *testing.T) {
		dbError := errors.New("table not found")
		mock.ExpectQuery(expectedQuery).WithArgs("public", tableName).WillReturnError(dbError)

		_, err := handler.ListColumns(ctx, db, "public", tableName)
		if err == nil {
			t.Fatalf("ListColumns() expected error, got nil")
		}
		if !errors.Is(err, dbError) {
			t.Errorf("ListColumns() got error %v, want error containing %v", err, dbError)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgresListConstraints(t *testing.T) {
	db, mock, handler := newMockPostgresDB(t)
	defer db.Close()
	ctx := context.Background()
	tableName := "orders"

	keyQuery := regexp.QuoteMeta(`
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
		ORDER BY tc.constraint_name, kcu.ordinal_position;`)

	checkQuery := regexp.QuoteMeta(`
		SELECT cc.constraint_name, cc.check_clause
		FROM information_schema.check_constraints cc
		JOIN information_schema.table_constraints tc
			ON tc.constraint_name = cc.constraint_name
			AND tc.constraint_schema = cc.constraint_schema
		WHERE tc.table_schema = $1
			AND tc.table_name = $2
			AND tc.constraint_type = 'CHECK'
		ORDER BY cc.constraint_name;`)

	t.Run("Success", func(t *testing.T) {
		keyRows := sqlmock.NewRows([]string{"constraint_name", "constraint_type", "column_name", "referenced_table", "referenced_column"}).
			AddRow("orders_customer_fk", "FOREIGN KEY", "customer_id", "customers", "id").
			AddRow("orders_customer_fk", "FOREIGN KEY", "customer_id", "customers", "id"). // join fan-out duplicate
			AddRow("orders_pkey", "PRIMARY KEY", "id", nil, nil)
		mock.ExpectQuery(keyQuery).WithArgs("public", tableName).WillReturnRows(keyRows)

		checkRows := sqlmock.NewRows([]string{"constraint_name", "check_clause"}).
			AddRow("orders_qty_check", "((quantity > 0))").
			AddRow("2200_16425_2_not_null", "customer_id IS NOT NULL")
		mock.ExpectQuery(checkQuery).WithArgs("public", tableName).WillReturnRows(checkRows)

		constraints, err := handler.ListConstraints(ctx, db, "public", tableName)
		if err != nil {
			t.Fatalf("ListConstraints() unexpected error: %v", err)
		}
		if len(constraints) != 4 {
			t.Fatalf("ListConstraints() got %d constraints, want 4: %+v", len(constraints), constraints)
		}

		fk := constraints[0]
		if fk.Kind != database.ConstraintForeignKey {
			t.Errorf("constraint 0 kind got %q, want FOREIGN KEY", fk.Kind)
		}
		if len(fk.Columns) != 1 || fk.Columns[0] != "customer_id" {
			t.Errorf("foreign key columns got %v, want [customer_id]", fk.Columns)
		}
		if fk.ReferencedTable != "customers" || len(fk.ReferencedColumns) != 1 || fk.ReferencedColumns[0] != "id" {
			t.Errorf("foreign key reference got %+v", fk)
		}

		pk := constraints[1]
		if pk.Kind != database.ConstraintPrimaryKey || len(pk.Columns) != 1 || pk.Columns[0] != "id" {
			t.Errorf("primary key got %+v", pk)
		}

		if constraints[2].Kind != database.ConstraintCheck || constraints[2].CheckClause != "((quantity > 0))" {
			t.Errorf("check constraint got %+v", constraints[2])
		}
		if constraints[3].Kind != database.ConstraintNotNull {
			t.Errorf("not null constraint got %+v", constraints[3])
		}
	})

	t.Run("Query Error", func(t *testing.T) {
		dbError := errors.New("permission denied")
		mock.ExpectQuery(keyQuery).WithArgs("public", tableName).WillReturnError(dbError)

		_, err := handler.ListConstraints(ctx, db, "public", tableName)
		if err == nil {
			t.Fatalf("ListConstraints() expected error, got nil")
		}
		if !errors.Is(err, dbError) {
			t.Errorf("ListConstraints() got error %v, want error containing %v", err, dbError)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgresListIndexes(t *testing.T) {
	db, mock, handler := newMockPostgresDB(t)
	defer db.Close()
	ctx := context.Background()
	tableName := "orders"

	query := regexp.QuoteMeta(`
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
		ORDER BY i.relname, array_position(ix.indkey, a.attnum);`)

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"index_name", "column_name", "indisunique", "indisvalid", "tablespace"}).
			AddRow("idx_orders_customer", "customer_id", false, true, "").
			AddRow("idx_orders_customer", "created_at", false, true, "").
			AddRow("orders_pkey", "id", true, false, "fastspace")
		mock.ExpectQuery(query).WithArgs("public", tableName).WillReturnRows(rows)

		indexes, err := handler.ListIndexes(ctx, db, "public", tableName)
		if err != nil {
			t.Fatalf("ListIndexes() unexpected error: %v", err)
		}
		if len(indexes) != 2 {
			t.Fatalf("ListIndexes() got %d indexes, want 2: %+v", len(indexes), indexes)
		}

		multi := indexes[0]
		if multi.Name != "idx_orders_customer" || len(multi.Columns) != 2 {
			t.Errorf("index 0 got %+v, want two columns", multi)
		}
		if multi.Columns[0] != "customer_id" || multi.Columns[1] != "created_at" {
			t.Errorf("index 0 column order got %v", multi.Columns)
		}
		if multi.Unique || multi.Status != "VALID" {
			t.Errorf("index 0 flags got %+v", multi)
		}

		pk := indexes[1]
		if !pk.Unique || pk.Status != "INVALID" || pk.Location != "fastspace" {
			t.Errorf("index 1 got %+v", pk)
		}
	})

	t.Run("Query Error", func(t *testing.T) {
		dbError := errors.New("catalog unavailable")
		mock.ExpectQuery(query).WithArgs("public", tableName).WillReturnError(dbError)

		_, err := handler.ListIndexes(ctx, db, "public", tableName)
		if err == nil {
			t.Fatalf("ListIndexes() expected error, got nil")
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgresListCodeObjects(t *testing.T) {
	db, mock, handler := newMockPostgresDB(t)
	defer db.Close()
	ctx := context.Background()

	routineQuery := regexp.QuoteMeta(`
		SELECT routine_name, routine_type
		FROM information_schema.routines
		WHERE routine_schema = $1
		ORDER BY routine_name;`)

	triggerQuery := regexp.QuoteMeta(`
		SELECT DISTINCT trigger_name
		FROM information_schema.triggers
		WHERE trigger_schema = $1
		ORDER BY trigger_name;`)

	t.Run("Success", func(t *testing.T) {
		routineRows := sqlmock.NewRows([]string{"routine_name", "routine_type"}).
			AddRow("calc_total", "FUNCTION").
			AddRow("sync_orders", "PROCEDURE")
		mock.ExpectQuery(routineQuery).WithArgs("public").WillReturnRows(routineRows)

		triggerRows := sqlmock.NewRows([]string{"trigger_name"}).
			AddRow("orders_audit")
		mock.ExpectQuery(triggerQuery).WithArgs("public").WillReturnRows(triggerRows)

		objects, err := handler.ListCodeObjects(ctx, db, "public")
		if err != nil {
			t.Fatalf("ListCodeObjects() unexpected error: %v", err)
		}
		if len(objects) != 3 {
			t.Fatalf("ListCodeObjects() got %d objects, want 3: %+v", len(objects), objects)
		}
		if objects[0].Name != "calc_total" || objects[0].Kind != "FUNCTION" {
			t.Errorf("object 0 got %+v", objects[0])
		}
		if objects[2].Name != "orders_audit" || objects[2].Kind != "TRIGGER" {
			t.Errorf("object 2 got %+v", objects[2])
		}
		for _, o := range objects {
			if o.Owner != "public" || o.Status != "VALID" {
				t.Errorf("object %s owner/status got %+v", o.Name, o)
			}
		}
	})

	t.Run("Query Error", func(t *testing.T) {
		dbError := errors.New("routines unavailable")
		mock.ExpectQuery(routineQuery).WithArgs("public").WillReturnError(dbError)

		_, err := handler.ListCodeObjects(ctx, db, "public")
		if err == nil {
			t.Fatalf("ListCodeObjects() expected error, got nil")
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgresListUserTypes(t *testing.T) {
	db, mock, handler := newMockPostgresDB(t)
	defer db.Close()
	ctx := context.Background()

	compositeQuery := regexp.QuoteMeta(`
		SELECT t.typname
		FROM pg_type t
		JOIN pg_namespace n ON t.typnamespace = n.oid
		JOIN pg_class c ON c.oid = t.typrelid
		WHERE n.nspname = $1
			AND t.typtype = 'c'
			AND c.relkind = 'c'
		ORDER BY t.typname;`)

	attrQuery := regexp.QuoteMeta(`
		SELECT a.attname, format_type(a.atttypid, a.atttypmod)
		FROM pg_attribute a
		JOIN pg_class c ON a.attrelid = c.oid
		JOIN pg_type t ON t.typrelid = c.oid
		JOIN pg_namespace n ON t.typnamespace = n.oid
		WHERE n.nspname = $1
			AND t.typname = $2
			AND a.attnum > 0
		ORDER BY a.attnum;`)

	domainQuery := regexp.QuoteMeta(`
		SELECT t.typname, bt.typcategory
		FROM pg_type t
		JOIN pg_namespace n ON t.typnamespace = n.oid
		JOIN pg_type bt ON t.typbasetype = bt.oid
		WHERE n.nspname = $1
			AND t.typtype = 'd'
		ORDER BY t.typname;`)

	mock.ExpectQuery(compositeQuery).WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"typname"}).AddRow("address_t"))
	mock.ExpectQuery(attrQuery).WithArgs("public", "address_t").
		WillReturnRows(sqlmock.NewRows([]string{"attname", "format_type"}).
			AddRow("street", "text").
			AddRow("city", "text"))
	mock.ExpectQuery(domainQuery).WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"typname", "typcategory"}).
			AddRow("tag_list", "A"))

	types, err := handler.ListUserTypes(ctx, db, "public")
	if err != nil {
		t.Fatalf("ListUserTypes() unexpected error: %v", err)
	}
	if len(types) != 2 {
		t.Fatalf("ListUserTypes() got %d types, want 2: %+v", len(types), types)
	}

	if types[0].Name != "address_t" || types[0].Category != database.UserTypeObject {
		t.Errorf("type 0 got %+v", types[0])
	}
	if len(types[0].Attributes) != 2 || types[0].Attributes[0].Name != "street" {
		t.Errorf("type 0 attributes got %+v", types[0].Attributes)
	}
	if types[1].Name != "tag_list" || types[1].Category != database.UserTypeVarray {
		t.Errorf("type 1 got %+v", types[1])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgresObjectSource(t *testing.T) {
	ctx := context.Background()

	functionQuery := regexp.QuoteMeta(`
			SELECT pg_get_functiondef(p.oid)
			FROM pg_proc p
			JOIN pg_namespace n ON p.pronamespace = n.oid
			WHERE n.nspname = $1 AND p.proname = $2
			LIMIT 1;`)

	t.Run("Function Found", func(t *testing.T) {
		db, mock, handler := newMockPostgresDB(t)
		defer db.Close()

		source := "CREATE OR REPLACE FUNCTION public.calc_total() ..."
		mock.ExpectQuery(functionQuery).WithArgs("public", "calc_total").
			WillReturnRows(sqlmock.NewRows([]string{"pg_get_functiondef"}).AddRow(source))

		got, err := handler.ObjectSource(ctx, db, "public", "function", "calc_total")
		if err != nil {
			t.Fatalf("ObjectSource() unexpected error: %v", err)
		}
		if got != source {
			t.Errorf("ObjectSource() got %q, want %q", got, source)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("Not Found", func(t *testing.T) {
		db, mock, handler := newMockPostgresDB(t)
		defer db.Close()

		mock.ExpectQuery(functionQuery).WithArgs("public", "nope").WillReturnError(sql.ErrNoRows)

		got, err := handler.ObjectSource(ctx, db, "public", "FUNCTION", "nope")
		if err != nil {
			t.Fatalf("ObjectSource() unexpected error: %v", err)
		}
		if got != "" {
			t.Errorf("ObjectSource() got %q, want empty string", got)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("Unknown Kind", func(t *testing.T) {
		db, _, handler := newMockPostgresDB(t)
		defer db.Close()

		got, err := handler.ObjectSource(ctx, db, "public", "SEQUENCE", "whatever")
		if err != nil {
			t.Fatalf("ObjectSource() unexpected error: %v", err)
		}
		if got != "" {
			t.Errorf("ObjectSource() got %q, want empty string for unsupported kind", got)
		}
	})

	t.Run("Database Error", func(t *testing.T) {
		db, mock, handler := newMockPostgresDB(t)
		defer db.Close()

		dbError := errors.New("connection lost")
		mock.ExpectQuery(functionQuery).WithArgs("public", "calc_total").WillReturnError(dbError)

		_, err := handler.ObjectSource(ctx, db, "public", "FUNCTION", "calc_total")
		if err == nil {
			t.Fatalf("ObjectSource() expected error, got nil")
		}
		if !errors.Is(err, dbError) {
			t.Errorf("ObjectSource() got error %v, want error containing %v", err, dbError)
		}
	})
}

func TestPostgresVendorInfo(t *testing.T) {
	db, mock, handler := newMockPostgresDB(t)
	defer db.Close()
	ctx := context.Background()

	query := regexp.QuoteMeta(`SELECT current_setting('server_version'), current_schema(), version()`)

	rows := sqlmock.NewRows([]string{"current_setting", "current_schema", "version"}).
		AddRow("16.2", "public", "PostgreSQL 16.2 on x86_64-pc-linux-gnu")
	mock.ExpectQuery(query).WillReturnRows(rows)

	info, err := handler.VendorInfo(ctx, db)
	if err != nil {
		t.Fatalf("VendorInfo() unexpected error: %v", err)
	}
	if info.Vendor != "PostgreSQL" || info.Version != "16.2" || info.Schema != "public" {
		t.Errorf("VendorInfo() got %+v", info)
	}
	if len(info.AdditionalInfo) != 1 || info.AdditionalInfo[0] != "PostgreSQL 16.2 on x86_64-pc-linux-gnu" {
		t.Errorf("VendorInfo() additional info got %v", info.AdditionalInfo)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}
