package database

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockExecutor(t *testing.T, timeout time.Duration) (*Executor, sqlmock.Sqlmock, *DB) {
	t.Helper()
	mockDb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}
	db := &DB{Pool: mockDb}
	return NewExecutor(db, timeout), mock, db
}

func TestExecutorSuccess(t *testing.T) {
	exec, mock, db := newMockExecutor(t, 30*time.Second)
	defer db.Close()

	createdAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "name", "created_at"}).
		AddRow(int64(1), "Alice", createdAt).
		AddRow(nil, []byte("raw bytes"), createdAt)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, created_at FROM customers")).
		WillReturnRows(rows)

	res := exec.Execute(context.Background(), "SELECT id, name, created_at FROM customers")

	if res.Status != StatusSuccess {
		t.Fatalf("Execute() status got %q, want %q (error: %s)", res.Status, StatusSuccess, res.Error)
	}
	if len(res.Columns) != 3 || res.Columns[0] != "id" {
		t.Errorf("Execute() columns got %v", res.Columns)
	}
	if res.RowCount != 2 || len(res.Rows) != 2 {
		t.Fatalf("Execute() row count got %d, want 2", res.RowCount)
	}

	if res.Rows[0][0] != "1" || res.Rows[0][1] != "Alice" {
		t.Errorf("Execute() row 0 got %v", res.Rows[0])
	}
	if res.Rows[0][2] != createdAt.Format(time.RFC3339) {
		t.Errorf("Execute() timestamp got %q, want RFC3339", res.Rows[0][2])
	}
	if res.Rows[1][0] != NullMarker {
		t.Errorf("Execute() NULL cell got %q, want %q", res.Rows[1][0], NullMarker)
	}
	if res.Rows[1][1] != "raw bytes" {
		t.Errorf("Execute() byte cell got %q", res.Rows[1][1])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestExecutorQueryError(t *testing.T) {
	exec, mock, db := newMockExecutor(t, 0)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM missing_table")).
		WillReturnError(errors.New(`relation "missing_table" does not exist`))

	res := exec.Execute(context.Background(), "SELECT * FROM missing_table")

	if res.Status != StatusError {
		t.Fatalf("Execute() status got %q, want %q", res.Status, StatusError)
	}
	if !strings.Contains(res.Error, "does not exist") {
		t.Errorf("Execute() error got %q, want database message preserved", res.Error)
	}
	if res.Rows != nil || res.RowCount != 0 {
		t.Errorf("Execute() error result carried rows: %+v", res)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestExecutorEmptyQuery(t *testing.T) {
	exec := NewExecutor(nil, 0)

	res := exec.Execute(context.Background(), "   \t\n")
	if res.Status != StatusError || !strings.Contains(res.Error, "empty query") {
		t.Errorf("Execute() got %+v, want empty query error", res)
	}
}

func TestExecutorNoConnection(t *testing.T) {
	exec := NewExecutor(&DB{}, 0)

	res := exec.Execute(context.Background(), "SELECT 1")
	if res.Status != StatusError || !strings.Contains(res.Error, "no database connection") {
		t.Errorf("Execute() got %+v, want no connection error", res)
	}
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"Nil", nil, NullMarker},
		{"String", "hello", "hello"},
		{"Bytes", []byte("blob"), "blob"},
		{"Time", ts, "2025-06-01T12:00:00Z"},
		{"Int64", int64(42), "42"},
		{"Float", 3.5, "3.5"},
		{"Bool", true, "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatValue(tt.in); got != tt.want {
				t.Errorf("formatValue(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
