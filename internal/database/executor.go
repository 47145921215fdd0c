package database

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Query result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// NullMarker is the explicit marker substituted for SQL NULL in result rows.
const NullMarker = "NULL"

// QueryResult is the structured outcome of a live query. Status is always
// set; on error the Error field carries the message and Columns/Rows are nil.
type QueryResult struct {
	Status   string     `json:"status"`
	Columns  []string   `json:"columns,omitempty"`
	Rows     [][]string `json:"rows,omitempty"`
	RowCount int        `json:"rowCount"`
	Error    string     `json:"error,omitempty"`
}

// Executor runs ad-hoc read queries against the live connection, bypassing
// the snapshot. Failures are captured in the result and never returned as
// errors: the caller should not need error handling for a bad query.
type Executor struct {
	db      *DB
	timeout time.Duration
}

func NewExecutor(db *DB, timeout time.Duration) *Executor {
	return &Executor{db: db, timeout: timeout}
}

// Execute runs one statement with the configured timeout. Rows are coerced
// to strings with NULL mapped to an explicit marker. No row limit is applied
// here; presentation limits belong to the caller.
func (e *Executor) Execute(ctx context.Context, query string) *QueryResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return errorResult(&ErrQueryExecution{Msg: "empty query", Err: nil})
	}
	if e.db == nil || e.db.Pool == nil {
		return errorResult(&ErrQueryExecution{Msg: "no database connection", Err: nil})
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	rows, err := e.db.Pool.QueryContext(ctx, query)
	if err != nil {
		return errorResult(&ErrQueryExecution{Msg: "query rejected", Err: err})
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return errorResult(&ErrQueryExecution{Msg: "failed to read result columns", Err: err})
	}

	var out [][]string
	values := make([]any, len(columns))
	scanArgs := make([]any, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return errorResult(&ErrQueryExecution{Msg: "failed to scan result row", Err: err})
		}
		row := make([]string, len(columns))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return errorResult(&ErrQueryExecution{Msg: "failed to iterate result rows", Err: err})
	}

	return &QueryResult{
		Status:   StatusSuccess,
		Columns:  columns,
		Rows:     out,
		RowCount: len(out),
	}
}

func errorResult(err error) *QueryResult {
	return &QueryResult{Status: StatusError, Error: err.Error()}
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return NullMarker
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}
