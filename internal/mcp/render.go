package mcp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dbscope/dbscope/internal/database"
	"github.com/dbscope/dbscope/internal/schema"
)

// renderTable formats one table as a text block. Tool output is plain text
// aimed at a model reading it, not JSON.
func renderTable(t *database.TableInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table: %s (schema %s)\n", t.Name, t.Schema)

	b.WriteString("Columns:\n")
	for _, c := range t.Columns {
		fmt.Fprintf(&b, "  %s %s", c.Name, c.NativeType)
		if !c.Nullable {
			b.WriteString(" NOT NULL")
		}
		if c.Default != nil {
			fmt.Fprintf(&b, " DEFAULT %s", *c.Default)
		}
		b.WriteString("\n")
	}

	if len(t.Constraints) > 0 {
		b.WriteString("Constraints:\n")
		for _, c := range t.Constraints {
			fmt.Fprintf(&b, "  %s\n", renderConstraint(c))
		}
	}

	if len(t.Indexes) > 0 {
		b.WriteString("Indexes:\n")
		for _, ix := range t.Indexes {
			fmt.Fprintf(&b, "  %s\n", renderIndex(ix))
		}
	}

	return b.String()
}

func renderConstraint(c database.ConstraintInfo) string {
	switch c.Kind {
	case database.ConstraintForeignKey:
		return fmt.Sprintf("%s FOREIGN KEY (%s) REFERENCES %s (%s)",
			c.Name, strings.Join(c.Columns, ", "), c.ReferencedTable, strings.Join(c.ReferencedColumns, ", "))
	case database.ConstraintCheck, database.ConstraintNotNull:
		return fmt.Sprintf("%s %s (%s)", c.Name, c.Kind, c.CheckClause)
	default:
		return fmt.Sprintf("%s %s (%s)", c.Name, c.Kind, strings.Join(c.Columns, ", "))
	}
}

func renderIndex(ix database.IndexInfo) string {
	s := fmt.Sprintf("%s (%s)", ix.Name, strings.Join(ix.Columns, ", "))
	if ix.Unique {
		s += " UNIQUE"
	}
	if ix.Status != "" && ix.Status != "VALID" {
		s += " " + ix.Status
	}
	if ix.Location != "" {
		s += " [" + ix.Location + "]"
	}
	return s
}

// renderTableMiss explains a failed lookup, with near-miss suggestions when
// the snapshot has similarly named tables.
func renderTableMiss(name string, suggestions []string) string {
	msg := fmt.Sprintf("Table %q not found in the schema cache.", strings.ToUpper(strings.TrimSpace(name)))
	if len(suggestions) > 0 {
		msg += " Did you mean: " + strings.Join(suggestions, ", ") + "?"
	}
	return msg
}

func renderTableList(tables []*database.TableInfo) string {
	if len(tables) == 0 {
		return "No matching tables found."
	}
	blocks := make([]string, len(tables))
	for i, t := range tables {
		blocks[i] = renderTable(t)
	}
	return strings.Join(blocks, "\n")
}

func renderColumnMatches(matches []schema.ColumnMatch) string {
	if len(matches) == 0 {
		return "No matching columns found."
	}
	var b strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&b, "Table: %s\n", m.Table)
		for _, c := range m.Columns {
			fmt.Fprintf(&b, "  %s %s", c.Name, c.NativeType)
			if !c.Nullable {
				b.WriteString(" NOT NULL")
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderCodeObjects(objects []*database.CodeObjectInfo) string {
	if len(objects) == 0 {
		return "No matching code objects found."
	}
	var b strings.Builder
	for _, o := range objects {
		fmt.Fprintf(&b, "%s %s", o.Kind, o.Name)
		if o.Status != "" {
			fmt.Fprintf(&b, " status=%s", o.Status)
		}
		if o.Owner != "" {
			fmt.Fprintf(&b, " owner=%s", o.Owner)
		}
		if o.Modified != nil {
			fmt.Fprintf(&b, " modified=%s", o.Modified.Format("2006-01-02 15:04:05"))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderUserTypes(types []*database.UserTypeInfo) string {
	if len(types) == 0 {
		return "No user-defined types found."
	}
	var b strings.Builder
	for _, t := range types {
		fmt.Fprintf(&b, "%s (%s)\n", t.Name, t.Category)
		for _, a := range t.Attributes {
			fmt.Fprintf(&b, "  %s %s\n", a.Name, a.DataType)
		}
	}
	return b.String()
}

func renderDatabaseInfo(snap *schema.Snapshot, dialect string) string {
	var b strings.Builder
	if v := snap.Vendor; v != nil {
		fmt.Fprintf(&b, "Vendor: %s %s\n", v.Vendor, v.Version)
		for _, line := range v.AdditionalInfo {
			fmt.Fprintf(&b, "  %s\n", strings.TrimSpace(line))
		}
	} else {
		b.WriteString("Vendor: unavailable\n")
	}
	fmt.Fprintf(&b, "Dialect: %s\n", dialect)
	fmt.Fprintf(&b, "Schema: %s\n", snap.TargetSchema)
	fmt.Fprintf(&b, "Tables: %d\n", len(snap.TableNames))
	fmt.Fprintf(&b, "Code objects: %d\n", len(snap.ObjectNames))
	fmt.Fprintf(&b, "User-defined types: %d\n", len(snap.TypeNames))
	fmt.Fprintf(&b, "Snapshot built at: %s\n", snap.BuiltAt.Format("2006-01-02 15:04:05 MST"))
	return b.String()
}

func renderRebuilt(snap *schema.Snapshot) string {
	return fmt.Sprintf("Schema cache rebuilt: %d tables, %d code objects, %d user-defined types.",
		len(snap.TableNames), len(snap.ObjectNames), len(snap.TypeNames))
}

// renderQueryResult formats a result as a markdown table. Failures come
// back as text too; the executor never surfaces an error any other way.
func renderQueryResult(res *database.QueryResult) string {
	if res.Status == database.StatusError {
		return "Query failed: " + res.Error
	}
	if len(res.Columns) == 0 {
		return "Query executed. No result set returned."
	}

	var b strings.Builder
	b.WriteString("| " + strings.Join(res.Columns, " | ") + " |\n")
	sep := make([]string, len(res.Columns))
	for i := range sep {
		sep[i] = "---"
	}
	b.WriteString("| " + strings.Join(sep, " | ") + " |\n")
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = strings.ReplaceAll(cell, "|", "\\|")
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	fmt.Fprintf(&b, "\nTotal rows: %d", res.RowCount)
	return b.String()
}

func renderJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
