package schema

import (
	"testing"

	"github.com/dbscope/dbscope/internal/database"
)

func tableNames(tables []*database.TableInfo) []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return names
}

func TestSearchTables(t *testing.T) {
	snap := newTestSnapshot()

	t.Run("Single Term", func(t *testing.T) {
		got := snap.SearchTables("order", 0)
		if len(got) != 2 || got[0].Name != "ORDERS" || got[1].Name != "ORDER_LINES" {
			t.Errorf("SearchTables(order) got %v", tableNames(got))
		}
	})

	t.Run("Multiple Terms Union", func(t *testing.T) {
		got := snap.SearchTables("customer audit", 0)
		if len(got) != 2 || got[0].Name != "CUSTOMERS" || got[1].Name != "AUDIT_LOG" {
			t.Errorf("SearchTables(customer audit) got %v", tableNames(got))
		}
	})

	t.Run("Comma Separated Terms", func(t *testing.T) {
		got := snap.SearchTables("customer,audit", 0)
		if len(got) != 2 || got[0].Name != "CUSTOMERS" || got[1].Name != "AUDIT_LOG" {
			t.Errorf("SearchTables(customer,audit) got %v", tableNames(got))
		}
		got = snap.SearchTables("customer, audit", 0)
		if len(got) != 2 || got[0].Name != "CUSTOMERS" || got[1].Name != "AUDIT_LOG" {
			t.Errorf("SearchTables(customer, audit) got %v", tableNames(got))
		}
	})

	t.Run("Table Matches Once", func(t *testing.T) {
		// Both terms hit ORDER_LINES; it must not be listed twice.
		got := snap.SearchTables("order lines", 0)
		if len(got) != 2 {
			t.Errorf("SearchTables(order lines) got %v", tableNames(got))
		}
	})

	t.Run("Limit", func(t *testing.T) {
		got := snap.SearchTables("order", 1)
		if len(got) != 1 || got[0].Name != "ORDERS" {
			t.Errorf("SearchTables(order, 1) got %v", tableNames(got))
		}
	})

	t.Run("No Match", func(t *testing.T) {
		if got := snap.SearchTables("warehouse", 0); len(got) != 0 {
			t.Errorf("SearchTables(warehouse) got %v, want none", tableNames(got))
		}
	})

	t.Run("Blank Term", func(t *testing.T) {
		if got := snap.SearchTables("   ", 0); got != nil {
			t.Errorf("SearchTables(blank) got %v, want nil", tableNames(got))
		}
		if got := snap.SearchTables(",,,", 0); got != nil {
			t.Errorf("SearchTables(commas only) got %v, want nil", tableNames(got))
		}
	})
}

func TestSearchColumns(t *testing.T) {
	snap := newTestSnapshot()

	t.Run("Grouped By Table", func(t *testing.T) {
		got := snap.SearchColumns("customer_id", 0)
		if len(got) != 1 || got[0].Table != "ORDERS" {
			t.Fatalf("SearchColumns(customer_id) got %+v", got)
		}
		if len(got[0].Columns) != 1 || got[0].Columns[0].Name != "customer_id" {
			t.Errorf("SearchColumns(customer_id) columns got %+v", got[0].Columns)
		}
	})

	t.Run("Case Insensitive", func(t *testing.T) {
		got := snap.SearchColumns("ID", 0)
		// Every table carries an id-like column.
		if len(got) != 4 {
			t.Errorf("SearchColumns(ID) matched %d tables, want 4", len(got))
		}
	})

	t.Run("Limit Counts Tables", func(t *testing.T) {
		got := snap.SearchColumns("id", 2)
		if len(got) != 2 || got[0].Table != "CUSTOMERS" || got[1].Table != "ORDERS" {
			t.Errorf("SearchColumns(id, 2) got %+v", got)
		}
	})

	t.Run("Blank Term", func(t *testing.T) {
		if got := snap.SearchColumns(" ", 0); got != nil {
			t.Errorf("SearchColumns(blank) got %+v, want nil", got)
		}
	})
}

func TestSnapshotCodeObjects(t *testing.T) {
	snap := newTestSnapshot()

	t.Run("All", func(t *testing.T) {
		got := snap.CodeObjects("", "")
		if len(got) != 2 || got[0].Name != "CALC_TOTAL" || got[1].Name != "ORDERS_AUDIT" {
			t.Errorf("CodeObjects() got %+v", got)
		}
	})

	t.Run("Kind Filter", func(t *testing.T) {
		got := snap.CodeObjects("trigger", "")
		if len(got) != 1 || got[0].Name != "ORDERS_AUDIT" {
			t.Errorf("CodeObjects(trigger) got %+v", got)
		}
	})

	t.Run("Name Pattern", func(t *testing.T) {
		got := snap.CodeObjects("", "%audit%")
		if len(got) != 1 || got[0].Name != "ORDERS_AUDIT" {
			t.Errorf("CodeObjects(%%audit%%) got %+v", got)
		}
	})

	t.Run("Exact Pattern Without Wildcard", func(t *testing.T) {
		if got := snap.CodeObjects("", "calc"); len(got) != 0 {
			t.Errorf("CodeObjects(calc) got %+v, want none", got)
		}
		if got := snap.CodeObjects("", "calc_total"); len(got) != 1 {
			t.Errorf("CodeObjects(calc_total) got %+v, want one", got)
		}
	})

	t.Run("No Match Returns Empty", func(t *testing.T) {
		got := snap.CodeObjects("PACKAGE", "")
		if got == nil || len(got) != 0 {
			t.Errorf("CodeObjects(PACKAGE) got %+v, want empty slice", got)
		}
	})
}

func TestSnapshotUserTypes(t *testing.T) {
	snap := newTestSnapshot()

	t.Run("All", func(t *testing.T) {
		got := snap.UserTypes("")
		if len(got) != 1 || got[0].Name != "ADDRESS_T" {
			t.Errorf("UserTypes() got %+v", got)
		}
	})

	t.Run("Name Pattern", func(t *testing.T) {
		got := snap.UserTypes("address%")
		if len(got) != 1 || got[0].Name != "ADDRESS_T" {
			t.Errorf("UserTypes(address%%) got %+v", got)
		}
	})

	t.Run("No Match Returns Empty", func(t *testing.T) {
		got := snap.UserTypes("%point%")
		if got == nil || len(got) != 0 {
			t.Errorf("UserTypes(%%point%%) got %+v, want empty slice", got)
		}
	})
}

func TestSuggestTables(t *testing.T) {
	snap := newTestSnapshot()

	t.Run("Close Misspelling", func(t *testing.T) {
		got := snap.SuggestTables("ordrs", 3)
		if len(got) != 1 || got[0] != "ORDERS" {
			t.Errorf("SuggestTables(ordrs) got %v", got)
		}
	})

	t.Run("Exact Name First", func(t *testing.T) {
		got := snap.SuggestTables("orders", 3)
		if len(got) == 0 || got[0] != "ORDERS" {
			t.Errorf("SuggestTables(orders) got %v", got)
		}
	})

	t.Run("Nothing Close", func(t *testing.T) {
		if got := snap.SuggestTables("zzzzz", 3); len(got) != 0 {
			t.Errorf("SuggestTables(zzzzz) got %v, want none", got)
		}
	})

	t.Run("Empty Input", func(t *testing.T) {
		if got := snap.SuggestTables("", 3); got != nil {
			t.Errorf("SuggestTables(empty) got %v, want nil", got)
		}
		if got := snap.SuggestTables("orders", 0); got != nil {
			t.Errorf("SuggestTables(max 0) got %v, want nil", got)
		}
	})
}

func TestLikeMatch(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		pattern string
		want    bool
	}{
		{"Empty Pattern", "ORDERS", "", true},
		{"Exact Ignoring Case", "ORDERS", "orders", true},
		{"No Wildcard Means Exact", "ORDERS", "ORD", false},
		{"Prefix", "ORDERS", "ORD%", true},
		{"Suffix", "ORDERS", "%ERS", true},
		{"Infix", "ORDERS", "%DER%", true},
		{"Infix Miss", "ORDERS", "%XYZ%", false},
		{"Middle Wildcard", "GET_TOTAL", "GET%TOTAL", true},
		{"Middle Wildcard Miss", "GET_TOTAL", "TOTAL%GET", false},
		{"Multiple Segments", "FN_ORDER_TAX", "FN%ORDER%TAX", true},
		{"Only Wildcard", "ANYTHING", "%", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := likeMatch(tt.in, tt.pattern); got != tt.want {
				t.Errorf("likeMatch(%q, %q) = %v, want %v", tt.in, tt.pattern, got, tt.want)
			}
		})
	}
}
