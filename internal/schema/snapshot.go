package schema

import (
	"strings"
	"time"

	"github.com/dbscope/dbscope/internal/database"
)

// Snapshot is an immutable picture of one schema's metadata, built in a
// single extraction pass. All lookups are case-insensitive: keys and table
// names are stored upper-cased, matching the usual data-dictionary casing.
type Snapshot struct {
	TargetSchema string    `json:"targetSchema"`
	BuiltAt      time.Time `json:"builtAt"`
	Signature    string    `json:"signature"`

	// TableNames preserves extraction order and drives iteration; Tables
	// is keyed by the same names for direct lookup.
	TableNames  []string                            `json:"tableNames"`
	Tables      map[string]*database.TableInfo      `json:"tables"`
	ObjectNames []string                            `json:"objectNames"`
	Objects     map[string]*database.CodeObjectInfo `json:"objects"`
	TypeNames   []string                            `json:"typeNames"`
	Types       map[string]*database.UserTypeInfo   `json:"types"`

	Vendor *database.VendorInfo `json:"vendor,omitempty"`
}

// Dependent identifies an object that depends on a table.
type Dependent struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Owner string `json:"owner,omitempty"`
}

// Relations groups a table's foreign key neighbors in both directions.
type Relations struct {
	ReferencedTables  []string `json:"referencedTables"`
	ReferencingTables []string `json:"referencingTables"`
}

func normalizeName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Table looks up a table by name, ignoring case.
func (s *Snapshot) Table(name string) (*database.TableInfo, bool) {
	t, ok := s.Tables[normalizeName(name)]
	return t, ok
}

// Object looks up a code object by name, ignoring case.
func (s *Snapshot) Object(name string) (*database.CodeObjectInfo, bool) {
	o, ok := s.Objects[normalizeName(name)]
	return o, ok
}

// UserType looks up a user-defined type by name, ignoring case.
func (s *Snapshot) UserType(name string) (*database.UserTypeInfo, bool) {
	t, ok := s.Types[normalizeName(name)]
	return t, ok
}

// Dependents returns the tables whose foreign keys reference the named
// table, in extraction order. An unknown table simply yields no dependents.
func (s *Snapshot) Dependents(table string) []Dependent {
	target := normalizeName(table)
	dependents := []Dependent{}
	for _, name := range s.TableNames {
		if name == target {
			continue
		}
		t := s.Tables[name]
		if t == nil {
			continue
		}
		for _, c := range t.Constraints {
			if c.Kind == database.ConstraintForeignKey && normalizeName(c.ReferencedTable) == target {
				dependents = append(dependents, Dependent{
					Name:  t.Name,
					Type:  "TABLE",
					Owner: t.Schema,
				})
				break
			}
		}
	}
	return dependents
}

// Related returns the tables the named table references through its own
// foreign keys, and the tables that reference it.
func (s *Snapshot) Related(table string) Relations {
	target := normalizeName(table)
	rel := Relations{
		ReferencedTables:  []string{},
		ReferencingTables: []string{},
	}

	if t, ok := s.Tables[target]; ok {
		seen := make(map[string]bool)
		for _, c := range t.Constraints {
			if c.Kind != database.ConstraintForeignKey || c.ReferencedTable == "" {
				continue
			}
			ref := normalizeName(c.ReferencedTable)
			if ref == target || seen[ref] {
				continue
			}
			seen[ref] = true
			rel.ReferencedTables = append(rel.ReferencedTables, ref)
		}
	}

	for _, d := range s.Dependents(target) {
		rel.ReferencingTables = append(rel.ReferencingTables, d.Name)
	}

	return rel
}
