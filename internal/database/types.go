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
package database

import (
	"strings"
	"time"
)

// Semantic column type categories, reported alongside the native type label.
const (
	CategoryString = "string"
	CategoryNumber = "number"
	CategoryDate   = "date"
	CategoryBinary = "binary"
	CategoryLOB    = "lob"
	CategoryOther  = "other"
)

// Constraint kinds, using the information_schema spellings.
const (
	ConstraintPrimaryKey = "PRIMARY KEY"
	ConstraintForeignKey = "FOREIGN KEY"
	ConstraintUnique     = "UNIQUE"
	ConstraintCheck      = "CHECK"
	ConstraintNotNull    = "NOT NULL"
)

// User-defined type categories.
const (
	UserTypeObject      = "OBJECT"
	UserTypeVarray      = "VARRAY"
	UserTypeNestedTable = "NESTED_TABLE"
)

// ColumnInfo describes one column of a table.
type ColumnInfo struct {
	Name       string  `json:"name"`
	Position   int     `json:"position"`
	DataType   string  `json:"dataType"` // semantic category, see CategoryString etc.
	NativeType string  `json:"nativeType"`
	Nullable   bool    `json:"nullable"`
	Default    *string `json:"default,omitempty"`
}

// ConstraintInfo describes one table constraint. Kind selects which of the
// optional fields are populated: FOREIGN KEY carries the referenced table and
// columns, CHECK carries the check clause.
type ConstraintInfo struct {
	Name              string   `json:"name"`
	Kind              string   `json:"kind"`
	Columns           []string `json:"columns,omitempty"`
	ReferencedTable   string   `json:"referencedTable,omitempty"`
	ReferencedColumns []string `json:"referencedColumns,omitempty"`
	CheckClause       string   `json:"checkClause,omitempty"`
}

// IndexInfo describes one index. Location is the storage location where the
// dialect exposes one (tablespace, filegroup), empty otherwise.
type IndexInfo struct {
	Name     string   `json:"name"`
	Columns  []string `json:"columns"`
	Unique   bool     `json:"unique"`
	Location string   `json:"location,omitempty"`
	Status   string   `json:"status,omitempty"`
}

// TableInfo is the full metadata record for one table. Relationships between
// tables are not stored here; they are derived by scanning FOREIGN KEY
// constraints across all tables.
type TableInfo struct {
	Name        string           `json:"name"`
	Schema      string           `json:"schema"`
	Columns     []ColumnInfo     `json:"columns"`
	Constraints []ConstraintInfo `json:"constraints,omitempty"`
	Indexes     []IndexInfo      `json:"indexes,omitempty"`
}

// CodeObjectInfo describes a stored procedure, function, trigger or similar
// executable object. Source text is never part of this record; it is fetched
// live on demand.
type CodeObjectInfo struct {
	Name     string     `json:"name"`
	Kind     string     `json:"kind"`
	Owner    string     `json:"owner,omitempty"`
	Status   string     `json:"status,omitempty"`
	Created  *time.Time `json:"created,omitempty"`
	Modified *time.Time `json:"modified,omitempty"`
}

// TypeAttribute is one attribute of a user-defined type.
type TypeAttribute struct {
	Name     string `json:"name"`
	DataType string `json:"dataType"`
}

// UserTypeInfo describes a user-defined type.
type UserTypeInfo struct {
	Name       string          `json:"name"`
	Category   string          `json:"category"` // OBJECT, VARRAY or NESTED_TABLE
	Owner      string          `json:"owner,omitempty"`
	Attributes []TypeAttribute `json:"attributes,omitempty"`
}

// VendorInfo describes the connected database server.
type VendorInfo struct {
	Vendor         string   `json:"vendor"`
	Version        string   `json:"version"`
	Schema         string   `json:"schema"`
	AdditionalInfo []string `json:"additionalInfo,omitempty"`
}

// TypeCategory maps a native type label to its semantic category.
func TypeCategory(nativeType string) string {
	t := strings.ToLower(strings.TrimSpace(nativeType))
	switch {
	case t == "":
		return CategoryOther
	case strings.Contains(t, "lob") || strings.HasPrefix(t, "long"):
		return CategoryLOB
	case strings.Contains(t, "binary") || strings.Contains(t, "bytea") ||
		t == "raw" || t == "image":
		return CategoryBinary
	case strings.Contains(t, "date") || strings.Contains(t, "time") ||
		strings.Contains(t, "interval") || t == "year":
		return CategoryDate
	case strings.Contains(t, "int") || strings.Contains(t, "num") ||
		strings.Contains(t, "dec") || strings.Contains(t, "float") ||
		strings.Contains(t, "double") || strings.Contains(t, "real") ||
		strings.Contains(t, "serial") || strings.Contains(t, "money") ||
		strings.HasPrefix(t, "bool") || t == "bit":
		return CategoryNumber
	case strings.Contains(t, "char") || strings.Contains(t, "text") ||
		t == "uuid" || t == "json" || t == "jsonb" || t == "xml" ||
		strings.HasPrefix(t, "enum") || strings.HasPrefix(t, "set"):
		return CategoryString
	default:
		return CategoryOther
	}
}
