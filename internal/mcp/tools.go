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
package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dbscope/dbscope/internal/schema"
)

// registerTools wires every tool onto the MCP server. Tool names and
// argument names are part of the public contract; clients address them
// by string.
func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("get_table_schema",
		mcp.WithDescription("Get the schema of one table: columns with types, constraints and indexes. Served from the schema cache."),
		mcp.WithString("table_name", mcp.Required(), mcp.Description("Name of the table, case-insensitive.")),
	), s.handleGetTableSchema)

	s.mcp.AddTool(mcp.NewTool("get_tables_schema",
		mcp.WithDescription("Get the schemas of several tables in one call. Unknown tables are reported individually with name suggestions."),
		mcp.WithString("table_names", mcp.Required(), mcp.Description("Comma-separated table names, case-insensitive.")),
	), s.handleGetTablesSchema)

	s.mcp.AddTool(mcp.NewTool("search_tables_schema",
		mcp.WithDescription("Search tables by name and return the full schema of every match. Multiple terms separated by commas or spaces are OR-combined."),
		mcp.WithString("search_term", mcp.Required(), mcp.Description("Substring(s) to look for in table names, case-insensitive.")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of tables to return. Defaults to 20.")),
	), s.handleSearchTables)

	s.mcp.AddTool(mcp.NewTool("search_columns",
		mcp.WithDescription("Search columns by name across all tables. Results are grouped by table."),
		mcp.WithString("search_term", mcp.Required(), mcp.Description("Substring to look for in column names, case-insensitive.")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of tables to return matches for. Defaults to 50.")),
	), s.handleSearchColumns)

	s.mcp.AddTool(mcp.NewTool("get_table_constraints",
		mcp.WithDescription("Get only the constraints of one table: primary key, foreign keys, unique and check constraints."),
		mcp.WithString("table_name", mcp.Required(), mcp.Description("Name of the table, case-insensitive.")),
	), s.handleGetTableConstraints)

	s.mcp.AddTool(mcp.NewTool("get_table_indexes",
		mcp.WithDescription("Get only the indexes of one table, with uniqueness, validity and storage location."),
		mcp.WithString("table_name", mcp.Required(), mcp.Description("Name of the table, case-insensitive.")),
	), s.handleGetTableIndexes)

	s.mcp.AddTool(mcp.NewTool("get_dependent_objects",
		mcp.WithDescription("List tables whose foreign keys reference the given table. Returns a JSON array."),
		mcp.WithString("table_name", mcp.Required(), mcp.Description("Name of the referenced table, case-insensitive.")),
	), s.handleGetDependentObjects)

	s.mcp.AddTool(mcp.NewTool("get_related_tables",
		mcp.WithDescription("Get tables related to the given table through foreign keys, in both directions. Returns a JSON object."),
		mcp.WithString("table_name", mcp.Required(), mcp.Description("Name of the table, case-insensitive.")),
	), s.handleGetRelatedTables)

	s.mcp.AddTool(mcp.NewTool("get_code_objects",
		mcp.WithDescription("List stored procedures, functions and triggers known to the schema cache."),
		mcp.WithString("object_type", mcp.Description("Filter by object type: PROCEDURE, FUNCTION or TRIGGER. Empty means all types.")),
		mcp.WithString("name_pattern", mcp.Description("Filter by name with SQL LIKE syntax, % as wildcard. Without % the match is exact.")),
	), s.handleGetCodeObjects)

	s.mcp.AddTool(mcp.NewTool("get_object_source",
		mcp.WithDescription("Fetch the source text of a function, procedure, trigger or view from the live database. Source is never cached."),
		mcp.WithString("object_type", mcp.Required(), mcp.Description("One of FUNCTION, PROCEDURE, TRIGGER or VIEW.")),
		mcp.WithString("object_name", mcp.Required(), mcp.Description("Name of the object, case-insensitive.")),
	), s.handleGetObjectSource)

	s.mcp.AddTool(mcp.NewTool("get_user_defined_types",
		mcp.WithDescription("List user-defined types known to the schema cache, with their attributes."),
		mcp.WithString("name_pattern", mcp.Description("Filter by name with SQL LIKE syntax, % as wildcard. Without % the match is exact.")),
	), s.handleGetUserTypes)

	s.mcp.AddTool(mcp.NewTool("get_database_info",
		mcp.WithDescription("Get database vendor, version, target schema and schema cache statistics."),
	), s.handleGetDatabaseInfo)

	s.mcp.AddTool(mcp.NewTool("rebuild_schema_cache",
		mcp.WithDescription("Discard the cached schema snapshot and rebuild it from the live database. Use after DDL changes."),
	), s.handleRebuildSchemaCache)

	s.mcp.AddTool(mcp.NewTool("execute_query",
		mcp.WithDescription("Execute one SQL statement against the live database and return the result as a markdown table. NULL values are rendered as the literal NULL."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The SQL statement to run.")),
	), s.handleExecuteQuery)
}

func stringArg(request mcp.CallToolRequest, key string) string {
	if v, ok := request.GetArguments()[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// intArg reads a numeric argument. JSON numbers arrive as float64.
func intArg(request mcp.CallToolRequest, key string, fallback int) int {
	if v, ok := request.GetArguments()[key].(float64); ok && v > 0 {
		return int(v)
	}
	return fallback
}

func (s *Server) handleGetTableSchema(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := stringArg(request, "table_name")
	if name == "" {
		return mcp.NewToolResultError("table_name is required"), nil
	}
	table, suggestions, err := s.engine.Table(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if table == nil {
		return mcp.NewToolResultText(renderTableMiss(name, suggestions)), nil
	}
	return mcp.NewToolResultText(renderTable(table)), nil
}

func (s *Server) handleGetTablesSchema(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := stringArg(request, "table_names")
	if raw == "" {
		return mcp.NewToolResultError("table_names is required"), nil
	}
	var names []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return mcp.NewToolResultError("table_names contained no table names"), nil
	}

	results, err := s.engine.Tables(ctx, names)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		if r.Table == nil {
			blocks = append(blocks, renderTableMiss(r.Name, r.Suggestions))
			continue
		}
		blocks = append(blocks, renderTable(r.Table))
	}
	return mcp.NewToolResultText(strings.Join(blocks, "\n")), nil
}

func (s *Server) handleSearchTables(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	term := stringArg(request, "search_term")
	if term == "" {
		return mcp.NewToolResultError("search_term is required"), nil
	}
	limit := intArg(request, "limit", schema.DefaultTableSearchLimit)
	tables, err := s.engine.SearchTables(ctx, term, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(renderTableList(tables)), nil
}

func (s *Server) handleSearchColumns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	term := stringArg(request, "search_term")
	if term == "" {
		return mcp.NewToolResultError("search_term is required"), nil
	}
	limit := intArg(request, "limit", schema.DefaultColumnSearchLimit)
	matches, err := s.engine.SearchColumns(ctx, term, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(renderColumnMatches(matches)), nil
}

func (s *Server) handleGetTableConstraints(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := stringArg(request, "table_name")
	if name == "" {
		return mcp.NewToolResultError("table_name is required"), nil
	}
	table, suggestions, err := s.engine.Table(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if table == nil {
		return mcp.NewToolResultText(renderTableMiss(name, suggestions)), nil
	}
	if len(table.Constraints) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Table %s has no constraints.", table.Name)), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Constraints of %s:\n", table.Name)
	for _, c := range table.Constraints {
		fmt.Fprintf(&b, "  %s\n", renderConstraint(c))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleGetTableIndexes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := stringArg(request, "table_name")
	if name == "" {
		return mcp.NewToolResultError("table_name is required"), nil
	}
	table, suggestions, err := s.engine.Table(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if table == nil {
		return mcp.NewToolResultText(renderTableMiss(name, suggestions)), nil
	}
	if len(table.Indexes) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Table %s has no indexes.", table.Name)), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Indexes of %s:\n", table.Name)
	for _, ix := range table.Indexes {
		fmt.Fprintf(&b, "  %s\n", renderIndex(ix))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleGetDependentObjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := stringArg(request, "table_name")
	if name == "" {
		return mcp.NewToolResultError("table_name is required"), nil
	}
	dependents, err := s.engine.Dependents(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := renderJSON(dependents)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) handleGetRelatedTables(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := stringArg(request, "table_name")
	if name == "" {
		return mcp.NewToolResultError("table_name is required"), nil
	}
	relations, err := s.engine.Related(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := renderJSON(relations)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) handleGetCodeObjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := stringArg(request, "object_type")
	pattern := stringArg(request, "name_pattern")
	objects, err := s.engine.CodeObjects(ctx, kind, pattern)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(renderCodeObjects(objects)), nil
}

func (s *Server) handleGetObjectSource(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := stringArg(request, "object_type")
	name := stringArg(request, "object_name")
	if kind == "" || name == "" {
		return mcp.NewToolResultError("object_type and object_name are required"), nil
	}
	source, found, err := s.engine.ObjectSource(ctx, kind, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !found {
		return mcp.NewToolResultText(fmt.Sprintf(
			"Source for %s %q is not available. The object may not exist or its source may be hidden.",
			strings.ToUpper(kind), strings.ToUpper(name))), nil
	}
	return mcp.NewToolResultText(source), nil
}

func (s *Server) handleGetUserTypes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	types, err := s.engine.UserTypes(ctx, stringArg(request, "name_pattern"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(renderUserTypes(types)), nil
}

func (s *Server) handleGetDatabaseInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.engine.Snapshot(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(renderDatabaseInfo(snap, s.engine.Dialect())), nil
}

func (s *Server) handleRebuildSchemaCache(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.engine.Rebuild(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(renderRebuilt(snap)), nil
}

func (s *Server) handleExecuteQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := stringArg(request, "query")
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	result := s.engine.Execute(ctx, query)
	return mcp.NewToolResultText(renderQueryResult(result)), nil
}
