package api

import (
	"context"
	"database/sql"

	"github.com/danielgtaylor/huma/v2"
)

// DBHandler exposes the DuckDB "cases" table for ad-hoc SQL. Each query runs
// in its own transaction that is always rolled back, so statements cannot
// change the table for later callers.
type DBHandler struct {
	db *sql.DB
}

// NewDBHandler creates a database handler. db may be nil when DuckDB is
// unavailable; the routes then answer 503.
func NewDBHandler(db *sql.DB) *DBHandler {
	return &DBHandler{db: db}
}

// RegisterRoutes registers database routes with Huma.
func (h *DBHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/tables", h.ListTables, huma.OperationTags("db"))
	huma.Post(api, "/api/v1/query", h.Query, huma.OperationTags("db"))
}

type TablesBody struct {
	Tables []string `json:"tables" doc:"Table names"`
}

type QueryInput struct {
	Body struct {
		Query string `json:"query" minLength:"1" doc:"SQL query to execute" example:"SELECT title, date FROM cases ORDER BY date"`
	}
}

type QueryBody struct {
	Columns []string         `json:"columns" doc:"Column names"`
	Rows    []map[string]any `json:"rows" doc:"Query results"`
	Count   int              `json:"count" doc:"Number of rows returned"`
}

// ListTables returns the DuckDB tables.
func (h *DBHandler) ListTables(ctx context.Context, input *struct{}) (*struct{ Body TablesBody }, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}

	result, err := query(ctx, h.db, "SHOW TABLES")
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}

	tables := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		if name, ok := row["name"].(string); ok {
			tables = append(tables, name)
		}
	}
	return &struct{ Body TablesBody }{Body: TablesBody{Tables: tables}}, nil
}

// Query executes a SQL query against DuckDB.
func (h *DBHandler) Query(ctx context.Context, input *QueryInput) (*struct{ Body QueryBody }, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}

	result, err := query(ctx, h.db, input.Body.Query)
	if err != nil {
		return nil, huma.Error400BadRequest("Query failed: " + err.Error())
	}
	return &struct{ Body QueryBody }{Body: result}, nil
}

func query(ctx context.Context, db *sql.DB, q string) (QueryBody, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return QueryBody{}, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, q)
	if err != nil {
		return QueryBody{}, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return QueryBody{}, err
	}

	result := QueryBody{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return QueryBody{}, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return QueryBody{}, err
	}
	result.Count = len(result.Rows)
	return result, nil
}
