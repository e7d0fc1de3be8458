package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/tabletalk/tabletalk/internal/dataset"
	"github.com/tabletalk/tabletalk/internal/query"
)

// Engine wraps one in-memory DuckDB database. Each session opens its own
// Engine, so uploaded tables are never visible across sessions.
type Engine struct {
	db *sql.DB
}

func Open() (*Engine, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return &Engine{db: db}, nil
}

// Factory returns a query.Factory producing per-session in-memory engines.
func Factory() query.Factory {
	return func() (query.Engine, error) {
		return Open()
	}
}

func (e *Engine) Close() error {
	return e.db.Close()
}

func (e *Engine) LoadDataset(ctx context.Context, ds dataset.Dataset) error {
	if len(ds.Columns) == 0 {
		return fmt.Errorf("dataset %q has no columns", ds.TableName)
	}

	columnDefs := make([]string, 0, len(ds.Columns))
	for _, column := range ds.Columns {
		columnDefs = append(columnDefs, quoteIdent(column.Name)+" "+sqlTypeFor(column.Type))
	}
	createSQL := fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", quoteIdent(ds.TableName), strings.Join(columnDefs, ", "))
	if _, err := e.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("create table %q: %w", ds.TableName, err)
	}
	if len(ds.Rows) == 0 {
		return nil
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin load transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?,", len(ds.Columns)), ",") + ")"
	insertSQL := fmt.Sprintf("INSERT INTO %s VALUES %s", quoteIdent(ds.TableName), placeholders)
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("prepare insert for %q: %w", ds.TableName, err)
	}
	defer func() { _ = stmt.Close() }()

	for i, row := range ds.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("insert row %d into %q: %w", i, ds.TableName, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit load for %q: %w", ds.TableName, err)
	}
	return nil
}

func (e *Engine) Execute(ctx context.Context, sqlText string, rowLimit int) (query.Result, error) {
	sqlText = stripTrailingSemicolons(sqlText)
	if sqlText == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}

	start := time.Now()
	if !query.IsReadOnly(sqlText) {
		if _, err := e.db.ExecContext(ctx, sqlText); err != nil {
			return query.Result{}, fmt.Errorf("execute statement: %w", err)
		}
		return query.Result{Duration: time.Since(start)}, nil
	}

	if rowLimit > 0 {
		sqlText = fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d", sqlText, rowLimit)
	}

	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return query.Result{
		Columns:  columns,
		Rows:     resultRows,
		Duration: time.Since(start),
	}, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func sqlTypeFor(columnType dataset.Type) string {
	switch columnType {
	case dataset.TypeInteger:
		return "BIGINT"
	case dataset.TypeFloat:
		return "DOUBLE"
	case dataset.TypeBoolean:
		return "BOOLEAN"
	case dataset.TypeDatetime:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
