// Package storage provides the SQLite connection, table DDL generation and
// the per-request persistence session used by record models.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Querier is the query surface shared by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ColumnDef defines a database column.
type ColumnDef struct {
	Name       string
	Type       string
	PrimaryKey bool
	NotNull    bool
	Unique     bool
	Index      bool
	Default    string
	ForeignKey string // referenced table; the referenced column is always id
}

// BuildCreateTableSQL generates CREATE TABLE SQL for the given columns.
func BuildCreateTableSQL(table string, columns []ColumnDef) string {
	var defs []string
	var constraints []string

	for _, c := range columns {
		defs = append(defs, buildColumnDef(c))

		if c.Unique && !c.PrimaryKey {
			constraints = append(constraints, fmt.Sprintf("UNIQUE(%s)", c.Name))
		}
		if c.ForeignKey != "" {
			constraints = append(constraints, fmt.Sprintf(
				"FOREIGN KEY(%s) REFERENCES %s(id) ON DELETE CASCADE",
				c.Name, c.ForeignKey,
			))
		}
	}

	sql := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s",
		table,
		strings.Join(defs, ",\n  "),
	)

	if len(constraints) > 0 {
		sql += ",\n  " + strings.Join(constraints, ",\n  ")
	}

	sql += "\n)"

	return sql
}

// buildColumnDef builds a single column definition.
func buildColumnDef(c ColumnDef) string {
	parts := []string{c.Name, c.Type}

	if c.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	}
	if c.NotNull && !c.PrimaryKey {
		parts = append(parts, "NOT NULL")
	}
	if c.Default != "" {
		parts = append(parts, "DEFAULT "+c.Default)
	}

	return strings.Join(parts, " ")
}

// BuildIndexSQL generates CREATE INDEX statements for indexed and foreign key columns.
func BuildIndexSQL(table string, columns []ColumnDef) []string {
	var indexes []string

	for _, c := range columns {
		if c.PrimaryKey || c.Unique {
			continue
		}
		if c.Index || c.ForeignKey != "" {
			indexes = append(indexes, fmt.Sprintf(
				"CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)",
				table, c.Name, table, c.Name,
			))
		}
	}

	return indexes
}

// QuoteDefault formats a Go value as a SQL DEFAULT literal.
func QuoteDefault(val any) string {
	switch v := val.(type) {
	case string:
		return fmt.Sprintf("'%s'", strings.ReplaceAll(v, "'", "''"))
	case int, int32, int64:
		return fmt.Sprintf("%d", v)
	case float32, float64:
		return fmt.Sprintf("%v", v)
	case bool:
		if v {
			return "1"
		}
		return "0"
	default:
		return ""
	}
}
