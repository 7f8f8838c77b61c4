package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DB is an open SQLite database.
type DB struct {
	*sql.DB
}

// Connection parameters understood by go-sqlite3. Foreign keys are needed
// for ON DELETE CASCADE between tables.
var dsnParams = url.Values{
	"_journal_mode": {"WAL"},
	"_busy_timeout": {"5000"},
	"_foreign_keys": {"on"},
	"_synchronous":  {"NORMAL"},
}

// Open opens the database at path. ":memory:" gives a private in-memory
// database limited to one connection, since each connection would
// otherwise get its own empty database.
func Open(path string) (*DB, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", path+sep+dsnParams.Encode())
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA temp_store = MEMORY"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database %s: %w", path, err)
	}
	return &DB{DB: db}, nil
}

// CreateTable creates a table and its indexes if they do not exist yet.
func (db *DB) CreateTable(ctx context.Context, table string, columns []ColumnDef) error {
	if _, err := db.ExecContext(ctx, BuildCreateTableSQL(table, columns)); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}

	for _, indexSQL := range BuildIndexSQL(table, columns) {
		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			return fmt.Errorf("create index on %s: %w", table, err)
		}
	}

	return nil
}

// NewSession starts a persistence session on this database.
func (db *DB) NewSession(opts ...SessionOption) *Session {
	return NewSession(db.DB, opts...)
}
