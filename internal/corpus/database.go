package corpus

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

// schemaDDL holds the relational corpus schema.
//
//go:embed schema.sql
var schemaDDL string

// Tables lists the relational corpus tables in dependency order.
var Tables = []string{"repos", "users", "issues", "pulls", "comments", "events"}

// SchemaDDL returns the schema DDL used for building relational corpora.
func SchemaDDL() string {
	return schemaDDL
}

// EnsureSchema applies the schema DDL to the provided database connection.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("corpus: db is nil")
	}
	_, err := db.ExecContext(ctx, schemaDDL)
	return err
}

// OpenDatabase opens the DuckDB corpus. Production callers open it read-only so
// concurrent invocations share it without coordination.
func OpenDatabase(ctx context.Context, path string, readOnly bool) (*sql.DB, error) {
	dsn := strings.TrimSpace(path)
	if dsn == "" {
		return nil, errors.New("corpus: database path is required")
	}
	if readOnly && dsn != ":memory:" {
		dsn += "?access_mode=read_only"
	}
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return db, nil
}
