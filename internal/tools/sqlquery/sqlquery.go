// Package sqlquery exposes read-only SQL access to the relational corpus.
package sqlquery

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"toolbench/internal/tools"
)

const (
	// MaxSampleRows bounds sample_rows.
	MaxSampleRows = 50
	// DefaultSampleRows is used when sample_rows omits a limit.
	DefaultSampleRows = 5
	// DefaultMaxRows bounds rows serialized by query.
	DefaultMaxRows = 1000
)

// Tools implements the relational capabilities over a DuckDB connection.
type Tools struct {
	db      *sql.DB
	MaxRows int
}

// New binds the tools to an open database.
func New(db *sql.DB) (*Tools, error) {
	if db == nil {
		return nil, fmt.Errorf("database is nil")
	}
	return &Tools{db: db, MaxRows: DefaultMaxRows}, nil
}

// Capabilities returns the relational capability set in prompt order.
func (t *Tools) Capabilities() []tools.Capability {
	tableSchema := tools.StringSchema("Table name, e.g. issues")
	return []tools.Capability{
		{
			Name:        "query",
			Description: "Run one read-only SQL statement (SELECT, WITH, SHOW, DESCRIBE or EXPLAIN) against the DuckDB corpus. Rows come back as JSON objects.",
			InputSchema: tools.ObjectSchema(map[string]tools.Schema{
				"sql": tools.StringSchema("A single read-only SQL statement"),
			}, "sql"),
			Execute: func(ctx context.Context, args tools.Args) (string, error) {
				statement, err := args.RequiredString("sql")
				if err != nil {
					return "", err
				}
				return t.Query(ctx, statement)
			},
		},
		{
			Name:        "list_tables",
			Description: "List the tables in the corpus database.",
			InputSchema: tools.ObjectSchema(nil),
			Execute: func(ctx context.Context, _ tools.Args) (string, error) {
				return t.ListTables(ctx)
			},
		},
		{
			Name:        "describe_table",
			Description: "Show the columns and types of a table.",
			InputSchema: tools.ObjectSchema(map[string]tools.Schema{"table": tableSchema}, "table"),
			Execute: func(ctx context.Context, args tools.Args) (string, error) {
				table, err := args.RequiredString("table")
				if err != nil {
					return "", err
				}
				return t.DescribeTable(ctx, table)
			},
		},
		{
			Name:        "sample_rows",
			Description: fmt.Sprintf("Return up to %d example rows from a table.", MaxSampleRows),
			InputSchema: tools.ObjectSchema(map[string]tools.Schema{
				"table": tableSchema,
				"limit": tools.IntegerSchema("Number of rows (default 5)", tools.IntPointer(1), tools.IntPointer(MaxSampleRows)),
			}, "table"),
			Execute: func(ctx context.Context, args tools.Args) (string, error) {
				table, err := args.RequiredString("table")
				if err != nil {
					return "", err
				}
				limit, err := args.IntOr("limit", DefaultSampleRows)
				if err != nil {
					return "", err
				}
				return t.SampleRows(ctx, table, limit)
			},
		},
		{
			Name:        "count_rows",
			Description: "Count rows in a table, optionally filtered by a SQL WHERE condition such as state = 'open'.",
			InputSchema: tools.ObjectSchema(map[string]tools.Schema{
				"table": tableSchema,
				"where": tools.StringSchema("Optional WHERE condition without the WHERE keyword"),
			}, "table"),
			Execute: func(ctx context.Context, args tools.Args) (string, error) {
				table, err := args.RequiredString("table")
				if err != nil {
					return "", err
				}
				filter, _, err := args.OptionalString("where")
				if err != nil {
					return "", err
				}
				return t.CountRows(ctx, table, filter)
			},
		},
	}
}

// Query runs a whitelisted read-only statement. Rejected statements never
// reach the database.
func (t *Tools) Query(ctx context.Context, statement string) (string, error) {
	checked, err := checkQuery(statement)
	if err != nil {
		return "", err
	}
	return t.runRows(ctx, checked)
}

// ListTables lists base tables and views in the main schema.
func (t *Tools) ListTables(ctx context.Context) (string, error) {
	names, err := t.tableNames(ctx)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "No tables found.", nil
	}
	return strings.Join(names, "\n") + "\n", nil
}

// DescribeTable lists a table's columns in ordinal order.
func (t *Tools) DescribeTable(ctx context.Context, table string) (string, error) {
	if err := t.checkTable(ctx, table); err != nil {
		return "", err
	}
	return t.runRows(ctx, `SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = 'main' AND table_name = ?
		ORDER BY ordinal_position`, table)
}

// SampleRows returns the first limit rows of a table.
func (t *Tools) SampleRows(ctx context.Context, table string, limit int) (string, error) {
	if limit < 1 || limit > MaxSampleRows {
		return "", fmt.Errorf("limit must be between 1 and %d", MaxSampleRows)
	}
	if err := t.checkTable(ctx, table); err != nil {
		return "", err
	}
	return t.runRows(ctx, fmt.Sprintf(`SELECT * FROM "%s" LIMIT %d`, table, limit))
}

// CountRows counts rows of a table, optionally filtered.
func (t *Tools) CountRows(ctx context.Context, table, filter string) (string, error) {
	if err := t.checkTable(ctx, table); err != nil {
		return "", err
	}
	statement := fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, table)
	if strings.TrimSpace(filter) != "" {
		if err := checkFilter(filter); err != nil {
			return "", err
		}
		statement += " WHERE " + filter
	}
	var count int64
	if err := t.db.QueryRowContext(ctx, statement).Scan(&count); err != nil {
		return "", fmt.Errorf("count rows: %w", err)
	}
	return fmt.Sprintf("%d", count), nil
}

// checkTable validates a table identifier against the pattern and the catalog.
func (t *Tools) checkTable(ctx context.Context, table string) error {
	if err := checkIdentifier(table); err != nil {
		return err
	}
	names, err := t.tableNames(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		if strings.EqualFold(name, table) {
			return nil
		}
	}
	return fmt.Errorf("table %q does not exist (available: %s)", table, strings.Join(names, ", "))
}

func (t *Tools) tableNames(ctx context.Context) ([]string, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'main' ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// runRows executes a query and renders the result set as JSON objects, one
// row per line, capped at MaxRows.
func (t *Tools) runRows(ctx context.Context, statement string, args ...any) (string, error) {
	rows, err := t.db.QueryContext(ctx, statement, args...)
	if err != nil {
		return "", fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("read columns: %w", err)
	}

	var builder strings.Builder
	builder.WriteString("[\n")
	count := 0
	capped := false
	for rows.Next() {
		if t.MaxRows > 0 && count >= t.MaxRows {
			capped = true
			break
		}
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return "", fmt.Errorf("scan row: %w", err)
		}
		encoded, err := encodeRow(columns, values)
		if err != nil {
			return "", err
		}
		if count > 0 {
			builder.WriteString(",\n")
		}
		builder.Write(encoded)
		count++
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("read rows: %w", err)
	}
	if count > 0 {
		builder.WriteString("\n")
	}
	builder.WriteString("]\n")
	if capped {
		fmt.Fprintf(&builder, "(first %d rows shown; add LIMIT or aggregate)\n", t.MaxRows)
	} else {
		fmt.Fprintf(&builder, "(%d rows)\n", count)
	}
	return builder.String(), nil
}

// encodeRow writes one row as a JSON object preserving column order.
func encodeRow(columns []string, values []any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, column := range columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(column)
		if err != nil {
			return nil, fmt.Errorf("encode column: %w", err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(encodeValue(values[i]))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// encodeValue renders a driver value as JSON, falling back to its string form
// for types encoding/json cannot handle.
func encodeValue(value any) []byte {
	switch typed := value.(type) {
	case []byte:
		value = string(typed)
	case time.Time:
		value = typed.UTC().Format(time.RFC3339)
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		encoded, _ = json.Marshal(fmt.Sprint(value))
	}
	return encoded
}
