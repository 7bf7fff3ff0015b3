package sqlquery

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"toolbench/internal/corpus/corpustest"
	"toolbench/internal/tools"
)

func newSeededTools(t *testing.T) *Tools {
	t.Helper()
	db := corpustest.Open(t)
	corpustest.Seed(t, db)
	sqlTools, err := New(db)
	if err != nil {
		t.Fatalf("new tools: %v", err)
	}
	return sqlTools
}

// TestQueryRejectsDropWithoutExecuting verifies destructive statements never run.
func TestQueryRejectsDropWithoutExecuting(t *testing.T) {
	sqlTools := newSeededTools(t)
	ctx := context.Background()

	_, err := sqlTools.Query(ctx, "DROP TABLE issues")
	if !errors.Is(err, ErrNotReadOnly) {
		t.Fatalf("expected ErrNotReadOnly, got %v", err)
	}
	if !strings.Contains(err.Error(), "DROP") {
		t.Fatalf("expected error to name the keyword, got %v", err)
	}
	count, err := sqlTools.CountRows(ctx, "issues", "")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != "3" {
		t.Fatalf("expected issues to survive, got %s rows", count)
	}
}

func TestQuerySelectCount(t *testing.T) {
	sqlTools := newSeededTools(t)
	output, err := sqlTools.Query(context.Background(), "SELECT COUNT(*) FROM issues")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	rows := decodeRows(t, output)
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	for _, value := range rows[0] {
		if value != float64(3) {
			t.Fatalf("expected count 3, got %v", value)
		}
	}
}

func TestCheckQueryWhitelist(t *testing.T) {
	accepted := []string{
		"select 1",
		"  WITH x AS (SELECT 1) SELECT * FROM x;",
		"SHOW TABLES",
		"DESCRIBE issues",
		"EXPLAIN SELECT * FROM issues",
		"explain analyze SELECT count(*) FROM issues",
		"(SELECT 1)",
		"-- leading comment\nSELECT 1",
		"SELECT ';' AS semi",
	}
	for _, statement := range accepted {
		if _, err := checkQuery(statement); err != nil {
			t.Fatalf("expected %q to be accepted: %v", statement, err)
		}
	}
	rejected := []string{
		"",
		"DELETE FROM issues",
		"INSERT INTO repos VALUES (9)",
		"SELECT 1; DROP TABLE issues",
		"/* SELECT */ UPDATE issues SET state = 'x'",
		"ATTACH 'other.db'",
		"COPY issues TO 'out.csv'",
		"EXPLAIN ANALYZE DELETE FROM issues",
		"EXPLAIN UPDATE issues SET state = 'x'",
		"EXPLAIN",
	}
	for _, statement := range rejected {
		if _, err := checkQuery(statement); err == nil {
			t.Fatalf("expected %q to be rejected", statement)
		}
	}
}

func TestIdentifierValidation(t *testing.T) {
	sqlTools := newSeededTools(t)
	ctx := context.Background()
	for _, table := range []string{`issues"; DROP TABLE issues; --`, "1issues", "is sues", ""} {
		if _, err := sqlTools.SampleRows(ctx, table, 1); err == nil {
			t.Fatalf("expected %q to be rejected", table)
		}
	}
	if _, err := sqlTools.DescribeTable(ctx, "missing_table"); err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("expected missing table error, got %v", err)
	}
}

func TestCountRowsWithFilter(t *testing.T) {
	sqlTools := newSeededTools(t)
	ctx := context.Background()
	count, err := sqlTools.CountRows(ctx, "issues", "state = 'open'")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != "2" {
		t.Fatalf("expected 2 open issues, got %s", count)
	}
	if _, err := sqlTools.CountRows(ctx, "issues", "1=1; DROP TABLE issues"); err == nil {
		t.Fatalf("expected semicolon to be rejected")
	}
}

func TestSampleRowsBounds(t *testing.T) {
	sqlTools := newSeededTools(t)
	ctx := context.Background()
	output, err := sqlTools.SampleRows(ctx, "repos", 1)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if rows := decodeRows(t, output); len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	if _, err := sqlTools.SampleRows(ctx, "repos", MaxSampleRows+1); err == nil {
		t.Fatalf("expected limit error")
	}
}

func TestDescribeAndListTables(t *testing.T) {
	sqlTools := newSeededTools(t)
	ctx := context.Background()
	tables, err := sqlTools.ListTables(ctx)
	if err != nil {
		t.Fatalf("list tables: %v", err)
	}
	for _, want := range []string{"issues", "pulls", "repos", "users"} {
		if !strings.Contains(tables, want) {
			t.Fatalf("expected %s in %q", want, tables)
		}
	}
	columns, err := sqlTools.DescribeTable(ctx, "repos")
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	rows := decodeRows(t, columns)
	if len(rows) == 0 || rows[0]["column_name"] != "id" {
		t.Fatalf("unexpected describe output %q", columns)
	}
}

func TestQueryCapRows(t *testing.T) {
	sqlTools := newSeededTools(t)
	sqlTools.MaxRows = 2
	output, err := sqlTools.Query(context.Background(), "SELECT * FROM range(10)")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if rows := decodeRows(t, output); len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if !strings.Contains(output, "first 2 rows shown") {
		t.Fatalf("expected cap note, got %q", output)
	}
}

func TestQueryThroughSetReturnsErrorResult(t *testing.T) {
	sqlTools := newSeededTools(t)
	set, err := tools.NewSet(tools.DefaultOptions(), sqlTools.Capabilities()...)
	if err != nil {
		t.Fatalf("new set: %v", err)
	}
	result := set.Execute(context.Background(), "query", tools.Args{"sql": json.RawMessage(`"DROP TABLE issues"`)})
	if !result.IsError() || !strings.HasPrefix(result.Output, tools.ErrorPrefix) {
		t.Fatalf("expected error result, got %+v", result)
	}
	result = set.Execute(context.Background(), "query", tools.Args{"sql": json.RawMessage(`"SELECT title FROM issues ORDER BY id LIMIT 1"`)})
	if result.IsError() || !strings.Contains(result.Output, "Launch fails on Mondays") {
		t.Fatalf("unexpected result %+v", result)
	}
}

// decodeRows parses the JSON array portion of a rendered result set.
func decodeRows(t *testing.T, output string) []map[string]any {
	t.Helper()
	end := strings.LastIndex(output, "]")
	if end < 0 {
		t.Fatalf("no JSON array in %q", output)
	}
	var rows []map[string]any
	if err := json.Unmarshal([]byte(output[:end+1]), &rows); err != nil {
		t.Fatalf("decode rows: %v (%q)", err, output)
	}
	return rows
}
