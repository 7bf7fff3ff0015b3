// Package corpustest builds small corpus fixtures for tests.
package corpustest

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"toolbench/internal/corpus"
	"toolbench/internal/testutil"
)

const (
	defaultTimeout = 5 * time.Second
)

// Open opens an in-memory DuckDB connection with the corpus schema applied.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	ctx := testutil.Context(t, defaultTimeout)
	conn, err := corpus.OpenDatabase(ctx, ":memory:", false)
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	// One connection keeps every statement on the same in-memory database.
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = conn.Close()
	})
	if err := corpus.EnsureSchema(ctx, conn); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return conn
}

// Seed inserts a small fixture: two repos, three issues, one pull, two users.
func Seed(t testing.TB, db *sql.DB) {
	t.Helper()
	ctx := testutil.Context(t, defaultTimeout)
	statements := []string{
		`INSERT INTO users (id, login, name, type) VALUES (1, 'octocat', 'The Octocat', 'User'), (2, 'hubot', 'Hubot', 'Bot')`,
		`INSERT INTO repos (id, owner, name, full_name, description, language, stars) VALUES
			(1, 'acme', 'rocket', 'acme/rocket', 'Rocket launcher', 'Go', 120),
			(2, 'acme', 'anvil', 'acme/anvil', 'Heavy things', 'Rust', 7)`,
		`INSERT INTO issues (id, repo_id, number, title, body, state, author_id, comments_count) VALUES
			(1, 1, 1, 'Launch fails on Mondays', 'Stack trace attached', 'open', 1, 2),
			(2, 1, 2, 'Docs typo', 'Small fix needed', 'closed', 2, 0),
			(3, 2, 1, 'Anvil too heavy', 'Please make it lighter', 'open', 1, 1)`,
		`INSERT INTO pulls (id, repo_id, number, title, body, state, author_id, merged) VALUES
			(1, 1, 3, 'Fix Monday launches', 'Closes #1', 'closed', 2, TRUE)`,
	}
	for _, statement := range statements {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			t.Fatalf("seed corpus: %v", err)
		}
	}
}

// WriteDocs writes hierarchical corpus documents under root. Keys are
// slash-separated relative paths.
func WriteDocs(t testing.TB, root string, docs map[string]any) {
	t.Helper()
	for rel, value := range docs {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", rel, err)
		}
		var payload []byte
		switch typed := value.(type) {
		case string:
			payload = []byte(typed)
		case []byte:
			payload = typed
		default:
			encoded, err := json.MarshalIndent(typed, "", "  ")
			if err != nil {
				t.Fatalf("marshal %s: %v", rel, err)
			}
			payload = encoded
		}
		if err := os.WriteFile(path, payload, 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
}

// SampleDocs returns three issues across two repos plus repo and user documents.
func SampleDocs() map[string]any {
	return map[string]any{
		"acme/rocket/repo.json":     map[string]any{"full_name": "acme/rocket", "stars": 120},
		"acme/rocket/issues/1.json": map[string]any{"number": 1, "title": "Launch fails on Mondays", "state": "open"},
		"acme/rocket/issues/2.json": map[string]any{"number": 2, "title": "Docs typo", "state": "closed"},
		"acme/rocket/pulls/3.json":  map[string]any{"number": 3, "title": "Fix Monday launches", "merged": true},
		"acme/anvil/repo.json":      map[string]any{"full_name": "acme/anvil", "stars": 7},
		"acme/anvil/issues/1.json":  map[string]any{"number": 1, "title": "Anvil too heavy", "state": "open"},
		"users/octocat.json":        map[string]any{"login": "octocat"},
	}
}

// WriteVectors writes a flat little-endian float32 vector file.
func WriteVectors(t testing.TB, path string, vectors [][]float32) {
	t.Helper()
	buf := make([]byte, 0)
	for _, vector := range vectors {
		for _, value := range vector {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(value))
		}
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write vectors: %v", err)
	}
}

// WriteVectorIndex writes a vector index JSON file.
func WriteVectorIndex(t testing.TB, path string, index corpus.VectorIndexFile) {
	t.Helper()
	payload, err := json.Marshal(index)
	if err != nil {
		t.Fatalf("marshal index: %v", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
}

// SampleVectors returns one 3-dimensional vector per SampleVectorIndex item.
func SampleVectors() [][]float32 {
	return [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
		{0.6, 0.8, 0},
	}
}

// SampleVectorIndex indexes the seeded issues and pull request.
func SampleVectorIndex() corpus.VectorIndexFile {
	return corpus.VectorIndexFile{
		Dimension: 3,
		Model:     "test",
		Items: []corpus.VectorItem{
			{Offset: 0, ID: "i1", Type: corpus.ItemIssue, Repo: "acme/rocket", Number: 1, Title: "Launch fails on Mondays"},
			{Offset: 1, ID: "i2", Type: corpus.ItemIssue, Repo: "acme/rocket", Number: 2, Title: "Docs typo"},
			{Offset: 2, ID: "i3", Type: corpus.ItemIssue, Repo: "acme/anvil", Number: 1, Title: "Anvil too heavy"},
			{Offset: 3, ID: "p3", Type: corpus.ItemPull, Repo: "acme/rocket", Number: 3, Title: "Fix Monday launches"},
		},
	}
}

// WriteCorpus writes the sample documents and vector store under a temporary
// root and returns the resolved paths. The database file is not created; use
// Open and Seed, or WriteDatabase.
func WriteCorpus(t testing.TB) corpus.Paths {
	t.Helper()
	paths := corpus.ResolvePaths(corpus.Paths{Root: t.TempDir()})
	WriteDocs(t, paths.DocsDir, SampleDocs())
	if err := os.MkdirAll(filepath.Dir(paths.Vectors), 0o755); err != nil {
		t.Fatalf("mkdir embeddings: %v", err)
	}
	WriteVectors(t, paths.Vectors, SampleVectors())
	WriteVectorIndex(t, paths.VectorIndex, SampleVectorIndex())
	return paths
}

// WriteDatabase creates a seeded DuckDB file at path, for tests that open the
// corpus from another process.
func WriteDatabase(t testing.TB, path string) {
	t.Helper()
	ctx := testutil.Context(t, defaultTimeout)
	db, err := corpus.OpenDatabase(ctx, path, false)
	if err != nil {
		t.Fatalf("create duckdb: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	if err := corpus.EnsureSchema(ctx, db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	Seed(t, db)
}
