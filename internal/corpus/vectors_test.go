package corpus_test

import (
	"errors"
	"path/filepath"
	"testing"

	"toolbench/internal/corpus"
	"toolbench/internal/corpus/corpustest"
)

func writeStore(t *testing.T, vectors [][]float32, index corpus.VectorIndexFile) (string, string) {
	t.Helper()
	dir := t.TempDir()
	vectorsPath := filepath.Join(dir, "vectors.bin")
	indexPath := filepath.Join(dir, "index.json")
	corpustest.WriteVectors(t, vectorsPath, vectors)
	corpustest.WriteVectorIndex(t, indexPath, index)
	return vectorsPath, indexPath
}

func TestLoadVectorsReadsOffsets(t *testing.T) {
	vectorsPath, indexPath := writeStore(t, [][]float32{{1, 0}, {0.5, 2}}, corpus.VectorIndexFile{
		Dimension: 2,
		Model:     "test-embed",
		Items: []corpus.VectorItem{
			{Offset: 1, ID: "b", Type: corpus.ItemPull, Repo: "acme/rocket", Number: 3},
			{Offset: 0, ID: "a", Type: corpus.ItemIssue, Repo: "acme/rocket", Number: 1},
		},
	})
	store, err := corpus.LoadVectors(vectorsPath, indexPath, 2)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if store.Len() != 2 || store.Model != "test-embed" {
		t.Fatalf("unexpected store %+v", store)
	}
	got := store.Vector(store.Items[0])
	if got[0] != 0.5 || got[1] != 2 {
		t.Fatalf("unexpected vector %v", got)
	}
}

// TestLoadVectorsRejectsInconsistentStores verifies configuration errors fail at load time.
func TestLoadVectorsRejectsInconsistentStores(t *testing.T) {
	cases := []struct {
		name    string
		vectors [][]float32
		index   corpus.VectorIndexFile
		dim     int
	}{
		{
			name:    "offset out of range",
			vectors: [][]float32{{1, 0}},
			index:   corpus.VectorIndexFile{Dimension: 2, Items: []corpus.VectorItem{{Offset: 1, ID: "x", Type: corpus.ItemIssue}}},
		},
		{
			name:    "dimension mismatch",
			vectors: [][]float32{{1, 0}},
			index:   corpus.VectorIndexFile{Dimension: 2},
			dim:     3,
		},
		{
			name:    "ragged buffer",
			vectors: [][]float32{{1, 0, 1}},
			index:   corpus.VectorIndexFile{Dimension: 2},
		},
		{
			name:    "missing dimension",
			vectors: [][]float32{{1}},
			index:   corpus.VectorIndexFile{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			vectorsPath, indexPath := writeStore(t, tc.vectors, tc.index)
			_, err := corpus.LoadVectors(vectorsPath, indexPath, tc.dim)
			if !errors.Is(err, corpus.ErrVectorLoad) {
				t.Fatalf("expected ErrVectorLoad, got %v", err)
			}
		})
	}
}

func TestParseItemType(t *testing.T) {
	for input, want := range map[string]corpus.ItemType{"issue": corpus.ItemIssue, "pulls": corpus.ItemPull, "pr": corpus.ItemPull} {
		got, err := corpus.ParseItemType(input)
		if err != nil || got != want {
			t.Fatalf("ParseItemType(%q) = %q, %v", input, got, err)
		}
	}
	if _, err := corpus.ParseItemType("commit"); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}
