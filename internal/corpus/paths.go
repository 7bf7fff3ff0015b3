package corpus

import (
	"path/filepath"
	"strings"
)

// Default locations relative to the corpus root.
const (
	DefaultDocsDir     = "docs"
	DefaultDatabase    = "corpus.duckdb"
	DefaultVectors     = "embeddings/vectors.bin"
	DefaultVectorIndex = "embeddings/index.json"
)

// Paths locates the three corpus shapes on disk.
type Paths struct {
	Root        string
	DocsDir     string
	Database    string
	Vectors     string
	VectorIndex string
}

// ResolvePaths fills empty fields with defaults and makes relative fields
// absolute against root.
func ResolvePaths(p Paths) Paths {
	root := strings.TrimSpace(p.Root)
	if root == "" {
		root = "."
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	resolve := func(value, fallback string) string {
		value = strings.TrimSpace(value)
		if value == "" {
			value = fallback
		}
		if filepath.IsAbs(value) {
			return filepath.Clean(value)
		}
		return filepath.Join(root, value)
	}
	return Paths{
		Root:        root,
		DocsDir:     resolve(p.DocsDir, DefaultDocsDir),
		Database:    resolve(p.Database, DefaultDatabase),
		Vectors:     resolve(p.Vectors, DefaultVectors),
		VectorIndex: resolve(p.VectorIndex, DefaultVectorIndex),
	}
}
