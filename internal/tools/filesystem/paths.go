package filesystem

import (
	"fmt"
	"path/filepath"
	"strings"
)

// resolvePath maps a model-supplied path onto the corpus root. Absolute paths
// are accepted only when they already lie inside the root. The returned
// relative path is slash-separated and "." for the root itself.
func resolvePath(root, path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		trimmed = "."
	}
	cleaned := filepath.Clean(filepath.FromSlash(trimmed))
	rel := cleaned
	if filepath.IsAbs(cleaned) {
		relative, err := filepath.Rel(root, cleaned)
		if err != nil {
			return "", fmt.Errorf("resolve path %q: %w", path, err)
		}
		rel = relative
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the corpus root", path)
	}
	return filepath.ToSlash(rel), nil
}
