package corpus

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// OpenDocs returns a read-only view of the hierarchical document tree rooted at
// dir. Paths inside the returned filesystem are relative to dir.
func OpenDocs(dir string) (afero.Fs, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve docs dir: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat docs dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("docs dir %s is not a directory", root)
	}
	return afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), root)), nil
}

// IssuePath returns the document path of an issue or pull request.
func IssuePath(repo string, itemType ItemType, number int) string {
	return fmt.Sprintf("%s/%s/%d.json", repo, itemType.Dir(), number)
}

// RepoPath returns the document path of a repository summary.
func RepoPath(repo string) string {
	return repo + "/repo.json"
}

// UserPath returns the document path of a user profile.
func UserPath(login string) string {
	return "users/" + login + ".json"
}
