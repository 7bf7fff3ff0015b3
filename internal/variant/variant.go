// Package variant names the four tool-access strategies and builds an agent
// for each one.
package variant

import (
	"errors"
	"fmt"
	"strings"
)

// Name identifies a variant.
type Name string

const (
	Bash       Name = "bash"
	Filesystem Name = "fs"
	SQL        Name = "sql"
	Vector     Name = "vector"
)

// ErrUnknownVariant is returned for names that match no variant or alias.
var ErrUnknownVariant = errors.New("unknown variant")

// Definition describes a variant independent of any corpus.
type Definition struct {
	Name        Name
	Aliases     []string
	Description string
	MaxSteps    int
}

var definitions = []Definition{
	{
		Name:        Bash,
		Aliases:     []string{"shell", "sandbox"},
		Description: "Shell scripts in a sandbox over the corpus documents",
		MaxSteps:    50,
	},
	{
		Name:        Filesystem,
		Aliases:     []string{"filesystem", "files"},
		Description: "Typed file operations over the corpus documents",
		MaxSteps:    50,
	},
	{
		Name:        SQL,
		Aliases:     []string{"duckdb", "relational"},
		Description: "Read-only SQL over the relational corpus",
		MaxSteps:    50,
	},
	{
		Name:        Vector,
		Aliases:     []string{"embedding", "semantic"},
		Description: "Embedding similarity search over issues and pull requests",
		MaxSteps:    20,
	},
}

// All returns every variant in display order.
func All() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// Names returns the canonical variant names.
func Names() []string {
	names := make([]string, 0, len(definitions))
	for _, def := range definitions {
		names = append(names, string(def.Name))
	}
	return names
}

// Lookup resolves a name or alias, ignoring case.
func Lookup(name string) (Definition, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, def := range definitions {
		if key == string(def.Name) {
			return def, nil
		}
		for _, alias := range def.Aliases {
			if key == alias {
				return def, nil
			}
		}
	}
	return Definition{}, fmt.Errorf("%w %q (available: %s)", ErrUnknownVariant, name, strings.Join(Names(), ", "))
}
