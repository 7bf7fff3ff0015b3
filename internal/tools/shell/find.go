package shell

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

// findExpr is the conjunction of find predicates. find's single-dash long
// options are not getopt style, so they are parsed by hand.
type findExpr struct {
	name     string
	iname    string
	pathGlob string
	kind     string
	maxDepth int
	minDepth int
}

func parseFindArgs(args []string) ([]string, findExpr, error) {
	expr := findExpr{maxDepth: -1}
	var roots []string
	i := 0
	for ; i < len(args) && !strings.HasPrefix(args[i], "-"); i++ {
		roots = append(roots, args[i])
	}
	for ; i < len(args); i++ {
		predicate := args[i]
		if i+1 >= len(args) {
			return nil, expr, fmt.Errorf("missing argument to `%s'", predicate)
		}
		value := args[i+1]
		i++
		switch predicate {
		case "-name":
			expr.name = value
		case "-iname":
			expr.iname = strings.ToLower(value)
		case "-path", "-wholename":
			expr.pathGlob = value
		case "-type":
			if value != "f" && value != "d" {
				return nil, expr, fmt.Errorf("unsupported -type %q (use f or d)", value)
			}
			expr.kind = value
		case "-maxdepth", "-mindepth":
			depth, err := strconv.Atoi(value)
			if err != nil || depth < 0 {
				return nil, expr, fmt.Errorf("invalid %s %q", predicate, value)
			}
			if predicate == "-maxdepth" {
				expr.maxDepth = depth
			} else {
				expr.minDepth = depth
			}
		default:
			return nil, expr, fmt.Errorf("unknown predicate `%s'", predicate)
		}
	}
	if len(roots) == 0 {
		roots = []string{"."}
	}
	return roots, expr, nil
}

func (e findExpr) matches(display string, info os.FileInfo, depth int) bool {
	if depth < e.minDepth {
		return false
	}
	switch e.kind {
	case "f":
		if info.IsDir() {
			return false
		}
	case "d":
		if !info.IsDir() {
			return false
		}
	}
	base := path.Base(display)
	if e.name != "" {
		if ok, _ := doublestar.Match(e.name, base); !ok {
			return false
		}
	}
	if e.iname != "" {
		if ok, _ := doublestar.Match(e.iname, strings.ToLower(base)); !ok {
			return false
		}
	}
	if e.pathGlob != "" {
		if ok, _ := doublestar.Match(e.pathGlob, display); !ok {
			return false
		}
	}
	return true
}

func runFind(ctx context.Context, env *commandEnv, args []string) error {
	roots, expr, err := parseFindArgs(args)
	if err != nil {
		env.errorf("find", "%v", err)
		return errUsage
	}
	ok := true
	for _, root := range roots {
		abs := env.abs(root)
		if _, err := env.fs.Stat(abs); err != nil {
			env.errorf("find", "'%s': No such file or directory", root)
			ok = false
			continue
		}
		walkErr := afero.Walk(env.fs, abs, func(walked string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			rel := strings.TrimPrefix(strings.TrimPrefix(walked, abs), "/")
			depth := 0
			display := root
			if rel != "" {
				depth = strings.Count(rel, "/") + 1
				display = path.Join(root, rel)
				if root == "." {
					display = "./" + rel
				}
			}
			if expr.matches(display, info, depth) && (expr.maxDepth < 0 || depth <= expr.maxDepth) {
				fmt.Fprintln(env.stdout, display)
			}
			if info.IsDir() && expr.maxDepth >= 0 && depth >= expr.maxDepth {
				return filepath.SkipDir
			}
			return nil
		})
		if walkErr != nil {
			return walkErr
		}
	}
	return exitStatus(ok)
}
