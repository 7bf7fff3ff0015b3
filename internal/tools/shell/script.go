package shell

import (
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// loopTick is injected at the top of every loop body so the call handler can
// count iterations, including bodies made only of assignments.
const loopTick = "__toolbench_loop_tick"

var (
	// ErrCommandLimit is returned when a script runs too many commands.
	ErrCommandLimit = errors.New("command limit exceeded")
	// ErrLoopLimit is returned when loops iterate too many times.
	ErrLoopLimit = errors.New("loop iteration limit exceeded")
	// ErrCallDepth is returned when function calls nest too deeply.
	ErrCallDepth = errors.New("call depth limit exceeded")
)

// parseScript parses a bash script, rejects call graphs deeper than maxDepth
// and instruments loop bodies.
func parseScript(script string, maxDepth int) (*syntax.File, error) {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(script), "")
	if err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if maxDepth > 0 {
		depth, err := callDepth(file)
		if err != nil {
			return nil, err
		}
		if depth > maxDepth {
			return nil, fmt.Errorf("%w: functions nest %d deep (max %d)", ErrCallDepth, depth, maxDepth)
		}
	}
	instrumentLoops(file)
	return file, nil
}

// callDepth returns the deepest chain of user-defined function calls.
// Recursion makes the depth unbounded and is rejected.
func callDepth(file *syntax.File) (int, error) {
	bodies := make(map[string]*syntax.Stmt)
	syntax.Walk(file, func(node syntax.Node) bool {
		if decl, ok := node.(*syntax.FuncDecl); ok && decl.Name != nil {
			bodies[decl.Name.Value] = decl.Body
		}
		return true
	})
	callees := make(map[string][]string, len(bodies))
	for name, body := range bodies {
		seen := make(map[string]bool)
		syntax.Walk(body, func(node syntax.Node) bool {
			call, ok := node.(*syntax.CallExpr)
			if !ok || len(call.Args) == 0 {
				return true
			}
			target := call.Args[0].Lit()
			if _, isFunc := bodies[target]; isFunc && !seen[target] {
				seen[target] = true
				callees[name] = append(callees[name], target)
			}
			return true
		})
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(bodies))
	depths := make(map[string]int, len(bodies))
	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return fmt.Errorf("%w: function %q is recursive", ErrCallDepth, name)
		case done:
			return nil
		}
		state[name] = visiting
		deepest := 0
		for _, callee := range callees[name] {
			if err := visit(callee); err != nil {
				return err
			}
			if depths[callee] > deepest {
				deepest = depths[callee]
			}
		}
		depths[name] = deepest + 1
		state[name] = done
		return nil
	}
	overall := 0
	for name := range bodies {
		if err := visit(name); err != nil {
			return 0, err
		}
		if depths[name] > overall {
			overall = depths[name]
		}
	}
	return overall, nil
}

// instrumentLoops prepends a tick command to every while, until and for body.
func instrumentLoops(file *syntax.File) {
	syntax.Walk(file, func(node syntax.Node) bool {
		switch loop := node.(type) {
		case *syntax.WhileClause:
			loop.Do = append([]*syntax.Stmt{tickStmt()}, loop.Do...)
		case *syntax.ForClause:
			loop.Do = append([]*syntax.Stmt{tickStmt()}, loop.Do...)
		}
		return true
	})
}

func tickStmt() *syntax.Stmt {
	word := &syntax.Word{Parts: []syntax.WordPart{&syntax.Lit{Value: loopTick}}}
	return &syntax.Stmt{Cmd: &syntax.CallExpr{Args: []*syntax.Word{word}}}
}
