package variant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"toolbench/internal/agent/loop"
	"toolbench/internal/corpus"
	"toolbench/internal/prompt"
	"toolbench/internal/tools"
	"toolbench/internal/tools/filesystem"
	"toolbench/internal/tools/shell"
	"toolbench/internal/tools/sqlquery"
	"toolbench/internal/tools/vector"
)

// Resources are the corpus stores variants are built from. Stores open
// lazily, once, and are shared read-only by every agent built from them.
type Resources struct {
	Paths      corpus.Paths
	Shell      shell.Config
	Tools      tools.Options
	Embedder   vector.Embedder
	VectorDims int

	mu      sync.Mutex
	db      *sql.DB
	vectors *corpus.Vectors
}

// Database opens the relational corpus read-only on first use.
func (r *Resources) Database(ctx context.Context) (*sql.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db != nil {
		return r.db, nil
	}
	db, err := corpus.OpenDatabase(ctx, r.Paths.Database, true)
	if err != nil {
		return nil, err
	}
	r.db = db
	return db, nil
}

// SetDatabase injects an already open database, for tests and fixtures.
func (r *Resources) SetDatabase(db *sql.DB) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.db = db
}

// Vectors loads the vector store on first use.
func (r *Resources) Vectors() (*corpus.Vectors, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.vectors != nil {
		return r.vectors, nil
	}
	store, err := corpus.LoadVectors(r.Paths.Vectors, r.Paths.VectorIndex, r.VectorDims)
	if err != nil {
		return nil, err
	}
	r.vectors = store
	return store, nil
}

// Close releases the database if it was opened.
func (r *Resources) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// Budget overrides a variant's limits. Zero fields keep the defaults.
type Budget struct {
	MaxSteps    int
	MaxDuration time.Duration
}

// Agent is a variant bound to fresh tools for one invocation.
type Agent struct {
	Definition
	SystemPrompt string
	Tools        *tools.Set
	Limits       loop.Limits
}

// Build binds a variant to its tools. Shell sandboxes are created per call,
// so writes from one invocation are never visible to another.
func Build(ctx context.Context, def Definition, res *Resources, budget Budget) (Agent, error) {
	if res == nil {
		return Agent{}, errors.New("variant resources are nil")
	}
	var (
		capabilities []tools.Capability
		data         = prompt.SystemData{Variant: string(def.Name)}
	)
	switch def.Name {
	case Bash:
		sandbox, err := shell.New(res.Paths.DocsDir, res.Shell)
		if err != nil {
			return Agent{}, fmt.Errorf("build %s: %w", def.Name, err)
		}
		capabilities = sandbox.Capabilities()
		data.Commands = sandbox.CommandDescriptions()
	case Filesystem:
		fsTools, err := filesystem.New(res.Paths.DocsDir)
		if err != nil {
			return Agent{}, fmt.Errorf("build %s: %w", def.Name, err)
		}
		capabilities = fsTools.Capabilities()
	case SQL:
		db, err := res.Database(ctx)
		if err != nil {
			return Agent{}, fmt.Errorf("build %s: %w", def.Name, err)
		}
		sqlTools, err := sqlquery.New(db)
		if err != nil {
			return Agent{}, fmt.Errorf("build %s: %w", def.Name, err)
		}
		capabilities = sqlTools.Capabilities()
	case Vector:
		store, err := res.Vectors()
		if err != nil {
			return Agent{}, fmt.Errorf("build %s: %w", def.Name, err)
		}
		db, err := res.Database(ctx)
		if err != nil {
			return Agent{}, fmt.Errorf("build %s: %w", def.Name, err)
		}
		vectorTools, err := vector.New(store, res.Embedder, db)
		if err != nil {
			return Agent{}, fmt.Errorf("build %s: %w", def.Name, err)
		}
		capabilities = vectorTools.Capabilities()
	default:
		return Agent{}, fmt.Errorf("%w %q", ErrUnknownVariant, def.Name)
	}

	options := res.Tools
	if options.MaxOutputChars == 0 {
		options.MaxOutputChars = tools.DefaultMaxOutputChars
	}
	set, err := tools.NewSet(options, capabilities...)
	if err != nil {
		return Agent{}, fmt.Errorf("build %s: %w", def.Name, err)
	}
	system, err := prompt.RenderSystemPrompt(ctx, data)
	if err != nil {
		return Agent{}, fmt.Errorf("build %s: %w", def.Name, err)
	}
	limits := loop.Limits{MaxSteps: def.MaxSteps, MaxDuration: budget.MaxDuration}
	if budget.MaxSteps > 0 {
		limits.MaxSteps = budget.MaxSteps
	}
	return Agent{
		Definition:   def,
		SystemPrompt: system,
		Tools:        set,
		Limits:       limits,
	}, nil
}

// Request builds the loop request for a question.
func (a Agent) Request(question string) loop.Request {
	return loop.Request{
		Variant:      string(a.Name),
		Question:     question,
		SystemPrompt: a.SystemPrompt,
		Tools:        a.Tools,
		Limits:       a.Limits,
	}
}
