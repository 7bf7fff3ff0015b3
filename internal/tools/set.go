package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ExecuteFunc runs a capability with validated arguments.
type ExecuteFunc func(ctx context.Context, args Args) (string, error)

// Capability is a named operation exposed to the model.
type Capability struct {
	Name        string
	Description string
	InputSchema Schema
	// Timeout overrides the set-level timeout when positive.
	Timeout time.Duration
	// PreTruncated marks capabilities that cap their own output, such as
	// per-stream ceilings. Successful output skips the set-level ceiling.
	PreTruncated bool
	Execute      ExecuteFunc
}

// Definition is the model-facing description of a capability.
type Definition struct {
	Name        string
	Description string
	Parameters  Schema
}

// CallResult captures a tool execution outcome.
type CallResult struct {
	Tool       string
	Output     string
	Truncated  bool
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Error      string
}

// IsError reports whether the call failed.
func (r CallResult) IsError() bool {
	return r.Error != ""
}

// Options configure output ceilings and timeouts shared by every capability in a set.
type Options struct {
	MaxOutputChars int
	Timeout        time.Duration
}

// DefaultOptions returns the default output ceiling with no timeout.
func DefaultOptions() Options {
	return Options{MaxOutputChars: DefaultMaxOutputChars}
}

// ErrTimeout is wrapped by results of calls that exceeded their timeout.
var ErrTimeout = errors.New("tool call timed out")

// Set is an immutable registry of capabilities bound to one agent invocation.
type Set struct {
	opts   Options
	byName map[string]*boundCapability
	order  []string
	clock  func() time.Time
}

type boundCapability struct {
	Capability
	schema *jsonschema.Schema
}

// NewSet validates and compiles capabilities into a Set.
func NewSet(opts Options, capabilities ...Capability) (*Set, error) {
	set := &Set{
		opts:   opts,
		byName: make(map[string]*boundCapability, len(capabilities)),
		clock:  time.Now,
	}
	for _, capability := range capabilities {
		name := strings.TrimSpace(capability.Name)
		if name == "" {
			return nil, fmt.Errorf("tool name is required")
		}
		if capability.Execute == nil {
			return nil, fmt.Errorf("tool %s: execute is required", name)
		}
		if _, exists := set.byName[name]; exists {
			return nil, fmt.Errorf("duplicate tool %q", name)
		}
		schema, err := compileSchema(name, capability.InputSchema)
		if err != nil {
			return nil, err
		}
		set.byName[name] = &boundCapability{Capability: capability, schema: schema}
		set.order = append(set.order, name)
	}
	return set, nil
}

// Names returns capability names in registration order.
func (s *Set) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Definitions returns model-facing definitions in registration order.
func (s *Set) Definitions() []Definition {
	defs := make([]Definition, 0, len(s.order))
	for _, name := range s.order {
		capability := s.byName[name]
		defs = append(defs, Definition{
			Name:        capability.Name,
			Description: capability.Description,
			Parameters:  capability.InputSchema,
		})
	}
	return defs
}

// Execute resolves and runs a named capability. Failures never escape as Go
// errors: they are rendered into the result so the model can adapt.
func (s *Set) Execute(ctx context.Context, name string, args Args) CallResult {
	start := s.clock()
	capability, ok := s.byName[name]
	if !ok {
		return s.finalize(name, start, "", fmt.Errorf("unknown tool %q (available: %s)", name, strings.Join(s.sortedNames(), ", ")), false)
	}
	if err := validateArgs(capability.schema, args); err != nil {
		return s.finalize(name, start, "", err, false)
	}
	timeout := s.opts.Timeout
	if capability.Timeout > 0 {
		timeout = capability.Timeout
	}
	output, err := runCapability(ctx, capability.Capability, args, timeout)
	return s.finalize(name, start, output, err, capability.PreTruncated)
}

// ExecuteRaw decodes raw JSON arguments as produced by a model and executes
// the named capability. Malformed arguments become an error result.
func (s *Set) ExecuteRaw(ctx context.Context, name, rawArgs string) CallResult {
	args, err := ParseArgs(rawArgs)
	if err != nil {
		return s.finalize(name, s.clock(), "", fmt.Errorf("invalid arguments: %w", err), false)
	}
	return s.Execute(ctx, name, args)
}

// finalize assembles a CallResult with timing and truncation metadata.
func (s *Set) finalize(tool string, start time.Time, output string, err error, preTruncated bool) CallResult {
	var truncated bool
	switch {
	case err != nil:
		output, truncated = Truncate(FormatError(err), s.opts.MaxOutputChars)
	case preTruncated:
		truncated = strings.Contains(output, truncationMarkerPrefix)
	default:
		output, truncated = Truncate(output, s.opts.MaxOutputChars)
	}
	end := s.clock()
	return CallResult{
		Tool:       tool,
		Output:     output,
		Truncated:  truncated,
		StartedAt:  start,
		FinishedAt: end,
		Duration:   end.Sub(start),
		Error:      errorString(err),
	}
}

func (s *Set) sortedNames() []string {
	names := s.Names()
	sort.Strings(names)
	return names
}

type capabilityOutcome struct {
	output string
	err    error
}

// runCapability executes a capability, converting panics and timeouts to errors.
func runCapability(ctx context.Context, capability Capability, args Args, timeout time.Duration) (string, error) {
	callCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan capabilityOutcome, 1)
	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				done <- capabilityOutcome{err: fmt.Errorf("tool %s panicked: %v", capability.Name, recovered)}
			}
		}()
		output, err := capability.Execute(callCtx, args)
		done <- capabilityOutcome{output: output, err: err}
	}()

	select {
	case outcome := <-done:
		if outcome.err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return outcome.output, outcome.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}
