// Package score grades agent answers against reference answers with a
// model-based factuality classifier.
package score

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"toolbench/internal/agent"
	"toolbench/internal/prompt"
	"toolbench/internal/tools"
)

// Name identifies the metric in results.
const Name = "Factuality"

// selectChoiceTool is the tool the classifier is forced to call.
const selectChoiceTool = "select_choice"

// DefaultAttempts bounds classifier calls per answer.
const DefaultAttempts = 3

// DefaultChoiceScores maps classifier choices to scores. A superset of the
// reference (B) counts as fully correct.
func DefaultChoiceScores() map[string]float64 {
	return map[string]float64{
		"A": 0.4,
		"B": 1,
		"C": 1,
		"D": 0,
		"E": 1,
	}
}

// Input is one answer to grade.
type Input struct {
	Question  string
	Reference string
	Answer    string
}

// Metadata records how a score was obtained.
type Metadata struct {
	Choice    string `json:"choice,omitempty"`
	Rationale string `json:"rationale,omitempty"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`
}

// Result is a graded answer. Score is nil when the classifier never produced
// a usable choice.
type Result struct {
	Name     string   `json:"name"`
	Score    *float64 `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// Scored reports whether the result carries a score.
func (r Result) Scored() bool {
	return r.Score != nil
}

// Options configure a Scorer.
type Options struct {
	Attempts        int
	ChoiceScores    map[string]float64
	Temperature     *float64
	MaxOutputTokens int
	Logger          *slog.Logger
}

// Scorer classifies answers with a model.
type Scorer struct {
	provider agent.Provider
	opts     Options
	choices  []string
	logger   *slog.Logger
}

// New returns a scorer. Missing options take defaults.
func New(provider agent.Provider, opts Options) (*Scorer, error) {
	if provider == nil {
		return nil, errors.New("scorer provider is nil")
	}
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	scores := DefaultChoiceScores()
	for choice, value := range opts.ChoiceScores {
		if _, ok := scores[choice]; !ok {
			return nil, fmt.Errorf("unknown choice %q", choice)
		}
		scores[choice] = value
	}
	opts.ChoiceScores = scores
	choices := make([]string, 0, len(scores))
	for choice := range scores {
		choices = append(choices, choice)
	}
	sort.Strings(choices)
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{provider: provider, opts: opts, choices: choices, logger: logger}, nil
}

// Score grades one answer. Classifier failures yield a nil score rather than
// an error; only cancellation of ctx is returned as an error.
func (s *Scorer) Score(ctx context.Context, in Input) (Result, error) {
	instructions, err := prompt.RenderScorerPrompt(ctx, prompt.ScorerData{
		Question:  in.Question,
		Reference: in.Reference,
		Answer:    in.Answer,
	})
	if err != nil {
		return Result{}, fmt.Errorf("render scorer prompt: %w", err)
	}
	request := agent.Prompt{
		InputItems:      []agent.HistoryItem{agent.UserText(instructions)},
		Tools:           []tools.Definition{s.toolDefinition()},
		ToolChoice:      agent.ForceTool(selectChoiceTool),
		Temperature:     s.opts.Temperature,
		MaxOutputTokens: s.opts.MaxOutputTokens,
	}

	result := Result{Name: Name}
	for attempt := 1; attempt <= s.opts.Attempts; attempt++ {
		result.Metadata.Attempts = attempt
		choice, rationale, err := s.classify(ctx, request)
		if err == nil {
			value := s.opts.ChoiceScores[choice]
			result.Score = &value
			result.Metadata.Choice = choice
			result.Metadata.Rationale = rationale
			result.Metadata.LastError = ""
			return result, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		result.Metadata.LastError = err.Error()
		s.logger.Debug("classifier attempt failed", "attempt", attempt, "err", err)
	}
	s.logger.Warn("answer left unscored", "attempts", result.Metadata.Attempts, "last_error", result.Metadata.LastError)
	return result, nil
}

func (s *Scorer) toolDefinition() tools.Definition {
	return tools.Definition{
		Name:        selectChoiceTool,
		Description: "Record the option that best describes the submitted answer.",
		Parameters: tools.ObjectSchema(map[string]tools.Schema{
			"reasons": tools.StringSchema("Step by step reasoning for the choice"),
			"choice":  tools.EnumSchema("The selected option", s.choices...),
		}, "reasons", "choice"),
	}
}

// classify runs one classifier call and extracts the choice.
func (s *Scorer) classify(ctx context.Context, request agent.Prompt) (string, string, error) {
	stream, err := s.provider.Stream(ctx, request)
	if err != nil {
		return "", "", fmt.Errorf("classifier call: %w", err)
	}
	defer stream.Close()

	var calls []agent.ToolCall
	for {
		event, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", "", fmt.Errorf("classifier stream: %w", err)
		}
		if event.Type == agent.StreamEventToolCall {
			calls = append(calls, event.ToolCall)
		}
		if event.Type == agent.StreamEventFinish {
			break
		}
	}
	for _, call := range calls {
		if call.Name != selectChoiceTool {
			continue
		}
		return s.parseChoice(call)
	}
	return "", "", fmt.Errorf("classifier did not call %s", selectChoiceTool)
}

func (s *Scorer) parseChoice(call agent.ToolCall) (string, string, error) {
	args, err := call.Args()
	if err != nil {
		return "", "", fmt.Errorf("parse %s arguments: %w", selectChoiceTool, err)
	}
	choice, err := args.RequiredString("choice")
	if err != nil {
		return "", "", err
	}
	choice = strings.ToUpper(strings.Trim(strings.TrimSpace(choice), "()"))
	if _, ok := s.opts.ChoiceScores[choice]; !ok {
		return "", "", fmt.Errorf("unknown choice %q", choice)
	}
	rationale, _, err := args.OptionalString("reasons")
	if err != nil {
		return "", "", err
	}
	return choice, rationale, nil
}

// Mean averages the scored results. Unscored results are excluded; ok is
// false when nothing was scored.
func Mean(results []Result) (mean float64, ok bool) {
	var sum float64
	var count int
	for _, result := range results {
		if result.Score == nil {
			continue
		}
		sum += *result.Score
		count++
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}
