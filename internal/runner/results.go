package runner

import (
	"time"

	"toolbench/internal/agent/loop"
	"toolbench/internal/score"
)

// Invocation statuses recorded per variant run.
const (
	StatusOK             = "ok"
	StatusStepLimit      = "step_limit"
	StatusBudgetExceeded = "budget_exceeded"
	StatusError          = "error"
)

// Results is the persisted outcome of one evaluation run.
type Results struct {
	RunID      string           `json:"run_id"`
	Model      string           `json:"model"`
	Isolation  string           `json:"isolation"`
	Variants   []string         `json:"variants"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Questions  []QuestionResult `json:"questions"`
	Summary    []VariantSummary `json:"summary"`
	// Canceled is set when the run stopped before every question ran.
	Canceled bool `json:"canceled,omitempty"`
}

// QuestionResult holds every variant's run of one question.
type QuestionResult struct {
	ID         string       `json:"id"`
	Question   string       `json:"question"`
	Category   string       `json:"category,omitempty"`
	Difficulty string       `json:"difficulty,omitempty"`
	Reference  string       `json:"reference"`
	Runs       []VariantRun `json:"runs"`
}

// VariantRun is one agent invocation and its grade.
type VariantRun struct {
	Variant   string          `json:"variant"`
	Status    string          `json:"status"`
	Answer    string          `json:"answer,omitempty"`
	Error     string          `json:"error,omitempty"`
	LatencyMs int64           `json:"latency_ms"`
	Steps     int             `json:"steps"`
	ToolCalls int             `json:"tool_calls"`
	Tokens    loop.TokenUsage `json:"tokens"`
	Score     *score.Result   `json:"score,omitempty"`
}

// Succeeded reports whether the invocation produced an answer.
func (r VariantRun) Succeeded() bool {
	return r.Status == StatusOK
}

// VariantSummary aggregates one variant across the run. MeanScore is nil
// when no answer was scored.
type VariantSummary struct {
	Variant       string   `json:"variant"`
	Questions     int      `json:"questions"`
	Succeeded     int      `json:"succeeded"`
	Failed        int      `json:"failed"`
	StepLimited   int      `json:"step_limited"`
	Scored        int      `json:"scored"`
	MeanScore     *float64 `json:"mean_score"`
	MeanLatencyMs float64  `json:"mean_latency_ms"`
	TokensTotal   int      `json:"tokens_total"`
	ToolCalls     int      `json:"tool_calls"`
}
