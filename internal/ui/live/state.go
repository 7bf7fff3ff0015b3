package live

import "time"

// PaneStatus is the coarse state of one variant pane.
type PaneStatus string

const (
	PaneIdle      PaneStatus = "idle"
	PaneRunning   PaneStatus = "running"
	PaneScoring   PaneStatus = "scoring"
	PaneDone      PaneStatus = "done"
	PaneStepLimit PaneStatus = "step limit"
	PaneFailed    PaneStatus = "failed"
)

// maxPaneText bounds the streamed text kept per pane.
const maxPaneText = 4000

// ToolStatus captures the latest tool call activity for a pane.
type ToolStatus struct {
	Name       string
	State      string
	Duration   time.Duration
	Error      bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// Pane holds UI state for one variant on the current question.
type Pane struct {
	Variant    string
	Status     PaneStatus
	Step       int
	MaxSteps   int
	ToolCalls  int
	Tokens     int
	Tool       ToolStatus
	HasTool    bool
	Text       string
	StartedAt  time.Time
	FinishedAt time.Time
	Score      *float64
	Error      string
}

// Totals accumulates one variant's results across finished questions.
type Totals struct {
	Runs      int
	Failed    int
	Scored    int
	ScoreSum  float64
	LatencyMs int64
}

// MeanScore returns the mean over scored answers.
func (t Totals) MeanScore() (float64, bool) {
	if t.Scored == 0 {
		return 0, false
	}
	return t.ScoreSum / float64(t.Scored), true
}

// State captures the live UI state for a run.
type State struct {
	RunID         string
	Model         string
	StartedAt     time.Time
	QuestionIndex int
	QuestionTotal int
	QuestionID    string
	QuestionText  string
	Variants      []string
	Panes         []Pane
	Totals        map[string]Totals
	LastEvent     string
	Finished      bool
}
