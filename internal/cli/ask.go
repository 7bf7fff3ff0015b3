package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"toolbench/internal/agent/loop"
	"toolbench/internal/config"
	"toolbench/internal/runner"
	"toolbench/internal/telemetry"
	"toolbench/internal/transcript"
	"toolbench/internal/variant"
)

// AskCmd runs one question against one variant.
type AskCmd struct {
	Variant   string   `arg:"" help:"Variant name or alias (bash, fs, sql, vector)."`
	Question  []string `arg:"" optional:"" help:"Question text."`
	Config    string   `short:"c" placeholder:"PATH" help:"Config file (default: nearest toolbench.yml)."`
	Isolation string   `default:"inline" placeholder:"MODE" help:"inline or process."`
	JSON      bool     `name:"json" help:"Print the result as JSON instead of a transcript."`
}

// askOutput is the --json rendering of one invocation.
type askOutput struct {
	Variant  string            `json:"variant"`
	Question string            `json:"question"`
	Status   string            `json:"status"`
	Result   *loop.AgentResult `json:"result,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Run executes the invocation. Once the arguments are valid, failures are
// printed as part of the output and the command still succeeds.
func (c *AskCmd) Run(env *appEnv) error {
	def, err := variant.Lookup(c.Variant)
	if err != nil {
		return usageError("%v (available: %s)", err, strings.Join(variant.Names(), ", "))
	}
	questionText := strings.TrimSpace(strings.Join(c.Question, " "))
	if questionText == "" {
		return usageError("question is required")
	}
	isolation := strings.ToLower(strings.TrimSpace(c.Isolation))
	if isolation != config.IsolationInline && isolation != config.IsolationProcess {
		return usageError("invalid --isolation %q (want %s or %s)", c.Isolation, config.IsolationInline, config.IsolationProcess)
	}

	name := string(def.Name)
	var tw *transcript.Writer
	var sink loop.Sink = loop.SinkFuncs{}
	if !c.JSON {
		tw = transcript.New(env.stdout, transcript.Options{NoColor: env.globals.NoColor})
		tw.Question(name, questionText)
		sink = tw
	}

	result, err := c.invoke(env, name, questionText, isolation, sink)
	if c.JSON {
		return printAskJSON(env, name, questionText, result, err)
	}
	if err != nil {
		tw.Error(err)
		return nil
	}
	tw.Result(result)
	return nil
}

// invoke loads the config and runs the question in the chosen isolation.
func (c *AskCmd) invoke(env *appEnv, name, questionText, isolation string, sink loop.Sink) (loop.AgentResult, error) {
	cfg, configPath, err := loadConfig(c.Config)
	if err != nil {
		return loop.AgentResult{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.RequireAPIKeys(name == string(variant.Vector)); err != nil {
		return loop.AgentResult{}, fmt.Errorf("missing credentials: %w", err)
	}
	logger := newLogger(env.stderr, cfg.LogLevel, env.globals.LogLevel)
	shutdown, err := telemetry.Setup(env.ctx, telemetry.Options{ServiceName: "toolbench", Role: "ask"})
	if err != nil {
		return loop.AgentResult{}, err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	if isolation == config.IsolationProcess {
		spawner, err := newSpawner(configPath, env.globals.LogLevel, logger)
		if err != nil {
			return loop.AgentResult{}, err
		}
		return spawner.Invoke(env.ctx, name, questionText, sink)
	}
	rt, err := newRuntime(cfg, logger)
	if err != nil {
		return loop.AgentResult{}, err
	}
	defer rt.Close()
	return rt.Invoke(env.ctx, name, questionText, sink)
}

func printAskJSON(env *appEnv, name, questionText string, result loop.AgentResult, err error) error {
	out := askOutput{Variant: name, Question: questionText, Status: runner.StatusOK}
	if err != nil {
		out.Status = runner.StatusForError(err)
		out.Error = err.Error()
	} else {
		out.Result = &result
	}
	enc := json.NewEncoder(env.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}
