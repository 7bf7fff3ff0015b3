package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"toolbench/internal/config"
	"toolbench/internal/question"
	"toolbench/internal/report"
	"toolbench/internal/runner"
	"toolbench/internal/telemetry"
	"toolbench/internal/ui/live"
	"toolbench/internal/variant"
	"toolbench/internal/worker"
)

// EvalCmd runs an evaluation.
type EvalCmd struct {
	Config      string   `short:"c" placeholder:"PATH" help:"Config file (default: nearest toolbench.yml)."`
	Questions   string   `short:"q" placeholder:"PATH" help:"Question dataset (overrides run.questions_file)."`
	Variants    []string `short:"v" sep:"," placeholder:"NAME" help:"Variants to run (overrides run.variants)."`
	Only        []string `name:"id" sep:"," placeholder:"ID" help:"Only run these question ids."`
	Category    string   `help:"Only run questions in this category."`
	Difficulty  string   `help:"Only run questions of this difficulty."`
	Concurrency int      `help:"Variants run at once per question (overrides run.concurrency)."`
	Isolation   string   `placeholder:"MODE" help:"process or inline (overrides run.isolation)."`
	OutputDir   string   `name:"output-dir" placeholder:"DIR" help:"Results directory (overrides run.output_dir)."`
	UI          string   `name:"ui" default:"auto" placeholder:"MODE" help:"auto, live or plain."`
	NoScore     bool     `name:"no-score" help:"Skip scoring; answers stay unscored."`
}

var runEval = runner.Run

// Run executes the evaluation and writes results.json and report.html.
func (c *EvalCmd) Run(env *appEnv) error {
	decision, err := resolveUIMode(c.UI, strings.EqualFold(env.globals.LogLevel, "debug"), env.stdout)
	if err != nil {
		return usageError("%v", err)
	}
	if decision.warning != "" {
		fmt.Fprintln(env.stderr, decision.warning)
	}

	cfg, configPath, err := loadConfig(c.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := c.applyOverrides(&cfg); err != nil {
		return usageError("%v", err)
	}
	variants, err := canonicalVariants(cfg.Run.Variants)
	if err != nil {
		return usageError("%v", err)
	}
	if err := cfg.RequireAPIKeys(containsString(variants, string(variant.Vector))); err != nil {
		return fmt.Errorf("missing credentials: %w", err)
	}
	questions, err := c.loadQuestions(cfg)
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if decision.useLive {
		// Log lines would tear the full-screen UI.
		level = "error"
	}
	logger := newLogger(env.stderr, level, env.globals.LogLevel)
	shutdown, err := telemetry.Setup(env.ctx, telemetry.Options{ServiceName: "toolbench", Role: "eval"})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	rt, err := newRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	deps := runner.RunDependencies{Invoker: rt, Logger: logger}
	if cfg.Run.Isolation == config.IsolationProcess {
		spawner, err := newSpawner(configPath, env.globals.LogLevel, logger)
		if err != nil {
			return err
		}
		deps.Invoker = spawner
	}
	if !c.NoScore {
		scorer, err := rt.newScorer()
		if err != nil {
			return err
		}
		deps.Grader = scorer
	}

	ctx, cancel := context.WithCancel(env.ctx)
	defer cancel()
	var controller *live.Controller
	if decision.useLive {
		controller = live.Start(env.stdout, live.Options{NoColor: env.globals.NoColor, Cancel: cancel})
		deps.Observer = controller
	} else {
		deps.Observer = newPlainObserver(env.stdout)
	}

	results, runErr := runEval(ctx, runner.RunParams{
		Questions:   questions,
		Variants:    variants,
		Concurrency: cfg.Run.Concurrency,
		Model:       cfg.Model.Model,
		Isolation:   cfg.Run.Isolation,
		Deps:        deps,
	})
	if controller != nil {
		controller.Close()
		controller.Wait()
	}
	if results.RunID == "" {
		return fmt.Errorf("run failed: %w", runErr)
	}

	paths, err := runner.WriteResults(results, cfg.Run.OutputDir)
	if err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	if err := report.WriteReport(context.Background(), results, paths); err != nil {
		return err
	}
	printSummary(env.stdout, results)
	fmt.Fprintf(env.stdout, "Results: %s\n", paths.ResultsPath())
	fmt.Fprintf(env.stdout, "Report: %s\n", paths.ReportPath())
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("run %s canceled after %d of %d questions", results.RunID, len(results.Questions), len(questions))
		}
		return fmt.Errorf("run failed: %w", runErr)
	}
	return nil
}

// applyOverrides layers command flags on top of the loaded config.
func (c *EvalCmd) applyOverrides(cfg *config.Config) error {
	if c.Questions != "" {
		cfg.Run.QuestionsFile = c.Questions
	}
	if len(c.Variants) > 0 {
		cfg.Run.Variants = c.Variants
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("--concurrency must be >= 1")
	}
	if c.Concurrency > 0 {
		cfg.Run.Concurrency = c.Concurrency
	}
	if c.Isolation != "" {
		isolation := strings.ToLower(strings.TrimSpace(c.Isolation))
		if isolation != config.IsolationProcess && isolation != config.IsolationInline {
			return fmt.Errorf("invalid --isolation %q (want %s or %s)", c.Isolation, config.IsolationProcess, config.IsolationInline)
		}
		cfg.Run.Isolation = isolation
	}
	if c.OutputDir != "" {
		cfg.Run.OutputDir = c.OutputDir
	}
	if strings.TrimSpace(cfg.Run.QuestionsFile) == "" {
		return fmt.Errorf("no question dataset: set run.questions_file or pass --questions")
	}
	return nil
}

// loadQuestions loads the dataset and applies the question filters.
func (c *EvalCmd) loadQuestions(cfg config.Config) ([]question.Question, error) {
	dataset, err := question.Load(cfg.Run.QuestionsFile)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	selected := dataset.Filter(c.Only, c.Category, c.Difficulty)
	if len(selected) == 0 {
		return nil, usageError("no questions match the given filters")
	}
	return selected, nil
}

// executable locates the running binary for worker processes. Tests replace it.
var executable = os.Executable

// newSpawner returns a spawner re-executing this binary as a worker.
func newSpawner(configPath, logLevel string, logger *slog.Logger) (*worker.Spawner, error) {
	self, err := executable()
	if err != nil {
		return nil, fmt.Errorf("locate worker binary: %w", err)
	}
	spawner := &worker.Spawner{
		Command:    self,
		Args:       []string{"worker"},
		ConfigPath: configPath,
		Logger:     logger,
	}
	if logLevel != "" {
		spawner.Env = []string{config.EnvLogLevel + "=" + logLevel}
	}
	return spawner, nil
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

// printSummary writes the per-variant summary table.
func printSummary(w io.Writer, results runner.Results) {
	status := "completed"
	if results.Canceled {
		status = "canceled"
	}
	fmt.Fprintf(w, "Run %s %s\n", results.RunID, status)
	fmt.Fprintf(w, "%-8s %6s %7s %7s %6s %10s %9s\n", "variant", "mean", "scored", "failed", "limit", "latency", "tokens")
	for _, summary := range results.Summary {
		mean := "n/a"
		if summary.MeanScore != nil {
			mean = fmt.Sprintf("%.2f", *summary.MeanScore)
		}
		fmt.Fprintf(w, "%-8s %6s %7d %7d %6d %9.0fms %9d\n",
			summary.Variant, mean, summary.Scored, summary.Failed, summary.StepLimited, summary.MeanLatencyMs, summary.TokensTotal)
	}
}
