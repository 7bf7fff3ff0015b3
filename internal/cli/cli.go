// Package cli implements the toolbench command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
)

const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// CLI is the toolbench command grammar.
type CLI struct {
	LogLevel string `name:"log-level" placeholder:"LEVEL" help:"Log level: debug, info, warn or error (overrides config)."`
	NoColor  bool   `name:"no-color" help:"Disable colored output."`

	Eval     EvalCmd     `cmd:"" help:"Run questions against variants and score the answers."`
	Ask      AskCmd      `cmd:"" help:"Run one question against one variant and print the transcript."`
	Report   ReportCmd   `cmd:"" help:"Render the HTML report of a finished run."`
	Variants VariantsCmd `cmd:"" help:"List the available variants."`
	Init     InitCmd     `cmd:"" help:"Write a starter toolbench.yml."`
	Worker   WorkerCmd   `cmd:"" hidden:"" help:"Run one invocation described by the environment."`
}

// appEnv is bound into every command's Run method.
type appEnv struct {
	ctx     context.Context
	stdout  io.Writer
	stderr  io.Writer
	globals *CLI
}

// exitError carries a specific exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// usageError reports bad arguments with ExitUsage.
func usageError(format string, args ...any) error {
	return &exitError{code: ExitUsage, err: fmt.Errorf(format, args...)}
}

// exitSignal unwinds kong's exit hook back into Run.
type exitSignal int

// Run parses args and executes a command.
func Run(args []string, stdout, stderr io.Writer) int {
	return RunContext(context.Background(), args, stdout, stderr)
}

// RunContext is Run with a caller-supplied context, cancelled on interrupt.
func RunContext(ctx context.Context, args []string, stdout, stderr io.Writer) (code int) {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("toolbench"),
		kong.Description("Benchmark LLM agents answering questions through different tool-access strategies."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(status int) { panic(exitSignal(status)) }),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)
	if err != nil {
		fmt.Fprintf(stderr, "toolbench: %v\n", err)
		return ExitError
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			status, ok := recovered.(exitSignal)
			if !ok {
				panic(recovered)
			}
			code = int(status)
		}
	}()

	if len(args) == 0 {
		printUsage(parser, args)
		return ExitUsage
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "toolbench: %v\n\n", err)
		var parseErr *kong.ParseError
		if errors.As(err, &parseErr) && parseErr.Context != nil {
			parseErr.Context.Stdout = stderr
			_ = parseErr.Context.PrintUsage(true)
		}
		return ExitUsage
	}
	if level := strings.TrimSpace(cli.LogLevel); level != "" && !validLogLevel(level) {
		fmt.Fprintf(stderr, "toolbench: invalid --log-level %q (want debug, info, warn or error)\n", level)
		return ExitUsage
	}
	env := &appEnv{ctx: ctx, stdout: stdout, stderr: stderr, globals: &cli}
	if err := kctx.Run(env); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			if exit.err != nil {
				fmt.Fprintf(stderr, "%v\n", exit.err)
			}
			return exit.code
		}
		fmt.Fprintf(stderr, "%v\n", err)
		return ExitError
	}
	return ExitOK
}

// printUsage renders the root help to stdout.
func printUsage(parser *kong.Kong, args []string) {
	kctx, err := kong.Trace(parser, args)
	if err != nil {
		return
	}
	_ = kctx.PrintUsage(false)
}
