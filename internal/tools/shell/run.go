package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/spf13/afero"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"

	"toolbench/internal/tools"
)

// Result is the outcome of one script.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Format renders the result for the model. Stdout and stderr are truncated
// independently.
func (r Result) Format(maxChars int) string {
	var builder strings.Builder
	stdout, _ := tools.Truncate(r.Stdout, maxChars)
	stderr, _ := tools.Truncate(r.Stderr, maxChars)
	builder.WriteString(stdout)
	if stdout != "" && !strings.HasSuffix(stdout, "\n") {
		builder.WriteString("\n")
	}
	if stderr != "" {
		builder.WriteString("[stderr]\n")
		builder.WriteString(stderr)
		if !strings.HasSuffix(stderr, "\n") {
			builder.WriteString("\n")
		}
	}
	fmt.Fprintf(&builder, "[exit code: %d]", r.ExitCode)
	return builder.String()
}

// Run executes script inside the sandbox. A non-zero exit status is a
// result, not an error; ceilings and the timeout are errors.
func (t *Tools) Run(ctx context.Context, script string) (Result, error) {
	file, err := parseScript(script, t.cfg.MaxCallDepth)
	if err != nil {
		return Result{}, err
	}
	runCtx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	var (
		stdout     syncBuffer
		stderr     syncBuffer
		commands   atomic.Int64
		iterations atomic.Int64
	)
	runner, err := interp.New(
		interp.StdIO(nil, &stdout, &stderr),
		interp.Dir("/"),
		interp.Env(expand.ListEnviron("HOME=/", "PWD=/", "TMPDIR="+ScratchDir, "PATH=/bin")),
		interp.CallHandler(func(_ context.Context, args []string) ([]string, error) {
			if len(args) > 0 && args[0] == loopTick {
				if t.cfg.MaxLoopIterations > 0 && iterations.Add(1) > int64(t.cfg.MaxLoopIterations) {
					return nil, fmt.Errorf("%w (max %d)", ErrLoopLimit, t.cfg.MaxLoopIterations)
				}
				return []string{"true"}, nil
			}
			if t.cfg.MaxCommands > 0 && commands.Add(1) > int64(t.cfg.MaxCommands) {
				return nil, fmt.Errorf("%w (max %d)", ErrCommandLimit, t.cfg.MaxCommands)
			}
			return args, nil
		}),
		interp.ExecHandlers(t.execMiddleware),
		interp.OpenHandler(t.open),
		interp.StatHandler(t.stat),
		interp.ReadDirHandler2(t.readDir),
	)
	if err != nil {
		return Result{}, fmt.Errorf("create interpreter: %w", err)
	}

	runErr := runner.Run(runCtx, file)
	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	var status interp.ExitStatus
	switch {
	case ctx.Err() != nil:
		return result, ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return result, fmt.Errorf("command timed out after %s", t.cfg.Timeout)
	case runErr == nil:
	case errors.As(runErr, &status):
		result.ExitCode = int(status)
	default:
		return result, runErr
	}
	return result, nil
}

// execMiddleware dispatches to whitelisted Go commands. It never falls
// through to host binaries.
func (t *Tools) execMiddleware(_ interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		hc := interp.HandlerCtx(ctx)
		cmd, ok := t.commands[args[0]]
		if !ok {
			fmt.Fprintf(hc.Stderr, "%s: command not found\n", args[0])
			return interp.ExitStatus(127)
		}
		env := &commandEnv{
			fs:     t.fs,
			dir:    hc.Dir,
			stdin:  hc.Stdin,
			stdout: hc.Stdout,
			stderr: hc.Stderr,
		}
		return cmd.run(ctx, env, args[1:])
	}
}

func (t *Tools) open(ctx context.Context, name string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	if name == "/dev/null" {
		return devNull{}, nil
	}
	return t.fs.OpenFile(resolve(interp.HandlerCtx(ctx).Dir, name), flag, perm)
}

func (t *Tools) stat(_ context.Context, name string, _ bool) (fs.FileInfo, error) {
	return t.fs.Stat(resolve("/", name))
}

func (t *Tools) readDir(_ context.Context, name string) ([]fs.DirEntry, error) {
	infos, err := afero.ReadDir(t.fs, resolve("/", name))
	if err != nil {
		return nil, err
	}
	entries := make([]fs.DirEntry, len(infos))
	for i, info := range infos {
		entries[i] = fs.FileInfoToDirEntry(info)
	}
	return entries, nil
}

func (t *Tools) executeBash(ctx context.Context, args tools.Args) (string, error) {
	script, err := args.RequiredString("script")
	if err != nil {
		return "", err
	}
	result, err := t.Run(ctx, script)
	if err != nil {
		return "", err
	}
	return result.Format(t.cfg.MaxOutputChars), nil
}

func (t *Tools) executeReadFile(_ context.Context, args tools.Args) (string, error) {
	name, err := args.RequiredString("path")
	if err != nil {
		return "", err
	}
	abs := resolve("/", name)
	info, err := t.fs.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%s: no such file", abs)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s: is a directory", abs)
	}
	data, err := afero.ReadFile(t.fs, abs)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", abs, err)
	}
	return string(data), nil
}

func (t *Tools) executeWriteFile(_ context.Context, args tools.Args) (string, error) {
	name, err := args.RequiredString("path")
	if err != nil {
		return "", err
	}
	content, err := args.RequiredString("content")
	if err != nil {
		return "", err
	}
	abs := resolve("/", name)
	if err := t.fs.MkdirAll(path.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", path.Dir(abs), err)
	}
	if err := afero.WriteFile(t.fs, abs, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", abs, err)
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(content), abs), nil
}

// resolve cleans name against dir. The sandbox root is /, so ".." can never
// leave it.
func resolve(dir, name string) string {
	if path.IsAbs(name) {
		return path.Clean(name)
	}
	if dir == "" {
		dir = "/"
	}
	return path.Join(dir, name)
}

// syncBuffer serializes writes from concurrent pipeline stages.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type devNull struct{}

func (devNull) Read([]byte) (int, error)    { return 0, io.EOF }
func (devNull) Write(p []byte) (int, error) { return len(p), nil }
func (devNull) Close() error                { return nil }
