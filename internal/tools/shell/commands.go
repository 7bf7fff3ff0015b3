package shell

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"mvdan.cc/sh/v3/interp"
)

// commandFunc runs a whitelisted command. Returning interp.ExitStatus sets the
// exit code; any other error aborts the script.
type commandFunc func(ctx context.Context, env *commandEnv, args []string) error

type command struct {
	usage       string
	description string
	run         commandFunc
}

func builtinCommands() map[string]command {
	return map[string]command{
		"ls":   {usage: "ls [-la1] [path...]", description: "list directory contents", run: runLs},
		"cat":  {usage: "cat [file...]", description: "print files or stdin", run: runCat},
		"head": {usage: "head [-n N] [file...]", description: "print the first N lines (default 10)", run: runHead},
		"tail": {usage: "tail [-n N] [file...]", description: "print the last N lines (default 10)", run: runTail},
		"grep": {usage: "grep [-inrclvFwoh] [-m N] pattern [path...]", description: "search lines with a regular expression", run: runGrep},
		"find": {usage: "find [path...] [-name glob] [-iname glob] [-path glob] [-type f|d] [-maxdepth N] [-mindepth N]", description: "find files by name", run: runFind},
		"wc":   {usage: "wc [-lwc] [file...]", description: "count lines, words and bytes", run: runWc},
		"sort": {usage: "sort [-rnuf] [file...]", description: "sort lines", run: runSort},
		"uniq": {usage: "uniq [-cd] [file...]", description: "collapse adjacent duplicate lines", run: runUniq},
		"jq":   {usage: "jq [-rcsn] filter [file...]", description: "query JSON documents with jq syntax", run: runJq},
	}
}

// commandEnv is the I/O context of one command invocation.
type commandEnv struct {
	fs     afero.Fs
	dir    string
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// abs resolves a command argument against the working directory.
func (e *commandEnv) abs(name string) string {
	return resolve(e.dir, name)
}

// input is one named input stream.
type input struct {
	name string
	data []byte
}

// inputs reads every named file, or stdin when names is empty. Unreadable
// files are reported on stderr and skipped.
func (e *commandEnv) inputs(cmd string, names []string) ([]input, bool) {
	if len(names) == 0 || (len(names) == 1 && names[0] == "-") {
		return []input{{name: "-", data: e.readStdin()}}, true
	}
	ok := true
	out := make([]input, 0, len(names))
	for _, name := range names {
		if name == "-" {
			out = append(out, input{name: name, data: e.readStdin()})
			continue
		}
		abs := e.abs(name)
		info, err := e.fs.Stat(abs)
		if err != nil {
			e.errorf(cmd, "%s: No such file or directory", name)
			ok = false
			continue
		}
		if info.IsDir() {
			e.errorf(cmd, "%s: Is a directory", name)
			ok = false
			continue
		}
		data, err := afero.ReadFile(e.fs, abs)
		if err != nil {
			e.errorf(cmd, "%s: %v", name, err)
			ok = false
			continue
		}
		out = append(out, input{name: name, data: data})
	}
	return out, ok
}

func (e *commandEnv) readStdin() []byte {
	if e.stdin == nil {
		return nil
	}
	data, _ := io.ReadAll(e.stdin)
	return data
}

func (e *commandEnv) errorf(cmd, format string, args ...any) {
	fmt.Fprintf(e.stderr, cmd+": "+format+"\n", args...)
}

func newFlags(name string, env *commandEnv) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.SetOutput(env.stderr)
	return flags
}

// exitStatus converts a success flag to an exit status error.
func exitStatus(ok bool) error {
	if ok {
		return nil
	}
	return interp.ExitStatus(1)
}

// errUsage is returned for unparseable options.
var errUsage = interp.ExitStatus(2)

// errJQRuntime matches jq's exit status for filter errors.
var errJQRuntime = interp.ExitStatus(5)

var legacyCount = regexp.MustCompile(`^-[0-9]+$`)

// expandLegacyCount rewrites "-5" into "-n 5" for head and tail.
func expandLegacyCount(args []string) []string {
	out := make([]string, 0, len(args)+1)
	for _, arg := range args {
		if legacyCount.MatchString(arg) {
			out = append(out, "-n", arg[1:])
			continue
		}
		out = append(out, arg)
	}
	return out
}

// splitLines splits data into lines without trailing newlines.
func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), len(data)+1)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func writeLines(w io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}

func runCat(_ context.Context, env *commandEnv, args []string) error {
	flags := newFlags("cat", env)
	number := flags.BoolP("number", "n", false, "number output lines")
	if err := flags.Parse(args); err != nil {
		return errUsage
	}
	inputs, ok := env.inputs("cat", flags.Args())
	line := 0
	for _, in := range inputs {
		if !*number {
			_, _ = env.stdout.Write(in.data)
			continue
		}
		for _, text := range splitLines(in.data) {
			line++
			fmt.Fprintf(env.stdout, "%6d\t%s\n", line, text)
		}
	}
	return exitStatus(ok)
}

func runHead(_ context.Context, env *commandEnv, args []string) error {
	return headTail(env, "head", args, func(lines []string, n int) []string {
		if n < len(lines) {
			return lines[:n]
		}
		return lines
	})
}

func runTail(_ context.Context, env *commandEnv, args []string) error {
	return headTail(env, "tail", args, func(lines []string, n int) []string {
		if n < len(lines) {
			return lines[len(lines)-n:]
		}
		return lines
	})
}

func headTail(env *commandEnv, name string, args []string, pick func([]string, int) []string) error {
	flags := newFlags(name, env)
	count := flags.IntP("lines", "n", 10, "number of lines")
	if err := flags.Parse(expandLegacyCount(args)); err != nil {
		return errUsage
	}
	if *count < 0 {
		env.errorf(name, "invalid number of lines: %d", *count)
		return errUsage
	}
	inputs, ok := env.inputs(name, flags.Args())
	for i, in := range inputs {
		if len(inputs) > 1 {
			if i > 0 {
				fmt.Fprintln(env.stdout)
			}
			fmt.Fprintf(env.stdout, "==> %s <==\n", in.name)
		}
		writeLines(env.stdout, pick(splitLines(in.data), *count))
	}
	return exitStatus(ok)
}
