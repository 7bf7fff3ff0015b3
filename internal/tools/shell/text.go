package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"toolbench/internal/tools"
)

func runLs(_ context.Context, env *commandEnv, args []string) error {
	flags := newFlags("ls", env)
	long := flags.BoolP("long", "l", false, "long listing")
	all := flags.BoolP("all", "a", false, "show hidden entries")
	flags.BoolP("one", "1", false, "one entry per line")
	if err := flags.Parse(args); err != nil {
		return errUsage
	}
	targets := flags.Args()
	if len(targets) == 0 {
		targets = []string{"."}
	}
	ok := true
	for i, target := range targets {
		abs := env.abs(target)
		info, err := env.fs.Stat(abs)
		if err != nil {
			env.errorf("ls", "cannot access '%s': No such file or directory", target)
			ok = false
			continue
		}
		if !info.IsDir() {
			writeEntry(env.stdout, info, target, *long)
			continue
		}
		if len(targets) > 1 {
			if i > 0 {
				fmt.Fprintln(env.stdout)
			}
			fmt.Fprintf(env.stdout, "%s:\n", target)
		}
		entries, err := afero.ReadDir(env.fs, abs)
		if err != nil {
			env.errorf("ls", "cannot open directory '%s': %v", target, err)
			ok = false
			continue
		}
		for _, entry := range entries {
			if !*all && strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			writeEntry(env.stdout, entry, entry.Name(), *long)
		}
	}
	return exitStatus(ok)
}

func writeEntry(w io.Writer, info os.FileInfo, name string, long bool) {
	if !long {
		fmt.Fprintln(w, name)
		return
	}
	fmt.Fprintf(w, "%s %8d %s %s\n", info.Mode().String(), info.Size(), info.ModTime().UTC().Format("2006-01-02 15:04"), name)
}

func runWc(_ context.Context, env *commandEnv, args []string) error {
	flags := newFlags("wc", env)
	lines := flags.BoolP("lines", "l", false, "count lines")
	words := flags.BoolP("words", "w", false, "count words")
	chars := flags.BoolP("bytes", "c", false, "count bytes")
	if err := flags.Parse(args); err != nil {
		return errUsage
	}
	if !*lines && !*words && !*chars {
		*lines, *words, *chars = true, true, true
	}
	inputs, ok := env.inputs("wc", flags.Args())
	var total [3]int
	columns := 0
	for _, selected := range []bool{*lines, *words, *chars} {
		if selected {
			columns++
		}
	}
	render := func(counts [3]int, name string) {
		var fields []string
		for i, selected := range []bool{*lines, *words, *chars} {
			if !selected {
				continue
			}
			if columns == 1 {
				fields = append(fields, strconv.Itoa(counts[i]))
			} else {
				fields = append(fields, fmt.Sprintf("%7d", counts[i]))
			}
		}
		if name != "-" {
			fields = append(fields, name)
		}
		fmt.Fprintln(env.stdout, strings.Join(fields, " "))
	}
	for _, in := range inputs {
		counts := [3]int{bytes.Count(in.data, []byte("\n")), len(bytes.Fields(in.data)), len(in.data)}
		for i := range total {
			total[i] += counts[i]
		}
		render(counts, in.name)
	}
	if len(inputs) > 1 {
		render(total, "total")
	}
	return exitStatus(ok)
}

func runSort(_ context.Context, env *commandEnv, args []string) error {
	flags := newFlags("sort", env)
	reverse := flags.BoolP("reverse", "r", false, "reverse the result")
	numeric := flags.BoolP("numeric-sort", "n", false, "compare leading numbers")
	unique := flags.BoolP("unique", "u", false, "drop duplicate lines")
	fold := flags.BoolP("ignore-case", "f", false, "fold lower case to upper case")
	if err := flags.Parse(args); err != nil {
		return errUsage
	}
	inputs, ok := env.inputs("sort", flags.Args())
	var lines []string
	for _, in := range inputs {
		lines = append(lines, splitLines(in.data)...)
	}
	key := func(line string) string {
		if *fold {
			return strings.ToUpper(line)
		}
		return line
	}
	less := func(a, b string) bool {
		if *numeric {
			na, nb := leadingNumber(a), leadingNumber(b)
			if na != nb {
				return na < nb
			}
		}
		return key(a) < key(b)
	}
	sort.SliceStable(lines, func(i, j int) bool {
		if *reverse {
			return less(lines[j], lines[i])
		}
		return less(lines[i], lines[j])
	})
	if *unique {
		lines = dedupe(lines, func(a, b string) bool { return !less(a, b) && !less(b, a) })
	}
	writeLines(env.stdout, lines)
	return exitStatus(ok)
}

// leadingNumber parses the numeric prefix of a line; lines without one sort as zero.
func leadingNumber(line string) float64 {
	trimmed := strings.TrimSpace(line)
	end := 0
	for end < len(trimmed) && strings.ContainsRune("+-.0123456789", rune(trimmed[end])) {
		end++
	}
	for ; end > 0; end-- {
		if value, err := strconv.ParseFloat(trimmed[:end], 64); err == nil {
			return value
		}
	}
	return 0
}

func dedupe(lines []string, equal func(a, b string) bool) []string {
	out := lines[:0]
	for i, line := range lines {
		if i > 0 && equal(out[len(out)-1], line) {
			continue
		}
		out = append(out, line)
	}
	return out
}

func runUniq(_ context.Context, env *commandEnv, args []string) error {
	flags := newFlags("uniq", env)
	count := flags.BoolP("count", "c", false, "prefix lines with their counts")
	repeated := flags.BoolP("repeated", "d", false, "only print duplicated lines")
	if err := flags.Parse(args); err != nil {
		return errUsage
	}
	inputs, ok := env.inputs("uniq", flags.Args())
	var lines []string
	for _, in := range inputs {
		lines = append(lines, splitLines(in.data)...)
	}
	for i := 0; i < len(lines); {
		j := i + 1
		for j < len(lines) && lines[j] == lines[i] {
			j++
		}
		n := j - i
		if !*repeated || n > 1 {
			if *count {
				fmt.Fprintf(env.stdout, "%7d %s\n", n, lines[i])
			} else {
				fmt.Fprintln(env.stdout, lines[i])
			}
		}
		i = j
	}
	return exitStatus(ok)
}

func runJq(ctx context.Context, env *commandEnv, args []string) error {
	flags := newFlags("jq", env)
	raw := flags.BoolP("raw-output", "r", false, "print strings without quotes")
	compact := flags.BoolP("compact-output", "c", false, "one value per line")
	slurp := flags.BoolP("slurp", "s", false, "read all inputs into one array")
	nullInput := flags.BoolP("null-input", "n", false, "use null as the single input")
	if err := flags.Parse(args); err != nil {
		return errUsage
	}
	rest := flags.Args()
	if len(rest) == 0 {
		env.errorf("jq", "missing filter")
		return errUsage
	}
	filter := rest[0]

	var values []any
	ok := true
	if *nullInput {
		values = []any{nil}
	} else {
		inputs, readOK := env.inputs("jq", rest[1:])
		ok = readOK
		for _, in := range inputs {
			decoded, err := decodeJSONStream(in.data)
			if err != nil {
				env.errorf("jq", "%s: invalid JSON: %v", in.name, err)
				return errUsage
			}
			values = append(values, decoded...)
		}
		if *slurp {
			values = []any{values}
		}
	}
	for _, value := range values {
		results, err := tools.RunJQ(ctx, filter, value)
		if err != nil {
			env.errorf("jq", "%v", err)
			return errJQRuntime
		}
		text, err := tools.FormatJSONValues(results, !*compact, *raw)
		if err != nil {
			env.errorf("jq", "%v", err)
			return errJQRuntime
		}
		_, _ = io.WriteString(env.stdout, text)
	}
	return exitStatus(ok)
}

// decodeJSONStream decodes whitespace-separated JSON values.
func decodeJSONStream(data []byte) ([]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	var values []any
	for {
		var value any
		err := decoder.Decode(&value)
		if errors.Is(err, io.EOF) {
			return values, nil
		}
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
}
