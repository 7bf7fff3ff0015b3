package shell

import (
	"context"
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

type grepOptions struct {
	ignoreCase   bool
	lineNumbers  bool
	recursive    bool
	countOnly    bool
	filesOnly    bool
	invert       bool
	fixed        bool
	word         bool
	onlyMatching bool
	noFilename   bool
	withFilename bool
	quiet        bool
	maxCount     int
}

// basicRegexp maps the basic-regexp escapes models habitually use onto RE2.
var basicRegexp = strings.NewReplacer(`\|`, `|`, `\(`, `(`, `\)`, `)`, `\+`, `+`, `\?`, `?`)

func compileGrepPattern(pattern string, opts grepOptions, extended bool) (*regexp.Regexp, error) {
	switch {
	case opts.fixed:
		pattern = regexp.QuoteMeta(pattern)
	case !extended:
		pattern = basicRegexp.Replace(pattern)
	}
	if opts.word {
		pattern = `\b(?:` + pattern + `)\b`
	}
	if opts.ignoreCase {
		pattern = `(?i)` + pattern
	}
	return regexp.Compile(pattern)
}

func runGrep(ctx context.Context, env *commandEnv, args []string) error {
	var opts grepOptions
	flags := newFlags("grep", env)
	flags.BoolVarP(&opts.ignoreCase, "ignore-case", "i", false, "ignore case")
	flags.BoolVarP(&opts.lineNumbers, "line-number", "n", false, "print line numbers")
	flags.BoolVarP(&opts.recursive, "recursive", "r", false, "search directories recursively")
	recursiveAlias := flags.BoolP("dereference-recursive", "R", false, "same as -r")
	flags.BoolVarP(&opts.countOnly, "count", "c", false, "print match counts")
	flags.BoolVarP(&opts.filesOnly, "files-with-matches", "l", false, "print matching file names")
	flags.BoolVarP(&opts.invert, "invert-match", "v", false, "select non-matching lines")
	flags.BoolVarP(&opts.fixed, "fixed-strings", "F", false, "treat pattern as a literal")
	flags.BoolVarP(&opts.word, "word-regexp", "w", false, "match whole words")
	flags.BoolVarP(&opts.onlyMatching, "only-matching", "o", false, "print only the matched parts")
	flags.BoolVarP(&opts.noFilename, "no-filename", "h", false, "never print file names")
	flags.BoolVarP(&opts.withFilename, "with-filename", "H", false, "always print file names")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "print nothing, only set the exit status")
	flags.IntVarP(&opts.maxCount, "max-count", "m", 0, "stop after N matches per file")
	extended := flags.BoolP("extended-regexp", "E", false, "extended regular expressions")
	if err := flags.Parse(args); err != nil {
		return errUsage
	}
	opts.recursive = opts.recursive || *recursiveAlias
	rest := flags.Args()
	if len(rest) == 0 {
		env.errorf("grep", "missing pattern")
		return errUsage
	}
	re, err := compileGrepPattern(rest[0], opts, *extended)
	if err != nil {
		env.errorf("grep", "invalid pattern: %v", err)
		return errUsage
	}
	targets := rest[1:]
	if len(targets) == 0 && opts.recursive {
		targets = []string{"."}
	}

	matched := false
	failed := false
	if len(targets) == 0 {
		matched = grepData(env, opts, re, "(standard input)", false, env.readStdin())
		return grepStatus(matched, failed)
	}
	showNames := (len(targets) > 1 || opts.recursive) && !opts.noFilename || opts.withFilename
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		abs := env.abs(target)
		info, err := env.fs.Stat(abs)
		if err != nil {
			env.errorf("grep", "%s: No such file or directory", target)
			failed = true
			continue
		}
		if !info.IsDir() {
			data, err := afero.ReadFile(env.fs, abs)
			if err != nil {
				env.errorf("grep", "%s: %v", target, err)
				failed = true
				continue
			}
			if grepData(env, opts, re, target, showNames, data) {
				matched = true
			}
			continue
		}
		if !opts.recursive {
			env.errorf("grep", "%s: Is a directory", target)
			failed = true
			continue
		}
		walkErr := afero.Walk(env.fs, abs, func(walked string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if info.IsDir() {
				return nil
			}
			data, err := afero.ReadFile(env.fs, walked)
			if err != nil {
				return nil
			}
			if grepData(env, opts, re, path.Join(target, strings.TrimPrefix(walked, abs)), showNames, data) {
				matched = true
			}
			return nil
		})
		if walkErr != nil {
			return walkErr
		}
	}
	return grepStatus(matched, failed)
}

// grepData writes matches for one input and reports whether any line matched.
func grepData(env *commandEnv, opts grepOptions, re *regexp.Regexp, name string, showName bool, data []byte) bool {
	prefix := ""
	if showName {
		prefix = name + ":"
	}
	count := 0
	for i, line := range splitLines(data) {
		if opts.maxCount > 0 && count >= opts.maxCount {
			break
		}
		if re.MatchString(line) == opts.invert {
			continue
		}
		count++
		if opts.countOnly || opts.filesOnly || opts.quiet {
			continue
		}
		linePrefix := prefix
		if opts.lineNumbers {
			linePrefix += fmt.Sprintf("%d:", i+1)
		}
		if opts.onlyMatching && !opts.invert {
			for _, match := range re.FindAllString(line, -1) {
				fmt.Fprintln(env.stdout, linePrefix+match)
			}
			continue
		}
		fmt.Fprintln(env.stdout, linePrefix+line)
	}
	switch {
	case opts.quiet:
	case opts.filesOnly && count > 0:
		fmt.Fprintln(env.stdout, name)
	case opts.countOnly:
		fmt.Fprintf(env.stdout, "%s%d\n", prefix, count)
	}
	return count > 0
}

// grepStatus follows grep: 0 on a match, 1 on no match, 2 on error.
func grepStatus(matched, failed bool) error {
	switch {
	case failed && !matched:
		return errUsage
	case matched:
		return nil
	default:
		return exitStatus(false)
	}
}
