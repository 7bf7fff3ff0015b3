package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"toolbench/internal/runner"
)

// LatestRef resolves to the most recent run in the output directory.
const LatestRef = "latest"

// ResolveRun loads the results of a run by id, or the most recent run when
// ref is empty or "latest". It returns the results and the run directory.
func ResolveRun(outputDir, ref string) (runner.Results, string, error) {
	ref = strings.TrimSpace(ref)
	var runDir string
	if ref == "" || ref == LatestRef {
		latest, err := findLatestRunDir(outputDir)
		if err != nil {
			return runner.Results{}, "", err
		}
		runDir = latest
	} else {
		if strings.ContainsAny(ref, `/\`) {
			return runner.Results{}, "", fmt.Errorf("invalid run id %q", ref)
		}
		runDir = filepath.Join(outputDir, ref)
		if info, err := os.Stat(runDir); err != nil || !info.IsDir() {
			return runner.Results{}, "", fmt.Errorf("run %s not found in %s", ref, outputDir)
		}
	}
	results, err := runner.LoadResults(filepath.Join(runDir, "results.json"))
	return results, runDir, err
}

// findLatestRunDir picks the lexically greatest run directory holding a
// results file. Run ids start with a UTC timestamp, so that is the newest.
func findLatestRunDir(outputDir string) (string, error) {
	runIDs, err := listRunIDs(outputDir)
	if err != nil {
		return "", err
	}
	if len(runIDs) == 0 {
		return "", fmt.Errorf("no runs found in %s", outputDir)
	}
	return filepath.Join(outputDir, runIDs[len(runIDs)-1]), nil
}

// ListRuns loads every run in the output directory, newest first. Runs whose
// results cannot be read are skipped.
func ListRuns(outputDir string) ([]runner.Results, error) {
	runIDs, err := listRunIDs(outputDir)
	if err != nil {
		return nil, err
	}
	runs := make([]runner.Results, 0, len(runIDs))
	for i := len(runIDs) - 1; i >= 0; i-- {
		results, err := runner.LoadResults(filepath.Join(outputDir, runIDs[i], "results.json"))
		if err != nil {
			continue
		}
		runs = append(runs, results)
	}
	return runs, nil
}

// listRunIDs returns the sorted names of run directories holding results.
func listRunIDs(outputDir string) ([]string, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, err
	}
	runIDs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(outputDir, entry.Name(), "results.json")); err == nil {
			runIDs = append(runIDs, entry.Name())
		}
	}
	sort.Strings(runIDs)
	return runIDs, nil
}
