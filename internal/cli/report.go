package cli

import (
	"fmt"
	"path/filepath"

	"toolbench/internal/report"
	"toolbench/internal/reportserver"
	"toolbench/internal/runner"
)

// ReportCmd renders report.html for a finished run, or serves every report.
type ReportCmd struct {
	RunRef    string `arg:"" name:"run" optional:"" default:"latest" help:"Run id, or latest."`
	Config    string `short:"c" placeholder:"PATH" help:"Config file (default: nearest toolbench.yml)."`
	OutputDir string `name:"output-dir" placeholder:"DIR" help:"Results directory (overrides run.output_dir)."`
	Serve     string `placeholder:"ADDR" help:"Serve the reports of the results directory over HTTP on ADDR (e.g. 127.0.0.1:8080)."`
}

// Run loads results.json and rewrites the run's report.html.
func (c *ReportCmd) Run(env *appEnv) error {
	outputDir := c.OutputDir
	logLevel := ""
	if outputDir == "" {
		cfg, _, err := loadConfig(c.Config)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		outputDir = cfg.Run.OutputDir
		logLevel = cfg.LogLevel
	}
	if c.Serve != "" {
		logger := newLogger(env.stderr, logLevel, env.globals.LogLevel)
		return reportserver.Serve(env.ctx, reportserver.Config{
			Addr:      c.Serve,
			OutputDir: outputDir,
			Logger:    logger,
			Ready: func(addr string) {
				fmt.Fprintf(env.stdout, "Serving reports from %s on http://%s/\n", outputDir, addr)
			},
		})
	}

	results, runDir, err := report.ResolveRun(outputDir, c.RunRef)
	if err != nil {
		return err
	}
	paths := runner.OutputPaths{Root: filepath.Dir(runDir), RunID: filepath.Base(runDir)}
	if err := report.WriteReport(env.ctx, results, paths); err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "Report: %s\n", paths.ReportPath())
	return nil
}
