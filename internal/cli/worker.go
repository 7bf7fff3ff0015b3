package cli

import (
	"context"
	"fmt"
	"os"

	"toolbench/internal/agent/loop"
	"toolbench/internal/config"
	"toolbench/internal/telemetry"
	"toolbench/internal/worker"
)

// WorkerCmd runs a single invocation in a child process. Its stdout carries
// only the NDJSON protocol; logs go to stderr.
type WorkerCmd struct{}

// getenv reads the worker request. Tests replace it.
var getenv = os.Getenv

// Run serves the invocation named by the environment.
func (c *WorkerCmd) Run(env *appEnv) error {
	req, err := worker.RequestFromEnv(getenv)
	if err != nil {
		return failWorker(env, err)
	}
	cfg, err := loadWorkerConfig(req.ConfigPath)
	if err != nil {
		return failWorker(env, fmt.Errorf("load config: %w", err))
	}
	logger := newLogger(env.stderr, cfg.LogLevel, env.globals.LogLevel).With("variant", req.Variant, "pid", os.Getpid())
	shutdown, err := telemetry.Setup(env.ctx, telemetry.Options{ServiceName: "toolbench", Role: "worker"})
	if err != nil {
		return failWorker(env, err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()
	rt, err := newRuntime(cfg, logger)
	if err != nil {
		return failWorker(env, err)
	}
	defer rt.Close()

	return worker.Serve(env.ctx, req, env.stdout, func(ctx context.Context, req worker.Request, sink loop.Sink) (loop.AgentResult, error) {
		return rt.Invoke(ctx, req.Variant, req.Question, sink)
	})
}

func loadWorkerConfig(path string) (config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return config.Config{}, err
	}
	return config.LoadDefault(wd)
}

// failWorker reports a startup failure as a terminal protocol message. The
// parent reads the message, so the process itself still exits cleanly.
func failWorker(env *appEnv, err error) error {
	return worker.Fail(env.stdout, err)
}
