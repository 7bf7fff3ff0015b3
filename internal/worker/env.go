package worker

import (
	"errors"
	"strings"
)

// Environment variables that parameterize a worker process.
const (
	EnvVariant     = "TOOLBENCH_VARIANT"
	EnvQuestion    = "TOOLBENCH_QUESTION"
	EnvTraceParent = "TOOLBENCH_TRACEPARENT"
	EnvConfig      = "TOOLBENCH_CONFIG"
)

// Request is one invocation handed to a worker.
type Request struct {
	Variant  string
	Question string
	// ConfigPath is the config file the worker loads. Empty means defaults
	// and the environment only.
	ConfigPath string
	// TraceParent is a W3C traceparent header value, passed through verbatim.
	TraceParent string
}

// Environ renders the request as KEY=value pairs.
func (r Request) Environ() []string {
	return []string{
		EnvVariant + "=" + r.Variant,
		EnvQuestion + "=" + r.Question,
		EnvTraceParent + "=" + r.TraceParent,
		EnvConfig + "=" + r.ConfigPath,
	}
}

// RequestFromEnv reads a request from the worker's environment.
func RequestFromEnv(getenv func(string) string) (Request, error) {
	req := Request{
		Variant:     strings.TrimSpace(getenv(EnvVariant)),
		Question:    getenv(EnvQuestion),
		ConfigPath:  strings.TrimSpace(getenv(EnvConfig)),
		TraceParent: strings.TrimSpace(getenv(EnvTraceParent)),
	}
	if req.Variant == "" {
		return Request{}, errors.New(EnvVariant + " is not set")
	}
	if strings.TrimSpace(req.Question) == "" {
		return Request{}, errors.New(EnvQuestion + " is not set")
	}
	return req, nil
}
