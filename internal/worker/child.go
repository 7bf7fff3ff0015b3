package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"go.opentelemetry.io/otel/propagation"

	"toolbench/internal/agent/loop"
)

// RunFunc performs one invocation inside the worker.
type RunFunc func(ctx context.Context, req Request, sink loop.Sink) (loop.AgentResult, error)

// Serve runs req and streams its events to w. Exactly one terminal message
// (done or error) is written. The returned error reports only failures to
// write; invocation failures travel as error messages.
func Serve(ctx context.Context, req Request, w io.Writer, run RunFunc) error {
	enc := &encoder{enc: json.NewEncoder(w)}
	ctx = ExtractTraceParent(ctx, req.TraceParent)

	result, err := run(ctx, req, enc)
	if err != nil {
		enc.write(Message{Type: TypeError, Error: errorPayload(err)})
	} else {
		enc.write(Message{Type: TypeDone, Result: &result})
	}
	return enc.err
}

// Fail writes a terminal error message for a worker that could not start.
func Fail(w io.Writer, err error) error {
	return json.NewEncoder(w).Encode(Message{Type: TypeError, Error: errorPayload(err)})
}

// encoder is the worker-side sink. It remembers the first write error and
// drops every later message.
type encoder struct {
	mu  sync.Mutex
	enc *json.Encoder
	err error
}

func (e *encoder) write(msg Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return
	}
	if err := e.enc.Encode(msg); err != nil {
		e.err = fmt.Errorf("write %s message: %w", msg.Type, err)
	}
}

// OnText implements loop.Sink.
func (e *encoder) OnText(delta string) {
	e.write(Message{Type: TypeText, Text: delta})
}

// OnToolCall implements loop.Sink.
func (e *encoder) OnToolCall(event loop.ToolCallEvent) {
	e.write(Message{Type: TypeToolCall, ToolCall: &event})
}

// OnToolResult implements loop.Sink.
func (e *encoder) OnToolResult(event loop.ToolResultEvent) {
	e.write(Message{Type: TypeToolResult, ToolResult: &event})
}

// OnProgress implements loop.Sink.
func (e *encoder) OnProgress(progress loop.Progress) {
	e.write(Message{Type: TypeProgress, Progress: &progress})
}

var traceContext = propagation.TraceContext{}

// InjectTraceParent returns the traceparent of the span in ctx, or "" when
// ctx carries no valid span.
func InjectTraceParent(ctx context.Context) string {
	carrier := propagation.MapCarrier{}
	traceContext.Inject(ctx, carrier)
	return carrier.Get("traceparent")
}

// ExtractTraceParent returns ctx with the remote span described by
// traceparent, so spans started from it join the parent's trace.
func ExtractTraceParent(ctx context.Context, traceparent string) context.Context {
	if traceparent == "" {
		return ctx
	}
	return traceContext.Extract(ctx, propagation.MapCarrier{"traceparent": traceparent})
}
