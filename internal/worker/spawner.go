package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"toolbench/internal/agent/loop"
)

const (
	maxMessageBytes = 16 << 20
	maxStderrBytes  = 4 << 10
	waitDelay       = 2 * time.Second
)

// Spawner runs each invocation in a fresh child process.
type Spawner struct {
	// Command and Args start a worker, typically the running binary with the
	// hidden worker subcommand.
	Command string
	Args    []string
	// Env is appended to the parent's environment.
	Env        []string
	ConfigPath string
	Logger     *slog.Logger
}

// Invoke runs question against variant in a child process.
func (s *Spawner) Invoke(ctx context.Context, variant, question string, sink loop.Sink) (loop.AgentResult, error) {
	return s.Run(ctx, Request{Variant: variant, Question: question, ConfigPath: s.ConfigPath}, sink)
}

// Run starts a worker for req, forwards its events to sink, and returns its
// result. The first terminal message settles the invocation and the child is
// killed right after. A child that exits without a terminal message failed,
// whatever its exit code.
func (s *Spawner) Run(ctx context.Context, req Request, sink loop.Sink) (loop.AgentResult, error) {
	if s.Command == "" {
		return loop.AgentResult{}, errors.New("worker command is required")
	}
	if sink == nil {
		sink = loop.SinkFuncs{}
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if req.TraceParent == "" {
		req.TraceParent = InjectTraceParent(ctx)
	}

	childCtx, kill := context.WithCancel(ctx)
	defer kill()
	cmd := exec.CommandContext(childCtx, s.Command, s.Args...)
	cmd.Env = append(append(os.Environ(), s.Env...), req.Environ()...)
	cmd.WaitDelay = waitDelay
	setParentDeathSignal(cmd)
	stderr := &tailBuffer{limit: maxStderrBytes}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return loop.AgentResult{}, fmt.Errorf("worker stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return loop.AgentResult{}, fmt.Errorf("start worker: %w", err)
	}

	inv := &invocation{sink: sink, logger: logger.With("variant", req.Variant, "pid", cmd.Process.Pid)}
	inv.read(stdout)
	kill()
	waitErr := cmd.Wait()

	if result, settled, err := inv.outcome(); settled {
		return result, err
	}
	if ctx.Err() != nil {
		return loop.AgentResult{}, ctx.Err()
	}
	if waitErr != nil {
		return loop.AgentResult{}, fmt.Errorf("worker exited without a result: %w%s", waitErr, stderr.suffix())
	}
	return loop.AgentResult{}, fmt.Errorf("worker exited without a result%s", stderr.suffix())
}

// invocation tracks one child's message stream.
type invocation struct {
	sink   loop.Sink
	logger *slog.Logger

	once   sync.Once
	result loop.AgentResult
	err    error
	done   bool
}

// settle records the terminal outcome. Only the first call has any effect.
func (inv *invocation) settle(result loop.AgentResult, err error) {
	inv.once.Do(func() {
		inv.result = result
		inv.err = err
		inv.done = true
	})
}

func (inv *invocation) outcome() (loop.AgentResult, bool, error) {
	return inv.result, inv.done, inv.err
}

// handlers dispatches messages by type. Each returns true when the message
// settled the invocation.
func (inv *invocation) handlers() map[string]func(Message) bool {
	return map[string]func(Message) bool{
		TypeText: func(msg Message) bool {
			inv.sink.OnText(msg.Text)
			return false
		},
		TypeToolCall: func(msg Message) bool {
			if msg.ToolCall != nil {
				inv.sink.OnToolCall(*msg.ToolCall)
			}
			return false
		},
		TypeToolResult: func(msg Message) bool {
			if msg.ToolResult != nil {
				inv.sink.OnToolResult(*msg.ToolResult)
			}
			return false
		},
		TypeProgress: func(msg Message) bool {
			if msg.Progress != nil {
				inv.sink.OnProgress(*msg.Progress)
			}
			return false
		},
		TypeDone: func(msg Message) bool {
			if msg.Result == nil {
				inv.settle(loop.AgentResult{}, &Error{Kind: KindFailure, Message: "worker finished without a result"})
				return true
			}
			inv.settle(*msg.Result, nil)
			return true
		},
		TypeError: func(msg Message) bool {
			inv.settle(loop.AgentResult{}, msg.Error.err())
			return true
		},
	}
}

// read consumes messages until a terminal one arrives or stdout closes.
func (inv *invocation) read(stdout io.Reader) {
	handlers := inv.handlers()
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64<<10), maxMessageBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var msg Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			inv.logger.Debug("ignoring non-protocol worker output", "line", line)
			continue
		}
		handle, ok := handlers[msg.Type]
		if !ok {
			inv.logger.Warn("ignoring unknown worker message", "type", msg.Type)
			continue
		}
		if inv.dispatch(handle, msg) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		inv.logger.Warn("reading worker output failed", "err", err)
	}
}

// dispatch runs one handler. A panicking sink is logged and the stream
// continues.
func (inv *invocation) dispatch(handle func(Message) bool, msg Message) (settled bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			inv.logger.Warn("sink panicked", "type", msg.Type, "panic", recovered)
		}
	}()
	return handle(msg)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

// suffix formats captured stderr for an error message.
func (b *tailBuffer) suffix() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	text := strings.TrimSpace(string(b.buf))
	if text == "" {
		return ""
	}
	return ": " + text
}
