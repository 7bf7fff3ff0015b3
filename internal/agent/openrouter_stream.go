package agent

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// openRouterStreamChunk is a partial SSE payload.
type openRouterStreamChunk struct {
	Choices []openRouterStreamChoice `json:"choices"`
	Usage   *openRouterUsage         `json:"usage"`
	Error   *openRouterStreamError   `json:"error"`
}

// openRouterStreamChoice contains a delta event.
type openRouterStreamChoice struct {
	Index        int                   `json:"index"`
	Delta        openRouterStreamDelta `json:"delta"`
	FinishReason *string               `json:"finish_reason"`
}

// openRouterStreamDelta contains incremental content or tool calls.
type openRouterStreamDelta struct {
	Content   string                     `json:"content"`
	ToolCalls []openRouterStreamToolCall `json:"tool_calls"`
}

// openRouterStreamToolCall represents a streaming tool call delta.
type openRouterStreamToolCall struct {
	Index    int                    `json:"index"`
	ID       string                 `json:"id"`
	Type     string                 `json:"type"`
	Function openRouterFunctionCall `json:"function"`
}

type openRouterUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type openRouterStreamError struct {
	Code    any    `json:"code"`
	Message string `json:"message"`
}

// toolCallAccumulator gathers streaming tool call fragments.
type toolCallAccumulator struct {
	ID        string
	Name      string
	Arguments strings.Builder
}

// sseStream decodes a chat completions SSE body incrementally. Text deltas are
// emitted as they arrive; tool calls are emitted once complete, followed by a
// single finish event.
type sseStream struct {
	body         io.ReadCloser
	scanner      *bufio.Scanner
	pending      []StreamEvent
	accumulators map[int]*toolCallAccumulator
	finish       string
	usage        *openRouterUsage
	done         bool
}

func newSSEStream(body io.ReadCloser) *sseStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &sseStream{
		body:         body,
		scanner:      scanner,
		accumulators: make(map[int]*toolCallAccumulator),
	}
}

// Recv returns the next event or io.EOF after the finish event.
func (s *sseStream) Recv() (StreamEvent, error) {
	for len(s.pending) == 0 {
		if s.done {
			return StreamEvent{}, io.EOF
		}
		if err := s.readChunk(); err != nil {
			return StreamEvent{}, err
		}
	}
	event := s.pending[0]
	s.pending = s.pending[1:]
	return event, nil
}

// Close releases the response body.
func (s *sseStream) Close() error {
	return s.body.Close()
}

// readChunk consumes one SSE data line, queueing any resulting events.
func (s *sseStream) readChunk() error {
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			s.flush()
			return nil
		}
		var chunk openRouterStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return fmt.Errorf("parse stream chunk: %w", err)
		}
		if chunk.Error != nil {
			return fmt.Errorf("model stream error: %s", chunk.Error.Message)
		}
		if chunk.Usage != nil {
			s.usage = chunk.Usage
		}
		for _, choice := range chunk.Choices {
			s.applyChoice(choice)
		}
		if len(s.pending) > 0 {
			return nil
		}
	}
	if err := s.scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	s.flush()
	return nil
}

func (s *sseStream) applyChoice(choice openRouterStreamChoice) {
	if choice.Delta.Content != "" {
		s.pending = append(s.pending, StreamEvent{Type: StreamEventTextDelta, Text: choice.Delta.Content})
	}
	for _, call := range choice.Delta.ToolCalls {
		acc := s.accumulators[call.Index]
		if acc == nil {
			acc = &toolCallAccumulator{}
			s.accumulators[call.Index] = acc
		}
		if call.ID != "" {
			acc.ID = call.ID
		}
		if call.Function.Name != "" {
			acc.Name = call.Function.Name
		}
		acc.Arguments.WriteString(call.Function.Arguments)
	}
	if choice.FinishReason != nil && *choice.FinishReason != "" {
		s.finish = *choice.FinishReason
	}
}

// flush emits accumulated tool calls in index order and the finish event.
func (s *sseStream) flush() {
	if s.done {
		return
	}
	s.done = true
	indices := make([]int, 0, len(s.accumulators))
	for index := range s.accumulators {
		indices = append(indices, index)
	}
	sort.Ints(indices)
	for _, index := range indices {
		acc := s.accumulators[index]
		callID := acc.ID
		if callID == "" {
			callID = "call_" + uuid.NewString()
		}
		s.pending = append(s.pending, StreamEvent{
			Type: StreamEventToolCall,
			ToolCall: ToolCall{
				ID:        callID,
				Name:      acc.Name,
				Arguments: acc.Arguments.String(),
			},
		})
	}
	finish := StreamEvent{Type: StreamEventFinish, Finish: ParseFinishReason(s.finish)}
	if s.usage != nil {
		finish.Usage = Usage{InputTokens: s.usage.PromptTokens, OutputTokens: s.usage.CompletionTokens}
		finish.UsageReported = true
	}
	s.pending = append(s.pending, finish)
}
