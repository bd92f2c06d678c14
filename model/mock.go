package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/mcpchat/core"
)

// Mock is a scriptable in-memory Model for tests and examples. Scripted
// turns are consumed in FIFO order, one per Generate call; when the script
// is exhausted a canned final answer is produced.
type Mock struct {
	mu     sync.Mutex
	info   Info
	script []Response
	calls  []Request
	err    error
}

// NewMock constructs a Mock with tool support enabled.
func NewMock(name string) *Mock {
	return &Mock{
		info: Info{Name: name, Provider: "mock", SupportsTools: true},
	}
}

// EnqueueText scripts a final text answer for the next turn.
func (m *Mock) EnqueueText(text string) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, Response{Text: text, FinishReason: "stop"})
	return m
}

// EnqueueToolCalls scripts a turn that requests the given tool calls.
func (m *Mock) EnqueueToolCalls(calls ...core.ToolCallRequest) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, Response{ToolCalls: calls, FinishReason: "tool_calls"})
	return m
}

// FailWith makes every subsequent Generate call fail with err.
func (m *Mock) FailWith(err error) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Requests returns the requests seen so far, in call order.
func (m *Mock) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	reqs := make([]Request, len(m.calls))
	copy(reqs, m.calls)
	return reqs
}

// Generate implements Model. When req.Stream is set, final text answers are
// additionally emitted as per-rune partial fragments first.
func (m *Mock) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.calls = append(m.calls, req)
	err := m.err
	var next Response
	if len(m.script) > 0 {
		next = m.script[0]
		m.script = m.script[1:]
	} else {
		next = Response{
			Text:         fmt.Sprintf("mock answer #%d", len(m.calls)),
			FinishReason: "stop",
		}
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)
		if err != nil {
			errCh <- err
			return
		}
		if req.Stream && next.Text != "" && len(next.ToolCalls) == 0 {
			for _, r := range next.Text {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: string(r)}:
				}
			}
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- next:
		}
	}()
	return respCh, errCh
}

// Info implements Model.
func (m *Mock) Info() Info { return m.info }
