// Package agent implements the reasoning loop: a session owns a transcript,
// a tool catalog and a bound model, and runs bounded cycles of model turns
// and tool dispatches until the model yields a final answer or the step
// limit is reached. Internal transitions are pushed to a sink as stream
// events.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/mcpchat/core"
	"github.com/hupe1980/mcpchat/logging"
	"github.com/hupe1980/mcpchat/model"
	"github.com/hupe1980/mcpchat/stream"
	"github.com/hupe1980/mcpchat/tool"
)

// State tracks the session lifecycle.
type State int32

const (
	// StateIdle is the state before Run is called.
	StateIdle State = iota
	// StateRunning marks an active reasoning loop.
	StateRunning
	// StateCompleted marks a finished loop, including step-limit truncation.
	StateCompleted
	// StateFailed marks a fatal model capability failure.
	StateFailed
	// StateAborted marks an externally cancelled session.
	StateAborted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// ErrAborted is returned by Run when the session was aborted, either via
// Abort, context cancellation or a disconnected sink.
var ErrAborted = errors.New("session aborted")

// Invoker dispatches a single tool call to a provider. Implemented by
// provider.Registry.
type Invoker interface {
	Invoke(ctx context.Context, providerName, toolName string, args json.RawMessage) (string, error)
}

// Sink receives the session's stream events. A failing sink aborts the
// session.
type Sink interface {
	Emit(ev stream.Event) error
}

// Options configure a session.
type Options struct {
	// StepLimit bounds the number of model turns.
	StepLimit int
	// MaxParallelTools caps concurrent tool dispatches within one turn.
	// 0 or less means no explicit limit.
	MaxParallelTools int
	// Stream forwards partial model text as token events.
	Stream bool
	// Instructions overrides the generated system prompt when non-empty.
	Instructions string
	// Logger receives structured session logs.
	Logger logging.Logger
}

// Result is the terminal outcome of a completed session.
type Result struct {
	// FinalText is the model's final answer (or the truncation notice).
	FinalText string
	// ToolsUsed lists distinct attempted tool names in first-use order,
	// including calls that failed.
	ToolsUsed []string
	// Truncated is set when the step limit forced completion.
	Truncated bool
	// Transcript is the full transcript after the run.
	Transcript core.Transcript
}

// Session is the single-writer owner of one reasoning loop. It serves
// exactly one Run; sessions are not reusable.
type Session struct {
	model   model.Model
	catalog *tool.Catalog
	invoker Invoker
	sink    Sink
	opts    Options

	runID      string
	transcript core.Transcript
	toolsUsed  []string
	usedSet    map[string]struct{}

	state    atomic.Int32
	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

// New constructs a session seeded with the given history. The catalog may be
// empty, in which case the loop runs tool-less.
func New(m model.Model, catalog *tool.Catalog, invoker Invoker, sink Sink, history core.Transcript, optFns ...func(o *Options)) *Session {
	opts := Options{
		StepLimit: 8,
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.StepLimit < 1 {
		opts.StepLimit = 1
	}
	if catalog == nil {
		catalog = tool.NewCatalog()
	}
	if sink == nil {
		sink = stream.Discard{}
	}
	return &Session{
		model:      m,
		catalog:    catalog,
		invoker:    invoker,
		sink:       sink,
		opts:       opts,
		runID:      core.NewID(),
		transcript: history.Clone(),
		usedSet:    map[string]struct{}{},
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Abort cancels a running session. In-flight tool dispatches are cancelled
// on a best-effort basis and their outcomes discarded. Abort on a
// non-running session is a no-op.
func (s *Session) Abort() {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateAborted)) {
		return
	}
	s.cancelMu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancelMu.Unlock()
}

// Run executes the reasoning loop to completion. It may be called once.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, fmt.Errorf("session already started (state %s)", s.State())
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancelMu.Lock()
	s.cancel = cancel
	s.cancelMu.Unlock()
	defer cancel()

	instructions := s.opts.Instructions
	if instructions == "" {
		instructions = Instructions(s.catalog)
	}

	s.opts.Logger.Info("session started",
		"run_id", s.runID,
		"model", s.model.Info().Name,
		"tools", s.catalog.Len(),
		"step_limit", s.opts.StepLimit,
	)

	for step := 0; ; step++ {
		if err := ctx.Err(); err != nil {
			return nil, s.abortErr(err)
		}
		if step >= s.opts.StepLimit {
			return s.truncate(), nil
		}

		resp, err := s.modelTurn(ctx, instructions)
		if err != nil {
			if errors.Is(err, stream.ErrStreamClosed) || ctx.Err() != nil {
				return nil, s.abortErr(err)
			}
			s.state.Store(int32(StateFailed))
			s.opts.Logger.Error("model turn failed", "run_id", s.runID, "step", step, "error", err)
			return nil, fmt.Errorf("model capability failure: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			s.transcript = s.transcript.Append(core.AssistantMessage{Text: resp.Text})
			s.state.Store(int32(StateCompleted))
			s.opts.Logger.Info("session completed",
				"run_id", s.runID,
				"steps", step+1,
				"tools_used", len(s.toolsUsed),
			)
			return &Result{
				FinalText:  resp.Text,
				ToolsUsed:  s.toolsUsedCopy(),
				Transcript: s.transcript,
			}, nil
		}

		calls := s.assignCallIDs(resp.ToolCalls)
		s.transcript = s.transcript.Append(core.AssistantMessage{Text: resp.Text, ToolCalls: calls})

		outcomes, err := s.executeCalls(ctx, calls)
		if err != nil {
			return nil, s.abortErr(err)
		}
		// Outcomes fold back in request order, keeping the transcript
		// deterministic regardless of provider latency.
		for _, o := range outcomes {
			s.transcript = s.transcript.Append(o.Result())
		}
	}
}

// modelTurn runs one Generate call, forwarding partial text as token events,
// and returns the final response.
func (s *Session) modelTurn(ctx context.Context, instructions string) (model.Response, error) {
	req := model.Request{
		Instructions: instructions,
		Transcript:   s.transcript.Clone(),
		Tools:        s.catalog.Descriptors(),
		Stream:       s.opts.Stream,
	}

	respCh, errCh := s.model.Generate(ctx, req)

	var final model.Response
	var gotFinal bool
	var fatal error

	for respCh != nil || errCh != nil {
		select {
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if fatal != nil {
				continue
			}
			if r.Partial {
				if r.Text != "" && s.opts.Stream {
					if err := s.sink.Emit(stream.Token(r.Text)); err != nil {
						fatal = err
					}
				}
				continue
			}
			final = r
			gotFinal = true
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil && fatal == nil {
				fatal = err
			}
		}
	}

	if fatal != nil {
		return model.Response{}, fatal
	}
	if !gotFinal {
		return model.Response{}, fmt.Errorf("model returned no final response")
	}
	return final, nil
}

// truncate ends the session at the step limit with a synthesized final
// message, a signaled successful completion rather than a failure.
func (s *Session) truncate() *Result {
	final := fmt.Sprintf(
		"I stopped after reaching the limit of %d reasoning steps. The answer so far may be incomplete.",
		s.opts.StepLimit,
	)
	s.transcript = s.transcript.Append(core.AssistantMessage{Text: final})
	s.state.Store(int32(StateCompleted))
	s.opts.Logger.Warn("session truncated at step limit",
		"run_id", s.runID,
		"step_limit", s.opts.StepLimit,
	)
	return &Result{
		FinalText:  final,
		ToolsUsed:  s.toolsUsedCopy(),
		Truncated:  true,
		Transcript: s.transcript,
	}
}

func (s *Session) abortErr(cause error) error {
	s.state.CompareAndSwap(int32(StateRunning), int32(StateAborted))
	s.opts.Logger.Warn("session aborted", "run_id", s.runID, "cause", cause)
	return fmt.Errorf("%w: %v", ErrAborted, cause)
}

// assignCallIDs ensures every call carries a unique id; models are allowed
// to omit them.
func (s *Session) assignCallIDs(calls []core.ToolCallRequest) []core.ToolCallRequest {
	out := make([]core.ToolCallRequest, len(calls))
	copy(out, calls)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = core.NewID()
		}
	}
	return out
}

func (s *Session) recordToolUse(name string) {
	if _, ok := s.usedSet[name]; ok {
		return
	}
	s.usedSet[name] = struct{}{}
	s.toolsUsed = append(s.toolsUsed, name)
}

func (s *Session) toolsUsedCopy() []string {
	out := make([]string, len(s.toolsUsed))
	copy(out, s.toolsUsed)
	return out
}
