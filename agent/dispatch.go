package agent

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/mcpchat/core"
	"github.com/hupe1980/mcpchat/stream"
	"github.com/hupe1980/mcpchat/tool"
)

// executeCalls dispatches one model turn's tool calls concurrently and
// returns their outcomes in the original request order. tool_start events
// are emitted in request order before any dispatch begins; tool_end events
// follow in completion order. A sink failure or cancellation returns an
// error and the outcomes are discarded.
func (s *Session) executeCalls(ctx context.Context, calls []core.ToolCallRequest) ([]core.ToolCallOutcome, error) {
	n := len(calls)
	for _, fc := range calls {
		s.recordToolUse(fc.Name)
		if err := s.sink.Emit(stream.ToolStart(fc)); err != nil {
			return nil, err
		}
	}

	maxPar := s.opts.MaxParallelTools
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	outcomes := make([]core.ToolCallOutcome, n)
	var mu sync.Mutex
	var sinkErr error
	var wg sync.WaitGroup

	sem := make(chan struct{}, maxPar)

	batchStart := time.Now()
	for i := range calls {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, fc core.ToolCallRequest) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := s.executeSingle(ctx, fc)
			outcomes[idx] = outcome

			if err := s.sink.Emit(stream.ToolEnd(outcome)); err != nil {
				mu.Lock()
				if sinkErr == nil {
					sinkErr = err
				}
				mu.Unlock()
			}
		}(i, calls[i])
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mu.Lock()
	err := sinkErr
	mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.opts.Logger.Debug("tool batch complete",
		"run_id", s.runID,
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)
	return outcomes, nil
}

// executeSingle resolves one call against the catalog and dispatches it.
// Every failure mode becomes an error outcome; nothing here aborts the
// session.
func (s *Session) executeSingle(ctx context.Context, fc core.ToolCallRequest) core.ToolCallOutcome {
	outcome := core.ToolCallOutcome{CallID: fc.ID, Name: fc.Name}

	descriptor, ok := s.catalog.Get(fc.Name)
	if !ok {
		outcome.Err = tool.NewError(tool.KindNotFound, fc.Name, "tool not found in catalog")
		return outcome
	}
	if err := tool.ValidateArguments(descriptor, fc.Arguments); err != nil {
		outcome.Err = err
		return outcome
	}

	start := time.Now()
	var (
		output string
		err    error
	)
	func() { // panic safety
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("tool dispatch panicked: %v", r)
				s.opts.Logger.Error("tool dispatch panic",
					"run_id", s.runID,
					"tool", fc.Name,
					"recover", r,
					"stack", string(debug.Stack()),
				)
			}
		}()
		output, err = s.invoker.Invoke(ctx, descriptor.Provider, fc.Name, fc.Arguments)
	}()

	s.opts.Logger.Info("tool executed",
		"run_id", s.runID,
		"tool", fc.Name,
		"provider", descriptor.Provider,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	outcome.Output = output
	outcome.Err = err
	return outcome
}
