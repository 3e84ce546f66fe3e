package tooling

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ai-assistant-be/internal/constant"
	"ai-assistant-be/internal/pkg/logger"

	"github.com/google/uuid"
)

// Invocation carries the per-request identity every tool call operates
// on. Each call gets its own copy, nothing is shared across goroutines.
type Invocation struct {
	UserId        uuid.UUID
	SessionId     uuid.UUID
	MemoryEnabled bool
}

// Call is one tool execution request with its correlation id.
type Call struct {
	Id    string
	Name  string
	Query string
}

// Result is the outcome of one call. Error is empty on success.
type Result struct {
	CallId string
	Name   string
	Status string
	Output string
	Error  string
}

// Event kinds surfaced during dispatch.
const (
	EventStarted   = "started"
	EventProgress  = "progress"
	EventCompleted = "completed"
	EventFailed    = "failed"
)

type Event struct {
	Kind    string
	CallId  string
	Name    string
	Message string
	Output  string
	Error   string
}

type Emit func(Event)

// Tool is an in-process tool implementation.
type Tool interface {
	Name() string
	Execute(ctx context.Context, inv Invocation, query string, progress func(message string)) (string, error)
}

// RemoteExecutor proxies a tool call to the generation backend.
type RemoteExecutor interface {
	ExecuteTool(ctx context.Context, toolName string, query string, userId uuid.UUID, sessionId uuid.UUID, memoryEnabled bool) (string, error)
}

const (
	defaultToolTimeout     = 60 * time.Second
	longRunningToolTimeout = 300 * time.Second
	maxConcurrentTools     = 4
)

func timeoutFor(name string) time.Duration {
	switch name {
	case constant.ToolNameWebSearch, constant.ToolNameCodeExecution, constant.ToolNameDebate:
		return longRunningToolTimeout
	}
	return defaultToolTimeout
}

// Dispatcher runs tool calls concurrently. Plan management and the
// debate tool execute in-process; everything else is proxied to the
// backend. Calls are never retried; a failure becomes a failed result,
// never an error of the dispatch itself.
type Dispatcher struct {
	local  map[string]Tool
	remote RemoteExecutor
	log    logger.ILogger
}

func NewDispatcher(remote RemoteExecutor, log logger.ILogger, localTools ...Tool) *Dispatcher {
	local := make(map[string]Tool, len(localTools))
	for _, tool := range localTools {
		local[tool.Name()] = tool
	}
	return &Dispatcher{local: local, remote: remote, log: log}
}

// CallSpec is a requested tool execution before it gets a correlation id.
type CallSpec struct {
	Name  string
	Query string
}

// NewCalls tags requested tool executions with synthesized correlation
// ids. Name, timestamp and index keep ids unique within a request.
func NewCalls(requests []CallSpec) []Call {
	now := time.Now().UnixNano()
	calls := make([]Call, len(requests))
	for i, req := range requests {
		calls[i] = Call{
			Id:    fmt.Sprintf("%s-%d-%d", req.Name, now, i),
			Name:  req.Name,
			Query: req.Query,
		}
	}
	return calls
}

// Dispatch executes all calls concurrently and returns exactly one
// result per call, ordered by completion. Events are emitted as each
// call starts, reports progress, and finishes.
func (d *Dispatcher) Dispatch(ctx context.Context, inv Invocation, calls []Call, emit Emit) []Result {
	if len(calls) == 0 {
		return nil
	}
	if emit == nil {
		emit = func(Event) {}
	}

	resultCh := make(chan Result, len(calls))
	sem := make(chan struct{}, maxConcurrentTools)
	var wg sync.WaitGroup

	for _, call := range calls {
		wg.Add(1)
		go func(call Call) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				resultCh <- Result{
					CallId: call.Id,
					Name:   call.Name,
					Status: constant.ToolStatusFailed,
					Error:  ctx.Err().Error(),
				}
				return
			}

			resultCh <- d.execute(ctx, inv, call, emit)
		}(call)
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]Result, 0, len(calls))
	for result := range resultCh {
		if result.Status == constant.ToolStatusFailed {
			emit(Event{Kind: EventFailed, CallId: result.CallId, Name: result.Name, Error: result.Error})
		} else {
			emit(Event{Kind: EventCompleted, CallId: result.CallId, Name: result.Name, Output: result.Output})
		}
		results = append(results, result)
	}

	return results
}

func (d *Dispatcher) execute(ctx context.Context, inv Invocation, call Call, emit Emit) Result {
	emit(Event{Kind: EventStarted, CallId: call.Id, Name: call.Name})

	callCtx, cancel := context.WithTimeout(ctx, timeoutFor(call.Name))
	defer cancel()

	progress := func(message string) {
		emit(Event{Kind: EventProgress, CallId: call.Id, Name: call.Name, Message: message})
	}

	var output string
	var err error
	if tool, ok := d.local[call.Name]; ok {
		output, err = tool.Execute(callCtx, inv, call.Query, progress)
	} else {
		output, err = d.remote.ExecuteTool(callCtx, call.Name, call.Query, inv.UserId, inv.SessionId, inv.MemoryEnabled)
	}

	if err != nil {
		d.log.Warn("Tooling", "Tool call failed", map[string]interface{}{
			"tool":    call.Name,
			"call_id": call.Id,
			"error":   err.Error(),
		})
		return Result{CallId: call.Id, Name: call.Name, Status: constant.ToolStatusFailed, Error: err.Error()}
	}

	return Result{CallId: call.Id, Name: call.Name, Status: constant.ToolStatusCompleted, Output: output}
}
