package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-assistant-be/internal/constant"
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/repository/unitofwork"
	"ai-assistant-be/pkg/contextbuilder"
	"ai-assistant-be/pkg/genclient"
	"ai-assistant-be/pkg/tooling"
)

// buildContext delegates to the assembler. History failure is the only
// fatal outcome here; everything else already degraded inside Build.
func (p *Processor) buildContext(ctx context.Context, r *run) error {
	if ctx.Err() != nil {
		return ErrCancelled
	}

	params := contextbuilder.Params{
		UserId:       r.user.Id,
		SessionId:    r.session.Id,
		Query:        r.reqLog.Query,
		CurrentLogId: r.reqLog.Id,
		HistoryTurns: p.cfg.HistoryTurns,
	}

	return p.withUow(ctx, func(uow unitofwork.UnitOfWork) error {
		built, err := p.builder.Build(ctx, uow, r.user, params, r.attachments)
		if err != nil {
			return fmt.Errorf("context build failed: %w", err)
		}
		r.context = built
		return nil
	})
}

// think runs the bounded reasoning loop. Each iteration re-reads the
// active plan, calls the backend once and executes any requested tools.
// Backend failures back off linearly and abandon the loop after
// MaxLoopFails consecutive misses; tool failures never count. A loop
// timeout with at least one recorded thought falls through to
// synthesis instead of failing the request.
func (p *Processor) think(ctx context.Context, r *run) error {
	loopCtx, cancel := context.WithTimeout(ctx, p.cfg.LoopTimeout)
	defer cancel()

	failures := 0
	for iteration := 1; iteration <= p.cfg.MaxIterations; iteration++ {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		if loopCtx.Err() != nil {
			if len(r.thoughts) > 0 {
				p.log.Warn("Orchestrator", "Thinking loop timed out, synthesizing from partial state", map[string]interface{}{
					"log_id":     r.reqLog.Id.String(),
					"iterations": r.iterations,
				})
				return nil
			}
			return fmt.Errorf("thinking loop timed out before any thought was recorded")
		}

		p.refreshPlan(ctx, r)

		var files []genclient.FilePart
		if iteration == 1 {
			files = r.inlineParts
		}

		result, err := p.backend.GenerateThought(loopCtx, p.thoughtRequest(r, iteration), files, func(event *genclient.Event) {
			p.forwardThoughtEvent(r, event)
		})
		if err != nil {
			if ctx.Err() != nil {
				return ErrCancelled
			}
			failures++
			p.log.Warn("Orchestrator", "Thought generation failed", map[string]interface{}{
				"log_id":   r.reqLog.Id.String(),
				"failures": failures,
				"error":    err.Error(),
			})
			if failures >= p.cfg.MaxLoopFails {
				p.log.Warn("Orchestrator", "Abandoning thinking loop after consecutive failures", map[string]interface{}{
					"log_id": r.reqLog.Id.String(),
				})
				return nil
			}

			delay := time.Duration(failures) * p.cfg.BackoffUnit
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ErrCancelled
			case <-timer.C:
			}
			continue
		}
		failures = 0

		if result.Usage != nil {
			r.usage = result.Usage
		}

		if result.Thought != nil {
			r.iterations++
			step := entity.ThoughtStep{
				Kind:       constant.ThoughtStepKindThought,
				Text:       result.Thought.Text,
				Header:     result.Thought.Header,
				Critique:   result.Thought.Critique,
				PlanStatus: result.Thought.PlanStatus,
			}
			if result.Thought.Confidence > 0 {
				confidence := result.Thought.Confidence
				step.Confidence = &confidence
			}
			r.thoughts = append(r.thoughts, step)
		}

		// Tool outcomes the backend already ran (including intercepted
		// local signals) become history steps too.
		for _, tr := range result.ToolResults {
			r.thoughts = append(r.thoughts, toolStep(tooling.Result{
				CallId: tr.CallId,
				Name:   tr.Name,
				Status: toolStatus(tr.Error),
				Output: tr.Output,
				Error:  tr.Error,
			}))
		}

		if result.Thought != nil && len(result.Thought.ToolCalls) > 0 {
			p.runTools(ctx, r, result.Thought.ToolCalls)
		}

		if result.Thought == nil || !result.Thought.NextThoughtNeeded {
			return nil
		}
	}

	return nil
}

// refreshPlan re-reads the active plan so tool-driven edits from this or
// a concurrent request are visible next round. Failure only degrades.
func (p *Processor) refreshPlan(ctx context.Context, r *run) {
	err := p.withUow(ctx, func(uow unitofwork.UnitOfWork) error {
		plan, err := uow.PlanRepository().FindActiveBySession(ctx, r.session.Id)
		if err != nil {
			return err
		}
		r.context.Plan = plan
		return nil
	})
	if err != nil {
		p.log.Warn("Orchestrator", "Plan refresh failed, keeping previous plan state", map[string]interface{}{
			"session_id": r.session.Id.String(),
			"error":      err.Error(),
		})
	}
}

func (p *Processor) thoughtRequest(r *run, iteration int) genclient.ThoughtRequest {
	return genclient.ThoughtRequest{
		Query:              r.reqLog.Query,
		History:            r.context.History,
		Snippets:           toContextSnippets(r.context),
		FileManifest:       toManifestEntries(r.context),
		Plan:               r.context.Plan,
		ProfileSummary:     r.context.ProfileSummary,
		CustomInstructions: sessionInstructions(r.session),
		Mode:               r.session.Mode,
		ThoughtHistory:     r.thoughts,
		Iteration:          iteration,
		MemoryEnabled:      r.memoryEnabled(),
		UserId:             r.user.Id.String(),
		SessionId:          r.session.Id.String(),
	}
}

// forwardThoughtEvent translates backend stream events into
// caller-facing events in arrival order.
func (p *Processor) forwardThoughtEvent(r *run, event *genclient.Event) {
	switch event.Kind {
	case genclient.EventThought:
		if event.Thought.Header != "" {
			r.emit(StreamEvent{Event: EventThoughtHeader, Header: event.Thought.Header})
		}
		streamEvent := StreamEvent{
			Event:    EventThought,
			Text:     event.Thought.Text,
			Critique: event.Thought.Critique,
		}
		if event.Thought.Confidence > 0 {
			confidence := event.Thought.Confidence
			streamEvent.Confidence = &confidence
		}
		r.emit(streamEvent)
	case genclient.EventToolProgress:
		r.emit(StreamEvent{
			Event:    EventToolProgress,
			CallId:   event.ToolProgress.CallId,
			ToolName: event.ToolProgress.Name,
			Message:  event.ToolProgress.Message,
		})
	case genclient.EventToolOutput:
		r.emit(StreamEvent{
			Event:    EventToolOutput,
			CallId:   event.ToolOutput.CallId,
			ToolName: event.ToolOutput.Name,
			Output:   event.ToolOutput.Output,
		})
		p.maybeEmitPlanUpdate(r, event.ToolOutput.Name, event.ToolOutput.Output)
	case genclient.EventToolError:
		r.emit(StreamEvent{
			Event:    EventToolError,
			CallId:   event.ToolError.CallId,
			ToolName: event.ToolError.Name,
			Error:    event.ToolError.Error,
		})
	case genclient.EventUsageUpdate:
		r.emit(StreamEvent{Event: EventUsageUpdate, Usage: event.Usage})
	}
}

// runTools dispatches one batch of requested tool calls concurrently
// and folds every result into the thought history. Exactly one result
// per call comes back regardless of individual failures.
func (p *Processor) runTools(ctx context.Context, r *run, requests []genclient.ToolCallRequest) {
	specs := make([]tooling.CallSpec, len(requests))
	for i, req := range requests {
		specs[i] = tooling.CallSpec{Name: req.Name, Query: req.Query}
	}
	calls := tooling.NewCalls(specs)

	for _, call := range calls {
		r.emit(StreamEvent{Event: EventToolCall, CallId: call.Id, ToolName: call.Name})
	}

	inv := tooling.Invocation{
		UserId:        r.user.Id,
		SessionId:     r.session.Id,
		MemoryEnabled: r.memoryEnabled(),
	}

	results := p.dispatcher.Dispatch(ctx, inv, calls, func(event tooling.Event) {
		switch event.Kind {
		case tooling.EventProgress:
			r.emit(StreamEvent{Event: EventToolProgress, CallId: event.CallId, ToolName: event.Name, Message: event.Message})
		case tooling.EventCompleted:
			r.emit(StreamEvent{Event: EventToolOutput, CallId: event.CallId, ToolName: event.Name, Output: event.Output})
			p.maybeEmitPlanUpdate(r, event.Name, event.Output)
		case tooling.EventFailed:
			r.emit(StreamEvent{Event: EventToolError, CallId: event.CallId, ToolName: event.Name, Error: event.Error})
		}
	})

	r.toolCalls += len(results)
	for _, result := range results {
		r.thoughts = append(r.thoughts, toolStep(result))
	}
}

// maybeEmitPlanUpdate surfaces a plan tool result as a dedicated event
// so the client can re-render the checklist without parsing tool output.
func (p *Processor) maybeEmitPlanUpdate(r *run, toolName, output string) {
	if toolName != constant.ToolNamePlan || output == "" {
		return
	}
	if !json.Valid([]byte(output)) {
		return
	}
	r.emit(StreamEvent{Event: EventPlanUpdated, Plan: json.RawMessage(output)})
}

func toolStep(result tooling.Result) entity.ThoughtStep {
	return entity.ThoughtStep{
		Kind:       constant.ThoughtStepKindTool,
		ToolName:   result.Name,
		ToolStatus: result.Status,
		ToolOutput: result.Output,
		ToolError:  result.Error,
	}
}

func toolStatus(errMsg string) string {
	if errMsg != "" {
		return constant.ToolStatusFailed
	}
	return constant.ToolStatusCompleted
}

func toContextSnippets(c *contextbuilder.Context) []genclient.ContextSnippet {
	if len(c.Snippets) == 0 {
		return nil
	}
	snippets := make([]genclient.ContextSnippet, len(c.Snippets))
	for i, s := range c.Snippets {
		snippets[i] = genclient.ContextSnippet{Source: s.Source, Content: s.Content, Score: s.Score}
	}
	return snippets
}

func toManifestEntries(c *contextbuilder.Context) []genclient.ManifestEntry {
	var entries []genclient.ManifestEntry
	for _, attachment := range c.Manifest.Inline {
		entries = append(entries, genclient.ManifestEntry{
			FileName:   attachment.FileName,
			MimeType:   attachment.MimeType,
			StorageKey: attachment.StorageKey,
			SizeBytes:  attachment.SizeBytes,
			Cached:     false,
		})
	}
	for _, attachment := range c.Manifest.Cached {
		entries = append(entries, genclient.ManifestEntry{
			FileName:   attachment.FileName,
			MimeType:   attachment.MimeType,
			StorageKey: attachment.StorageKey,
			SizeBytes:  attachment.SizeBytes,
			Cached:     true,
		})
	}
	return entries
}

func sessionInstructions(session *entity.ChatSession) string {
	if session.CustomInstructions == nil {
		return ""
	}
	return *session.CustomInstructions
}
