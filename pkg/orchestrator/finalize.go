package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-assistant-be/internal/constant"
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/repository/unitofwork"
	"ai-assistant-be/pkg/contextbuilder"
	"ai-assistant-be/pkg/events"
	"ai-assistant-be/pkg/genclient"

	"github.com/google/uuid"
)

// synthesize streams the final answer against the full accumulated
// reasoning. A stream error mid-way keeps the partial text the caller
// already received; only a failure with nothing delivered is fatal.
func (p *Processor) synthesize(ctx context.Context, r *run) (string, error) {
	if ctx.Err() != nil {
		return "", ErrCancelled
	}

	request := genclient.SynthesisRequest{
		Query:              r.reqLog.Query,
		History:            r.context.History,
		Snippets:           toContextSnippets(r.context),
		FileManifest:       toManifestEntries(r.context),
		ProfileSummary:     r.context.ProfileSummary,
		CustomInstructions: sessionInstructions(r.session),
		Mode:               r.session.Mode,
		ThoughtHistory:     r.thoughts,
		MemoryEnabled:      r.memoryEnabled(),
		UserId:             r.user.Id.String(),
		SessionId:          r.session.Id.String(),
	}

	answer, err := p.backend.Synthesize(ctx, request, r.inlineParts, func(text string) {
		r.emit(StreamEvent{Event: EventChunk, Text: text})
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ErrCancelled
		}
		var streamErr *genclient.StreamError
		if errors.As(err, &streamErr) && streamErr.PartialText != "" {
			p.log.Warn("Orchestrator", "Synthesis stream broke mid-way, keeping partial answer", map[string]interface{}{
				"log_id": r.reqLog.Id.String(),
				"error":  streamErr.Message,
			})
			return streamErr.PartialText, nil
		}
		return "", fmt.Errorf("synthesis failed: %w", err)
	}

	return answer, nil
}

// finalize writes the finished turn durably, waits briefly for an
// in-flight title update, then signals done. The write failure path is
// logged only: the user already has the answer.
func (p *Processor) finalize(ctx context.Context, r *run, answer string) error {
	// A disconnect right at the end must not lose the write.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	err := p.withUow(writeCtx, func(uow unitofwork.UnitOfWork) error {
		now := time.Now()
		r.reqLog.Response = &answer
		r.reqLog.ThoughtHistory = r.thoughts
		r.reqLog.Status = constant.RequestLogStatusComplete
		r.reqLog.UpdatedAt = &now
		if err := uow.RequestLogRepository().Update(writeCtx, r.reqLog); err != nil {
			return err
		}

		var unassigned []uuid.UUID
		for _, attachment := range r.attachments {
			if attachment.RequestLogId == nil {
				unassigned = append(unassigned, attachment.Id)
			}
		}
		if len(unassigned) > 0 {
			if err := uow.FileAttachmentRepository().AssignToRequestLog(writeCtx, unassigned, r.reqLog.Id); err != nil {
				return err
			}
			for _, attachment := range r.attachments {
				if attachment.RequestLogId == nil {
					logId := r.reqLog.Id
					attachment.RequestLogId = &logId
				}
			}
		}
		return nil
	})
	if err != nil {
		p.log.Error("Orchestrator", "Finalize write failed after answer was delivered", map[string]interface{}{
			"log_id": r.reqLog.Id.String(),
			"error":  err.Error(),
		})
	}

	if r.titleDone != nil {
		select {
		case <-r.titleDone:
		case <-time.After(p.cfg.TitleWait):
			p.log.Warn("Orchestrator", "Abandoning in-flight title update", map[string]interface{}{
				"session_id": r.session.Id.String(),
			})
		}
	}

	r.emit(StreamEvent{Event: EventDone, LogId: r.reqLog.Id.String(), SessionId: r.session.Id.String()})
	return nil
}

// detachBackground records metrics and telemetry for every outcome and,
// on success, queues vectorization of the turn and its attachments.
// Nothing here blocks the response or surfaces an error.
func (p *Processor) detachBackground(r *run, status string) {
	if r.user == nil || r.session == nil || r.reqLog == nil {
		return
	}

	durationMs := time.Since(r.startedAt).Milliseconds()
	sessionId := r.session.Id
	logId := r.reqLog.Id
	userId := r.user.Id

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		metric := &entity.RequestMetric{
			Id:                uuid.New(),
			RequestLogId:      logId,
			ChatSessionId:     sessionId,
			UserId:            userId,
			Status:            status,
			DurationMs:        durationMs,
			ThoughtIterations: r.iterations,
			ToolCalls:         r.toolCalls,
			UploadedBytes:     r.uploadedBytes,
			CreatedAt:         time.Now(),
		}
		if r.usage != nil {
			metric.PromptTokens = r.usage.InputTokens
			metric.CompletionTokens = r.usage.OutputTokens
		}
		if err := p.withUow(ctx, func(uow unitofwork.UnitOfWork) error {
			return uow.RequestMetricRepository().Create(ctx, metric)
		}); err != nil {
			p.log.Warn("Orchestrator", "Metrics save failed", map[string]interface{}{
				"log_id": logId.String(),
				"error":  err.Error(),
			})
		}

		if p.telemetry != nil {
			summary := fmt.Sprintf("Answered %q in %dms (%d thoughts, %d tool calls)",
				contextbuilder.TruncateSummary(r.reqLog.Query, 80), durationMs, r.iterations, r.toolCalls)
			var event events.Event
			if status == constant.RequestLogStatusComplete {
				event = events.NewRequestCompletedEvent(userId, sessionId, logId, summary, durationMs)
			} else {
				event = events.NewRequestFailedEvent(userId, sessionId, status, durationMs)
			}
			if err := p.telemetry.Publish(ctx, event); err != nil {
				p.log.Warn("Orchestrator", "Telemetry publish failed", map[string]interface{}{
					"log_id": logId.String(),
					"error":  err.Error(),
				})
			}
		}

		if status != constant.RequestLogStatusComplete || p.publisher == nil {
			return
		}
		if r.memoryEnabled() {
			if err := p.publisher.PublishVectorizeMessage(logId); err != nil {
				p.log.Warn("Orchestrator", "Vectorize message publish failed", map[string]interface{}{
					"log_id": logId.String(),
					"error":  err.Error(),
				})
			}
		}
		for _, attachment := range r.attachments {
			if err := p.publisher.PublishVectorizeAttachment(attachment.Id); err != nil {
				p.log.Warn("Orchestrator", "Vectorize attachment publish failed", map[string]interface{}{
					"attachment_id": attachment.Id.String(),
					"error":         err.Error(),
				})
			}
		}
	}()
}
