package contextbuilder

import (
	"context"
	"fmt"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/unitofwork"
	"ai-assistant-be/pkg/retrieval"

	"github.com/google/uuid"
)

const (
	defaultHistoryTurns = 10
	toolSummaryMaxChars = 150
)

// Params identifies the request a context is being assembled for.
// CurrentLogId is the in-flight log for a fresh turn, or the log being
// regenerated; either way it never appears in the history block.
type Params struct {
	UserId       uuid.UUID
	SessionId    uuid.UUID
	Query        string
	CurrentLogId uuid.UUID
	HistoryTurns int
}

// Manifest splits the session's attachments into files whose bytes ride
// along with this request and files the backend already holds by
// reference, de-duplicated by storage key with inline entries winning.
type Manifest struct {
	Inline []*entity.FileAttachment
	Cached []*entity.FileAttachment
}

// Context is everything the generation backend sees for one request.
type Context struct {
	History        string
	Snippets       []retrieval.Snippet
	Manifest       Manifest
	Plan           *entity.Plan
	ProfileSummary string
}

// Builder assembles the request context. History failure is fatal;
// retrieval, plan and profile failures degrade the context instead.
type Builder struct {
	retriever *retrieval.Engine
	log       logger.ILogger
}

func NewBuilder(retriever *retrieval.Engine, log logger.ILogger) *Builder {
	return &Builder{retriever: retriever, log: log}
}

// Build assembles the full context. inlineFiles are the attachments
// uploaded with this request, whose bytes the caller will ship as
// multipart parts.
func (b *Builder) Build(ctx context.Context, uow unitofwork.UnitOfWork, user *entity.User, params Params, inlineFiles []*entity.FileAttachment) (*Context, error) {
	turns := params.HistoryTurns
	if turns <= 0 {
		turns = defaultHistoryTurns
	}

	logs, err := uow.RequestLogRepository().FindRecentBySession(ctx, params.SessionId, turns+1)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	logs = excludeLog(logs, params.CurrentLogId)
	if len(logs) > turns {
		logs = logs[len(logs)-turns:]
	}

	attachmentsByLog, err := b.loadAttachments(ctx, uow, logs)
	if err != nil {
		return nil, fmt.Errorf("load history attachments: %w", err)
	}

	result := &Context{
		History: FormatHistory(logs, attachmentsByLog),
	}

	if params.Query != "" {
		snippets, err := b.retriever.Search(ctx, uow, params.UserId, params.Query)
		if err != nil {
			b.log.Warn("ContextBuilder", "Retrieval failed, continuing without snippets", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			result.Snippets = snippets
		}
	}

	result.Manifest = buildManifest(inlineFiles, attachmentsByLog)

	plan, err := uow.PlanRepository().FindActiveBySession(ctx, params.SessionId)
	if err != nil {
		b.log.Warn("ContextBuilder", "Plan fetch failed, continuing without plan", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		result.Plan = plan
	}

	if user != nil && user.ProfileSummary != nil {
		result.ProfileSummary = *user.ProfileSummary
	}

	return result, nil
}

func (b *Builder) loadAttachments(ctx context.Context, uow unitofwork.UnitOfWork, logs []*entity.RequestLog) (map[uuid.UUID][]*entity.FileAttachment, error) {
	if len(logs) == 0 {
		return map[uuid.UUID][]*entity.FileAttachment{}, nil
	}

	logIds := make([]uuid.UUID, len(logs))
	for i, log := range logs {
		logIds[i] = log.Id
	}

	attachments, err := uow.FileAttachmentRepository().FindByRequestLogIds(ctx, logIds)
	if err != nil {
		return nil, err
	}

	byLog := make(map[uuid.UUID][]*entity.FileAttachment)
	for _, attachment := range attachments {
		if attachment.RequestLogId == nil {
			continue
		}
		byLog[*attachment.RequestLogId] = append(byLog[*attachment.RequestLogId], attachment)
	}
	return byLog, nil
}

func excludeLog(logs []*entity.RequestLog, id uuid.UUID) []*entity.RequestLog {
	filtered := logs[:0]
	for _, log := range logs {
		if log.Id == id {
			continue
		}
		filtered = append(filtered, log)
	}
	return filtered
}

func buildManifest(inline []*entity.FileAttachment, byLog map[uuid.UUID][]*entity.FileAttachment) Manifest {
	manifest := Manifest{}
	seen := make(map[string]bool)

	for _, attachment := range inline {
		if seen[attachment.StorageKey] {
			continue
		}
		seen[attachment.StorageKey] = true
		manifest.Inline = append(manifest.Inline, attachment)
	}

	for _, attachments := range byLog {
		for _, attachment := range attachments {
			if seen[attachment.StorageKey] {
				continue
			}
			seen[attachment.StorageKey] = true
			manifest.Cached = append(manifest.Cached, attachment)
		}
	}

	return manifest
}
