package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ai-assistant-be/internal/constant"
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/specification"
	"ai-assistant-be/internal/repository/unitofwork"
	"ai-assistant-be/pkg/contextbuilder"
	"ai-assistant-be/pkg/events"
	"ai-assistant-be/pkg/genclient"
	"ai-assistant-be/pkg/ingest"
	"ai-assistant-be/pkg/tooling"

	"github.com/google/uuid"
)

// ErrCancelled marks a caller-initiated cancellation. It is a clean
// terminal outcome, never reported to the client as an error event.
var ErrCancelled = errors.New("request cancelled by caller")

// Backend is the slice of the generation client the processor drives.
type Backend interface {
	Health(ctx context.Context) error
	GenerateThought(ctx context.Context, request genclient.ThoughtRequest, files []genclient.FilePart, forward func(*genclient.Event)) (*genclient.ThoughtResult, error)
	Synthesize(ctx context.Context, request genclient.SynthesisRequest, files []genclient.FilePart, forward func(text string)) (string, error)
	GenerateTitle(ctx context.Context, query string, fileNames []string) (string, error)
}

// ToolDispatcher runs one batch of tool calls concurrently.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, inv tooling.Invocation, calls []tooling.Call, emit tooling.Emit) []tooling.Result
}

// BackgroundPublisher hands vectorization work to the async pipeline.
type BackgroundPublisher interface {
	PublishVectorizeMessage(logId uuid.UUID) error
	PublishVectorizeAttachment(attachmentId uuid.UUID) error
}

// TelemetrySink forwards request summaries to the notification bus.
type TelemetrySink interface {
	Publish(ctx context.Context, event events.Event) error
}

type Config struct {
	MaxIterations int
	LoopTimeout   time.Duration
	BackoffUnit   time.Duration
	MaxLoopFails  int
	TitleWait     time.Duration
	HistoryTurns  int
	TitleMaxChars int
}

func DefaultConfig() Config {
	return Config{
		MaxIterations: 5,
		LoopTimeout:   120 * time.Second,
		BackoffUnit:   time.Second,
		MaxLoopFails:  2,
		TitleWait:     5 * time.Second,
		HistoryTurns:  10,
		TitleMaxChars: 50,
	}
}

// InlineFile is one attachment shipped with the request body, already
// decoded from any transport encoding.
type InlineFile struct {
	Name        string
	ContentType string
	Content     []byte
}

// Request is the immutable input of one orchestration run.
type Request struct {
	UserId             uuid.UUID
	Query              string
	SessionId          *uuid.UUID
	RegenerateLogId    *uuid.UUID
	Files              []InlineFile
	UploadIds          []string
	MemoryEnabled      *bool
	CustomInstructions string
	Mode               string
}

// Processor is the per-request state machine: prepare, resolve session
// and log, intake files, build context, run the thinking loop, stream
// synthesis, finalize durably, then detach background work.
type Processor struct {
	repoFactory unitofwork.RepositoryFactory
	backend     Backend
	builder     *contextbuilder.Builder
	dispatcher  ToolDispatcher
	uploader    *ingest.Uploader
	publisher   BackgroundPublisher
	telemetry   TelemetrySink
	log         logger.ILogger
	cfg         Config
}

func NewProcessor(
	repoFactory unitofwork.RepositoryFactory,
	backend Backend,
	builder *contextbuilder.Builder,
	dispatcher ToolDispatcher,
	uploader *ingest.Uploader,
	publisher BackgroundPublisher,
	telemetry TelemetrySink,
	log logger.ILogger,
	cfg Config,
) *Processor {
	def := DefaultConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.LoopTimeout <= 0 {
		cfg.LoopTimeout = def.LoopTimeout
	}
	if cfg.BackoffUnit <= 0 {
		cfg.BackoffUnit = def.BackoffUnit
	}
	if cfg.MaxLoopFails <= 0 {
		cfg.MaxLoopFails = def.MaxLoopFails
	}
	if cfg.TitleWait <= 0 {
		cfg.TitleWait = def.TitleWait
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = def.HistoryTurns
	}
	if cfg.TitleMaxChars <= 0 {
		cfg.TitleMaxChars = def.TitleMaxChars
	}

	return &Processor{
		repoFactory: repoFactory,
		backend:     backend,
		builder:     builder,
		dispatcher:  dispatcher,
		uploader:    uploader,
		publisher:   publisher,
		telemetry:   telemetry,
		log:         log,
		cfg:         cfg,
	}
}

// run carries the mutable state of one request through the phases.
type run struct {
	req Request

	sink       StreamEmitter
	emitMu     sync.Mutex
	emitClosed bool

	user    *entity.User
	session *entity.ChatSession
	reqLog  *entity.RequestLog

	attachments   []*entity.FileAttachment
	inlineParts   []genclient.FilePart
	uploadedBytes int64

	context  *contextbuilder.Context
	thoughts []entity.ThoughtStep
	usage    *genclient.UsagePayload

	iterations int
	toolCalls  int

	titleDone chan struct{}
	startedAt time.Time
}

// emit forwards one event to the caller unless the stream has already
// terminated. done and error are terminal: a straggling background
// goroutine, such as a slow title update, must never write after them.
func (r *run) emit(event StreamEvent) {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	if r.emitClosed {
		return
	}
	if event.Event == EventDone || event.Event == EventError {
		r.emitClosed = true
	}
	r.sink(event)
}

func (r *run) memoryEnabled() bool {
	if r.req.MemoryEnabled != nil {
		return *r.req.MemoryEnabled
	}
	return r.user.MemoryEnabled
}

// Process runs one request end to end. Fatal failures emit an error
// event and return; a cancellation returns ErrCancelled with no error
// event. Metrics and telemetry are recorded regardless of outcome.
func (p *Processor) Process(ctx context.Context, req Request, emit StreamEmitter) error {
	r := &run{req: req, sink: emit, startedAt: time.Now()}

	err := p.process(ctx, r)
	switch {
	case err == nil:
		p.detachBackground(r, constant.RequestLogStatusComplete)
		return nil
	case errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled):
		p.log.Info("Orchestrator", "Request cancelled by caller", map[string]interface{}{
			"user_id": req.UserId.String(),
		})
		p.detachBackground(r, constant.RequestLogStatusCancelled)
		return ErrCancelled
	default:
		p.log.Error("Orchestrator", "Request failed", map[string]interface{}{
			"user_id": req.UserId.String(),
			"error":   err.Error(),
		})
		r.emit(StreamEvent{Event: EventError, Error: err.Error()})
		p.detachBackground(r, constant.RequestLogStatusFailed)
		return err
	}
}

func (p *Processor) process(ctx context.Context, r *run) error {
	if err := p.prepare(ctx, r); err != nil {
		return err
	}
	if err := p.resolveSession(ctx, r); err != nil {
		return err
	}
	if err := p.resolveLog(ctx, r); err != nil {
		return err
	}
	if err := p.intakeFiles(ctx, r); err != nil {
		return err
	}
	if err := p.buildContext(ctx, r); err != nil {
		return err
	}
	if err := p.think(ctx, r); err != nil {
		return err
	}
	answer, err := p.synthesize(ctx, r)
	if err != nil {
		return err
	}
	return p.finalize(ctx, r, answer)
}

// prepare reloads the full user record and fires a non-blocking backend
// warm-up. The caller-supplied user identity is never trusted beyond
// its id.
func (p *Processor) prepare(ctx context.Context, r *run) error {
	if ctx.Err() != nil {
		return ErrCancelled
	}

	err := p.withUow(ctx, func(uow unitofwork.UnitOfWork) error {
		user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: r.req.UserId})
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("user %s not found", r.req.UserId)
		}
		r.user = user
		return nil
	})
	if err != nil {
		return err
	}

	go func() {
		warmCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.backend.Health(warmCtx); err != nil {
			p.log.Warn("Orchestrator", "Backend warm-up failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	return nil
}

func (p *Processor) resolveSession(ctx context.Context, r *run) error {
	if ctx.Err() != nil {
		return ErrCancelled
	}

	if r.req.SessionId != nil {
		return p.withUow(ctx, func(uow unitofwork.UnitOfWork) error {
			session, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: *r.req.SessionId})
			if err != nil {
				return err
			}
			if session == nil || session.UserId != r.user.Id {
				return fmt.Errorf("session %s not found", *r.req.SessionId)
			}
			r.session = session

			if r.req.CustomInstructions != "" && (session.CustomInstructions == nil || *session.CustomInstructions != r.req.CustomInstructions) {
				instructions := r.req.CustomInstructions
				session.CustomInstructions = &instructions
				return uow.ChatSessionRepository().Update(ctx, session)
			}
			return nil
		})
	}

	title := p.synthesizeTitle(r.req)
	session := &entity.ChatSession{
		Id:        uuid.New(),
		UserId:    r.user.Id,
		Title:     title,
		Mode:      r.req.Mode,
		CreatedAt: time.Now(),
	}
	if r.req.CustomInstructions != "" {
		instructions := r.req.CustomInstructions
		session.CustomInstructions = &instructions
	}

	err := p.withUow(ctx, func(uow unitofwork.UnitOfWork) error {
		return uow.ChatSessionRepository().Create(ctx, session)
	})
	if err != nil {
		return err
	}
	r.session = session
	r.emit(StreamEvent{Event: EventSessionCreated, SessionId: session.Id.String(), Title: session.Title})

	if title == constant.DefaultSessionTitle {
		p.generateTitleAsync(r)
	}
	return nil
}

// synthesizeTitle derives an initial title from the query or file
// names, truncated to the visible-character budget.
func (p *Processor) synthesizeTitle(req Request) string {
	source := strings.TrimSpace(req.Query)
	if source == "" && len(req.Files) > 0 {
		names := make([]string, len(req.Files))
		for i, f := range req.Files {
			names[i] = f.Name
		}
		source = strings.Join(names, ", ")
	}
	if source == "" {
		return constant.DefaultSessionTitle
	}
	return contextbuilder.TruncateSummary(source, p.cfg.TitleMaxChars)
}

// generateTitleAsync asks the backend for a better title without
// blocking the stream. The done channel lets finalization wait for the
// update inside a bounded window so the client never races a stale
// title for long.
func (p *Processor) generateTitleAsync(r *run) {
	r.titleDone = make(chan struct{})
	sessionId := r.session.Id
	query := r.req.Query
	names := make([]string, len(r.req.Files))
	for i, f := range r.req.Files {
		names[i] = f.Name
	}

	go func() {
		defer close(r.titleDone)

		titleCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		title, err := p.backend.GenerateTitle(titleCtx, query, names)
		if err != nil || strings.TrimSpace(title) == "" {
			if err != nil {
				p.log.Warn("Orchestrator", "Title generation failed", map[string]interface{}{
					"session_id": sessionId.String(),
					"error":      err.Error(),
				})
			}
			return
		}
		title = contextbuilder.TruncateSummary(title, p.cfg.TitleMaxChars)

		err = p.withUow(titleCtx, func(uow unitofwork.UnitOfWork) error {
			session, err := uow.ChatSessionRepository().FindOne(titleCtx, specification.ByID{ID: sessionId})
			if err != nil || session == nil {
				return err
			}
			session.Title = title
			return uow.ChatSessionRepository().Update(titleCtx, session)
		})
		if err != nil {
			p.log.Warn("Orchestrator", "Title update failed", map[string]interface{}{
				"session_id": sessionId.String(),
				"error":      err.Error(),
			})
			return
		}

		r.session.Title = title
		r.emit(StreamEvent{Event: EventSessionTitleUpdated, SessionId: sessionId.String(), Title: title})
	}()
}

// resolveLog creates the pending log row for a fresh turn, or re-arms
// the targeted log for a regeneration: ownership is re-validated, every
// log strictly after it is deleted, and the same id is reused.
func (p *Processor) resolveLog(ctx context.Context, r *run) error {
	if ctx.Err() != nil {
		return ErrCancelled
	}

	if r.req.RegenerateLogId != nil {
		err := p.withUow(ctx, func(uow unitofwork.UnitOfWork) error {
			reqLog, err := uow.RequestLogRepository().FindOne(ctx, specification.ByID{ID: *r.req.RegenerateLogId})
			if err != nil {
				return err
			}
			if reqLog == nil || reqLog.UserId != r.user.Id || reqLog.ChatSessionId != r.session.Id {
				return fmt.Errorf("log %s not found for regeneration", *r.req.RegenerateLogId)
			}

			if err := uow.RequestLogRepository().DeleteAfter(ctx, r.session.Id, reqLog.CreatedAt); err != nil {
				return err
			}

			if r.req.Query != "" && r.req.Query != reqLog.Query {
				reqLog.Query = r.req.Query
			}
			reqLog.Response = nil
			reqLog.ThoughtHistory = nil
			reqLog.Status = constant.RequestLogStatusPending
			if err := uow.RequestLogRepository().Update(ctx, reqLog); err != nil {
				return err
			}
			r.reqLog = reqLog
			return nil
		})
		if err != nil {
			return err
		}
	} else {
		reqLog := &entity.RequestLog{
			Id:            uuid.New(),
			ChatSessionId: r.session.Id,
			UserId:        r.user.Id,
			Query:         r.req.Query,
			Status:        constant.RequestLogStatusPending,
			CreatedAt:     time.Now(),
		}
		err := p.withUow(ctx, func(uow unitofwork.UnitOfWork) error {
			return uow.RequestLogRepository().Create(ctx, reqLog)
		})
		if err != nil {
			return err
		}
		r.reqLog = reqLog
	}

	r.emit(StreamEvent{Event: EventLogCreated, LogId: r.reqLog.Id.String(), SessionId: r.session.Id.String()})
	return nil
}

// intakeFiles uploads inline files under the size caps and resolves
// pre-uploaded references. Cap violations are fatal; a missing upload
// reference only degrades the request.
func (p *Processor) intakeFiles(ctx context.Context, r *run) error {
	if ctx.Err() != nil {
		return ErrCancelled
	}
	if len(r.req.Files) == 0 && len(r.req.UploadIds) == 0 {
		return nil
	}

	budget := p.uploader.NewBudget()
	for _, file := range r.req.Files {
		attachment := &entity.FileAttachment{
			Id:         uuid.New(),
			UserId:     r.user.Id,
			SessionId:  r.session.Id,
			FileName:   file.Name,
			MimeType:   file.ContentType,
			CreatedAt:  time.Now(),
			StorageKey: fmt.Sprintf("attachments/%s/%s/%s", r.user.Id, uuid.New(), file.Name),
		}

		written, err := p.uploader.Upload(ctx, budget, attachment.StorageKey, bytes.NewReader(file.Content), file.ContentType)
		if err != nil {
			return err
		}
		attachment.SizeBytes = written
		r.uploadedBytes += written

		if err := p.withUow(ctx, func(uow unitofwork.UnitOfWork) error {
			return uow.FileAttachmentRepository().Create(ctx, attachment)
		}); err != nil {
			return err
		}

		r.attachments = append(r.attachments, attachment)
		r.inlineParts = append(r.inlineParts, genclient.FilePart{
			Name:        file.Name,
			ContentType: file.ContentType,
			Content:     file.Content,
		})
	}

	for _, uploadId := range r.req.UploadIds {
		var attachment *entity.FileAttachment
		err := p.withUow(ctx, func(uow unitofwork.UnitOfWork) error {
			found, err := uow.FileAttachmentRepository().FindByUploadId(ctx, r.user.Id, uploadId)
			if err != nil {
				return err
			}
			attachment = found
			return nil
		})
		if err != nil {
			return err
		}
		if attachment == nil {
			p.log.Warn("Orchestrator", "Upload reference not found, skipping", map[string]interface{}{
				"upload_id": uploadId,
			})
			continue
		}
		r.uploadedBytes += attachment.SizeBytes
		r.attachments = append(r.attachments, attachment)
	}

	return nil
}

// withUow runs fn inside one transaction-scoped unit of work.
func (p *Processor) withUow(ctx context.Context, fn func(uow unitofwork.UnitOfWork) error) error {
	uow := p.repoFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := fn(uow); err != nil {
		return err
	}
	return uow.Commit()
}
