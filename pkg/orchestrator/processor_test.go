package orchestrator

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"ai-assistant-be/internal/constant"
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/contract"
	"ai-assistant-be/internal/repository/specification"
	"ai-assistant-be/internal/repository/unitofwork"
	"ai-assistant-be/pkg/contextbuilder"
	"ai-assistant-be/pkg/genclient"
	"ai-assistant-be/pkg/ingest"
	"ai-assistant-be/pkg/retrieval"
	"ai-assistant-be/pkg/tooling"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is the shared in-memory state behind every fake repository.
// Background goroutines write into it, so every access holds the mutex.
type memStore struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*entity.User
	sessions    map[uuid.UUID]*entity.ChatSession
	logs        []*entity.RequestLog
	attachments []*entity.FileAttachment
	metrics     []*entity.RequestMetric

	deleteAfterCalls []deleteAfterCall
	completedWrites  int
	metricSaved      chan struct{}
}

type deleteAfterCall struct {
	sessionId uuid.UUID
	after     time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:       map[uuid.UUID]*entity.User{},
		sessions:    map[uuid.UUID]*entity.ChatSession{},
		metricSaved: make(chan struct{}, 4),
	}
}

func (s *memStore) findLog(id uuid.UUID) *entity.RequestLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, log := range s.logs {
		if log.Id == id {
			return log
		}
	}
	return nil
}

func (s *memStore) onlySession(t *testing.T) *entity.ChatSession {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.sessions, 1)
	for _, session := range s.sessions {
		return session
	}
	return nil
}

func (s *memStore) waitMetric(t *testing.T) *entity.RequestMetric {
	t.Helper()
	select {
	case <-s.metricSaved:
	case <-time.After(2 * time.Second):
		t.Fatal("metric was never recorded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics[len(s.metrics)-1]
}

type memUserRepo struct {
	contract.UserRepository
	s *memStore
}

func (r *memUserRepo) FindOne(_ context.Context, specs ...specification.Specification) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if byId, ok := specs[0].(specification.ByID); ok {
		return r.s.users[byId.ID], nil
	}
	return nil, nil
}

type memSessionRepo struct {
	contract.ChatSessionRepository
	s *memStore
}

func (r *memSessionRepo) Create(_ context.Context, session *entity.ChatSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.sessions[session.Id] = session
	return nil
}

func (r *memSessionRepo) Update(_ context.Context, session *entity.ChatSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.sessions[session.Id] = session
	return nil
}

func (r *memSessionRepo) FindOne(_ context.Context, specs ...specification.Specification) (*entity.ChatSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if byId, ok := specs[0].(specification.ByID); ok {
		return r.s.sessions[byId.ID], nil
	}
	return nil, nil
}

type memLogRepo struct {
	contract.RequestLogRepository
	s *memStore
}

func (r *memLogRepo) Create(_ context.Context, log *entity.RequestLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.logs = append(r.s.logs, log)
	return nil
}

func (r *memLogRepo) Update(_ context.Context, log *entity.RequestLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, stored := range r.s.logs {
		if stored.Id == log.Id {
			r.s.logs[i] = log
		}
	}
	if log.Status == constant.RequestLogStatusComplete {
		r.s.completedWrites++
	}
	return nil
}

func (r *memLogRepo) FindOne(_ context.Context, specs ...specification.Specification) (*entity.RequestLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if byId, ok := specs[0].(specification.ByID); ok {
		for _, log := range r.s.logs {
			if log.Id == byId.ID {
				return log, nil
			}
		}
	}
	return nil, nil
}

func (r *memLogRepo) FindRecentBySession(_ context.Context, sessionId uuid.UUID, limit int) ([]*entity.RequestLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var logs []*entity.RequestLog
	for _, log := range r.s.logs {
		if log.ChatSessionId == sessionId {
			logs = append(logs, log)
		}
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].CreatedAt.Before(logs[j].CreatedAt) })
	if len(logs) > limit {
		logs = logs[len(logs)-limit:]
	}
	return logs, nil
}

func (r *memLogRepo) DeleteAfter(_ context.Context, sessionId uuid.UUID, after time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.deleteAfterCalls = append(r.s.deleteAfterCalls, deleteAfterCall{sessionId: sessionId, after: after})
	kept := r.s.logs[:0]
	for _, log := range r.s.logs {
		if log.ChatSessionId == sessionId && log.CreatedAt.After(after) {
			continue
		}
		kept = append(kept, log)
	}
	r.s.logs = kept
	return nil
}

type memAttachmentRepo struct {
	contract.FileAttachmentRepository
	s *memStore
}

func (r *memAttachmentRepo) Create(_ context.Context, attachment *entity.FileAttachment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.attachments = append(r.s.attachments, attachment)
	return nil
}

func (r *memAttachmentRepo) FindByUploadId(_ context.Context, userId uuid.UUID, uploadId string) (*entity.FileAttachment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, attachment := range r.s.attachments {
		if attachment.UserId == userId && attachment.UploadId != nil && *attachment.UploadId == uploadId {
			return attachment, nil
		}
	}
	return nil, nil
}

func (r *memAttachmentRepo) AssignToRequestLog(_ context.Context, attachmentIds []uuid.UUID, logId uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range attachmentIds {
		for _, attachment := range r.s.attachments {
			if attachment.Id == id {
				linked := logId
				attachment.RequestLogId = &linked
			}
		}
	}
	return nil
}

func (r *memAttachmentRepo) FindByRequestLogIds(_ context.Context, logIds []uuid.UUID) ([]*entity.FileAttachment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var found []*entity.FileAttachment
	for _, attachment := range r.s.attachments {
		if attachment.RequestLogId == nil {
			continue
		}
		for _, id := range logIds {
			if *attachment.RequestLogId == id {
				found = append(found, attachment)
			}
		}
	}
	return found, nil
}

type memPlanRepo struct {
	contract.PlanRepository
}

func (r *memPlanRepo) FindActiveBySession(context.Context, uuid.UUID) (*entity.Plan, error) {
	return nil, nil
}

type memMessageEmbRepo struct {
	contract.MessageEmbeddingRepository
}

func (r *memMessageEmbRepo) SearchSimilarWithScore(context.Context, []float32, int, uuid.UUID, float64) ([]*contract.ScoredMessageEmbedding, error) {
	return nil, nil
}

type memChunkEmbRepo struct {
	contract.FileChunkEmbeddingRepository
}

func (r *memChunkEmbRepo) SearchSimilarWithScore(context.Context, []float32, int, uuid.UUID, float64) ([]*contract.ScoredFileChunkEmbedding, error) {
	return nil, nil
}

type memMetricRepo struct {
	contract.RequestMetricRepository
	s *memStore
}

func (r *memMetricRepo) Create(_ context.Context, metric *entity.RequestMetric) error {
	r.s.mu.Lock()
	r.s.metrics = append(r.s.metrics, metric)
	r.s.mu.Unlock()
	select {
	case r.s.metricSaved <- struct{}{}:
	default:
	}
	return nil
}

type memUow struct {
	unitofwork.UnitOfWork
	s *memStore
}

func (u *memUow) Begin(context.Context) error { return nil }
func (u *memUow) Commit() error               { return nil }
func (u *memUow) Rollback() error             { return nil }

func (u *memUow) UserRepository() contract.UserRepository { return &memUserRepo{s: u.s} }
func (u *memUow) ChatSessionRepository() contract.ChatSessionRepository {
	return &memSessionRepo{s: u.s}
}
func (u *memUow) RequestLogRepository() contract.RequestLogRepository { return &memLogRepo{s: u.s} }
func (u *memUow) PlanRepository() contract.PlanRepository             { return &memPlanRepo{} }
func (u *memUow) FileAttachmentRepository() contract.FileAttachmentRepository {
	return &memAttachmentRepo{s: u.s}
}
func (u *memUow) MessageEmbeddingRepository() contract.MessageEmbeddingRepository {
	return &memMessageEmbRepo{}
}
func (u *memUow) FileChunkEmbeddingRepository() contract.FileChunkEmbeddingRepository {
	return &memChunkEmbRepo{}
}
func (u *memUow) RequestMetricRepository() contract.RequestMetricRepository {
	return &memMetricRepo{s: u.s}
}

type memFactory struct {
	s *memStore
}

func (f *memFactory) NewUnitOfWork(context.Context) unitofwork.UnitOfWork { return &memUow{s: f.s} }

// thoughtReply scripts one GenerateThought round-trip.
type thoughtReply func(ctx context.Context, files []genclient.FilePart, forward func(*genclient.Event)) (*genclient.ThoughtResult, error)

func replyThought(text string, next bool, calls ...genclient.ToolCallRequest) thoughtReply {
	return func(context.Context, []genclient.FilePart, func(*genclient.Event)) (*genclient.ThoughtResult, error) {
		return &genclient.ThoughtResult{
			Thought: &genclient.ThoughtPayload{Text: text, NextThoughtNeeded: next, ToolCalls: calls},
		}, nil
	}
}

func replyError(message string) thoughtReply {
	return func(context.Context, []genclient.FilePart, func(*genclient.Event)) (*genclient.ThoughtResult, error) {
		return nil, errors.New(message)
	}
}

type fakeBackend struct {
	mu              sync.Mutex
	script          []thoughtReply
	thoughtCalls    int
	firstCallFiles  int
	chunks          []string
	answer          string
	synthesizeErr   error
	synthesizeCalls int
	title           string
	titleErr        error
	titleDelay      time.Duration
}

func (b *fakeBackend) Health(context.Context) error { return nil }

func (b *fakeBackend) GenerateThought(ctx context.Context, _ genclient.ThoughtRequest, files []genclient.FilePart, forward func(*genclient.Event)) (*genclient.ThoughtResult, error) {
	b.mu.Lock()
	call := b.thoughtCalls
	b.thoughtCalls++
	if call == 0 {
		b.firstCallFiles = len(files)
	}
	var reply thoughtReply
	if call < len(b.script) {
		reply = b.script[call]
	}
	b.mu.Unlock()

	if reply == nil {
		// Script exhausted: a result without a thought ends the loop.
		return &genclient.ThoughtResult{}, nil
	}
	return reply(ctx, files, forward)
}

func (b *fakeBackend) Synthesize(_ context.Context, _ genclient.SynthesisRequest, _ []genclient.FilePart, forward func(string)) (string, error) {
	b.mu.Lock()
	b.synthesizeCalls++
	chunks, answer, err := b.chunks, b.answer, b.synthesizeErr
	b.mu.Unlock()

	for _, chunk := range chunks {
		forward(chunk)
	}
	if err != nil {
		return "", err
	}
	return answer, nil
}

func (b *fakeBackend) GenerateTitle(context.Context, string, []string) (string, error) {
	b.mu.Lock()
	delay, title, err := b.titleDelay, b.title, b.titleErr
	b.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return title, err
}

func (b *fakeBackend) calls() (thoughts, syntheses int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.thoughtCalls, b.synthesizeCalls
}

type fakeToolDispatcher struct {
	mu      sync.Mutex
	invs    []tooling.Invocation
	batches [][]tooling.Call
}

func (d *fakeToolDispatcher) Dispatch(_ context.Context, inv tooling.Invocation, calls []tooling.Call, emit tooling.Emit) []tooling.Result {
	d.mu.Lock()
	d.invs = append(d.invs, inv)
	d.batches = append(d.batches, calls)
	d.mu.Unlock()

	results := make([]tooling.Result, len(calls))
	for i, call := range calls {
		results[i] = tooling.Result{
			CallId: call.Id,
			Name:   call.Name,
			Status: constant.ToolStatusCompleted,
			Output: "tool output for " + call.Query,
		}
		emit(tooling.Event{Kind: tooling.EventCompleted, CallId: call.Id, Name: call.Name, Output: results[i].Output})
	}
	return results
}

type fakeVectorPublisher struct {
	mu          sync.Mutex
	messages    []uuid.UUID
	attachments []uuid.UUID
	published   chan struct{}
}

func newFakeVectorPublisher() *fakeVectorPublisher {
	return &fakeVectorPublisher{published: make(chan struct{}, 8)}
}

func (p *fakeVectorPublisher) PublishVectorizeMessage(logId uuid.UUID) error {
	p.mu.Lock()
	p.messages = append(p.messages, logId)
	p.mu.Unlock()
	p.published <- struct{}{}
	return nil
}

func (p *fakeVectorPublisher) PublishVectorizeAttachment(attachmentId uuid.UUID) error {
	p.mu.Lock()
	p.attachments = append(p.attachments, attachmentId)
	p.mu.Unlock()
	p.published <- struct{}{}
	return nil
}

func (p *fakeVectorPublisher) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-p.published:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d background publishes arrived", i, n)
		}
	}
}

// streamRecorder captures every emitted event. onDone runs inside the
// emit of the done event, before Process returns, so tests can observe
// persistence state at exactly that moment.
type streamRecorder struct {
	mu     sync.Mutex
	events []StreamEvent
	onDone func()
}

func (r *streamRecorder) emit(event StreamEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.Event == EventDone && r.onDone != nil {
		r.onDone()
	}
	r.events = append(r.events, event)
}

func (r *streamRecorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]string, len(r.events))
	for i, event := range r.events {
		kinds[i] = event.Event
	}
	return kinds
}

func (r *streamRecorder) byKind(kind string) []StreamEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []StreamEvent
	for _, event := range r.events {
		if event.Event == kind {
			matched = append(matched, event)
		}
	}
	return matched
}

type discardStore struct{}

func (discardStore) Upload(_ context.Context, _ string, body io.Reader, _ string) error {
	_, err := io.Copy(io.Discard, body)
	return err
}
func (discardStore) Download(context.Context, string) (io.ReadCloser, error) { return nil, nil }
func (discardStore) Delete(context.Context, string) error                   { return nil }
func (discardStore) DeleteMany(context.Context, []string) error             { return nil }
func (discardStore) Exists(context.Context, string) (bool, error)           { return false, nil }
func (discardStore) Bucket() string                                         { return "test-bucket" }

type stubQueryProvider struct{}

func (stubQueryProvider) Generate(context.Context, string, string) ([]float32, error) {
	return []float32{1, 0, 0, 0}, nil
}

type processorFixture struct {
	store      *memStore
	backend    *fakeBackend
	dispatcher *fakeToolDispatcher
	publisher  *fakeVectorPublisher
	recorder   *streamRecorder
	processor  *Processor
}

func newProcessorFixture(backend *fakeBackend, mutate ...func(*Config)) *processorFixture {
	nop := logger.NewNopLogger()
	store := newMemStore()
	dispatcher := &fakeToolDispatcher{}
	publisher := newFakeVectorPublisher()

	engine := retrieval.NewEngine(stubQueryProvider{}, retrieval.Config{Dimension: 4, TopK: 5, ScoreThreshold: 0.35}, nop)
	builder := contextbuilder.NewBuilder(engine, nop)
	uploader := ingest.NewUploader(discardStore{}, nop, 1024*1024, 4*1024*1024)

	cfg := Config{
		MaxIterations: 5,
		LoopTimeout:   5 * time.Second,
		BackoffUnit:   time.Millisecond,
		MaxLoopFails:  2,
		TitleWait:     200 * time.Millisecond,
		HistoryTurns:  10,
		TitleMaxChars: 50,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}

	processor := NewProcessor(&memFactory{s: store}, backend, builder, dispatcher, uploader, publisher, nil, nop, cfg)
	return &processorFixture{
		store:      store,
		backend:    backend,
		dispatcher: dispatcher,
		publisher:  publisher,
		recorder:   &streamRecorder{},
		processor:  processor,
	}
}

func (f *processorFixture) seedUser() *entity.User {
	user := &entity.User{
		Id:            uuid.New(),
		Email:         "dev@example.com",
		FullName:      "Dev User",
		MemoryEnabled: true,
		CreatedAt:     time.Now(),
	}
	f.store.mu.Lock()
	f.store.users[user.Id] = user
	f.store.mu.Unlock()
	return user
}

func (f *processorFixture) seedSession(userId uuid.UUID) *entity.ChatSession {
	session := &entity.ChatSession{
		Id:        uuid.New(),
		UserId:    userId,
		Title:     "Existing session",
		Mode:      "chat",
		CreatedAt: time.Now().Add(-time.Hour),
	}
	f.store.mu.Lock()
	f.store.sessions[session.Id] = session
	f.store.mu.Unlock()
	return session
}

func (f *processorFixture) seedLog(session *entity.ChatSession, userId uuid.UUID, query string, age time.Duration) *entity.RequestLog {
	response := "answered: " + query
	log := &entity.RequestLog{
		Id:            uuid.New(),
		ChatSessionId: session.Id,
		UserId:        userId,
		Query:         query,
		Response:      &response,
		Status:        constant.RequestLogStatusComplete,
		CreatedAt:     time.Now().Add(-age),
	}
	f.store.mu.Lock()
	f.store.logs = append(f.store.logs, log)
	f.store.mu.Unlock()
	return log
}

func TestProcessFreshTurnStreamsAndPersists(t *testing.T) {
	backend := &fakeBackend{
		script: []thoughtReply{replyThought("inspect the request", false)},
		chunks: []string{"Hello ", "world."},
		answer: "Hello world.",
	}
	f := newProcessorFixture(backend)
	user := f.seedUser()

	var completedBeforeDone bool
	f.recorder.onDone = func() {
		f.store.mu.Lock()
		completedBeforeDone = f.store.completedWrites > 0
		f.store.mu.Unlock()
	}

	err := f.processor.Process(context.Background(), Request{
		UserId: user.Id,
		Query:  "Summarize the quarterly report",
		Mode:   "chat",
	}, f.recorder.emit)
	require.NoError(t, err)

	assert.Equal(t, []string{
		EventSessionCreated,
		EventLogCreated,
		EventChunk,
		EventChunk,
		EventDone,
	}, f.recorder.kinds())

	session := f.store.onlySession(t)
	assert.Equal(t, "Summarize the quarterly report", session.Title)
	assert.Equal(t, user.Id, session.UserId)

	done := f.recorder.byKind(EventDone)[0]
	assert.Equal(t, session.Id.String(), done.SessionId)

	log := f.store.findLog(uuid.MustParse(done.LogId))
	require.NotNil(t, log)
	assert.Equal(t, constant.RequestLogStatusComplete, log.Status)
	require.NotNil(t, log.Response)
	assert.Equal(t, "Hello world.", *log.Response)
	require.Len(t, log.ThoughtHistory, 1)
	assert.Equal(t, constant.ThoughtStepKindThought, log.ThoughtHistory[0].Kind)
	assert.Equal(t, "inspect the request", log.ThoughtHistory[0].Text)

	assert.True(t, completedBeforeDone, "durable write must precede the done event")
}

func TestProcessForwardsThoughtEventsInOrder(t *testing.T) {
	payload := &genclient.ThoughtPayload{
		Text:       "reading the attached report",
		Header:     "Reading the report",
		Confidence: 0.8,
	}
	backend := &fakeBackend{
		script: []thoughtReply{
			func(_ context.Context, _ []genclient.FilePart, forward func(*genclient.Event)) (*genclient.ThoughtResult, error) {
				forward(&genclient.Event{Kind: genclient.EventThought, Thought: payload})
				forward(&genclient.Event{Kind: genclient.EventUsageUpdate, Usage: &genclient.UsagePayload{InputTokens: 10, OutputTokens: 4, TotalTokens: 14}})
				return &genclient.ThoughtResult{
					Thought: payload,
					Usage:   &genclient.UsagePayload{InputTokens: 10, OutputTokens: 4, TotalTokens: 14},
				}, nil
			},
		},
		answer: "done",
	}
	f := newProcessorFixture(backend)
	user := f.seedUser()

	err := f.processor.Process(context.Background(), Request{UserId: user.Id, Query: "read it"}, f.recorder.emit)
	require.NoError(t, err)

	assert.Equal(t, []string{
		EventSessionCreated,
		EventLogCreated,
		EventThoughtHeader,
		EventThought,
		EventUsageUpdate,
		EventDone,
	}, f.recorder.kinds())

	thought := f.recorder.byKind(EventThought)[0]
	assert.Equal(t, "reading the attached report", thought.Text)
	require.NotNil(t, thought.Confidence)
	assert.InDelta(t, 0.8, *thought.Confidence, 1e-9)

	header := f.recorder.byKind(EventThoughtHeader)[0]
	assert.Equal(t, "Reading the report", header.Header)
}

func TestProcessRejectsForeignSession(t *testing.T) {
	backend := &fakeBackend{answer: "never reached"}
	f := newProcessorFixture(backend)
	user := f.seedUser()
	other := f.seedUser()
	session := f.seedSession(other.Id)

	err := f.processor.Process(context.Background(), Request{
		UserId:    user.Id,
		Query:     "hi",
		SessionId: &session.Id,
	}, f.recorder.emit)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	kinds := f.recorder.kinds()
	require.NotEmpty(t, kinds)
	assert.Equal(t, EventError, kinds[len(kinds)-1])
	assert.Empty(t, f.recorder.byKind(EventDone))

	thoughts, syntheses := backend.calls()
	assert.Zero(t, thoughts)
	assert.Zero(t, syntheses)
}

func TestProcessRegenerationTruncatesAndReusesLog(t *testing.T) {
	backend := &fakeBackend{
		script: []thoughtReply{replyThought("rethink", false)},
		answer: "regenerated answer",
	}
	f := newProcessorFixture(backend)
	user := f.seedUser()
	session := f.seedSession(user.Id)
	f.seedLog(session, user.Id, "first question", 3*time.Minute)
	target := f.seedLog(session, user.Id, "second question", 2*time.Minute)
	newer := f.seedLog(session, user.Id, "third question", time.Minute)

	err := f.processor.Process(context.Background(), Request{
		UserId:          user.Id,
		SessionId:       &session.Id,
		RegenerateLogId: &target.Id,
	}, f.recorder.emit)
	require.NoError(t, err)

	f.store.mu.Lock()
	deleteCalls := f.store.deleteAfterCalls
	f.store.mu.Unlock()
	require.Len(t, deleteCalls, 1)
	assert.Equal(t, session.Id, deleteCalls[0].sessionId)
	assert.True(t, deleteCalls[0].after.Equal(target.CreatedAt))

	assert.Nil(t, f.store.findLog(newer.Id), "logs after the regenerated turn must be gone")

	assert.Empty(t, f.recorder.byKind(EventSessionCreated))
	logCreated := f.recorder.byKind(EventLogCreated)[0]
	assert.Equal(t, target.Id.String(), logCreated.LogId)

	regenerated := f.store.findLog(target.Id)
	require.NotNil(t, regenerated)
	assert.Equal(t, "second question", regenerated.Query)
	assert.Equal(t, constant.RequestLogStatusComplete, regenerated.Status)
	require.NotNil(t, regenerated.Response)
	assert.Equal(t, "regenerated answer", *regenerated.Response)
}

func TestThinkLoopStopsAtMaxIterations(t *testing.T) {
	backend := &fakeBackend{
		script: []thoughtReply{
			replyThought("one", true),
			replyThought("two", true),
			replyThought("three", true),
			replyThought("four", true),
			replyThought("five", true),
			replyThought("never", true),
		},
		answer: "bounded",
	}
	f := newProcessorFixture(backend)
	user := f.seedUser()

	err := f.processor.Process(context.Background(), Request{UserId: user.Id, Query: "loop"}, f.recorder.emit)
	require.NoError(t, err)

	thoughts, syntheses := backend.calls()
	assert.Equal(t, 5, thoughts)
	assert.Equal(t, 1, syntheses)

	done := f.recorder.byKind(EventDone)[0]
	log := f.store.findLog(uuid.MustParse(done.LogId))
	require.NotNil(t, log)
	assert.Len(t, log.ThoughtHistory, 5)
}

func TestThinkAbandonsAfterConsecutiveFailures(t *testing.T) {
	backend := &fakeBackend{
		script: []thoughtReply{
			replyError("backend unreachable"),
			replyError("backend unreachable"),
		},
		answer: "best effort answer",
	}
	f := newProcessorFixture(backend)
	user := f.seedUser()

	err := f.processor.Process(context.Background(), Request{UserId: user.Id, Query: "flaky"}, f.recorder.emit)
	require.NoError(t, err)

	thoughts, syntheses := backend.calls()
	assert.Equal(t, 2, thoughts)
	assert.Equal(t, 1, syntheses)
	assert.Empty(t, f.recorder.byKind(EventError))

	done := f.recorder.byKind(EventDone)[0]
	log := f.store.findLog(uuid.MustParse(done.LogId))
	require.NotNil(t, log)
	assert.Equal(t, constant.RequestLogStatusComplete, log.Status)
	require.NotNil(t, log.Response)
	assert.Equal(t, "best effort answer", *log.Response)
	assert.Empty(t, log.ThoughtHistory)
}

func TestThinkFailureCounterResetsOnSuccess(t *testing.T) {
	backend := &fakeBackend{
		script: []thoughtReply{
			replyError("hiccup"),
			replyThought("recovered", true),
			replyError("hiccup"),
			replyThought("finished", false),
		},
		answer: "resilient",
	}
	f := newProcessorFixture(backend)
	user := f.seedUser()

	err := f.processor.Process(context.Background(), Request{UserId: user.Id, Query: "retry"}, f.recorder.emit)
	require.NoError(t, err)

	thoughts, _ := backend.calls()
	assert.Equal(t, 4, thoughts)

	done := f.recorder.byKind(EventDone)[0]
	log := f.store.findLog(uuid.MustParse(done.LogId))
	require.NotNil(t, log)
	require.Len(t, log.ThoughtHistory, 2)
	assert.Equal(t, "recovered", log.ThoughtHistory[0].Text)
	assert.Equal(t, "finished", log.ThoughtHistory[1].Text)
}

func TestThinkDispatchesRequestedTools(t *testing.T) {
	backend := &fakeBackend{
		script: []thoughtReply{
			replyThought("search for it", true, genclient.ToolCallRequest{Name: constant.ToolNameWebSearch, Query: "fiber streaming"}),
			replyThought("got it", false),
		},
		answer: "with sources",
	}
	f := newProcessorFixture(backend)
	user := f.seedUser()

	err := f.processor.Process(context.Background(), Request{UserId: user.Id, Query: "research"}, f.recorder.emit)
	require.NoError(t, err)

	f.dispatcher.mu.Lock()
	invs := f.dispatcher.invs
	batches := f.dispatcher.batches
	f.dispatcher.mu.Unlock()
	require.Len(t, invs, 1)
	assert.Equal(t, user.Id, invs[0].UserId)
	assert.Equal(t, f.store.onlySession(t).Id, invs[0].SessionId)
	assert.True(t, invs[0].MemoryEnabled)
	require.Len(t, batches[0], 1)
	assert.Equal(t, constant.ToolNameWebSearch, batches[0][0].Name)

	toolCall := f.recorder.byKind(EventToolCall)[0]
	assert.Equal(t, constant.ToolNameWebSearch, toolCall.ToolName)
	toolOutput := f.recorder.byKind(EventToolOutput)[0]
	assert.Equal(t, "tool output for fiber streaming", toolOutput.Output)

	done := f.recorder.byKind(EventDone)[0]
	log := f.store.findLog(uuid.MustParse(done.LogId))
	require.NotNil(t, log)
	require.Len(t, log.ThoughtHistory, 3)
	assert.Equal(t, constant.ThoughtStepKindThought, log.ThoughtHistory[0].Kind)
	assert.Equal(t, constant.ThoughtStepKindTool, log.ThoughtHistory[1].Kind)
	assert.Equal(t, constant.ToolStatusCompleted, log.ThoughtHistory[1].ToolStatus)
	assert.Equal(t, constant.ThoughtStepKindThought, log.ThoughtHistory[2].Kind)
}

func TestProcessCancellationIsSilent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	backend := &fakeBackend{
		script: []thoughtReply{
			func(ctx context.Context, _ []genclient.FilePart, _ func(*genclient.Event)) (*genclient.ThoughtResult, error) {
				cancel()
				return nil, ctx.Err()
			},
		},
		answer: "never delivered",
	}
	f := newProcessorFixture(backend)
	user := f.seedUser()

	err := f.processor.Process(ctx, Request{UserId: user.Id, Query: "disconnect"}, f.recorder.emit)
	require.ErrorIs(t, err, ErrCancelled)

	assert.Empty(t, f.recorder.byKind(EventError))
	assert.Empty(t, f.recorder.byKind(EventDone))
	_, syntheses := backend.calls()
	assert.Zero(t, syntheses)

	metric := f.store.waitMetric(t)
	assert.Equal(t, constant.RequestLogStatusCancelled, metric.Status)
}

func TestSynthesisKeepsPartialAnswerOnStreamBreak(t *testing.T) {
	backend := &fakeBackend{
		script:        []thoughtReply{replyThought("thinking", false)},
		chunks:        []string{"The partial"},
		synthesizeErr: &genclient.StreamError{Message: "connection reset", PartialText: "The partial"},
	}
	f := newProcessorFixture(backend)
	user := f.seedUser()

	err := f.processor.Process(context.Background(), Request{UserId: user.Id, Query: "fragile"}, f.recorder.emit)
	require.NoError(t, err)

	done := f.recorder.byKind(EventDone)[0]
	log := f.store.findLog(uuid.MustParse(done.LogId))
	require.NotNil(t, log)
	assert.Equal(t, constant.RequestLogStatusComplete, log.Status)
	require.NotNil(t, log.Response)
	assert.Equal(t, "The partial", *log.Response)
	assert.Empty(t, f.recorder.byKind(EventError))
}

func TestSynthesisFailureEmitsError(t *testing.T) {
	backend := &fakeBackend{
		script:        []thoughtReply{replyThought("thinking", false)},
		synthesizeErr: errors.New("backend exploded"),
	}
	f := newProcessorFixture(backend)
	user := f.seedUser()

	err := f.processor.Process(context.Background(), Request{UserId: user.Id, Query: "doomed"}, f.recorder.emit)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "synthesis failed")

	errEvents := f.recorder.byKind(EventError)
	require.Len(t, errEvents, 1)
	assert.Contains(t, errEvents[0].Error, "backend exploded")
	assert.Empty(t, f.recorder.byKind(EventDone))

	metric := f.store.waitMetric(t)
	assert.Equal(t, constant.RequestLogStatusFailed, metric.Status)
}

func TestInlineFilesUploadedAndLinked(t *testing.T) {
	content := []byte("hello notes file")
	backend := &fakeBackend{
		script: []thoughtReply{replyThought("reading file", false)},
		answer: "summarized",
	}
	f := newProcessorFixture(backend)
	user := f.seedUser()

	err := f.processor.Process(context.Background(), Request{
		UserId: user.Id,
		Query:  "summarize the notes",
		Files:  []InlineFile{{Name: "notes.txt", ContentType: "text/plain", Content: content}},
	}, f.recorder.emit)
	require.NoError(t, err)

	assert.Equal(t, 1, backend.firstCallFiles, "inline bytes ride only on the first thought round")

	f.store.mu.Lock()
	require.Len(t, f.store.attachments, 1)
	attachment := f.store.attachments[0]
	f.store.mu.Unlock()
	assert.Equal(t, "notes.txt", attachment.FileName)
	assert.Equal(t, int64(len(content)), attachment.SizeBytes)
	require.NotNil(t, attachment.RequestLogId, "attachment must be linked to its turn")

	done := f.recorder.byKind(EventDone)[0]
	assert.Equal(t, done.LogId, attachment.RequestLogId.String())

	// Memory is enabled: both the turn and the attachment get queued.
	f.publisher.wait(t, 2)
	f.publisher.mu.Lock()
	defer f.publisher.mu.Unlock()
	require.Len(t, f.publisher.messages, 1)
	assert.Equal(t, done.LogId, f.publisher.messages[0].String())
	require.Len(t, f.publisher.attachments, 1)
	assert.Equal(t, attachment.Id, f.publisher.attachments[0])
}

func TestThinkLoopTimeoutFallsThroughToSynthesis(t *testing.T) {
	backend := &fakeBackend{
		script: []thoughtReply{
			replyThought("quick first pass", true),
			func(ctx context.Context, _ []genclient.FilePart, _ func(*genclient.Event)) (*genclient.ThoughtResult, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
		},
		answer: "from partial state",
	}
	f := newProcessorFixture(backend, func(cfg *Config) {
		cfg.LoopTimeout = 30 * time.Millisecond
	})
	user := f.seedUser()

	err := f.processor.Process(context.Background(), Request{UserId: user.Id, Query: "slow"}, f.recorder.emit)
	require.NoError(t, err)

	thoughts, syntheses := backend.calls()
	assert.Equal(t, 2, thoughts)
	assert.Equal(t, 1, syntheses)

	done := f.recorder.byKind(EventDone)[0]
	log := f.store.findLog(uuid.MustParse(done.LogId))
	require.NotNil(t, log)
	require.NotNil(t, log.Response)
	assert.Equal(t, "from partial state", *log.Response)
	require.Len(t, log.ThoughtHistory, 1)
}

func TestProcessGeneratesTitleAsynchronously(t *testing.T) {
	backend := &fakeBackend{
		script: []thoughtReply{replyThought("greeting", false)},
		answer: "hello there",
		title:  "Greeting and small talk",
	}
	f := newProcessorFixture(backend)
	user := f.seedUser()

	// No query and no files: the session starts with the placeholder
	// title and a background rename kicks in.
	err := f.processor.Process(context.Background(), Request{UserId: user.Id}, f.recorder.emit)
	require.NoError(t, err)

	created := f.recorder.byKind(EventSessionCreated)[0]
	assert.Equal(t, constant.DefaultSessionTitle, created.Title)

	updated := f.recorder.byKind(EventSessionTitleUpdated)
	require.Len(t, updated, 1)
	assert.Equal(t, "Greeting and small talk", updated[0].Title)

	kinds := f.recorder.kinds()
	assert.Equal(t, EventDone, kinds[len(kinds)-1], "title update must land before done")

	session := f.store.onlySession(t)
	assert.Equal(t, "Greeting and small talk", session.Title)
}

func TestProcessDropsTitleUpdateArrivingAfterDone(t *testing.T) {
	backend := &fakeBackend{
		script:     []thoughtReply{replyThought("greeting", false)},
		answer:     "hello there",
		title:      "Late title",
		titleDelay: 300 * time.Millisecond,
	}
	f := newProcessorFixture(backend, func(cfg *Config) {
		cfg.TitleWait = 50 * time.Millisecond
	})
	user := f.seedUser()

	err := f.processor.Process(context.Background(), Request{UserId: user.Id}, f.recorder.emit)
	require.NoError(t, err)

	kinds := f.recorder.kinds()
	assert.Equal(t, EventDone, kinds[len(kinds)-1])

	// The title goroutine outlives the abandoned wait and still persists
	// its result, but the stream is closed: its emit must be swallowed.
	require.Eventually(t, func() bool {
		f.store.mu.Lock()
		defer f.store.mu.Unlock()
		for _, session := range f.store.sessions {
			return session.Title == "Late title"
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	assert.Empty(t, f.recorder.byKind(EventSessionTitleUpdated))
	kinds = f.recorder.kinds()
	assert.Equal(t, EventDone, kinds[len(kinds)-1], "nothing may follow the terminal event")
}
