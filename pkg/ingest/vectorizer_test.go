package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/contract"
	"ai-assistant-be/internal/repository/unitofwork"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingChunkRepo struct {
	contract.FileChunkEmbeddingRepository
	rows      []*entity.FileChunkEmbedding
	failIndex int
}

func (r *recordingChunkRepo) Create(_ context.Context, row *entity.FileChunkEmbedding) error {
	if r.failIndex > 0 && row.ChunkIndex == r.failIndex {
		return errors.New("constraint violation")
	}
	r.rows = append(r.rows, row)
	return nil
}

type recordingMessageRepo struct {
	contract.MessageEmbeddingRepository
	rows []*entity.MessageEmbedding
}

func (r *recordingMessageRepo) Create(_ context.Context, row *entity.MessageEmbedding) error {
	r.rows = append(r.rows, row)
	return nil
}

type vecUow struct {
	unitofwork.UnitOfWork
	chunks   *recordingChunkRepo
	messages *recordingMessageRepo
	commits  int
}

func (u *vecUow) Begin(context.Context) error { return nil }
func (u *vecUow) Commit() error               { u.commits++; return nil }
func (u *vecUow) Rollback() error             { return nil }

func (u *vecUow) FileChunkEmbeddingRepository() contract.FileChunkEmbeddingRepository {
	return u.chunks
}
func (u *vecUow) MessageEmbeddingRepository() contract.MessageEmbeddingRepository {
	return u.messages
}

type vecFactory struct {
	uow *vecUow
}

func (f *vecFactory) NewUnitOfWork(context.Context) unitofwork.UnitOfWork { return f.uow }

// markerFailProvider fails any chunk containing the marker substring.
type markerFailProvider struct {
	marker string
	calls  int
}

func (p *markerFailProvider) Generate(_ context.Context, text string, _ string) ([]float32, error) {
	p.calls++
	if p.marker != "" && strings.Contains(text, p.marker) {
		return nil, errors.New("embedding backend unavailable")
	}
	return []float32{1, 0, 0, 0}, nil
}

func newVectorizerFixture(marker string) (*Vectorizer, *memStore, *vecUow, *markerFailProvider) {
	store := newMemStore()
	uow := &vecUow{chunks: &recordingChunkRepo{}, messages: &recordingMessageRepo{}}
	provider := &markerFailProvider{marker: marker}
	v := NewVectorizer(store, provider, &vecFactory{uow: uow}, logger.NewNopLogger(), 4)
	return v, store, uow, provider
}

func chunkAttachment(store *memStore, mimeType, content string) *entity.FileAttachment {
	attachment := &entity.FileAttachment{
		Id:         uuid.New(),
		UserId:     uuid.New(),
		SessionId:  uuid.New(),
		StorageKey: "attachments/test/" + uuid.NewString(),
		FileName:   "doc.txt",
		MimeType:   mimeType,
		SizeBytes:  int64(len(content)),
		CreatedAt:  time.Now(),
	}
	store.objects[attachment.StorageKey] = []byte(content)
	return attachment
}

func TestVectorizeAttachmentSkipsFailedChunkKeepsRest(t *testing.T) {
	v, store, uow, provider := newVectorizerFixture("FAIL")
	v.chunkWindow = 8
	v.chunkOverlap = 0

	attachment := chunkAttachment(store, "text/plain", "aaaaaaaaXXFAILXXbbbbbbbb")

	err := v.VectorizeAttachment(context.Background(), attachment)
	require.NoError(t, err)

	assert.Equal(t, 3, provider.calls, "every chunk is attempted")
	require.Len(t, uow.chunks.rows, 2)
	assert.Equal(t, "aaaaaaaa", uow.chunks.rows[0].Document)
	assert.Equal(t, 0, uow.chunks.rows[0].ChunkIndex)
	assert.Equal(t, "bbbbbbbb", uow.chunks.rows[1].Document)
	assert.Equal(t, 2, uow.chunks.rows[1].ChunkIndex)
	assert.Equal(t, 1, uow.commits, "surviving chunks still commit")

	for _, row := range uow.chunks.rows {
		assert.Equal(t, attachment.Id, row.AttachmentId)
		assert.Equal(t, attachment.UserId, row.UserId)
		assert.Len(t, row.EmbeddingValue, 4)
	}
}

func TestVectorizeAttachmentSkipsFailedStoreKeepsRest(t *testing.T) {
	v, store, uow, _ := newVectorizerFixture("")
	v.chunkWindow = 8
	v.chunkOverlap = 0
	uow.chunks.failIndex = 1

	attachment := chunkAttachment(store, "text/plain", "aaaaaaaabbbbbbbbcccccccc")

	err := v.VectorizeAttachment(context.Background(), attachment)
	require.NoError(t, err)

	require.Len(t, uow.chunks.rows, 2)
	assert.Equal(t, 0, uow.chunks.rows[0].ChunkIndex)
	assert.Equal(t, 2, uow.chunks.rows[1].ChunkIndex)
	assert.Equal(t, 1, uow.commits)
}

func TestVectorizeAttachmentSkipsUnextractableFile(t *testing.T) {
	v, store, uow, provider := newVectorizerFixture("")

	attachment := chunkAttachment(store, "image/png", "\x89PNG\r\n\x1a\nbinarybytes")

	err := v.VectorizeAttachment(context.Background(), attachment)
	require.NoError(t, err, "unrecognized content declines quietly")
	assert.Zero(t, provider.calls)
	assert.Empty(t, uow.chunks.rows)
	assert.Zero(t, uow.commits)
}

func TestVectorizeMessageStoresTurn(t *testing.T) {
	v, _, uow, _ := newVectorizerFixture("")

	response := "the answer is 42"
	log := &entity.RequestLog{
		Id:            uuid.New(),
		ChatSessionId: uuid.New(),
		UserId:        uuid.New(),
		Query:         "what is the answer",
		Response:      &response,
	}

	err := v.VectorizeMessage(context.Background(), log)
	require.NoError(t, err)

	require.Len(t, uow.messages.rows, 1)
	row := uow.messages.rows[0]
	assert.Equal(t, log.Id, row.RequestLogId)
	assert.Equal(t, log.ChatSessionId, row.ChatSessionId)
	assert.Equal(t, log.UserId, row.UserId)
	assert.Equal(t, "User: what is the answer\nAssistant: the answer is 42", row.Document)
	assert.Len(t, row.EmbeddingValue, 4)
	assert.Equal(t, 1, uow.commits)
}

func TestVectorizeMessageRequiresResponse(t *testing.T) {
	v, _, uow, provider := newVectorizerFixture("")

	err := v.VectorizeMessage(context.Background(), &entity.RequestLog{Id: uuid.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no response")
	assert.Zero(t, provider.calls)
	assert.Empty(t, uow.messages.rows)
}
