package ingest

import (
	"context"
	"fmt"
	"io"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/unitofwork"
	"ai-assistant-be/pkg/blob"
	"ai-assistant-be/pkg/embedding"
	"ai-assistant-be/pkg/retrieval"
	"ai-assistant-be/pkg/utils"

	"github.com/google/uuid"
)

const (
	DefaultChunkWindow  = 1200
	DefaultChunkOverlap = 200
	DefaultCeiling      = 10 * time.Minute
)

// Vectorizer turns finished turns and uploaded files into stored
// embeddings. It runs after the response has been delivered, so every
// failure here is logged and swallowed.
type Vectorizer struct {
	store       blob.Store
	provider    embedding.Provider
	repoFactory unitofwork.RepositoryFactory
	log         logger.ILogger

	dimension    int
	chunkWindow  int
	chunkOverlap int
	ceiling      time.Duration
}

func NewVectorizer(store blob.Store, provider embedding.Provider, repoFactory unitofwork.RepositoryFactory, log logger.ILogger, dimension int) *Vectorizer {
	return &Vectorizer{
		store:        store,
		provider:     provider,
		repoFactory:  repoFactory,
		log:          log,
		dimension:    dimension,
		chunkWindow:  DefaultChunkWindow,
		chunkOverlap: DefaultChunkOverlap,
		ceiling:      DefaultCeiling,
	}
}

// VectorizeMessage embeds one finished turn (query + response) into the
// message corpus.
func (v *Vectorizer) VectorizeMessage(ctx context.Context, log *entity.RequestLog) error {
	ctx, cancel := context.WithTimeout(ctx, v.ceiling)
	defer cancel()

	if log.Response == nil {
		return fmt.Errorf("request log %s has no response to embed", log.Id)
	}

	document := "User: " + log.Query + "\nAssistant: " + *log.Response
	vector, err := v.provider.Generate(ctx, document, embedding.TaskTypeDocument)
	if err != nil {
		return fmt.Errorf("embed message: %w", err)
	}

	uow := v.repoFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	row := &entity.MessageEmbedding{
		Id:             uuid.New(),
		RequestLogId:   log.Id,
		ChatSessionId:  log.ChatSessionId,
		UserId:         log.UserId,
		Document:       document,
		EmbeddingValue: retrieval.Normalize(vector, v.dimension),
		CreatedAt:      time.Now(),
	}
	if err := uow.MessageEmbeddingRepository().Create(ctx, row); err != nil {
		return fmt.Errorf("store message embedding: %w", err)
	}

	return uow.Commit()
}

// VectorizeAttachment downloads an attachment, extracts its text,
// chunks it and stores one embedding per non-blank chunk. A single
// chunk's failure is logged and skipped, the rest still land.
func (v *Vectorizer) VectorizeAttachment(ctx context.Context, attachment *entity.FileAttachment) error {
	ctx, cancel := context.WithTimeout(ctx, v.ceiling)
	defer cancel()

	body, err := v.store.Download(ctx, attachment.StorageKey)
	if err != nil {
		return fmt.Errorf("download attachment: %w", err)
	}
	data, err := io.ReadAll(io.LimitReader(body, maxPDFBytes+1))
	body.Close()
	if err != nil {
		return fmt.Errorf("read attachment: %w", err)
	}

	text, ok := ExtractText(data, attachment.MimeType)
	if !ok || text == "" {
		v.log.Info("Ingest", "Attachment yields no extractable text, skipping", map[string]interface{}{
			"attachment_id": attachment.Id.String(),
			"mime_type":     attachment.MimeType,
		})
		return nil
	}

	chunks := utils.SplitText(text, v.chunkWindow, v.chunkOverlap)
	if len(chunks) == 0 {
		return nil
	}

	uow := v.repoFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	stored := 0
	for i, chunk := range chunks {
		vector, err := v.provider.Generate(ctx, chunk, embedding.TaskTypeDocument)
		if err != nil {
			v.log.Warn("Ingest", "Chunk embedding failed, skipping chunk", map[string]interface{}{
				"attachment_id": attachment.Id.String(),
				"chunk_index":   i,
				"error":         err.Error(),
			})
			continue
		}

		row := &entity.FileChunkEmbedding{
			Id:             uuid.New(),
			AttachmentId:   attachment.Id,
			UserId:         attachment.UserId,
			Document:       chunk,
			ChunkIndex:     i,
			EmbeddingValue: retrieval.Normalize(vector, v.dimension),
			CreatedAt:      time.Now(),
		}
		if err := uow.FileChunkEmbeddingRepository().Create(ctx, row); err != nil {
			v.log.Warn("Ingest", "Chunk store failed, skipping chunk", map[string]interface{}{
				"attachment_id": attachment.Id.String(),
				"chunk_index":   i,
				"error":         err.Error(),
			})
			continue
		}
		stored++
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("commit chunk embeddings: %w", err)
	}

	v.log.Info("Ingest", "Attachment vectorized", map[string]interface{}{
		"attachment_id": attachment.Id.String(),
		"chunks":        len(chunks),
		"stored":        stored,
	})
	return nil
}
