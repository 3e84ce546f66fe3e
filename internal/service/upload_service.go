package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/specification"
	"ai-assistant-be/internal/repository/unitofwork"
	"ai-assistant-be/pkg/blob"
	"ai-assistant-be/pkg/ingest"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const uploadKeyPrefix = "upload:"

type IUploadService interface {
	Upload(ctx context.Context, userId uuid.UUID, fileName, contentType string, body io.Reader) (*dto.UploadResponse, error)
	// CleanupExpired removes pre-uploaded attachments whose correlation
	// id lapsed without being claimed by a chat turn.
	CleanupExpired(ctx context.Context) error
	StartJanitor(ctx context.Context, interval time.Duration)
}

type uploadService struct {
	uowFactory unitofwork.RepositoryFactory
	uploader   *ingest.Uploader
	store      blob.Store
	redis      *redis.Client
	log        logger.ILogger
	ttl        time.Duration
}

func NewUploadService(
	uowFactory unitofwork.RepositoryFactory,
	uploader *ingest.Uploader,
	store blob.Store,
	redisClient *redis.Client,
	log logger.ILogger,
	ttl time.Duration,
) IUploadService {
	return &uploadService{
		uowFactory: uowFactory,
		uploader:   uploader,
		store:      store,
		redis:      redisClient,
		log:        log,
		ttl:        ttl,
	}
}

// Upload stages a file ahead of a chat request. The returned upload id
// is valid for the correlation TTL; unclaimed uploads are garbage
// collected afterwards.
func (s *uploadService) Upload(ctx context.Context, userId uuid.UUID, fileName, contentType string, body io.Reader) (*dto.UploadResponse, error) {
	attachmentId := uuid.New()
	uploadId := uuid.New().String()
	storageKey := fmt.Sprintf("attachments/%s/%s/%s", userId, attachmentId, fileName)

	written, err := s.uploader.Upload(ctx, s.uploader.NewBudget(), storageKey, body, contentType)
	if err != nil {
		return nil, err
	}

	attachment := &entity.FileAttachment{
		Id:         attachmentId,
		UserId:     userId,
		StorageKey: storageKey,
		FileName:   fileName,
		MimeType:   contentType,
		SizeBytes:  written,
		UploadId:   &uploadId,
		CreatedAt:  time.Now(),
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()
	if err := uow.FileAttachmentRepository().Create(ctx, attachment); err != nil {
		return nil, fmt.Errorf("failed to record upload: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	if err := s.redis.Set(ctx, uploadKeyPrefix+uploadId, attachmentId.String(), s.ttl).Err(); err != nil {
		s.log.Warn("UploadService", "Failed to set upload correlation key", map[string]interface{}{
			"upload_id": uploadId,
			"error":     err.Error(),
		})
	}

	return &dto.UploadResponse{
		UploadId: uploadId,
		FileName: fileName,
		Size:     written,
	}, nil
}

func (s *uploadService) CleanupExpired(ctx context.Context) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	cutoff := time.Now().Add(-s.ttl)
	stale, err := uow.FileAttachmentRepository().FindAll(ctx,
		specification.Unclaimed{},
		specification.CreatedBefore{Time: cutoff},
		specification.NotDeleted{},
		specification.Limit{Limit: 100},
	)
	if err != nil {
		return err
	}

	for _, attachment := range stale {
		// The redis key outliving the cutoff means the TTL was extended;
		// leave those alone.
		if attachment.UploadId != nil {
			exists, err := s.redis.Exists(ctx, uploadKeyPrefix+*attachment.UploadId).Result()
			if err == nil && exists > 0 {
				continue
			}
		}
		if err := s.deleteAttachment(ctx, attachment); err != nil {
			s.log.Warn("UploadService", "Failed to clean up stale upload", map[string]interface{}{
				"attachment_id": attachment.Id.String(),
				"error":         err.Error(),
			})
		}
	}
	return nil
}

func (s *uploadService) deleteAttachment(ctx context.Context, attachment *entity.FileAttachment) error {
	if err := s.store.Delete(ctx, attachment.StorageKey); err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", attachment.StorageKey, err)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	now := time.Now()
	attachment.IsDeleted = true
	attachment.DeletedAt = &now
	if err := uow.FileAttachmentRepository().Update(ctx, attachment); err != nil {
		return err
	}
	return uow.Commit()
}

func (s *uploadService) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.CleanupExpired(ctx); err != nil {
					s.log.Warn("UploadService", "Upload cleanup pass failed", map[string]interface{}{
						"error": err.Error(),
					})
				}
			}
		}
	}()
}
