package service

import (
	"context"
	"encoding/base64"
	"fmt"

	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/specification"
	"ai-assistant-be/internal/repository/unitofwork"
	"ai-assistant-be/pkg/genclient"
	"ai-assistant-be/pkg/orchestrator"

	"github.com/google/uuid"
)

type IChatService interface {
	StreamChat(ctx context.Context, userId uuid.UUID, req *dto.StreamChatRequest, emit orchestrator.StreamEmitter) error
	GetAllSessions(ctx context.Context, userId uuid.UUID) ([]*dto.GetAllSessionsResponse, error)
	GetSessionHistory(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) ([]*dto.GetSessionHistoryResponse, error)
	DeleteMemory(ctx context.Context, userId uuid.UUID, sessionId *uuid.UUID) error
}

type chatService struct {
	uowFactory unitofwork.RepositoryFactory
	processor  *orchestrator.Processor
	backend    *genclient.Client
	log        logger.ILogger
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	processor *orchestrator.Processor,
	backend *genclient.Client,
	log logger.ILogger,
) IChatService {
	return &chatService{
		uowFactory: uowFactory,
		processor:  processor,
		backend:    backend,
		log:        log,
	}
}

// StreamChat decodes the transport envelope and hands the request to
// the orchestrator. The emitter is driven until the terminal event.
func (s *chatService) StreamChat(ctx context.Context, userId uuid.UUID, req *dto.StreamChatRequest, emit orchestrator.StreamEmitter) error {
	files := make([]orchestrator.InlineFile, 0, len(req.Files))
	for _, file := range req.Files {
		content, err := base64.StdEncoding.DecodeString(file.Data)
		if err != nil {
			return fmt.Errorf("file %q is not valid base64: %w", file.Name, err)
		}
		files = append(files, orchestrator.InlineFile{
			Name:        file.Name,
			ContentType: file.ContentType,
			Content:     content,
		})
	}

	return s.processor.Process(ctx, orchestrator.Request{
		UserId:             userId,
		Query:              req.Query,
		SessionId:          req.ChatSessionId,
		RegenerateLogId:    req.RegenerateLogId,
		Files:              files,
		UploadIds:          req.UploadIds,
		MemoryEnabled:      req.MemoryEnabled,
		CustomInstructions: req.CustomInstructions,
		Mode:               req.Mode,
	}, emit)
}

func (s *chatService) GetAllSessions(ctx context.Context, userId uuid.UUID) ([]*dto.GetAllSessionsResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	sessions, err := uow.ChatSessionRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.GetAllSessionsResponse, len(sessions))
	for i, session := range sessions {
		res[i] = &dto.GetAllSessionsResponse{
			Id:        session.Id,
			Title:     session.Title,
			Mode:      session.Mode,
			CreatedAt: session.CreatedAt,
			UpdatedAt: session.UpdatedAt,
		}
	}
	return res, nil
}

func (s *chatService) GetSessionHistory(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) ([]*dto.GetSessionHistoryResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserId != userId {
		return nil, fmt.Errorf("session %s not found", sessionId)
	}

	logs, err := uow.RequestLogRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.OrderBy{Field: "created_at", Desc: false},
	)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.GetSessionHistoryResponse, len(logs))
	for i, log := range logs {
		res[i] = &dto.GetSessionHistoryResponse{
			Id:        log.Id,
			Query:     log.Query,
			Response:  log.Response,
			Status:    log.Status,
			CreatedAt: log.CreatedAt,
		}
	}
	return res, nil
}

// DeleteMemory wipes stored vectors for the user (or one session) and
// tells the backend to drop its side as well.
func (s *chatService) DeleteMemory(ctx context.Context, userId uuid.UUID, sessionId *uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if sessionId != nil {
		if err := uow.MessageEmbeddingRepository().DeleteBySessionId(ctx, *sessionId); err != nil {
			return err
		}
	} else {
		if err := uow.MessageEmbeddingRepository().DeleteByUserId(ctx, userId); err != nil {
			return err
		}
		if err := uow.FileChunkEmbeddingRepository().DeleteByUserId(ctx, userId); err != nil {
			return err
		}
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	if err := s.backend.DeleteMemory(ctx, userId, sessionId); err != nil {
		// Local rows are already gone; the backend wipe is best effort.
		s.log.Warn("ChatService", "Backend memory deletion failed", map[string]interface{}{
			"user_id": userId.String(),
			"error":   err.Error(),
		})
	}
	return nil
}
