package service

import (
	"context"
	"time"

	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/specification"
	"ai-assistant-be/internal/repository/unitofwork"
	"ai-assistant-be/pkg/contextbuilder"
	"ai-assistant-be/pkg/genclient"

	"github.com/google/uuid"
)

const (
	profileRefreshInterval = 6 * time.Hour
	profileStaleAfter      = 24 * time.Hour
	profileBatchSize       = 20
	profileHistoryLogs     = 20
)

// IProfileRefreshService periodically rebuilds user profile summaries
// from recent conversation history.
type IProfileRefreshService interface {
	Start(ctx context.Context)
	RefreshBatch(ctx context.Context) error
}

type profileRefreshService struct {
	uowFactory unitofwork.RepositoryFactory
	backend    *genclient.Client
	log        logger.ILogger
}

func NewProfileRefreshService(
	uowFactory unitofwork.RepositoryFactory,
	backend *genclient.Client,
	log logger.ILogger,
) IProfileRefreshService {
	return &profileRefreshService{
		uowFactory: uowFactory,
		backend:    backend,
		log:        log,
	}
}

func (s *profileRefreshService) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(profileRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.RefreshBatch(ctx); err != nil {
					s.log.Warn("ProfileRefreshService", "Profile refresh pass failed", map[string]interface{}{
						"error": err.Error(),
					})
				}
			}
		}
	}()
}

func (s *profileRefreshService) RefreshBatch(ctx context.Context) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	cutoff := time.Now().Add(-profileStaleAfter)
	users, err := uow.UserRepository().FindNeedingProfileRefresh(ctx, cutoff, profileBatchSize)
	if err != nil {
		return err
	}

	for _, user := range users {
		if !user.MemoryEnabled {
			continue
		}
		if err := s.refreshUser(ctx, user.Id); err != nil {
			s.log.Warn("ProfileRefreshService", "Failed to refresh profile", map[string]interface{}{
				"user_id": user.Id.String(),
				"error":   err.Error(),
			})
		}
	}
	return nil
}

func (s *profileRefreshService) refreshUser(ctx context.Context, userId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	logs, err := uow.RequestLogRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Limit{Limit: profileHistoryLogs},
	)
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		return nil
	}

	// FindAll returns newest first; the summarizer wants reading order.
	for i, j := 0, len(logs)-1; i < j; i, j = i+1, j-1 {
		logs[i], logs[j] = logs[j], logs[i]
	}
	history := contextbuilder.FormatHistory(logs, nil)

	summary, err := s.backend.SummarizeProfile(ctx, userId, history)
	if err != nil {
		return err
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil || user == nil {
		return err
	}
	now := time.Now()
	user.ProfileSummary = &summary
	user.ProfileRefreshedAt = &now
	if err := uow.UserRepository().Update(ctx, user); err != nil {
		return err
	}
	return uow.Commit()
}
