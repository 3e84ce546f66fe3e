package unitofwork

import (
	"context"
	"fmt"

	"ai-assistant-be/internal/repository/contract"
	"ai-assistant-be/internal/repository/implementation"

	"gorm.io/gorm"
)

type UnitOfWorkImpl struct {
	db *gorm.DB
	tx *gorm.DB // the active transaction, nil outside Begin/Commit
}

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &UnitOfWorkImpl{
		db: db,
	}
}

func (u *UnitOfWorkImpl) getDB() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *UnitOfWorkImpl) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}
	u.tx = u.db.WithContext(ctx).Begin()
	return u.tx.Error
}

func (u *UnitOfWorkImpl) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}
	err := u.tx.Commit().Error
	u.tx = nil
	return err
}

func (u *UnitOfWorkImpl) Rollback() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to rollback")
	}
	err := u.tx.Rollback().Error
	u.tx = nil
	return err
}

// Repository Accessors

func (u *UnitOfWorkImpl) UserRepository() contract.UserRepository {
	return implementation.NewUserRepository(u.getDB())
}

func (u *UnitOfWorkImpl) ChatSessionRepository() contract.ChatSessionRepository {
	return implementation.NewChatSessionRepository(u.getDB())
}

func (u *UnitOfWorkImpl) RequestLogRepository() contract.RequestLogRepository {
	return implementation.NewRequestLogRepository(u.getDB())
}

func (u *UnitOfWorkImpl) PlanRepository() contract.PlanRepository {
	return implementation.NewPlanRepository(u.getDB())
}

func (u *UnitOfWorkImpl) FileAttachmentRepository() contract.FileAttachmentRepository {
	return implementation.NewFileAttachmentRepository(u.getDB())
}

func (u *UnitOfWorkImpl) MessageEmbeddingRepository() contract.MessageEmbeddingRepository {
	return implementation.NewMessageEmbeddingRepository(u.getDB())
}

func (u *UnitOfWorkImpl) FileChunkEmbeddingRepository() contract.FileChunkEmbeddingRepository {
	return implementation.NewFileChunkEmbeddingRepository(u.getDB())
}

func (u *UnitOfWorkImpl) RequestMetricRepository() contract.RequestMetricRepository {
	return implementation.NewRequestMetricRepository(u.getDB())
}
