package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/fleetctl/masterctl/internal/domain"
	"github.com/fleetctl/masterctl/internal/platform/logger"
)

// ContextSliceRepo persists which prior-turn indices C3 selected for a task.
type ContextSliceRepo interface {
	Create(ctx context.Context, tx *gorm.DB, slice *domain.ContextSlice) error
	ListByConversation(ctx context.Context, tx *gorm.DB, conversationID string, limit int) ([]*domain.ContextSlice, error)
}

type contextSliceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContextSliceRepo(db *gorm.DB, baseLog *logger.Logger) ContextSliceRepo {
	return &contextSliceRepo{db: db, log: baseLog.With("repo", "ContextSliceRepo")}
}

func (r *contextSliceRepo) Create(ctx context.Context, tx *gorm.DB, slice *domain.ContextSlice) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(slice).Error
}

func (r *contextSliceRepo) ListByConversation(ctx context.Context, tx *gorm.DB, conversationID string, limit int) ([]*domain.ContextSlice, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}
	var slices []*domain.ContextSlice
	if err := transaction.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&slices).Error; err != nil {
		return nil, err
	}
	return slices, nil
}
