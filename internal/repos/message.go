package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/fleetctl/masterctl/internal/domain"
	"github.com/fleetctl/masterctl/internal/platform/logger"
)

// MessageRepo persists conversation turns, backing the §3 "last N messages"
// context window.
type MessageRepo interface {
	Create(ctx context.Context, tx *gorm.DB, message *domain.Message) error
	LastN(ctx context.Context, tx *gorm.DB, conversationID string, n int) ([]*domain.Message, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: baseLog.With("repo", "MessageRepo")}
}

func (r *messageRepo) Create(ctx context.Context, tx *gorm.DB, message *domain.Message) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(message).Error
}

// LastN returns the N most recent messages for a conversation, oldest first,
// matching how a context window is normally consumed.
func (r *messageRepo) LastN(ctx context.Context, tx *gorm.DB, conversationID string, n int) ([]*domain.Message, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if n <= 0 {
		n = domain.DefaultContextWindow
	}
	var descending []*domain.Message
	if err := transaction.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(n).
		Find(&descending).Error; err != nil {
		return nil, err
	}
	messages := make([]*domain.Message, len(descending))
	for i, m := range descending {
		messages[len(descending)-1-i] = m
	}
	return messages, nil
}
