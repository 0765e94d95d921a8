package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/fleetctl/masterctl/internal/domain"
	"github.com/fleetctl/masterctl/internal/platform/logger"
)

// ConversationHistory implements controller.History: append a turn, read
// the last-N window, and look up the most recent task's description for
// the related-task heuristic (RunPlan/RelatedToPrior).
type ConversationHistory struct {
	messages MessageRepo
	tasks    TaskRepo
}

func NewConversationHistory(db *gorm.DB, baseLog *logger.Logger) *ConversationHistory {
	return &ConversationHistory{
		messages: NewMessageRepo(db, baseLog),
		tasks:    NewTaskRepo(db, baseLog),
	}
}

func (h *ConversationHistory) Append(ctx context.Context, conversationID string, role domain.Role, content string) error {
	return h.messages.Create(ctx, nil, &domain.Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	})
}

func (h *ConversationHistory) Window(ctx context.Context, conversationID string, n int) ([]domain.Message, error) {
	msgs, err := h.messages.LastN(ctx, nil, conversationID, n)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Message, len(msgs))
	for i, m := range msgs {
		out[i] = *m
	}
	return out, nil
}

func (h *ConversationHistory) LastTaskDescription(ctx context.Context, conversationID string) string {
	tasks, err := h.tasks.ListByConversation(ctx, nil, conversationID, 1)
	if err != nil || len(tasks) == 0 {
		return ""
	}
	return tasks[0].Description
}
