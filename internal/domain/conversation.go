package domain

import "time"

// Role distinguishes the speaker of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultContextWindow is the default number of most-recent messages
// retrievable as a conversation's context window (spec §3, "last N, default 10").
const DefaultContextWindow = 10

// Message is one turn of a conversation.
type Message struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID string    `gorm:"index" json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Message) TableName() string { return "messages" }
