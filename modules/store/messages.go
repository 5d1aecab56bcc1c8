package store

import (
	"context"
	"fmt"

	domain "github.com/example/chat-relay/domain/chat"
	"gorm.io/gorm"
)

// MessageRepository provides access to message storage.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository.
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create saves a new message and fills in its ID.
func (r *MessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	rec := Message{
		Content:   msg.Content,
		SenderID:  msg.SenderID,
		Room:      msg.Room,
		CreatedAt: msg.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	msg.ID = rec.ID
	msg.CreatedAt = rec.CreatedAt
	return nil
}

// FindByRoom returns every message of a room, oldest first.
// Messages sharing a timestamp keep insertion order.
func (r *MessageRepository) FindByRoom(ctx context.Context, room string) ([]domain.Message, error) {
	var recs []Message
	err := r.db.WithContext(ctx).
		Where("room = ?", room).
		Order("created_at ASC").
		Order("id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find messages: %w", err)
	}

	messages := make([]domain.Message, 0, len(recs))
	for _, rec := range recs {
		messages = append(messages, rec.toDomain())
	}
	return messages, nil
}
