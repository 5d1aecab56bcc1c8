package store

import (
	"time"

	domain "github.com/example/chat-relay/domain/chat"
)

// User is the persisted form of a chat user.
type User struct {
	ID        string    `gorm:"primarykey;size:36"`
	Username  string    `gorm:"size:50;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for the User model.
func (User) TableName() string {
	return "users"
}

func (u User) toDomain() domain.User {
	return domain.User{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt}
}

// Message is the persisted form of a chat message.
// SenderID carries no foreign key: a message outlives its sender.
type Message struct {
	ID        uint64    `gorm:"primarykey;autoIncrement"`
	Content   string    `gorm:"not null"`
	SenderID  string    `gorm:"size:36;index"`
	Room      string    `gorm:"size:100;not null;index:idx_messages_room_created,priority:1"`
	CreatedAt time.Time `gorm:"not null;index:idx_messages_room_created,priority:2"`
}

// TableName returns the table name for the Message model.
func (Message) TableName() string {
	return "messages"
}

func (m Message) toDomain() domain.Message {
	return domain.Message{
		ID:        m.ID,
		Content:   m.Content,
		SenderID:  m.SenderID,
		Room:      m.Room,
		CreatedAt: m.CreatedAt,
	}
}
