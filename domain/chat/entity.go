package chat

import "time"

// UnknownSenderName is shown for messages whose sender can no longer be resolved.
const UnknownSenderName = "unknown"

// User is a registered chat identity. Users are never updated or deleted.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is a persisted chat message. Sender is a weak reference to a User.
type Message struct {
	ID        uint64    `json:"id"`
	Content   string    `json:"content"`
	SenderID  string    `json:"senderId"`
	Room      string    `json:"room"`
	CreatedAt time.Time `json:"createdAt"`
}

// Sender is the display form of a message author.
type Sender struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// UnknownSender is substituted when a message's sender record is missing.
var UnknownSender = Sender{Username: UnknownSenderName}

// MessageView is a hydrated message: the sender reference is resolved to a username.
type MessageView struct {
	ID        uint64    `json:"id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Room      string    `json:"room"`
	CreatedAt time.Time `json:"createdAt"`
}

// Hydrate attaches the sender to a message. A nil user yields UnknownSender.
func Hydrate(msg Message, user *User) MessageView {
	sender := UnknownSender
	if user != nil {
		sender = Sender{ID: user.ID, Username: user.Username}
	}
	return MessageView{
		ID:        msg.ID,
		Content:   msg.Content,
		Sender:    sender,
		Room:      msg.Room,
		CreatedAt: msg.CreatedAt,
	}
}
