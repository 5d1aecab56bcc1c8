package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/example/chat-relay/domain/chat"
	"github.com/example/chat-relay/modules/broadcast"
	"github.com/example/chat-relay/modules/directory"
	"github.com/go-monolith/mono/pkg/types"
)

// Status is the result of a submission.
type Status string

const (
	StatusDelivered Status = "delivered"
	StatusDropped   Status = "dropped"
)

// Reason explains a dropped submission.
type Reason string

const (
	ReasonUnknownSender Reason = "unknown-sender"
	ReasonInvalid       Reason = "invalid"
)

// Outcome reports what happened to a submitted message. Dropped submissions
// are never surfaced to the sending client.
type Outcome struct {
	Status  Status
	Reason  Reason
	Message *domain.MessageView
}

// Pipeline persists submitted messages and broadcasts them to the room.
type Pipeline struct {
	hub       *broadcast.Hub
	messages  MessageStore
	directory directory.DirectoryPort
	logger    types.Logger
	now       func() time.Time
}

// NewPipeline creates a Pipeline.
func NewPipeline(hub *broadcast.Hub, messages MessageStore, dir directory.DirectoryPort, logger types.Logger) *Pipeline {
	return &Pipeline{
		hub:       hub,
		messages:  messages,
		directory: dir,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit stores a message from an existing user and broadcasts the hydrated
// message to the room's subscribers only. The sender is looked up, never
// created: an unknown sender drops the message without persisting it.
func (p *Pipeline) Submit(ctx context.Context, senderUsername, room, content string) (Outcome, error) {
	if err := errors.Join(domain.ValidateRoomName(room), domain.ValidateMessage(content)); err != nil {
		p.logger.Warn("Dropped invalid message", "sender", senderUsername, "room", room, "error", err)
		return Outcome{Status: StatusDropped, Reason: ReasonInvalid}, nil
	}

	user, err := p.directory.Lookup(ctx, senderUsername)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			p.logger.Warn("Dropped message from unknown sender", "sender", senderUsername, "room", room)
			return Outcome{Status: StatusDropped, Reason: ReasonUnknownSender}, nil
		}
		return Outcome{}, fmt.Errorf("failed to look up sender: %w", err)
	}

	msg := domain.Message{
		Content:   content,
		SenderID:  user.ID,
		Room:      room,
		CreatedAt: p.now(),
	}
	if err := p.messages.Create(ctx, &msg); err != nil {
		return Outcome{}, fmt.Errorf("failed to persist message: %w", err)
	}

	view := domain.Hydrate(msg, user)
	env, err := NewEnvelope(EventMessage, view)
	if err != nil {
		return Outcome{}, err
	}
	p.hub.Broadcast(room, env)

	p.logger.Debug("Message delivered", "messageID", msg.ID, "sender", user.Username, "room", room)
	return Outcome{Status: StatusDelivered, Message: &view}, nil
}
