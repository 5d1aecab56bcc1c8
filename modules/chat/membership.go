package chat

import (
	"context"
	"fmt"

	domain "github.com/example/chat-relay/domain/chat"
	"github.com/example/chat-relay/modules/broadcast"
	"github.com/example/chat-relay/modules/directory"
)

// MessageStore persists and reads room messages.
type MessageStore interface {
	Create(ctx context.Context, msg *domain.Message) error
	FindByRoom(ctx context.Context, room string) ([]domain.Message, error)
}

// Membership subscribes connections to rooms and serves room history.
// Rooms are plain string keys; an unknown room has an empty history.
type Membership struct {
	hub       *broadcast.Hub
	messages  MessageStore
	directory directory.DirectoryPort
}

// NewMembership creates a Membership.
func NewMembership(hub *broadcast.Hub, messages MessageStore, dir directory.DirectoryPort) *Membership {
	return &Membership{
		hub:       hub,
		messages:  messages,
		directory: dir,
	}
}

// Join subscribes the client to room, then returns the room's history.
func (m *Membership) Join(ctx context.Context, client *broadcast.Client, room string) ([]domain.MessageView, error) {
	if err := domain.ValidateRoomName(room); err != nil {
		return nil, err
	}

	if err := m.hub.Subscribe(client.ID(), room); err != nil {
		return nil, fmt.Errorf("failed to subscribe to room %s: %w", room, err)
	}

	return m.History(ctx, room)
}

// History returns every message in room ordered by creation time, each with
// its sender resolved. Senders that no longer resolve show as unknown.
func (m *Membership) History(ctx context.Context, room string) ([]domain.MessageView, error) {
	messages, err := m.messages.FindByRoom(ctx, room)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	views := make([]domain.MessageView, 0, len(messages))
	if len(messages) == 0 {
		return views, nil
	}

	seen := make(map[string]struct{}, len(messages))
	ids := make([]string, 0, len(messages))
	for _, msg := range messages {
		if _, ok := seen[msg.SenderID]; ok {
			continue
		}
		seen[msg.SenderID] = struct{}{}
		ids = append(ids, msg.SenderID)
	}

	senders, err := m.directory.LookupByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve senders: %w", err)
	}

	for _, msg := range messages {
		var sender *domain.User
		if user, ok := senders[msg.SenderID]; ok {
			sender = &user
		}
		views = append(views, domain.Hydrate(msg, sender))
	}
	return views, nil
}
