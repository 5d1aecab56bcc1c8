package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	domain "github.com/example/chat-relay/domain/chat"
	"github.com/example/chat-relay/modules/broadcast"
	"github.com/example/chat-relay/modules/directory"
	"github.com/example/chat-relay/modules/presence"
	"github.com/go-monolith/mono/pkg/types"
)

// State is a connection's lifecycle state.
type State int

const (
	StateConnecting State = iota
	StateActive
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Coordinator turns websocket connections into sessions.
type Coordinator struct {
	hub        *broadcast.Hub
	presence   *presence.Registry
	directory  directory.DirectoryPort
	membership *Membership
	pipeline   *Pipeline
	logger     types.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(
	hub *broadcast.Hub,
	registry *presence.Registry,
	dir directory.DirectoryPort,
	membership *Membership,
	pipeline *Pipeline,
	logger types.Logger,
) *Coordinator {
	return &Coordinator{
		hub:        hub,
		presence:   registry,
		directory:  dir,
		membership: membership,
		pipeline:   pipeline,
		logger:     logger,
	}
}

// Connect registers client with the hub, resolves (or creates) the user and
// records presence. The returned session is Active. On failure the client is
// unregistered and an error is returned.
func (c *Coordinator) Connect(ctx context.Context, username string, client *broadcast.Client) (*Session, error) {
	s := &Session{
		coordinator: c,
		client:      client,
		username:    username,
		state:       StateConnecting,
	}

	if err := c.hub.Register(client); err != nil {
		s.state = StateDisconnected
		return nil, fmt.Errorf("failed to register connection: %w", err)
	}

	user, err := c.directory.ResolveOrCreate(ctx, username)
	if err != nil {
		c.hub.Unregister(client)
		s.state = StateDisconnected
		return nil, fmt.Errorf("failed to resolve user %q: %w", username, err)
	}
	s.user = *user

	c.presence.Connect(username, client)
	s.state = StateActive

	c.logger.Info("Connection active", "clientID", client.ID(), "username", username, "userID", user.ID)
	return s, nil
}

// Session is one client connection. Dispatch is its single entry point for
// client events; events of one session are handled one at a time, in order.
type Session struct {
	coordinator *Coordinator
	client      *broadcast.Client
	username    string
	user        domain.User

	mu    sync.Mutex
	state State
}

// State returns the session's lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// User returns the user the session was opened for.
func (s *Session) User() domain.User {
	return s.user
}

// Dispatch handles one client event. Failures are returned for logging only;
// nothing is sent back to the client on error.
func (s *Session) Dispatch(ctx context.Context, env Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return ErrSessionClosed
	}

	switch env.Event {
	case EventJoinRoom:
		return s.joinRoom(ctx, env.Data)
	case EventMessage:
		return s.message(ctx, env.Data)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownEvent, env.Event)
	}
}

func (s *Session) joinRoom(ctx context.Context, data json.RawMessage) error {
	room, err := decodeRoom(data)
	if err != nil {
		return err
	}

	history, err := s.coordinator.membership.Join(ctx, s.client, room)
	if err != nil {
		return err
	}

	reply, err := NewEnvelope(EventLoadMessages, history)
	if err != nil {
		return err
	}
	s.coordinator.hub.Send(s.client.ID(), reply)
	return nil
}

func (s *Session) message(ctx context.Context, data json.RawMessage) error {
	var payload MessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	sender := payload.Sender
	if sender == "" {
		sender = s.username
	}

	outcome, err := s.coordinator.pipeline.Submit(ctx, sender, payload.Room, payload.Content)
	if err != nil {
		return err
	}
	if outcome.Status == StatusDropped {
		s.coordinator.logger.Debug("Submission dropped",
			"clientID", s.client.ID(), "sender", sender, "reason", outcome.Reason)
	}
	return nil
}

// Close moves the session to Disconnected: room subscriptions are torn down
// and the username's presence entry is removed. Safe to call twice.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return
	}
	s.state = StateDisconnected
	s.mu.Unlock()

	s.coordinator.hub.Unregister(s.client)
	// Removes the entry even if a newer connection took the username over.
	s.coordinator.presence.Disconnect(s.username)

	s.coordinator.logger.Info("Connection closed", "clientID", s.client.ID(), "username", s.username)
}

// PresenceNotifier broadcasts the roster to every connection.
func PresenceNotifier(hub *broadcast.Hub, logger types.Logger) presence.Notifier {
	return presence.NotifierFunc(func(roster presence.Roster) {
		env, err := NewEnvelope(EventUserPresence, roster)
		if err != nil {
			logger.Error("Failed to encode presence roster", "error", err)
			return
		}
		hub.BroadcastAll(env)
	})
}
