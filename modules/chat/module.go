package chat

import (
	"context"
	"fmt"

	"github.com/example/chat-relay/modules/broadcast"
	"github.com/example/chat-relay/modules/directory"
	"github.com/example/chat-relay/modules/presence"
	"github.com/example/chat-relay/modules/store"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// Module wires room membership, the message pipeline and connection
// sessions on top of the directory, store and broadcast modules.
type Module struct {
	store       *store.Module
	broadcast   *broadcast.BroadcastModule
	directory   directory.DirectoryPort
	presence    *presence.Registry
	membership  *Membership
	pipeline    *Pipeline
	coordinator *Coordinator
	logger      types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new chat module.
func NewModule(storeModule *store.Module, broadcastModule *broadcast.BroadcastModule, logger types.Logger) *Module {
	return &Module{
		store:     storeModule,
		broadcast: broadcastModule,
		logger:    logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// Dependencies returns the modules that must start before chat.
func (m *Module) Dependencies() []string {
	return []string{"store", "broadcast", "directory"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "directory":
		m.directory = directory.NewDirectoryAdapter(container)
	}
}

// Start builds the chat components. The store and broadcast modules must be
// started first.
func (m *Module) Start(_ context.Context) error {
	if m.directory == nil {
		return fmt.Errorf("directory dependency not set")
	}
	if m.store == nil || m.store.Messages() == nil {
		return fmt.Errorf("store module not started")
	}
	if m.broadcast == nil {
		return fmt.Errorf("broadcast module not set")
	}

	hub := m.broadcast.Hub()
	messages := m.store.Messages()

	m.presence = presence.NewRegistry(PresenceNotifier(hub, m.logger))
	m.membership = NewMembership(hub, messages, m.directory)
	m.pipeline = NewPipeline(hub, messages, m.directory, m.logger)
	m.coordinator = NewCoordinator(hub, m.presence, m.directory, m.membership, m.pipeline, m.logger)

	m.logger.Info("Chat module started")
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	online := 0
	if m.presence != nil {
		online = m.presence.Len()
	}
	m.logger.Info("Chat module stopped", "online_users", online)
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.coordinator == nil {
		return mono.HealthStatus{Healthy: false, Message: "not started"}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"online_users": m.presence.Len(),
		},
	}
}

// Coordinator returns the session coordinator used by the websocket handler.
func (m *Module) Coordinator() *Coordinator {
	return m.coordinator
}

// Membership returns the room membership, which also serves room history.
func (m *Module) Membership() *Membership {
	return m.membership
}

// Presence returns the presence registry.
func (m *Module) Presence() *presence.Registry {
	return m.presence
}
