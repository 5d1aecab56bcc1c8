package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/example/chat-relay/domain/chat"
	"github.com/example/chat-relay/modules/store"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Module exposes the user directory as request-reply services.
type Module struct {
	store   *store.Module
	cache   *RedisCache
	service *Service
	logger  types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a directory module over the store module's user table.
// cache may be nil to disable caching.
func NewModule(storeModule *store.Module, cache *RedisCache, logger types.Logger) *Module {
	return &Module{
		store:  storeModule,
		cache:  cache,
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "directory"
}

// Dependencies returns the modules that must start before the directory.
func (m *Module) Dependencies() []string {
	return []string{"store"}
}

// SetDependencyServiceContainer is a no-op: the store is reached through its
// module handle.
func (m *Module) SetDependencyServiceContainer(_ string, _ mono.ServiceContainer) {}

// RegisterServices registers request-reply services in the service container.
// The framework prefixes them, so "resolve" becomes "services.directory.resolve".
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceResolve, json.Unmarshal, json.Marshal, m.resolve,
	); err != nil {
		return fmt.Errorf("failed to register resolve service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceLookup, json.Unmarshal, json.Marshal, m.lookup,
	); err != nil {
		return fmt.Errorf("failed to register lookup service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceLookupIDs, json.Unmarshal, json.Marshal, m.lookupIDs,
	); err != nil {
		return fmt.Errorf("failed to register lookup-ids service: %w", err)
	}

	m.logger.Info("Registered services", "services", []string{ServiceResolve, ServiceLookup, ServiceLookupIDs})
	return nil
}

func (m *Module) resolve(ctx context.Context, req ResolveRequest, _ *mono.Msg) (ResolveResponse, error) {
	user, err := m.service.ResolveOrCreate(ctx, req.Username)
	if err != nil {
		return ResolveResponse{}, err
	}
	return ResolveResponse{User: user}, nil
}

func (m *Module) lookup(ctx context.Context, req LookupRequest, _ *mono.Msg) (LookupResponse, error) {
	user, err := m.service.Lookup(ctx, req.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LookupResponse{Found: false}, nil
		}
		return LookupResponse{}, err
	}
	return LookupResponse{User: user, Found: true}, nil
}

func (m *Module) lookupIDs(ctx context.Context, req LookupIDsRequest, _ *mono.Msg) (LookupIDsResponse, error) {
	found, err := m.service.LookupByIDs(ctx, req.IDs)
	if err != nil {
		return LookupIDsResponse{}, err
	}

	users := make([]domain.User, 0, len(found))
	for _, user := range found {
		users = append(users, user)
	}
	return LookupIDsResponse{Users: users}, nil
}

// Start builds the directory service. The store module must be started first.
func (m *Module) Start(_ context.Context) error {
	if m.store == nil || m.store.Users() == nil {
		return fmt.Errorf("store module not started")
	}

	var cache Cache
	if m.cache != nil {
		cache = m.cache
	}
	m.service = NewService(m.store.Users(), cache, m.logger)

	m.logger.Info("Directory module started", "cache", m.cache != nil)
	return nil
}

// Stop closes the cache client, if any.
func (m *Module) Stop(_ context.Context) error {
	if m.cache != nil {
		if err := m.cache.Close(); err != nil {
			return fmt.Errorf("failed to close cache: %w", err)
		}
	}
	m.logger.Info("Directory module stopped")
	return nil
}

// Health reports cache connectivity and counters.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.service == nil {
		return mono.HealthStatus{Healthy: false, Message: "not started"}
	}
	if m.cache == nil {
		return mono.HealthStatus{Healthy: true, Message: "operational", Details: map[string]any{"cache": "disabled"}}
	}
	if err := m.cache.Ping(ctx); err != nil {
		// Lookups fall through to the store.
		return mono.HealthStatus{
			Healthy: true,
			Message: "cache unavailable",
			Details: map[string]any{"cache_error": err.Error()},
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"cache": m.cache.Stats()},
	}
}

// Service returns the directory service. Valid after Start.
func (m *Module) Service() *Service {
	return m.service
}
