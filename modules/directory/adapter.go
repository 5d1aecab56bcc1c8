package directory

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/chat-relay/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// DirectoryPort is the user directory as seen by other modules.
type DirectoryPort interface {
	ResolveOrCreate(ctx context.Context, username string) (*domain.User, error)
	Lookup(ctx context.Context, username string) (*domain.User, error)
	LookupByIDs(ctx context.Context, ids []string) (map[string]domain.User, error)
}

var (
	_ DirectoryPort = (*Service)(nil)
	_ DirectoryPort = (*directoryAdapter)(nil)
)

// directoryAdapter calls the directory module's request-reply services.
type directoryAdapter struct {
	container mono.ServiceContainer
}

// NewDirectoryAdapter creates a DirectoryPort over the directory module's
// ServiceContainer, as received via SetDependencyServiceContainer.
func NewDirectoryAdapter(container mono.ServiceContainer) DirectoryPort {
	if container == nil {
		panic("directory: ServiceContainer is nil")
	}
	return &directoryAdapter{container: container}
}

// ResolveOrCreate calls services.directory.resolve.
func (a *directoryAdapter) ResolveOrCreate(ctx context.Context, username string) (*domain.User, error) {
	req := ResolveRequest{Username: username}
	var resp ResolveResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceResolve,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	if resp.User == nil {
		return nil, fmt.Errorf("failed to resolve user: empty reply")
	}
	return resp.User, nil
}

// Lookup calls services.directory.lookup.
func (a *directoryAdapter) Lookup(ctx context.Context, username string) (*domain.User, error) {
	req := LookupRequest{Username: username}
	var resp LookupResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceLookup,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !resp.Found {
		return nil, ErrUserNotFound
	}
	return resp.User, nil
}

// lookupIDsBatchSize bounds each lookup-ids request so replies stay well under
// the NATS max payload.
const lookupIDsBatchSize = 500

// LookupByIDs calls services.directory.lookup-ids, in batches.
func (a *directoryAdapter) LookupByIDs(ctx context.Context, ids []string) (map[string]domain.User, error) {
	users := make(map[string]domain.User, len(ids))
	for start := 0; start < len(ids); start += lookupIDsBatchSize {
		end := min(start+lookupIDsBatchSize, len(ids))

		req := LookupIDsRequest{IDs: ids[start:end]}
		var resp LookupIDsResponse
		if err := helper.CallRequestReplyService(
			ctx,
			a.container,
			ServiceLookupIDs,
			json.Marshal,
			json.Unmarshal,
			&req,
			&resp,
		); err != nil {
			return nil, fmt.Errorf("failed to look up users: %w", err)
		}

		for _, user := range resp.Users {
			users[user.ID] = user
		}
	}
	return users, nil
}
