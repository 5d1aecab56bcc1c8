package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/example/chat-relay/domain/chat"
	"github.com/example/chat-relay/modules/store"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// UserStore is the durable user storage the directory relies on.
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]domain.User, error)
}

// Service implements lookup-or-create of users by unique username.
//
// Check-then-create is not atomic. Two processes registering the same name
// can both miss the lookup; the loser of the insert gets store.ErrDuplicateKey
// and re-fetches the winner's record. Within one process, identical
// concurrent registrations share a single flight.
type Service struct {
	users  UserStore
	cache  Cache
	group  singleflight.Group
	logger types.Logger
	now    func() time.Time
}

// NewService creates a directory over users. cache may be nil.
func NewService(users UserStore, cache Cache, logger types.Logger) *Service {
	if cache == nil {
		cache = noopCache{}
	}
	return &Service{
		users:  users,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// ResolveOrCreate returns the user named username, creating it on first use.
func (s *Service) ResolveOrCreate(ctx context.Context, username string) (*domain.User, error) {
	if err := domain.ValidateUsername(username); err != nil {
		return nil, err
	}

	// The flight is shared, so one caller's cancellation must not fail the rest.
	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(username, func() (any, error) {
		return s.resolveOrCreate(flightCtx, username)
	})
	if err != nil {
		return nil, err
	}
	user := *v.(*domain.User)
	return &user, nil
}

func (s *Service) resolveOrCreate(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.Lookup(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	user = &domain.User{
		ID:        uuid.New().String(),
		Username:  username,
		CreatedAt: s.now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if !errors.Is(err, store.ErrDuplicateKey) {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}

		s.logger.Debug("Concurrent registration detected, re-fetching", "username", username)
		existing, err := s.users.FindByUsername(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("failed to re-fetch user after duplicate key: %w", err)
		}
		user = existing
	} else {
		s.logger.Info("User registered", "username", username, "userID", user.ID)
	}

	s.cache.Set(ctx, *user)
	return user, nil
}

// Lookup returns an existing user. It never creates one.
func (s *Service) Lookup(ctx context.Context, username string) (*domain.User, error) {
	if user, ok := s.cache.GetByUsername(ctx, username); ok {
		return user, nil
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	s.cache.Set(ctx, *user)
	return user, nil
}

// LookupByIDs resolves user IDs to users. IDs without a user are absent from
// the result.
func (s *Service) LookupByIDs(ctx context.Context, ids []string) (map[string]domain.User, error) {
	result := make(map[string]domain.User, len(ids))
	missing := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))

	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		if user, ok := s.cache.GetByID(ctx, id); ok {
			result[id] = *user
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return result, nil
	}

	users, err := s.users.FindByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, user := range users {
		result[user.ID] = user
		s.cache.Set(ctx, user)
	}
	return result, nil
}
