package directory

import (
	"context"
	"errors"
	"sync"
	"testing"

	domain "github.com/example/chat-relay/domain/chat"
	"github.com/example/chat-relay/modules/store"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any)         {}
func (m *mockLogger) Info(_ string, _ ...any)          {}
func (m *mockLogger) Warn(_ string, _ ...any)          {}
func (m *mockLogger) Error(_ string, _ ...any)         {}
func (m *mockLogger) With(_ ...any) types.Logger       { return m }
func (m *mockLogger) WithModule(_ string) types.Logger { return m }
func (m *mockLogger) WithError(_ error) types.Logger   { return m }

func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := store.Open(":memory:", false)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return NewService(store.NewUserRepository(db), nil, &mockLogger{})
}

// racingStore simulates losing a registration race: the first lookup misses,
// the insert hits the unique constraint, and the re-fetch sees the winner.
type racingStore struct {
	mu      sync.Mutex
	winner  domain.User
	lookups int
	creates int
}

func (s *racingStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	return store.ErrDuplicateKey
}

func (s *racingStore) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.lookups == 1 || username != s.winner.Username {
		return nil, store.ErrNotFound
	}
	winner := s.winner
	return &winner, nil
}

func (s *racingStore) FindByIDs(context.Context, []string) ([]domain.User, error) {
	return nil, nil
}

type failingStore struct{ err error }

func (s failingStore) Create(context.Context, *domain.User) error { return s.err }
func (s failingStore) FindByUsername(context.Context, string) (*domain.User, error) {
	return nil, s.err
}
func (s failingStore) FindByIDs(context.Context, []string) ([]domain.User, error) {
	return nil, s.err
}

// gatedStore blocks lookups until released and fails calls whose context
// has been cancelled.
type gatedStore struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once

	mu    sync.Mutex
	users map[string]domain.User
}

func (s *gatedStore) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.Username] = *user
	return nil
}

func (s *gatedStore) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[username]; ok {
		return &user, nil
	}
	return nil, store.ErrNotFound
}

func (s *gatedStore) FindByIDs(context.Context, []string) ([]domain.User, error) {
	return nil, nil
}

func TestService_ResolveOrCreateIgnoresCallerCancellation(t *testing.T) {
	gated := &gatedStore{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		users:   make(map[string]domain.User),
	}
	svc := NewService(gated, nil, &mockLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		user *domain.User
		err  error
	}
	first := make(chan result, 1)
	go func() {
		user, err := svc.ResolveOrCreate(ctx, "alice")
		first <- result{user, err}
	}()
	<-gated.entered

	second := make(chan result, 1)
	go func() {
		user, err := svc.ResolveOrCreate(context.Background(), "alice")
		second <- result{user, err}
	}()

	cancel()
	close(gated.release)

	r1 := <-first
	require.NoError(t, r1.err)
	r2 := <-second
	require.NoError(t, r2.err)
	assert.Equal(t, r1.user.ID, r2.user.ID)
}

func TestService_ResolveOrCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	first, err := svc.ResolveOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "alice", first.Username)

	second, err := svc.ResolveOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestService_ResolveOrCreateRecoversFromDuplicateKey(t *testing.T) {
	racing := &racingStore{winner: domain.User{ID: "winner-id", Username: "alice"}}
	svc := NewService(racing, nil, &mockLogger{})

	user, err := svc.ResolveOrCreate(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "winner-id", user.ID)
	assert.Equal(t, 1, racing.creates)
	assert.Equal(t, 2, racing.lookups)
}

func TestService_ResolveOrCreateConcurrent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	const callers = 16
	ids := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user, err := svc.ResolveOrCreate(ctx, "bob")
			errs[i] = err
			if user != nil {
				ids[i] = user.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
}

func TestService_ResolveOrCreateValidation(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.ResolveOrCreate(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUsernameEmpty)
}

func TestService_ResolveOrCreateStoreFailure(t *testing.T) {
	boom := errors.New("disk on fire")
	svc := NewService(failingStore{err: boom}, nil, &mockLogger{})

	_, err := svc.ResolveOrCreate(context.Background(), "alice")
	assert.ErrorIs(t, err, boom)
}

func TestService_LookupNeverCreates(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.Lookup(ctx, "carol")
	assert.ErrorIs(t, err, ErrUserNotFound)

	// Still absent: Lookup is read-only.
	_, err = svc.Lookup(ctx, "carol")
	assert.ErrorIs(t, err, ErrUserNotFound)

	created, err := svc.ResolveOrCreate(ctx, "carol")
	require.NoError(t, err)

	found, err := svc.Lookup(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
}

func TestService_LookupByIDs(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	alice, err := svc.ResolveOrCreate(ctx, "alice")
	require.NoError(t, err)
	bob, err := svc.ResolveOrCreate(ctx, "bob")
	require.NoError(t, err)

	users, err := svc.LookupByIDs(ctx, []string{alice.ID, bob.ID, alice.ID, "", "ghost"})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, "alice", users[alice.ID].Username)
	assert.Equal(t, "bob", users[bob.ID].Username)
}

// memoryCache records cache traffic.
type memoryCache struct {
	mu     sync.Mutex
	byName map[string]domain.User
	byID   map[string]domain.User
}

func newMemoryCache() *memoryCache {
	return &memoryCache{byName: map[string]domain.User{}, byID: map[string]domain.User{}}
}

func (c *memoryCache) GetByUsername(_ context.Context, username string) (*domain.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.byName[username]
	return &u, ok
}

func (c *memoryCache) GetByID(_ context.Context, id string) (*domain.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.byID[id]
	return &u, ok
}

func (c *memoryCache) Set(_ context.Context, user domain.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byName[user.Username] = user
	c.byID[user.ID] = user
}

func TestService_CacheAside(t *testing.T) {
	ctx := context.Background()
	cache := newMemoryCache()
	cache.Set(ctx, domain.User{ID: "cached-id", Username: "dave"})

	// The store fails: only the cache can answer.
	svc := NewService(failingStore{err: errors.New("store down")}, cache, &mockLogger{})

	user, err := svc.Lookup(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, "cached-id", user.ID)

	users, err := svc.LookupByIDs(ctx, []string{"cached-id"})
	require.NoError(t, err)
	assert.Equal(t, "dave", users["cached-id"].Username)

	_, err = svc.Lookup(ctx, "erin")
	assert.Error(t, err)
}
