package store

import (
	"context"
	"testing"

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

func TestModule_Lifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewModule(":memory:", false, &mockLogger{})

	assert.Equal(t, "store", m.Name())
	assert.False(t, m.Health(ctx).Healthy, "health before Start")

	require.NoError(t, m.Start(ctx))
	require.NotNil(t, m.Users())
	require.NotNil(t, m.Messages())

	status := m.Health(ctx)
	assert.True(t, status.Healthy)
	assert.Equal(t, "sqlite", status.Details["driver"])

	require.NoError(t, m.Stop(ctx))
	assert.False(t, m.Health(ctx).Healthy, "health after Stop")
}
