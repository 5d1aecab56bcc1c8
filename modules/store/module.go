package store

import (
	"context"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/gorm"
)

// Module owns the database connection shared by the user directory and the
// message history.
type Module struct {
	db       *gorm.DB
	users    *UserRepository
	messages *MessageRepository
	dbPath   string
	debug    bool
	logger   types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new store module for the database at dbPath.
func NewModule(dbPath string, debug bool, logger types.Logger) *Module {
	return &Module{
		dbPath: dbPath,
		debug:  debug,
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "store"
}

// Start opens the database and runs migrations.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Connecting to SQLite database", "path", m.dbPath)

	db, err := Open(m.dbPath, m.debug)
	if err != nil {
		return err
	}

	m.db = db
	m.users = NewUserRepository(db)
	m.messages = NewMessageRepository(db)

	m.logger.Info("Store module started")
	return nil
}

// Stop closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	if m.db == nil {
		return nil
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	m.logger.Info("Database connection closed")
	return nil
}

// Health pings the database.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get sql.DB: %v", err),
		}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver": "sqlite",
			"path":   m.dbPath,
		},
	}
}

// Users returns the user repository. Valid after Start.
func (m *Module) Users() *UserRepository {
	return m.users
}

// Messages returns the message repository. Valid after Start.
func (m *Module) Messages() *MessageRepository {
	return m.messages
}
