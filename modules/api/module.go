package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/example/chat-relay/domain/chat"
	"github.com/example/chat-relay/modules/broadcast"
	"github.com/example/chat-relay/modules/chat"
	"github.com/example/chat-relay/modules/directory"
	"github.com/example/chat-relay/modules/uploads"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Config holds the HTTP server settings.
type Config struct {
	Port          string
	CORSOrigin    string
	MaxUploadSize int64
	QueueSize     int
}

// BlobStore stores and serves uploaded files.
type BlobStore interface {
	Store(ctx context.Context, originalName string, data []byte) (*uploads.Blob, error)
	Open(ctx context.Context, name string) ([]byte, *uploads.Blob, error)
}

// HistorySource serves a room's hydrated history.
type HistorySource interface {
	History(ctx context.Context, room string) ([]domain.MessageView, error)
}

// APIModule is the HTTP API module with WebSocket support.
type APIModule struct {
	app           *fiber.App
	config        Config
	directory     directory.DirectoryPort
	history       HistorySource
	chatModule    *chat.Module
	uploadsModule *uploads.Module
	coordinator   *chat.Coordinator
	blobs         BlobStore
	hub           *broadcast.Hub
	validate      *validator.Validate
	logger        types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*APIModule)(nil)
var _ mono.DependentModule = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)

// NewModule creates a new APIModule.
func NewModule(config Config, logger types.Logger) *APIModule {
	if config.Port == "" {
		config.Port = "5000"
	}
	if config.MaxUploadSize <= 0 {
		config.MaxUploadSize = 10 * 1024 * 1024
	}
	return &APIModule{
		config:   config,
		validate: newValidator(),
		logger:   logger,
	}
}

// newValidator returns a validator with the "username" tag, which applies the
// directory's username rules.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return domain.ValidateUsername(fl.Field().String()) == nil
	})
	return v
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the modules that must start before the API. Only the
// directory is reached through its service container; the others are set
// from main.go.
func (m *APIModule) Dependencies() []string {
	return []string{"broadcast", "uploads", "directory", "chat"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "directory":
		m.directory = directory.NewDirectoryAdapter(container)
	}
}

// SetHub sets the broadcast hub (called from main.go).
func (m *APIModule) SetHub(hub *broadcast.Hub) {
	m.hub = hub
}

// SetChatModule sets the chat module whose coordinator serves /ws.
func (m *APIModule) SetChatModule(chatModule *chat.Module) {
	m.chatModule = chatModule
}

// SetUploadsModule sets the module backing /upload and /uploads.
func (m *APIModule) SetUploadsModule(uploadsModule *uploads.Module) {
	m.uploadsModule = uploadsModule
}

// Start initializes the Fiber HTTP server.
func (m *APIModule) Start(_ context.Context) error {
	if m.directory == nil {
		return fmt.Errorf("directory adapter dependency not set")
	}
	if m.hub == nil {
		return fmt.Errorf("broadcast hub dependency not set")
	}
	if m.chatModule == nil || m.chatModule.Coordinator() == nil {
		return fmt.Errorf("chat module not started")
	}
	if m.uploadsModule == nil || m.uploadsModule.Service() == nil {
		return fmt.Errorf("uploads module not started")
	}
	m.coordinator = m.chatModule.Coordinator()
	m.history = m.chatModule.Membership()
	m.blobs = m.uploadsModule.Service()

	m.app = m.newApp()

	// Start server in goroutine with startup error detection
	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(":" + m.config.Port); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	m.logger.Info("HTTP server started", "port", m.config.Port, "corsOrigin", m.config.CORSOrigin)
	return nil
}

// Stop shuts down the Fiber HTTP server.
func (m *APIModule) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	m.logger.Info("Shutting down HTTP server")
	if err := m.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Health returns the health status.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	details := map[string]any{"port": m.config.Port}
	if m.hub != nil {
		details["connected_clients"] = m.hub.ClientCount()
	}
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: details,
	}
}

// newApp builds the Fiber app with middleware and routes.
func (m *APIModule) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "chat-relay",
		DisableStartupMessage: true,
		ErrorHandler:          m.errorHandler,
		BodyLimit:             int(m.config.MaxUploadSize) + 1024*1024,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Next:   websocket.IsWebSocketUpgrade,
		Format: "[api] ${status} ${method} ${path} ${latency}\n",
	}))
	if m.config.CORSOrigin != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     m.config.CORSOrigin,
			AllowMethods:     "GET,POST",
			AllowHeaders:     "Content-Type",
			AllowCredentials: true,
		}))
	}

	m.setupRoutes(app)
	return app
}

// errorHandler handles Fiber errors. Anything that is not a *fiber.Error is
// reported with a fixed message.
func (m *APIModule) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(ErrorResponse{Message: fe.Message})
	}

	m.logger.Error("Unhandled HTTP error", "method", c.Method(), "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).SendString("Something broke!")
}
