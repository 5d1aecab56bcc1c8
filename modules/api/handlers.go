package api

import (
	"errors"
	"io"

	"github.com/example/chat-relay/modules/uploads"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes(app *fiber.App) {
	app.Get("/health", m.healthHandler)

	app.Post("/user", m.createUser)
	app.Get("/messages/:room", m.getMessages)
	app.Post("/upload", m.uploadFile)
	app.Get("/uploads/:name", m.serveUpload)

	// WebSocket endpoint
	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if c.Query("username") == "" {
			return fiber.NewError(fiber.StatusBadRequest, "username is required")
		}
		return c.Next()
	})
	app.Get("/ws", websocket.New(m.handleWebSocket))
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	details := map[string]any{"module": "api"}
	if m.hub != nil {
		details["connected_clients"] = m.hub.ClientCount()
	}
	if m.chatModule != nil && m.chatModule.Presence() != nil {
		details["online_users"] = m.chatModule.Presence().Len()
	}
	return c.JSON(HealthResponse{
		Status:  "healthy",
		Details: details,
	})
}

// createUser handles POST /user.
func (m *APIModule) createUser(c *fiber.Ctx) error {
	var req CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "Invalid request body",
		})
	}

	if err := m.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "Username is required (max 50 bytes of UTF-8)",
		})
	}

	user, err := m.directory.ResolveOrCreate(c.UserContext(), req.Username)
	if err != nil {
		m.logger.Error("Failed to resolve user", "username", req.Username, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Message: err.Error(),
		})
	}

	return c.JSON(UserResponse{Success: true, User: user})
}

// getMessages handles GET /messages/:room.
func (m *APIModule) getMessages(c *fiber.Ctx) error {
	room := c.Params("room")

	messages, err := m.history.History(c.UserContext(), room)
	if err != nil {
		m.logger.Error("Failed to load messages", "room", room, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Message: err.Error(),
		})
	}

	return c.JSON(messages)
}

// uploadFile handles POST /upload.
func (m *APIModule) uploadFile(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("No file uploaded.")
	}

	if header.Size > m.config.MaxUploadSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(ErrorResponse{
			Message: "File too large",
		})
	}

	file, err := header.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return c.Status(fiber.StatusBadRequest).SendString("No file uploaded.")
	}

	blob, err := m.blobs.Store(c.UserContext(), header.Filename, data)
	if err != nil {
		m.logger.Error("Failed to store upload", "filename", header.Filename, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Message: err.Error(),
		})
	}

	m.logger.Info("File uploaded", "path", blob.Path, "size", blob.Size, "contentType", blob.ContentType)
	return c.JSON(UploadResponse{FilePath: blob.Path})
}

// serveUpload handles GET /uploads/:name.
func (m *APIModule) serveUpload(c *fiber.Ctx) error {
	data, blob, err := m.blobs.Open(c.UserContext(), c.Params("name"))
	if err != nil {
		if errors.Is(err, uploads.ErrBlobNotFound) || errors.Is(err, uploads.ErrInvalidName) {
			return fiber.ErrNotFound
		}
		return err
	}

	c.Set(fiber.HeaderContentType, blob.ContentType)
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	return c.Send(data)
}
