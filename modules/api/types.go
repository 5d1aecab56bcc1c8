package api

import domain "github.com/example/chat-relay/domain/chat"

// CreateUserRequest is the API request to register a username.
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,username"`
}

// UserResponse is the API response for POST /user.
type UserResponse struct {
	Success bool         `json:"success"`
	User    *domain.User `json:"user"`
}

// UploadResponse is the API response for POST /upload.
type UploadResponse struct {
	FilePath string `json:"filePath"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
