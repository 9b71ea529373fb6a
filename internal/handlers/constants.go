package handlers

// Common error message constants shared across handlers
const (
	ErrMsgInvalidRequestBody = "Invalid request body"
	ErrMsgUnauthorized       = "Unauthorized"
	ErrMsgInvalidSessionID   = "Invalid session ID"
	ErrMsgSessionNotFound    = "Session not found"
)

// API path constants
const (
	AuthAPIBasePath = "/api/v1/auth"
)
