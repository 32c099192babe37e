package api

import "time"

// RegisterRequest represents the request payload for user registration
type RegisterRequest struct {
	Email string `json:"email" validate:"required"`
	Name  string `json:"name" validate:"required"`
}

// LoginRequest represents the request payload for user login
type LoginRequest struct {
	Email string `json:"email" validate:"required"`
}

// AuthResponse represents the response payload for register and login
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
}

// RealtimeSessionRequest represents the request payload for minting an
// ephemeral realtime session
type RealtimeSessionRequest struct {
	PersonalityID string `json:"personality_id"`
}

// RealtimeSessionResponse carries the ephemeral credential a client uses
// to dial the realtime endpoint directly
type RealtimeSessionResponse struct {
	ClientSecret string    `json:"client_secret"`
	ExpiresAt    time.Time `json:"expires_at"`
	BaseURL      string    `json:"base_url"`
}

// VoiceClipResponse represents the transcribed message created from an
// uploaded voice clip
type VoiceClipResponse struct {
	MessageID  string `json:"message_id"`
	Content    string `json:"content"`
	DurationMs int64  `json:"duration_ms"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
