package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the status of a chat session
type SessionStatus string

const (
	SessionStatusActive   SessionStatus = "active"
	SessionStatusExpired  SessionStatus = "expired"
	SessionStatusArchived SessionStatus = "archived"
)

// MessageRole represents the role of a message sender
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// MessageSource records how a message entered the session
type MessageSource string

const (
	MessageSourceText      MessageSource = "text"
	MessageSourceVoiceCall MessageSource = "voice_call"
	MessageSourceVoiceClip MessageSource = "voice_clip"
)

// Message represents a single message within a session
type Message struct {
	ID         string        `json:"id" bson:"id"`
	Timestamp  time.Time     `json:"timestamp" bson:"timestamp"`
	Role       MessageRole   `json:"role" bson:"role"`
	Content    string        `json:"content" bson:"content"`
	Source     MessageSource `json:"source" bson:"source"`
	DurationMs int64         `json:"duration_ms,omitempty" bson:"duration_ms,omitempty"`
}

// SessionMetadata contains session-level metadata
type SessionMetadata struct {
	Language    string            `json:"language" bson:"language"`
	Preferences map[string]string `json:"preferences" bson:"preferences"`
}

// Session represents a conversation session between a user and a personality
type Session struct {
	ID            string          `json:"id" bson:"_id"`
	UserID        string          `json:"user_id" bson:"user_id"`
	PersonalityID string          `json:"personality_id" bson:"personality_id"`
	Title         string          `json:"title" bson:"title"`
	CreatedAt     time.Time       `json:"created_at" bson:"created_at"`
	LastActiveAt  time.Time       `json:"last_active_at" bson:"last_active_at"`
	LastMessageAt *time.Time      `json:"last_message_at" bson:"last_message_at"`
	ExpiresAt     time.Time       `json:"expires_at" bson:"expires_at"`
	Status        SessionStatus   `json:"status" bson:"status"`
	Messages      []Message       `json:"messages" bson:"messages"`
	Metadata      SessionMetadata `json:"metadata" bson:"metadata"`
}

// NewSession creates a new session for a user and personality
func NewSession(userID, personalityID string) *Session {
	now := time.Now()
	return &Session{
		ID:            uuid.NewString(),
		UserID:        userID,
		PersonalityID: personalityID,
		CreatedAt:     now,
		LastActiveAt:  now,
		ExpiresAt:     now.Add(24 * time.Hour),
		Status:        SessionStatusActive,
		Messages:      make([]Message, 0),
		Metadata: SessionMetadata{
			Language:    "en-US",
			Preferences: make(map[string]string),
		},
	}
}

// AppendMessage adds a new message to the session. Messages are append-only:
// existing entries are never reordered or replaced.
func (s *Session) AppendMessage(role MessageRole, content string, source MessageSource, durationMs int64) Message {
	now := time.Now()
	message := Message{
		ID:         uuid.NewString(),
		Timestamp:  now,
		Role:       role,
		Content:    content,
		Source:     source,
		DurationMs: durationMs,
	}

	s.Messages = append(s.Messages, message)
	s.LastMessageAt = &now
	s.UpdateLastActive()
	return message
}

// UpdateLastActive updates the last active timestamp and extends expiration
func (s *Session) UpdateLastActive() {
	s.LastActiveAt = time.Now()
	s.ExpiresAt = s.LastActiveAt.Add(24 * time.Hour)
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt) || s.Status != SessionStatusActive
}

// Untitled reports whether the session still needs a generated title
func (s *Session) Untitled() bool {
	return s.Title == ""
}

// Archive marks the session as archived
func (s *Session) Archive() {
	s.Status = SessionStatusArchived
	s.UpdateLastActive()
}

// Expire marks the session as expired
func (s *Session) Expire() {
	s.Status = SessionStatusExpired
}

// Transcript returns the conversation messages in order
func (s *Session) Transcript() []Message {
	return s.Messages
}

// Validate validates the session data
func (s *Session) Validate() error {
	if s.UserID == "" {
		return errors.New("user_id is required")
	}

	if s.Status != SessionStatusActive && s.Status != SessionStatusExpired && s.Status != SessionStatusArchived {
		return errors.New("invalid session status")
	}

	return nil
}
