package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/zinohome/cozychat-voice/domain/entities"
	"github.com/zinohome/cozychat-voice/domain/repositories"
)

// MockTitler is a placeholder implementation for session titling
type MockTitler struct{}

// NewMockTitler creates a new mock titler
func NewMockTitler() repositories.SessionTitler {
	return &MockTitler{}
}

// GenerateTitle implements repositories.SessionTitler. The title is the
// first few words of the first user message.
func (m *MockTitler) GenerateTitle(ctx context.Context, transcript []entities.Message) (string, error) {
	if len(transcript) == 0 {
		return "", fmt.Errorf("transcript is empty")
	}

	for _, message := range transcript {
		if message.Role != entities.MessageRoleUser || message.Content == "" {
			continue
		}
		words := strings.Fields(message.Content)
		if len(words) > 5 {
			words = words[:5]
		}
		return strings.Join(words, " "), nil
	}
	return "New conversation", nil
}
