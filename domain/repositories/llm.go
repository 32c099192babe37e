package repositories

import (
	"context"

	"github.com/zinohome/cozychat-voice/domain/entities"
)

// SessionTitler abstracts LLM-based generation of short session titles
// from a conversation transcript.
type SessionTitler interface {
	GenerateTitle(ctx context.Context, transcript []entities.Message) (string, error)
}
