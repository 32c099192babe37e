package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/zinohome/cozychat-voice/domain/entities"
	"github.com/zinohome/cozychat-voice/domain/repositories"
	"github.com/zinohome/cozychat-voice/internal/audio"
)

// ErrNothingToRead is returned when read-aloud is asked for an empty message.
var ErrNothingToRead = errors.New("message has no content to read")

// ReadAloudService synthesizes a chat message into speech and streams it
// to a playback sink in the personality's voice.
type ReadAloudService struct {
	sessions      repositories.SessionRepository
	personalities repositories.PersonalityRepository
	tts           repositories.TextToSpeech
	logger        *zap.Logger
}

func NewReadAloudService(
	sessions repositories.SessionRepository,
	personalities repositories.PersonalityRepository,
	tts repositories.TextToSpeech,
	logger *zap.Logger,
) *ReadAloudService {
	return &ReadAloudService{
		sessions:      sessions,
		personalities: personalities,
		tts:           tts,
		logger:        logger,
	}
}

// ReadMessage synthesizes one message from a session and plays it on the
// sink. It blocks until synthesis finishes or the context is canceled.
func (s *ReadAloudService) ReadMessage(ctx context.Context, sessionID, messageID string, sink audio.Sink) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	var message *entities.Message
	for i := range session.Messages {
		if session.Messages[i].ID == messageID {
			message = &session.Messages[i]
			break
		}
	}
	if message == nil {
		return fmt.Errorf("message %s not found in session %s", messageID, sessionID)
	}
	if message.Content == "" {
		return ErrNothingToRead
	}

	voice := ""
	if personality, err := s.personalities.GetByID(ctx, session.PersonalityID); err == nil {
		voice = personality.Voice
	}

	return s.ReadText(ctx, message.Content, voice, sink)
}

// ReadText synthesizes arbitrary text and plays it on the sink.
func (s *ReadAloudService) ReadText(ctx context.Context, text, voice string, sink audio.Sink) error {
	if text == "" {
		return ErrNothingToRead
	}

	chunks, err := s.tts.ConvertTextToSpeech(ctx, text, voice)
	if err != nil {
		return fmt.Errorf("text-to-speech failed: %w", err)
	}

	played := 0
	for {
		select {
		case <-ctx.Done():
			sink.Flush()
			return ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				s.logger.Debug("Read-aloud finished", zap.Int("chunks", played))
				return nil
			}
			if err := sink.Play(chunk); err != nil {
				return fmt.Errorf("playback failed: %w", err)
			}
			played++
		}
	}
}
