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

// ErrEmptyClip is returned when a recorded clip carries no audio.
var ErrEmptyClip = errors.New("voice clip is empty")

// VoiceClipService turns recorded voice clips into transcribed session
// messages. Unlike a call, a clip is a one-shot recording: record, stop,
// transcribe, append.
type VoiceClipService struct {
	sessions repositories.SessionRepository
	stt      repositories.SpeechToText
	logger   *zap.Logger
}

func NewVoiceClipService(
	sessions repositories.SessionRepository,
	stt repositories.SpeechToText,
	logger *zap.Logger,
) *VoiceClipService {
	return &VoiceClipService{sessions: sessions, stt: stt, logger: logger}
}

// SendClip transcribes a recorded clip and appends the result to the
// session as a user message carrying the clip's duration.
func (s *VoiceClipService) SendClip(ctx context.Context, sessionID string, clip *audio.Clip) (*entities.Message, error) {
	if clip == nil || len(clip.WAV) == 0 || clip.Duration == 0 {
		return nil, ErrEmptyClip
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	transcript, err := s.stt.TranscribeAudio(ctx, clip.WAV, repositories.AudioConfig{
		SampleRate: clip.SampleRate,
		Encoding:   "wav",
		Language:   "en-US",
	})
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}
	if transcript == "" {
		return nil, ErrEmptyClip
	}

	message := session.AppendMessage(
		entities.MessageRoleUser,
		transcript,
		entities.MessageSourceVoiceClip,
		clip.Duration.Milliseconds(),
	)
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("persist clip message: %w", err)
	}

	s.logger.Info("Voice clip transcribed",
		zap.String("sessionID", sessionID),
		zap.Duration("duration", clip.Duration))
	return &message, nil
}
