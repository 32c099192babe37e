package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/zinohome/cozychat-voice/domain/entities"
	"github.com/zinohome/cozychat-voice/domain/repositories"
	"github.com/zinohome/cozychat-voice/internal/audio"
	"github.com/zinohome/cozychat-voice/internal/transport"
	"github.com/zinohome/cozychat-voice/internal/viz"
)

var (
	// ErrCallActive is returned when a call is started while another is live.
	ErrCallActive = errors.New("voice call already in progress")

	// ErrNoActiveCall is returned when ending without a live call.
	ErrNoActiveCall = errors.New("no voice call in progress")
)

// RealtimeCredentials is what the gateway hands a client for one call.
type RealtimeCredentials struct {
	BaseURL      string
	ClientSecret string
}

// CredentialIssuer obtains short-lived realtime credentials, typically
// from the CozyChat gateway.
type CredentialIssuer interface {
	IssueRealtimeCredentials(ctx context.Context) (RealtimeCredentials, error)
}

// TransportFactory builds the transport a call runs over.
type TransportFactory func(cfg transport.Config) transport.Transport

// CaptureFactory opens the microphone device for a call.
type CaptureFactory func() audio.Capture

// SinkFactory opens the playback device for a call.
type SinkFactory func() audio.Sink

// activeCall bundles everything owned by one live call.
type activeCall struct {
	session    *entities.Session
	transport  transport.Transport
	tee        *audio.Tee
	localPipe  *viz.Pipeline
	remotePipe *viz.Pipeline
	cancel     context.CancelFunc
}

// VoiceCallService runs realtime voice calls: it issues credentials,
// connects the transport, streams the microphone out, plays the agent's
// audio back, and persists both sides of the transcript as they arrive.
// At most one call is live at a time.
type VoiceCallService struct {
	sessions      repositories.SessionRepository
	personalities repositories.PersonalityRepository
	titler        repositories.SessionTitler
	issuer        CredentialIssuer

	newTransport TransportFactory
	newCapture   CaptureFactory
	newSink      SinkFactory

	logger *zap.Logger

	mu   sync.Mutex
	call *activeCall

	// transcriptMu guards the active session's messages, which are
	// appended from the transport's read pump while callers read and
	// persist them.
	transcriptMu sync.Mutex
}

func NewVoiceCallService(
	sessions repositories.SessionRepository,
	personalities repositories.PersonalityRepository,
	titler repositories.SessionTitler,
	issuer CredentialIssuer,
	newTransport TransportFactory,
	newCapture CaptureFactory,
	newSink SinkFactory,
	logger *zap.Logger,
) *VoiceCallService {
	return &VoiceCallService{
		sessions:      sessions,
		personalities: personalities,
		titler:        titler,
		issuer:        issuer,
		newTransport:  newTransport,
		newCapture:    newCapture,
		newSink:       newSink,
		logger:        logger,
	}
}

// StartCall begins a realtime call for the user against a personality.
// The user's current session is resumed when one is live, otherwise a new
// one is created. Starting while another call is live fails with
// ErrCallActive and leaves the live call untouched.
func (s *VoiceCallService) StartCall(ctx context.Context, userID, personalityID string) (*entities.Session, error) {
	s.mu.Lock()
	if s.call != nil {
		s.mu.Unlock()
		return nil, ErrCallActive
	}
	// Hold the slot while setting up so a concurrent start fails fast.
	s.call = &activeCall{}
	s.mu.Unlock()

	session, err := s.resumeOrCreateSession(ctx, userID, personalityID)
	if err != nil {
		s.releaseSlot()
		return nil, err
	}

	personality, err := s.personalities.GetByID(ctx, personalityID)
	if err != nil {
		s.releaseSlot()
		return nil, fmt.Errorf("load personality: %w", err)
	}

	creds, err := s.issuer.IssueRealtimeCredentials(ctx)
	if err != nil {
		s.releaseSlot()
		return nil, fmt.Errorf("issue realtime credentials: %w", err)
	}

	// The microphone feeds both the transport and the local visualizer.
	tee := audio.NewTee(s.newCapture())
	localFrames := tee.Branch()
	micBranch := tee.CaptureBranch()

	localPipe := viz.NewPipeline(viz.NewAnalyser(), viz.DefaultPollInterval)
	remotePipe := viz.NewPipeline(viz.NewAnalyser(), viz.DefaultPollInterval)

	tr := s.newTransport(transport.Config{
		BaseURL:    creds.BaseURL,
		Credential: creds.ClientSecret,
		Capture:    micBranch,
		Sink:       s.newSink(),
	})

	callCtx, cancel := context.WithCancel(context.Background())

	tr.On(transport.EventMessage, func(payload interface{}) {
		decoded, ok := payload.(map[string]interface{})
		if !ok {
			return
		}
		s.handleServerEvent(callCtx, session, decoded)
	})
	tr.On(transport.EventAudio, func(payload interface{}) {
		pcm, ok := payload.([]byte)
		if !ok {
			return
		}
		remotePipe.Push(audio.BytesToPCM16(pcm))
	})
	tr.On(transport.EventError, func(payload interface{}) {
		if err, ok := payload.(error); ok {
			s.logger.Error("Call transport failed", zap.Error(err))
		}
	})

	if err := tee.Start(ctx); err != nil {
		cancel()
		s.releaseSlot()
		return nil, fmt.Errorf("open microphone: %w", err)
	}

	if err := tr.Connect(ctx); err != nil {
		tee.Stop()
		cancel()
		s.releaseSlot()
		return nil, err
	}

	localPipe.Start(callCtx)
	remotePipe.Start(callCtx)
	go func() {
		for frame := range localFrames {
			localPipe.Push(frame)
		}
	}()

	tr.Send(map[string]interface{}{
		"type": "session.update",
		"session": map[string]interface{}{
			"voice":        personality.Voice,
			"instructions": personality.SystemPrompt,
			"input_audio_transcription": map[string]interface{}{
				"model": "whisper-1",
			},
		},
	})

	s.transcriptMu.Lock()
	session.UpdateLastActive()
	if err := s.sessions.Update(ctx, session); err != nil {
		s.logger.Warn("Failed to touch session on call start",
			zap.String("sessionID", session.ID), zap.Error(err))
	}
	s.transcriptMu.Unlock()

	s.mu.Lock()
	s.call = &activeCall{
		session:    session,
		transport:  tr,
		tee:        tee,
		localPipe:  localPipe,
		remotePipe: remotePipe,
		cancel:     cancel,
	}
	s.mu.Unlock()

	s.logger.Info("Voice call started",
		zap.String("sessionID", session.ID),
		zap.String("personalityID", personalityID))
	return session, nil
}

// EndCall hangs up the live call, releases its media, and titles the
// session if it does not have a name yet.
func (s *VoiceCallService) EndCall(ctx context.Context) error {
	s.mu.Lock()
	call := s.call
	if call == nil || call.transport == nil {
		// A nil transport means a concurrent StartCall still holds the
		// slot; leave its reservation in place.
		s.mu.Unlock()
		return ErrNoActiveCall
	}
	s.call = nil
	s.mu.Unlock()

	call.transport.Disconnect()
	call.tee.Stop()
	call.localPipe.Stop()
	call.remotePipe.Stop()
	call.cancel()

	session := call.session
	s.transcriptMu.Lock()
	defer s.transcriptMu.Unlock()
	if session.Untitled() && len(session.Messages) > 0 {
		title, err := s.titler.GenerateTitle(ctx, session.Transcript())
		if err != nil {
			s.logger.Warn("Session titling failed", zap.Error(err))
		} else {
			session.Title = title
		}
	}
	session.UpdateLastActive()
	if err := s.sessions.Update(ctx, session); err != nil {
		return fmt.Errorf("persist session on hangup: %w", err)
	}

	s.logger.Info("Voice call ended", zap.String("sessionID", session.ID))
	return nil
}

// Active reports whether a call is currently live.
func (s *VoiceCallService) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.call != nil && s.call.transport != nil
}

// LocalVisualizer exposes the microphone analysis pipeline of the live
// call, nil when idle.
func (s *VoiceCallService) LocalVisualizer() *viz.Pipeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.call == nil {
		return nil
	}
	return s.call.localPipe
}

// RemoteVisualizer exposes the agent-audio analysis pipeline of the live
// call, nil when idle.
func (s *VoiceCallService) RemoteVisualizer() *viz.Pipeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.call == nil {
		return nil
	}
	return s.call.remotePipe
}

func (s *VoiceCallService) resumeOrCreateSession(ctx context.Context, userID, personalityID string) (*entities.Session, error) {
	session, err := s.sessions.GetLastByUserID(ctx, userID)
	if err == nil && session != nil &&
		session.PersonalityID == personalityID &&
		!session.IsExpired() && session.Status == entities.SessionStatusActive {
		return session, nil
	}

	session = entities.NewSession(userID, personalityID)
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// handleServerEvent turns transcript events from the agent into persisted
// session messages. Everything else is ignored.
func (s *VoiceCallService) handleServerEvent(ctx context.Context, session *entities.Session, event map[string]interface{}) {
	eventType, _ := event["type"].(string)

	s.transcriptMu.Lock()
	defer s.transcriptMu.Unlock()

	switch eventType {
	case "conversation.item.input_audio_transcription.completed":
		transcript, _ := event["transcript"].(string)
		if transcript == "" {
			return
		}
		session.AppendMessage(entities.MessageRoleUser, transcript, entities.MessageSourceVoiceCall, 0)
	case "response.audio_transcript.done":
		transcript, _ := event["transcript"].(string)
		if transcript == "" {
			return
		}
		session.AppendMessage(entities.MessageRoleAssistant, transcript, entities.MessageSourceVoiceCall, 0)
	case "error":
		s.logger.Warn("Server event error", zap.Any("event", event))
		return
	default:
		return
	}

	if err := s.sessions.Update(ctx, session); err != nil {
		s.logger.Error("Failed to persist transcript message",
			zap.String("sessionID", session.ID), zap.Error(err))
	}
}

func (s *VoiceCallService) releaseSlot() {
	s.mu.Lock()
	s.call = nil
	s.mu.Unlock()
}
