package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/zinohome/cozychat-voice/domain/entities"
	"github.com/zinohome/cozychat-voice/domain/repositories"
	"github.com/zinohome/cozychat-voice/internal/audio"
	"github.com/zinohome/cozychat-voice/internal/transport"
)

var errNotFound = errors.New("not found")

type memorySessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*entities.Session
	updates  int
}

func newMemorySessionRepo() *memorySessionRepo {
	return &memorySessionRepo{sessions: make(map[string]*entities.Session)}
}

func (r *memorySessionRepo) Create(ctx context.Context, s *entities.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return nil
}

func (r *memorySessionRepo) GetByID(ctx context.Context, id string) (*entities.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, errNotFound
	}
	return s, nil
}

func (r *memorySessionRepo) GetLastByUserID(ctx context.Context, userID string) (*entities.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var last *entities.Session
	for _, s := range r.sessions {
		if s.UserID != userID {
			continue
		}
		if last == nil || s.LastActiveAt.After(last.LastActiveAt) {
			last = s
		}
	}
	if last == nil {
		return nil, errNotFound
	}
	return last, nil
}

func (r *memorySessionRepo) ListByUserID(ctx context.Context, userID string, limit int) ([]*entities.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.Session
	for _, s := range r.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memorySessionRepo) Update(ctx context.Context, s *entities.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; !ok {
		return errNotFound
	}
	r.sessions[s.ID] = s
	r.updates++
	return nil
}

func (r *memorySessionRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *memorySessionRepo) ExpireSessions(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.IsExpired() {
			s.Expire()
		}
	}
	return nil
}

func (r *memorySessionRepo) updateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates
}

type memoryPersonalityRepo struct {
	personalities map[string]*entities.Personality
}

func (r *memoryPersonalityRepo) Create(ctx context.Context, p *entities.Personality) error {
	r.personalities[p.ID] = p
	return nil
}

func (r *memoryPersonalityRepo) GetByID(ctx context.Context, id string) (*entities.Personality, error) {
	p, ok := r.personalities[id]
	if !ok {
		return nil, errNotFound
	}
	return p, nil
}

func (r *memoryPersonalityRepo) List(ctx context.Context) ([]*entities.Personality, error) {
	var out []*entities.Personality
	for _, p := range r.personalities {
		out = append(out, p)
	}
	return out, nil
}

type stubTitler struct {
	title string
	err   error
	calls int
}

func (s *stubTitler) GenerateTitle(ctx context.Context, transcript []entities.Message) (string, error) {
	s.calls++
	return s.title, s.err
}

type stubIssuer struct {
	creds RealtimeCredentials
	err   error
}

func (s *stubIssuer) IssueRealtimeCredentials(ctx context.Context) (RealtimeCredentials, error) {
	return s.creds, s.err
}

type stubSTT struct {
	transcript string
	err        error
	lastConfig repositories.AudioConfig
}

func (s *stubSTT) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	s.lastConfig = config
	return s.transcript, s.err
}

type stubTTS struct {
	chunks [][]byte
	err    error
}

func (s *stubTTS) ConvertTextToSpeech(ctx context.Context, text, voice string) (<-chan []byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(chan []byte, len(s.chunks))
	for _, c := range s.chunks {
		out <- c
	}
	close(out)
	return out, nil
}

// stubTransport records interactions and lets tests inject server events.
type stubTransport struct {
	mu          sync.Mutex
	handlers    map[string][]transport.Handler
	nextID      transport.HandlerID
	sent        []interface{}
	connectErr  error
	connected   bool
	disconnects int
	capture     audio.Capture
}

func newStubTransport() *stubTransport {
	return &stubTransport{handlers: make(map[string][]transport.Handler)}
}

func (t *stubTransport) Connect(ctx context.Context) error {
	if t.connectErr != nil {
		return t.connectErr
	}
	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()
	return nil
}

func (t *stubTransport) Disconnect() {
	t.mu.Lock()
	t.connected = false
	t.disconnects++
	t.mu.Unlock()
}

func (t *stubTransport) On(event string, h transport.Handler) transport.HandlerID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	t.handlers[event] = append(t.handlers[event], h)
	return t.nextID
}

func (t *stubTransport) Off(event string, id transport.HandlerID) {}

func (t *stubTransport) Send(payload interface{}) {
	t.mu.Lock()
	t.sent = append(t.sent, payload)
	t.mu.Unlock()
}

func (t *stubTransport) LocalStream() audio.Capture { return t.capture }

func (t *stubTransport) RemoteSink() audio.Sink { return nil }

func (t *stubTransport) Status() transport.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connected {
		return transport.StatusConnected
	}
	return transport.StatusDisconnected
}

// emit delivers a server event to registered handlers.
func (t *stubTransport) emit(event string, payload interface{}) {
	t.mu.Lock()
	hs := append([]transport.Handler(nil), t.handlers[event]...)
	t.mu.Unlock()
	for _, h := range hs {
		h(payload)
	}
}

func (t *stubTransport) sentPayloads() []interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]interface{}(nil), t.sent...)
}
