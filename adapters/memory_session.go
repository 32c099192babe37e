package adapters

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/zinohome/cozychat-voice/domain/entities"
)

// MemorySessionRepository is an in-memory implementation of
// SessionRepository, used when running without MongoDB.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*entities.Session
}

// NewMemorySessionRepository creates a new in-memory session repository
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[string]*entities.Session),
	}
}

func (r *MemorySessionRepository) Create(ctx context.Context, session *entities.Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}
	if err := session.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; exists {
		return errors.New("session already exists")
	}
	r.sessions[session.ID] = session
	return nil
}

func (r *MemorySessionRepository) GetByID(ctx context.Context, id string) (*entities.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, errors.New("session not found")
	}
	return session, nil
}

func (r *MemorySessionRepository) GetLastByUserID(ctx context.Context, userID string) (*entities.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var last *entities.Session
	for _, session := range r.sessions {
		if session.UserID != userID || session.Status != entities.SessionStatusActive {
			continue
		}
		if last == nil || session.LastActiveAt.After(last.LastActiveAt) {
			last = session
		}
	}
	return last, nil
}

func (r *MemorySessionRepository) ListByUserID(ctx context.Context, userID string, limit int) ([]*entities.Session, error) {
	if limit <= 0 {
		limit = 20
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.Session
	for _, session := range r.sessions {
		if session.UserID == userID {
			out = append(out, session)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActiveAt.After(out[j].LastActiveAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemorySessionRepository) Update(ctx context.Context, session *entities.Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.ID]; !ok {
		return errors.New("session not found")
	}
	r.sessions[session.ID] = session
	return nil
}

func (r *MemorySessionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return errors.New("session not found")
	}
	delete(r.sessions, id)
	return nil
}

func (r *MemorySessionRepository) ExpireSessions(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, session := range r.sessions {
		if session.Status == entities.SessionStatusActive && now.After(session.ExpiresAt) {
			session.Expire()
		}
	}
	return nil
}
