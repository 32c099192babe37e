package adapters

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zinohome/cozychat-voice/domain/entities"
)

// MemoryUserRepository is an in-memory implementation of UserRepository,
// used when running without MongoDB.
type MemoryUserRepository struct {
	mu     sync.RWMutex
	users  map[string]*entities.User // id -> user mapping
	emails map[string]*entities.User // email -> user mapping
}

// NewMemoryUserRepository creates a new in-memory user repository
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users:  make(map[string]*entities.User),
		emails: make(map[string]*entities.User),
	}
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *entities.User) error {
	if user == nil {
		return errors.New("user cannot be nil")
	}
	if err := user.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.emails[user.Email]; exists {
		return errors.New("email already registered")
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	r.users[user.ID] = user
	r.emails[user.Email] = user
	return nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	return user, nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.emails[email]
	if !ok {
		return nil, errors.New("user not found")
	}
	return user, nil
}

func (r *MemoryUserRepository) Update(ctx context.Context, user *entities.User) error {
	if user == nil {
		return errors.New("user cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[user.ID]
	if !ok {
		return errors.New("user not found")
	}
	if existing.Email != user.Email {
		delete(r.emails, existing.Email)
		r.emails[user.Email] = user
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = user
	return nil
}

func (r *MemoryUserRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return errors.New("user not found")
	}
	delete(r.users, id)
	delete(r.emails, user.Email)
	return nil
}

// MemoryPersonalityRepository is an in-memory implementation of
// PersonalityRepository, seeded with the built-in personas.
type MemoryPersonalityRepository struct {
	mu            sync.RWMutex
	personalities map[string]*entities.Personality
}

// NewMemoryPersonalityRepository creates an in-memory personality
// repository pre-loaded with the default personas.
func NewMemoryPersonalityRepository() *MemoryPersonalityRepository {
	repo := &MemoryPersonalityRepository{
		personalities: make(map[string]*entities.Personality),
	}
	for _, p := range defaultPersonalities() {
		repo.personalities[p.ID] = p
	}
	return repo
}

func (r *MemoryPersonalityRepository) Create(ctx context.Context, personality *entities.Personality) error {
	if personality == nil {
		return errors.New("personality cannot be nil")
	}
	if err := personality.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if personality.ID == "" {
		personality.ID = uuid.New().String()
	}
	now := time.Now()
	personality.CreatedAt = now
	personality.UpdatedAt = now
	r.personalities[personality.ID] = personality
	return nil
}

func (r *MemoryPersonalityRepository) GetByID(ctx context.Context, id string) (*entities.Personality, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	personality, ok := r.personalities[id]
	if !ok {
		return nil, errors.New("personality not found")
	}
	return personality, nil
}

func (r *MemoryPersonalityRepository) List(ctx context.Context) ([]*entities.Personality, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entities.Personality, 0, len(r.personalities))
	for _, p := range r.personalities {
		out = append(out, p)
	}
	return out, nil
}

func defaultPersonalities() []*entities.Personality {
	now := time.Now()
	return []*entities.Personality{
		{
			ID:           "luna",
			Name:         "Luna",
			Description:  "Warm, patient listener for winding down the day",
			Voice:        "shimmer",
			SystemPrompt: "You are Luna, a warm and patient companion. Keep replies short, gentle, and conversational.",
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		{
			ID:           "miso",
			Name:         "Miso",
			Description:  "Playful and curious, always up for a tangent",
			Voice:        "alloy",
			SystemPrompt: "You are Miso, playful and endlessly curious. Ask questions, make small jokes, keep it light.",
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		{
			ID:           "sage",
			Name:         "Sage",
			Description:  "Calm and thoughtful, good for talking things through",
			Voice:        "echo",
			SystemPrompt: "You are Sage, calm and grounded. Help the user think out loud without rushing them.",
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
}
