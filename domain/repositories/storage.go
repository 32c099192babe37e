package repositories

import (
	"context"

	"github.com/zinohome/cozychat-voice/domain/entities"
)

// SessionRepository defines data access methods for chat sessions
type SessionRepository interface {
	Create(ctx context.Context, session *entities.Session) error
	GetByID(ctx context.Context, id string) (*entities.Session, error)
	// GetLastByUserID returns the most recently active session for a user
	GetLastByUserID(ctx context.Context, userID string) (*entities.Session, error)
	ListByUserID(ctx context.Context, userID string, limit int) ([]*entities.Session, error)
	Update(ctx context.Context, session *entities.Session) error
	Delete(ctx context.Context, id string) error
	// ExpireSessions marks sessions past their expiry as expired
	ExpireSessions(ctx context.Context) error
}

// PersonalityRepository defines data access methods for personalities
type PersonalityRepository interface {
	Create(ctx context.Context, personality *entities.Personality) error
	GetByID(ctx context.Context, id string) (*entities.Personality, error)
	List(ctx context.Context) ([]*entities.Personality, error)
}

// UserRepository defines data access methods for users
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id string) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
	Update(ctx context.Context, user *entities.User) error
	Delete(ctx context.Context, id string) error
}
