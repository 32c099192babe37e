package janitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/zinohome/cozychat-voice/domain/repositories"
)

const (
	cleanupInterval = 30 * time.Minute
	initialDelay    = 1 * time.Minute
	cleanupTimeout  = 5 * time.Minute
)

// SessionJanitor expires idle sessions in the background
type SessionJanitor struct {
	sessionRepo repositories.SessionRepository
	logger      *zap.Logger
	stopChan    chan struct{}
}

// NewSessionJanitor creates a new session janitor
func NewSessionJanitor(sessionRepo repositories.SessionRepository, logger *zap.Logger) *SessionJanitor {
	return &SessionJanitor{
		sessionRepo: sessionRepo,
		logger:      logger,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *SessionJanitor) Start() {
	go s.cleanupLoop()
	s.logger.Info("Session janitor started")
}

// Stop gracefully stops the janitor
func (s *SessionJanitor) Stop() {
	close(s.stopChan)
	s.logger.Info("Session janitor stopped")
}

func (s *SessionJanitor) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	// Run initial cleanup shortly after startup
	initialTimer := time.NewTimer(initialDelay)
	defer initialTimer.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-initialTimer.C:
			s.runCleanup()
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

func (s *SessionJanitor) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if err := s.sessionRepo.ExpireSessions(ctx); err != nil {
		s.logger.Error("Failed to expire sessions", zap.Error(err))
		return
	}
	s.logger.Info("Session cleanup completed")
}
