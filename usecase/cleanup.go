package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	cleanupInterval = 5 * time.Minute
	maxIdleDuration = 30 * time.Minute
)

// SessionCleanupService tears down voice sessions that have received no
// input for too long, so abandoned sessions do not accumulate in the
// registry.
type SessionCleanupService struct {
	registry *Registry
	logger   *zap.Logger
	stopChan chan struct{}
}

// NewSessionCleanupService creates a new session cleanup service
func NewSessionCleanupService(registry *Registry, logger *zap.Logger) *SessionCleanupService {
	return &SessionCleanupService{
		registry: registry,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *SessionCleanupService) Start() {
	go s.cleanupLoop()
	s.logger.Info("Session cleanup service started")
}

// Stop gracefully stops the cleanup service
func (s *SessionCleanupService) Stop() {
	close(s.stopChan)
	s.logger.Info("Session cleanup service stopped")
}

// cleanupLoop runs the cleanup process periodically
func (s *SessionCleanupService) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reapIdle()
		case <-s.stopChan:
			return
		}
	}
}

// reapIdle tears down every session idle past the cutoff
func (s *SessionCleanupService) reapIdle() {
	cutoff := time.Now().Add(-maxIdleDuration)
	for _, id := range s.registry.idleSessions(cutoff) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := s.registry.Teardown(ctx, id); err != nil {
			s.logger.Warn("Failed to reap idle session",
				zap.String("sessionID", id),
				zap.Error(err))
		} else {
			s.logger.Info("Reaped idle session", zap.String("sessionID", id))
		}
		cancel()
	}
}
