package memory

import (
	"context"
	"sync"

	"github.com/aiandbotsgalore/bigsnuggles-voice/domain/entities"
	"github.com/aiandbotsgalore/bigsnuggles-voice/domain/repositories"
)

// VoiceSessionStore is an in-memory store used when MongoDB is not
// configured, and in tests. Sessions vanish on restart.
type VoiceSessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*entities.VoiceSession
}

// NewVoiceSessionStore creates a new in-memory session store
func NewVoiceSessionStore() *VoiceSessionStore {
	return &VoiceSessionStore{
		sessions: make(map[string]*entities.VoiceSession),
	}
}

// Create implements repositories.VoiceSessionStore
func (s *VoiceSessionStore) Create(ctx context.Context, session *entities.VoiceSession) error {
	if err := session.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

// GetByID implements repositories.VoiceSessionStore
func (s *VoiceSessionStore) GetByID(ctx context.Context, id string) (*entities.VoiceSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, repositories.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

// Update implements repositories.VoiceSessionStore
func (s *VoiceSessionStore) Update(ctx context.Context, session *entities.VoiceSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		return repositories.ErrSessionNotFound
	}
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}
