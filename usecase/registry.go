package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aiandbotsgalore/bigsnuggles-voice/domain/entities"
	"github.com/aiandbotsgalore/bigsnuggles-voice/domain/repositories"
)

// Registry tracks every live voice session handle, keyed by session
// identifier. It owns handle lifecycle: created on Register (or revived from
// the store on Lookup), destroyed on Teardown. Implements
// repositories.SessionRegistry.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*LiveSession

	store  repositories.VoiceSessionStore
	stt    repositories.SpeechToText
	tts    repositories.TextToSpeech
	llm    repositories.LargeLanguageModel
	logger *zap.Logger
}

// NewRegistry creates an empty session registry. store may be nil when
// running without persistence (tests, local development).
func NewRegistry(
	store repositories.VoiceSessionStore,
	stt repositories.SpeechToText,
	tts repositories.TextToSpeech,
	llm repositories.LargeLanguageModel,
	logger *zap.Logger,
) *Registry {
	return &Registry{
		sessions: make(map[string]*LiveSession),
		store:    store,
		stt:      stt,
		tts:      tts,
		llm:      llm,
		logger:   logger,
	}
}

// Register creates a live handle for an already-persisted session.
func (r *Registry) Register(ctx context.Context, session *entities.VoiceSession) (repositories.SessionHandle, error) {
	if err := session.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[session.ID]; ok {
		return existing, nil
	}

	live := NewLiveSession(session, r.store, r.stt, r.tts, r.llm, r.logger)
	r.sessions[session.ID] = live

	r.logger.Info("Voice session registered",
		zap.String("sessionID", session.ID),
		zap.String("ownerUserID", session.OwnerUserID),
		zap.String("personalityMode", string(session.PersonalityMode)))

	return live, nil
}

// Lookup resolves a session identifier to its live handle. A session that is
// persisted but not live (server restart) is revived from the store.
func (r *Registry) Lookup(sessionID string) (repositories.SessionHandle, error) {
	r.mu.RLock()
	live, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if ok {
		return live, nil
	}

	if r.store == nil {
		return nil, repositories.ErrSessionNotFound
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	session, err := r.store.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || !session.IsActive() {
		return nil, repositories.ErrSessionNotFound
	}

	return r.Register(ctx, session)
}

// Teardown stops the handle, persists the final state and removes it.
func (r *Registry) Teardown(ctx context.Context, sessionID string) (*repositories.TeardownSummary, error) {
	r.mu.Lock()
	live, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()

	if !ok {
		return nil, repositories.ErrSessionNotFound
	}

	summary, err := live.Close(ctx)
	if err != nil {
		return nil, err
	}

	r.logger.Info("Voice session torn down",
		zap.String("sessionID", sessionID),
		zap.Int("messageCount", summary.MessageCount),
		zap.Int64("durationMs", summary.DurationMs))

	return summary, nil
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// idleSessions returns the IDs of sessions with no input since the cutoff.
func (r *Registry) idleSessions(cutoff time.Time) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, live := range r.sessions {
		if live.LastActivity().Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}
