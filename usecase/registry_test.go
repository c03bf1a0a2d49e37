package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/aiandbotsgalore/bigsnuggles-voice/domain/entities"
	"github.com/aiandbotsgalore/bigsnuggles-voice/domain/repositories"
)

// StubStore is a map-backed VoiceSessionStore for registry tests
type StubStore struct {
	sessions map[string]*entities.VoiceSession
	updates  int
}

func NewStubStore() *StubStore {
	return &StubStore{sessions: make(map[string]*entities.VoiceSession)}
}

func (s *StubStore) Create(ctx context.Context, session *entities.VoiceSession) error {
	s.sessions[session.ID] = session
	return nil
}

func (s *StubStore) GetByID(ctx context.Context, id string) (*entities.VoiceSession, error) {
	session, ok := s.sessions[id]
	if !ok {
		return nil, repositories.ErrSessionNotFound
	}
	return session, nil
}

func (s *StubStore) Update(ctx context.Context, session *entities.VoiceSession) error {
	s.sessions[session.ID] = session
	s.updates++
	return nil
}

func newTestRegistry(store repositories.VoiceSessionStore) *Registry {
	return NewRegistry(
		store,
		&StubSpeechToText{transcript: "hi"},
		&StubTextToSpeech{chunks: 1},
		&StubLLM{reply: "hello"},
		zap.NewNop(),
	)
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	registry := newTestRegistry(nil)
	session := entities.NewVoiceSession("alice", entities.PersonalityCuddly)

	handle, err := registry.Register(context.Background(), session)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if handle.ID() != session.ID {
		t.Errorf("Handle ID mismatch: %s != %s", handle.ID(), session.ID)
	}
	if registry.Count() != 1 {
		t.Errorf("Expected 1 live session, got %d", registry.Count())
	}

	found, err := registry.Lookup(session.ID)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if found != handle {
		t.Error("Lookup should return the registered handle")
	}
}

func TestRegistry_RegisterIsIdempotent(t *testing.T) {
	registry := newTestRegistry(nil)
	session := entities.NewVoiceSession("alice", entities.PersonalityZen)

	first, err := registry.Register(context.Background(), session)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	second, err := registry.Register(context.Background(), session)
	if err != nil {
		t.Fatalf("Second register failed: %v", err)
	}
	if first != second {
		t.Error("Registering the same session twice should return the same handle")
	}
	if registry.Count() != 1 {
		t.Errorf("Expected 1 live session, got %d", registry.Count())
	}
}

func TestRegistry_RegisterRejectsInvalidSession(t *testing.T) {
	registry := newTestRegistry(nil)
	session := entities.NewVoiceSession("", entities.PersonalityCuddly)

	if _, err := registry.Register(context.Background(), session); err == nil {
		t.Error("Expected error for a session without an owner")
	}
}

func TestRegistry_LookupUnknown(t *testing.T) {
	registry := newTestRegistry(nil)

	_, err := registry.Lookup("missing")
	if !errors.Is(err, repositories.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestRegistry_LookupRevivesFromStore(t *testing.T) {
	store := NewStubStore()
	registry := newTestRegistry(store)

	// Persisted but not live, as after a server restart
	session := entities.NewVoiceSession("alice", entities.PersonalityComedian)
	if err := store.Create(context.Background(), session); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	handle, err := registry.Lookup(session.ID)
	if err != nil {
		t.Fatalf("Lookup should revive the persisted session: %v", err)
	}
	if handle.OwnerUserID() != "alice" {
		t.Errorf("Revived handle owner mismatch: %s", handle.OwnerUserID())
	}
	if registry.Count() != 1 {
		t.Errorf("Expected revived session to be live, count %d", registry.Count())
	}
}

func TestRegistry_LookupIgnoresEndedSessions(t *testing.T) {
	store := NewStubStore()
	registry := newTestRegistry(store)

	session := entities.NewVoiceSession("alice", entities.PersonalityCuddly)
	session.End()
	if err := store.Create(context.Background(), session); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err := registry.Lookup(session.ID)
	if !errors.Is(err, repositories.ErrSessionNotFound) {
		t.Errorf("Ended sessions must not be revived, got %v", err)
	}
}

func TestRegistry_Teardown(t *testing.T) {
	store := NewStubStore()
	registry := newTestRegistry(store)

	session := entities.NewVoiceSession("alice", entities.PersonalityCuddly)
	if _, err := registry.Register(context.Background(), session); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	summary, err := registry.Teardown(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Teardown failed: %v", err)
	}
	if summary.SessionID != session.ID {
		t.Errorf("Summary session ID mismatch: %s", summary.SessionID)
	}
	if registry.Count() != 0 {
		t.Errorf("Expected 0 live sessions after teardown, got %d", registry.Count())
	}

	// Final state is persisted
	stored, err := store.GetByID(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Status != entities.VoiceSessionStatusEnded {
		t.Errorf("Persisted session should be ended, got %s", stored.Status)
	}

	// Second teardown finds nothing
	if _, err := registry.Teardown(context.Background(), session.ID); !errors.Is(err, repositories.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound on second teardown, got %v", err)
	}
}

func TestRegistry_IdleSessions(t *testing.T) {
	registry := newTestRegistry(nil)

	fresh := entities.NewVoiceSession("alice", entities.PersonalityCuddly)
	if _, err := registry.Register(context.Background(), fresh); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// Nothing is idle against a cutoff in the past
	if ids := registry.idleSessions(time.Now().Add(-time.Hour)); len(ids) != 0 {
		t.Errorf("Fresh session should not be idle, got %v", ids)
	}

	// Everything is idle against a cutoff in the future
	ids := registry.idleSessions(time.Now().Add(time.Hour))
	if len(ids) != 1 || ids[0] != fresh.ID {
		t.Errorf("Expected the session to be idle against a future cutoff, got %v", ids)
	}
}
