package repositories

import (
	"context"
	"errors"

	"github.com/aiandbotsgalore/bigsnuggles-voice/domain/entities"
)

// ErrSessionNotFound is returned by lookups for unknown session identifiers.
var ErrSessionNotFound = errors.New("voice session not found")

// VoiceSessionStore persists voice sessions
type VoiceSessionStore interface {
	Create(ctx context.Context, session *entities.VoiceSession) error
	GetByID(ctx context.Context, id string) (*entities.VoiceSession, error)
	Update(ctx context.Context, session *entities.VoiceSession) error
}

// OutputSink delivers asynchronous session output (transcripts, synthesized
// audio, speaking markers) to whichever connection is currently bound.
type OutputSink interface {
	DeliverMessage(v interface{}) error
}

// SessionHandle is the live, in-memory side of a voice session. Connections
// hold it as a non-owning reference after binding; the registry owns its
// lifecycle.
type SessionHandle interface {
	ID() string
	OwnerUserID() string
	PersonalityMode() entities.PersonalityMode
	AudioSettings() entities.AudioSettings

	// AttachSink binds output delivery to a connection. DetachSink is a
	// no-op when sink is not the currently attached one.
	AttachSink(sink OutputSink)
	DetachSink(sink OutputSink)

	ProcessAudio(data []byte) error
	ProcessText(text string) error
	HandleInterruption()
}

// TeardownSummary is returned to the client when a session ends.
type TeardownSummary struct {
	SessionID    string `json:"session_id"`
	MessageCount int    `json:"message_count"`
	DurationMs   int64  `json:"duration_ms"`
}

// SessionRegistry tracks every live session handle, keyed by session
// identifier. It is the sole point of cross-connection interaction.
type SessionRegistry interface {
	// Register creates a live handle for an already-persisted session.
	Register(ctx context.Context, session *entities.VoiceSession) (SessionHandle, error)
	// Lookup resolves a session identifier to its live handle.
	Lookup(sessionID string) (SessionHandle, error)
	// Teardown stops the handle, persists the final state and removes the
	// handle from the registry.
	Teardown(ctx context.Context, sessionID string) (*TeardownSummary, error)
}
