package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// VoiceSessionStatus represents the status of a voice session
type VoiceSessionStatus string

const (
	VoiceSessionStatusActive VoiceSessionStatus = "active"
	VoiceSessionStatusEnded  VoiceSessionStatus = "ended"
)

// PersonalityMode selects the conversational persona for a session.
type PersonalityMode string

const (
	PersonalityCuddly      PersonalityMode = "cuddly"
	PersonalityComedian    PersonalityMode = "comedian"
	PersonalityStoryteller PersonalityMode = "storyteller"
	PersonalityZen         PersonalityMode = "zen"
)

// MessageRole represents the role of a message sender
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// TranscriptMessage represents one exchange within a voice session
type TranscriptMessage struct {
	Timestamp  time.Time   `json:"timestamp" bson:"timestamp"`
	Role       MessageRole `json:"role" bson:"role"`
	Content    string      `json:"content" bson:"content"`
	DurationMs int64       `json:"duration_ms" bson:"duration_ms"`
}

// AudioSettings is the negotiated audio shape for a session. Input is what
// the client microphone sends, output is what the synthesized reply uses.
type AudioSettings struct {
	SampleRate       int `json:"sample_rate" bson:"sample_rate"`
	OutputSampleRate int `json:"output_sample_rate" bson:"output_sample_rate"`
	ChunkSizeMs      int `json:"chunk_size_ms" bson:"chunk_size_ms"`
}

// DefaultAudioSettings returns the audio shape used when a session is
// created without explicit configuration: 16 kHz mic input, 24 kHz
// synthesized output, 100 ms chunks.
func DefaultAudioSettings() AudioSettings {
	return AudioSettings{
		SampleRate:       16000,
		OutputSampleRate: 24000,
		ChunkSizeMs:      100,
	}
}

// VoiceSession represents one identified streaming conversation. It is owned
// by exactly one user and bound to at most one connection at a time; the
// binding itself lives on the connection, not here.
type VoiceSession struct {
	ID              string              `json:"id" bson:"_id"`
	OwnerUserID     string              `json:"owner_user_id" bson:"owner_user_id"`
	PersonalityMode PersonalityMode     `json:"personality_mode" bson:"personality_mode"`
	Audio           AudioSettings       `json:"audio" bson:"audio"`
	Status          VoiceSessionStatus  `json:"status" bson:"status"`
	CreatedAt       time.Time           `json:"created_at" bson:"created_at"`
	LastActiveAt    time.Time           `json:"last_active_at" bson:"last_active_at"`
	EndedAt         *time.Time          `json:"ended_at,omitempty" bson:"ended_at,omitempty"`
	Messages        []TranscriptMessage `json:"messages" bson:"messages"`
}

// NewVoiceSession creates an active session for a user with the given
// personality mode. An empty mode falls back to cuddly.
func NewVoiceSession(ownerUserID string, mode PersonalityMode) *VoiceSession {
	if mode == "" {
		mode = PersonalityCuddly
	}
	now := time.Now()
	return &VoiceSession{
		ID:              uuid.NewString(),
		OwnerUserID:     ownerUserID,
		PersonalityMode: mode,
		Audio:           DefaultAudioSettings(),
		Status:          VoiceSessionStatusActive,
		CreatedAt:       now,
		LastActiveAt:    now,
		Messages:        make([]TranscriptMessage, 0),
	}
}

// AddMessage appends an exchange to the session transcript
func (s *VoiceSession) AddMessage(role MessageRole, content string, durationMs int64) {
	s.Messages = append(s.Messages, TranscriptMessage{
		Timestamp:  time.Now(),
		Role:       role,
		Content:    content,
		DurationMs: durationMs,
	})
	s.LastActiveAt = time.Now()
}

// End marks the session ended and stamps the end time
func (s *VoiceSession) End() {
	now := time.Now()
	s.Status = VoiceSessionStatusEnded
	s.EndedAt = &now
	s.LastActiveAt = now
}

// IsActive reports whether the session can still accept audio
func (s *VoiceSession) IsActive() bool {
	return s.Status == VoiceSessionStatusActive
}

// Validate validates the session data
func (s *VoiceSession) Validate() error {
	if s.OwnerUserID == "" {
		return errors.New("owner_user_id is required")
	}
	if s.Status != VoiceSessionStatusActive && s.Status != VoiceSessionStatusEnded {
		return errors.New("invalid session status")
	}
	switch s.PersonalityMode {
	case PersonalityCuddly, PersonalityComedian, PersonalityStoryteller, PersonalityZen:
	default:
		return errors.New("unknown personality mode: " + string(s.PersonalityMode))
	}
	if s.Audio.SampleRate <= 0 || s.Audio.OutputSampleRate <= 0 {
		return errors.New("sample rates must be positive")
	}
	return nil
}
