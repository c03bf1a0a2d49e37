package api

import (
	"time"

	"github.com/aiandbotsgalore/bigsnuggles-voice/domain/entities"
)

// TokenRequest represents the request payload for development token issuance
type TokenRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// TokenResponse represents the response payload for token issuance
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
}

// CreateVoiceSessionRequest represents the request payload for creating a voice session
type CreateVoiceSessionRequest struct {
	PersonalityMode string `json:"personality_mode"`
}

// VoiceSessionResponse represents a voice session in API responses
type VoiceSessionResponse struct {
	ID              string                 `json:"id"`
	OwnerUserID     string                 `json:"owner_user_id"`
	PersonalityMode string                 `json:"personality_mode"`
	Status          string                 `json:"status"`
	Audio           entities.AudioSettings `json:"audio"`
	CreatedAt       time.Time              `json:"created_at"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
