package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aiandbotsgalore/bigsnuggles-voice/domain/entities"
	"github.com/aiandbotsgalore/bigsnuggles-voice/domain/repositories"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Client-to-server message types
const (
	MessageTypeAuth             MessageType = "auth"
	MessageTypeVoiceSessionInit MessageType = "voice_session_init"
	MessageTypeAudioChunk       MessageType = "audio_chunk"
	MessageTypeTextMessage      MessageType = "text_message"
	MessageTypeInterruption     MessageType = "interruption"
	MessageTypeVoiceSessionEnd  MessageType = "voice_session_end"
)

// Server-to-client message types
const (
	MessageTypeConnected         MessageType = "connected"
	MessageTypeAuthSuccess       MessageType = "auth_success"
	MessageTypeAuthError         MessageType = "auth_error"
	MessageTypeVoiceSessionReady MessageType = "voice_session_ready"
	MessageTypeVoiceSessionEnded MessageType = "voice_session_ended"
	MessageTypeError             MessageType = "error"
	MessageTypeTranscript        MessageType = "transcript"
	MessageTypeSpeakingStart     MessageType = "speaking_start"
	MessageTypeAudioOutput       MessageType = "audio_output"
	MessageTypeSpeakingEnd       MessageType = "speaking_end"
)

// BaseMessage carries the discriminator shared by every protocol message
type BaseMessage struct {
	Type MessageType `json:"type"`
}

// AuthMessage carries the bearer credential for the socket handshake
type AuthMessage struct {
	Type  MessageType `json:"type"`
	Token string      `json:"token"`
}

// VoiceSessionInitMessage asks to bind the connection to an existing session
type VoiceSessionInitMessage struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId"`
}

// AudioChunkMessage carries one base64-encoded audio chunk
type AudioChunkMessage struct {
	Type MessageType `json:"type"`
	Data string      `json:"data"`
}

// TextMessage carries plain text input, the non-audio fallback path
type TextMessage struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

// ConnectedMessage is sent once when a connection is accepted
type ConnectedMessage struct {
	Type      MessageType `json:"type"`
	Message   string      `json:"message"`
	Timestamp int64       `json:"timestamp"`
}

// AuthSuccessMessage confirms authentication and reports the resolved user
type AuthSuccessMessage struct {
	Type   MessageType `json:"type"`
	UserID string      `json:"userId"`
}

// AuthErrorMessage reports a failed or invalid credential
type AuthErrorMessage struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// AudioConfigPayload is the negotiated audio configuration sent to the client
type AudioConfigPayload struct {
	SampleRate       int `json:"sampleRate"`
	OutputSampleRate int `json:"outputSampleRate"`
	ChunkSizeMs      int `json:"chunkSizeMs"`
}

// VoiceSessionReadyMessage confirms a successful session binding
type VoiceSessionReadyMessage struct {
	Type            MessageType        `json:"type"`
	SessionID       string             `json:"sessionId"`
	PersonalityMode string             `json:"personalityMode"`
	Config          AudioConfigPayload `json:"config"`
}

// VoiceSessionEndedMessage carries the teardown summary back to the client
type VoiceSessionEndedMessage struct {
	Type   MessageType                   `json:"type"`
	Result *repositories.TeardownSummary `json:"result"`
}

// ErrorMessage is the generic protocol error reply; the connection stays open
type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// TranscriptMessage pushes a recognized or generated utterance to the client
type TranscriptMessage struct {
	Type MessageType `json:"type"`
	Role string      `json:"role"`
	Text string      `json:"text"`
}

// SpeakingStartMessage marks the beginning of a synthesized reply
type SpeakingStartMessage struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId"`
	Text      string      `json:"text,omitempty"`
}

// AudioOutputMessage carries one base64-encoded chunk of synthesized audio
type AudioOutputMessage struct {
	Type MessageType `json:"type"`
	Data string      `json:"data"`
}

// SpeakingEndMessage marks the end of a synthesized reply
type SpeakingEndMessage struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId"`
}

// DecodeMessageType extracts the type discriminator from a raw message
func DecodeMessageType(raw []byte) (MessageType, error) {
	var base BaseMessage
	if err := json.Unmarshal(raw, &base); err != nil {
		return "", fmt.Errorf("invalid JSON format: %w", err)
	}
	if base.Type == "" {
		return "", fmt.Errorf("message missing type field")
	}
	return base.Type, nil
}

// NewConnectedMessage creates the greeting sent on accept
func NewConnectedMessage() *ConnectedMessage {
	return &ConnectedMessage{
		Type:      MessageTypeConnected,
		Message:   "connected to bigsnuggles voice server",
		Timestamp: time.Now().Unix(),
	}
}

// NewErrorMessage creates a generic protocol error reply
func NewErrorMessage(message string) *ErrorMessage {
	return &ErrorMessage{Type: MessageTypeError, Message: message}
}

// NewAuthErrorMessage creates an authentication error reply
func NewAuthErrorMessage(message string) *AuthErrorMessage {
	return &AuthErrorMessage{Type: MessageTypeAuthError, Message: message}
}

// NewVoiceSessionReadyMessage builds the binding confirmation from the
// session's negotiated settings
func NewVoiceSessionReadyMessage(sessionID string, mode entities.PersonalityMode, audio entities.AudioSettings) *VoiceSessionReadyMessage {
	return &VoiceSessionReadyMessage{
		Type:            MessageTypeVoiceSessionReady,
		SessionID:       sessionID,
		PersonalityMode: string(mode),
		Config: AudioConfigPayload{
			SampleRate:       audio.SampleRate,
			OutputSampleRate: audio.OutputSampleRate,
			ChunkSizeMs:      audio.ChunkSizeMs,
		},
	}
}
