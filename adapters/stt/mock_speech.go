package stt

import (
	"context"
	"fmt"

	"github.com/aiandbotsgalore/bigsnuggles-voice/domain/repositories"
)

// MockSpeechToText is a placeholder implementation for local development and
// tests. It never talks to any external service.
type MockSpeechToText struct{}

// NewMockSpeechToText creates a new mock STT adapter
func NewMockSpeechToText() repositories.SpeechToText {
	return &MockSpeechToText{}
}

// TranscribeAudio returns a canned transcript sized to the amount of audio
func (m *MockSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	if len(audioData) == 0 {
		return "", fmt.Errorf("no audio data received")
	}
	return cannedTranscript(len(audioData)), nil
}

func (m *MockSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	return &mockStream{}, nil
}

type mockStream struct {
	received int
}

func (m *mockStream) Stream(data []byte) error {
	m.received += len(data)
	return nil
}

func (m *mockStream) End() (string, error) {
	if m.received == 0 {
		return "", fmt.Errorf("no audio data received")
	}
	return cannedTranscript(m.received), nil
}

// cannedTranscript picks a phrase roughly proportional to the audio length
// so longer recordings look like longer utterances.
func cannedTranscript(size int) string {
	switch {
	case size < 8000:
		return "Hi there"
	case size < 32000:
		return "Hi Big Snuggles, how are you today?"
	default:
		return "Hi Big Snuggles, can you tell me a story about the moon?"
	}
}
