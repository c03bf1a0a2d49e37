package tts

import (
	"context"
	"fmt"
	"strings"

	"github.com/aiandbotsgalore/bigsnuggles-voice/domain/repositories"
)

const (
	mockSampleRate = 24000 // matches the pcm_24000 production format
	mockMsPerWord  = 300
)

// MockTextToSpeech emits silent PCM sized to the text length, so downstream
// resampling and delivery paths see realistic audio volumes without any
// external service.
type MockTextToSpeech struct{}

// NewMockTextToSpeech creates a new mock TTS adapter
func NewMockTextToSpeech() repositories.TextToSpeech {
	return &MockTextToSpeech{}
}

// ConvertTextToSpeech implements repositories.TextToSpeech
func (m *MockTextToSpeech) ConvertTextToSpeech(ctx context.Context, text string) (<-chan []byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	words := len(strings.Fields(text))
	totalBytes := words * mockMsPerWord * mockSampleRate * 2 / 1000

	audioChan := make(chan []byte, 10)
	go func() {
		defer close(audioChan)
		const chunkBytes = 4800 // 100ms at 24kHz, 16-bit
		for sent := 0; sent < totalBytes; sent += chunkBytes {
			size := chunkBytes
			if remaining := totalBytes - sent; remaining < size {
				size = remaining
			}
			select {
			case audioChan <- make([]byte, size):
			case <-ctx.Done():
				return
			}
		}
	}()

	return audioChan, nil
}
