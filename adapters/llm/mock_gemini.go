package llm

import (
	"context"
	"fmt"

	"github.com/aiandbotsgalore/bigsnuggles-voice/domain/repositories"
)

// MockLLM is a placeholder implementation for local development and tests
type MockLLM struct{}

// NewMockLLM creates a new mock LLM
func NewMockLLM() repositories.LargeLanguageModel {
	return &MockLLM{}
}

// GenerateChat implements repositories.LargeLanguageModel
func (g *MockLLM) GenerateChat(ctx context.Context, systemPrompt string, history []repositories.ChatMessage) (repositories.ChatSession, error) {
	return &MockChatSession{history: history}, nil
}

// MockChatSession implements repositories.ChatSession
type MockChatSession struct {
	history []repositories.ChatMessage
}

// SendMessage implements repositories.ChatSession
func (g *MockChatSession) SendMessage(ctx context.Context, message repositories.ChatMessage) (repositories.ChatMessage, error) {
	g.history = append(g.history, message)

	var response string
	if len(message.Content) > 0 {
		response = fmt.Sprintf("Oh, I heard you say '%s'. Tell me more, friend!", message.Content)
	} else {
		response = "Hello there! I'm Big Snuggles. What's on your mind today?"
	}

	responseMessage := repositories.ChatMessage{
		Role:    repositories.AssistantRole,
		Content: response,
	}
	g.history = append(g.history, responseMessage)

	return responseMessage, nil
}

// History implements repositories.ChatSession
func (g *MockChatSession) History() ([]repositories.ChatMessage, error) {
	return g.history, nil
}
