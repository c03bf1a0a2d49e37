package llm

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/aiandbotsgalore/bigsnuggles-voice/domain/repositories"
)

// fallbackReplies are used when the model returns nothing usable. Spoken by
// the avatar, so they must stand alone without context.
var fallbackReplies = []string{
	"Hmm, my fluff got a little tangled there. Could you say that again?",
	"I drifted off for a second. Tell me once more?",
	"My bear brain hiccuped. What were you saying?",
}

// GeminiChatSession implements the ChatSession interface
type GeminiChatSession struct {
	client       *genai.Client
	logger       *zap.Logger
	model        string
	systemPrompt string

	mu      sync.Mutex
	history []*genai.Content
}

// NewGeminiChatSession creates a new chat session with a system prompt and history
func NewGeminiChatSession(client *genai.Client, logger *zap.Logger, model, systemPrompt string, history []repositories.ChatMessage) *GeminiChatSession {
	return &GeminiChatSession{
		client:       client,
		logger:       logger,
		model:        model,
		systemPrompt: systemPrompt,
		history:      toGeminiContents(history),
	}
}

// SendMessage sends a message and gets a response, updating the history
func (s *GeminiChatSession) SendMessage(ctx context.Context, message repositories.ChatMessage) (repositories.ChatMessage, error) {
	s.mu.Lock()
	contents := make([]*genai.Content, 0, len(s.history)+1)
	contents = append(contents, s.history...)
	userContent := genai.NewContentFromText(message.Content, genai.RoleUser)
	contents = append(contents, userContent)
	s.mu.Unlock()

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(s.systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(float32(defaultTemperature)),
		MaxOutputTokens:   int32(defaultMaxOutputTokens),
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var response *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		response, err = s.client.Models.GenerateContent(ctx, s.model, contents, config)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return repositories.ChatMessage{}, ctx.Err()
		}
		s.logger.Warn("Failed to generate content, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		if attempt < 2 {
			time.Sleep(time.Duration(attempt+1) * time.Second)
		}
	}
	if err != nil {
		s.logger.Error("Failed to send message in chat session", zap.Error(err))
		return s.fallbackResponse(userContent), nil
	}

	var responseText string
	if len(response.Candidates) > 0 && response.Candidates[0].Content != nil {
		for _, part := range response.Candidates[0].Content.Parts {
			responseText += part.Text
		}
	}
	if responseText == "" {
		s.logger.Warn("Empty response in chat session")
		return s.fallbackResponse(userContent), nil
	}

	s.mu.Lock()
	s.history = append(s.history, userContent, genai.NewContentFromText(responseText, genai.RoleModel))
	s.mu.Unlock()

	return repositories.ChatMessage{
		Role:    repositories.AssistantRole,
		Content: responseText,
	}, nil
}

// History returns the current conversation history
func (s *GeminiChatSession) History() ([]repositories.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fromGeminiContents(s.history), nil
}

// fallbackResponse picks a canned reply and records the exchange so the
// conversation stays coherent
func (s *GeminiChatSession) fallbackResponse(userContent *genai.Content) repositories.ChatMessage {
	reply := fallbackReplies[int(time.Now().UnixNano())%len(fallbackReplies)]

	s.mu.Lock()
	s.history = append(s.history, userContent, genai.NewContentFromText(reply, genai.RoleModel))
	s.mu.Unlock()

	return repositories.ChatMessage{
		Role:    repositories.AssistantRole,
		Content: reply,
	}
}

// toGeminiContents converts repository messages to Gemini format
func toGeminiContents(messages []repositories.ChatMessage) []*genai.Content {
	var contents []*genai.Content
	for _, msg := range messages {
		role := genai.Role(genai.RoleUser)
		if msg.Role == repositories.AssistantRole {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	return contents
}

// fromGeminiContents converts Gemini content back to repository messages
func fromGeminiContents(contents []*genai.Content) []repositories.ChatMessage {
	var messages []repositories.ChatMessage
	for _, content := range contents {
		role := repositories.UserRole
		if content.Role == genai.RoleModel {
			role = repositories.AssistantRole
		}
		var text string
		for _, part := range content.Parts {
			text += part.Text
		}
		if text != "" {
			messages = append(messages, repositories.ChatMessage{Role: role, Content: text})
		}
	}
	return messages
}
