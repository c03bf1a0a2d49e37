package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aiandbotsgalore/bigsnuggles-voice/domain/entities"
	"github.com/aiandbotsgalore/bigsnuggles-voice/domain/repositories"
	"github.com/aiandbotsgalore/bigsnuggles-voice/internal/audio"
	ws "github.com/aiandbotsgalore/bigsnuggles-voice/internal/websocket"
)

const (
	// How much trailing audio a session retains while listening.
	bufferWindowMs = 30000

	// Silence after speech that commits the user's turn.
	endOfTurnSilenceMs = 800

	// Turns shorter than this are treated as noise blips and dropped.
	minTurnMs = 200

	// PCM rate the TTS adapter emits; resampled to the session's output rate.
	ttsNativeSampleRate = 24000
)

// LiveSession is the in-memory side of one voice session: it buffers inbound
// audio, detects end of turn, runs the STT -> LLM -> TTS pipeline and streams
// the synthesized reply to the bound connection. Implements
// repositories.SessionHandle.
//
// A new committed turn or an explicit interruption cancels any reply still
// being delivered; replies are never queued behind each other.
type LiveSession struct {
	entity *entities.VoiceSession
	store  repositories.VoiceSessionStore
	stt    repositories.SpeechToText
	tts    repositories.TextToSpeech
	llm    repositories.LargeLanguageModel
	logger *zap.Logger

	mu           sync.Mutex
	sink         repositories.OutputSink
	buffer       *audio.Buffer
	chat         repositories.ChatSession
	inSpeech     bool
	silenceMs    int
	speechMs     int
	lastActivity time.Time
	replyCancel  context.CancelFunc
	replyGen     uint64
	closed       bool
}

// NewLiveSession creates the live handle for an already-persisted session.
func NewLiveSession(
	entity *entities.VoiceSession,
	store repositories.VoiceSessionStore,
	stt repositories.SpeechToText,
	tts repositories.TextToSpeech,
	llm repositories.LargeLanguageModel,
	logger *zap.Logger,
) *LiveSession {
	return &LiveSession{
		entity:       entity,
		store:        store,
		stt:          stt,
		tts:          tts,
		llm:          llm,
		logger:       logger,
		buffer:       audio.NewBuffer(bufferWindowMs, entity.Audio.SampleRate),
		lastActivity: time.Now(),
	}
}

// ID returns the session identifier
func (s *LiveSession) ID() string { return s.entity.ID }

// OwnerUserID returns the user the session belongs to
func (s *LiveSession) OwnerUserID() string { return s.entity.OwnerUserID }

// PersonalityMode returns the session's persona tag
func (s *LiveSession) PersonalityMode() entities.PersonalityMode {
	return s.entity.PersonalityMode
}

// AudioSettings returns the negotiated audio shape
func (s *LiveSession) AudioSettings() entities.AudioSettings { return s.entity.Audio }

// LastActivity returns when the session last received input.
func (s *LiveSession) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// AttachSink binds output delivery to a connection
func (s *LiveSession) AttachSink(sink repositories.OutputSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// DetachSink removes the sink if it is the currently attached one
func (s *LiveSession) DetachSink(sink repositories.OutputSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sink == sink {
		s.sink = nil
	}
}

// ProcessAudio buffers one PCM16 chunk and runs turn detection over it. When
// a run of speech is followed by enough silence the turn is committed and
// answered asynchronously.
func (s *LiveSession) ProcessAudio(data []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("session is closed")
	}

	s.lastActivity = time.Now()
	s.buffer.Push(data)

	chunkMs := len(data) * 1000 / (s.entity.Audio.SampleRate * 2)
	active := audio.IsVoiceActive(data, audio.DefaultVoiceThreshold)

	var turn []byte
	var turnMs int

	if active {
		s.inSpeech = true
		s.speechMs += chunkMs
		s.silenceMs = 0
	} else if s.inSpeech {
		s.silenceMs += chunkMs
		if s.silenceMs >= endOfTurnSilenceMs {
			// Turns with less actual speech than minTurnMs are noise
			// blips; the buffer is discarded either way.
			if s.speechMs >= minTurnMs {
				turn = s.buffer.GetAll()
				turnMs = s.buffer.SizeMs()
			}
			s.buffer.Clear()
			s.inSpeech = false
			s.silenceMs = 0
			s.speechMs = 0
		}
	}
	s.mu.Unlock()

	if turn == nil {
		return nil
	}

	go s.respondToAudio(turn, turnMs)
	return nil
}

// ProcessText accepts plain text input, the non-audio fallback path.
func (s *LiveSession) ProcessText(text string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("session is closed")
	}
	s.lastActivity = time.Now()
	s.mu.Unlock()

	if text == "" {
		return errors.New("empty text")
	}

	go s.respond(text, 0)
	return nil
}

// HandleInterruption cancels any reply still being synthesized or delivered.
func (s *LiveSession) HandleInterruption() {
	s.mu.Lock()
	cancel := s.replyCancel
	s.replyCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		s.logger.Info("Reply interrupted", zap.String("sessionID", s.entity.ID))
		cancel()
	}
}

// Close ends the session: cancels in-flight output, stamps and persists the
// final entity state and returns the teardown summary.
func (s *LiveSession) Close(ctx context.Context) (*repositories.TeardownSummary, error) {
	s.HandleInterruption()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.New("session already closed")
	}
	s.closed = true
	s.sink = nil
	s.entity.End()
	summary := &repositories.TeardownSummary{
		SessionID:    s.entity.ID,
		MessageCount: len(s.entity.Messages),
		DurationMs:   s.entity.EndedAt.Sub(s.entity.CreatedAt).Milliseconds(),
	}
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Update(ctx, s.entity); err != nil {
			s.logger.Error("Failed to persist ended session",
				zap.String("sessionID", s.entity.ID),
				zap.Error(err))
		}
	}

	return summary, nil
}

// respondToAudio transcribes a committed turn and answers it.
func (s *LiveSession) respondToAudio(turn []byte, turnMs int) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	transcript, err := s.stt.TranscribeAudio(ctx, turn, repositories.AudioConfig{
		SampleRate: s.entity.Audio.SampleRate,
		Encoding:   "LINEAR16",
		Language:   language(),
	})
	if err != nil {
		s.logger.Error("Transcription failed",
			zap.String("sessionID", s.entity.ID),
			zap.Error(err))
		return
	}
	if transcript == "" {
		return
	}

	s.deliver(&ws.TranscriptMessage{
		Type: ws.MessageTypeTranscript,
		Role: string(entities.MessageRoleUser),
		Text: transcript,
	})

	s.respond(transcript, int64(turnMs))
}

// respond generates a reply for one user utterance and streams its
// synthesized audio to the bound connection. Any previous reply still in
// flight is cancelled first.
func (s *LiveSession) respond(userText string, userDurationMs int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)

	s.mu.Lock()
	if s.replyCancel != nil {
		s.replyCancel()
	}
	s.replyCancel = cancel
	s.replyGen++
	gen := s.replyGen
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		if s.replyGen == gen {
			s.replyCancel = nil
		}
		s.mu.Unlock()
	}()

	chat, err := s.chatSession(ctx)
	if err != nil {
		s.logger.Error("Failed to create chat session",
			zap.String("sessionID", s.entity.ID),
			zap.Error(err))
		return
	}

	reply, err := chat.SendMessage(ctx, repositories.ChatMessage{
		Role:    repositories.UserRole,
		Content: userText,
	})
	if err != nil {
		s.logger.Error("Failed to generate reply",
			zap.String("sessionID", s.entity.ID),
			zap.Error(err))
		return
	}

	s.logger.Info("Generated reply",
		zap.String("sessionID", s.entity.ID),
		zap.String("reply", reply.Content))

	s.recordExchange(userText, userDurationMs, reply.Content)

	s.deliver(&ws.SpeakingStartMessage{
		Type:      ws.MessageTypeSpeakingStart,
		SessionID: s.entity.ID,
		Text:      reply.Content,
	})

	audioChunks, err := s.tts.ConvertTextToSpeech(ctx, reply.Content)
	if err != nil {
		s.logger.Error("Failed to synthesize reply",
			zap.String("sessionID", s.entity.ID),
			zap.Error(err))
		s.deliver(&ws.SpeakingEndMessage{Type: ws.MessageTypeSpeakingEnd, SessionID: s.entity.ID})
		return
	}

	for chunk := range audioChunks {
		if ctx.Err() != nil {
			break
		}
		out := audio.Resample(chunk, ttsNativeSampleRate, s.entity.Audio.OutputSampleRate)
		s.deliver(&ws.AudioOutputMessage{
			Type: ws.MessageTypeAudioOutput,
			Data: audio.EncodeBase64(out),
		})
	}

	s.deliver(&ws.SpeakingEndMessage{Type: ws.MessageTypeSpeakingEnd, SessionID: s.entity.ID})
}

// chatSession lazily creates the LLM chat seeded with the persona prompt and
// the transcript so far.
func (s *LiveSession) chatSession(ctx context.Context) (repositories.ChatSession, error) {
	s.mu.Lock()
	if s.chat != nil {
		chat := s.chat
		s.mu.Unlock()
		return chat, nil
	}
	history := make([]repositories.ChatMessage, 0, len(s.entity.Messages))
	for _, m := range s.entity.Messages {
		role := repositories.UserRole
		if m.Role == entities.MessageRoleAssistant {
			role = repositories.AssistantRole
		}
		history = append(history, repositories.ChatMessage{Role: role, Content: m.Content})
	}
	mode := s.entity.PersonalityMode
	s.mu.Unlock()

	chat, err := s.llm.GenerateChat(ctx, PersonalityPrompt(mode), history)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.chat = chat
	s.mu.Unlock()
	return chat, nil
}

// recordExchange appends the turn to the transcript and persists best-effort.
func (s *LiveSession) recordExchange(userText string, userDurationMs int64, replyText string) {
	s.mu.Lock()
	s.entity.AddMessage(entities.MessageRoleUser, userText, userDurationMs)
	s.entity.AddMessage(entities.MessageRoleAssistant, replyText, 0)
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.Update(ctx, s.entity); err != nil {
		s.logger.Error("Failed to persist session transcript",
			zap.String("sessionID", s.entity.ID),
			zap.Error(err))
	}
}

// deliver pushes one message to the bound connection, dropping it when no
// connection is attached.
func (s *LiveSession) deliver(v interface{}) {
	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()

	if sink == nil {
		return
	}
	if err := sink.DeliverMessage(v); err != nil {
		s.logger.Warn("Failed to deliver session output",
			zap.String("sessionID", s.entity.ID),
			zap.Error(err))
	}
}

func language() string {
	return "en-US"
}
