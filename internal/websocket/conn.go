package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aiandbotsgalore/bigsnuggles-voice/domain/repositories"
	"github.com/aiandbotsgalore/bigsnuggles-voice/internal/audio"
)

// ConnState is the per-connection protocol state.
type ConnState string

const (
	StateUnauthenticated ConnState = "unauthenticated"
	StateAuthenticated   ConnState = "authenticated"
	StateSessionBound    ConnState = "session_bound"
	StateStreaming       ConnState = "streaming"
	StateInterrupted     ConnState = "interrupted"
	StateClosed          ConnState = "closed"
)

// Conn is one authenticated-or-not client connection running the voice
// session protocol. Message handling is strictly sequential: readPump fully
// handles one message before reading the next, so handlers never race each
// other and client ordering is preserved end-to-end.
type Conn struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound frames.
	send chan WriteData

	// Opaque connection identifier.
	id string

	// Protocol state, authenticated user and bound session. The session
	// reference is non-owning: the registry manages its lifecycle.
	state   ConnState
	userID  string
	session repositories.SessionHandle

	// Liveness flag, reset by every pong, cleared by every sweep.
	alive bool

	// closed guards the send channel against enqueue-after-close.
	closed bool

	mu sync.Mutex

	logger *zap.Logger
}

// ID returns the opaque connection identifier.
func (c *Conn) ID() string {
	return c.id
}

// State returns the current protocol state.
func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// UserID returns the authenticated user, empty until auth succeeds.
func (c *Conn) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// markStaleIfAlive clears the liveness flag and reports whether the
// connection answered the previous probe.
func (c *Conn) markStaleIfAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	wasAlive := c.alive
	c.alive = false
	return wasAlive
}

// markClosed flips the closed flag; the hub closes the send channel right
// after, under no lock, which is safe because enqueue checks closed first.
func (c *Conn) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// terminate force-closes the underlying socket. The read pump's exit path
// runs the normal teardown.
func (c *Conn) terminate() {
	c.conn.Close()
}

// enqueue queues one outbound frame, dropping it with a log when the
// connection is closed or the queue is full. Dropping beats blocking: a slow
// reader must not stall the hub sweep or the voice pipeline.
func (c *Conn) enqueue(data WriteData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("Outbound queue full, dropping frame",
			zap.String("connID", c.id),
			zap.Int("frameType", data.Type))
	}
}

// sendJSON marshals v and queues it as a text frame.
func (c *Conn) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal outbound message",
			zap.String("connID", c.id),
			zap.Error(err))
		return
	}
	c.enqueue(WriteData{Type: websocket.TextMessage, Payload: payload})
}

// DeliverMessage implements repositories.OutputSink: the bound session pushes
// transcripts, speaking markers and synthesized audio through here.
func (c *Conn) DeliverMessage(v interface{}) error {
	c.sendJSON(v)
	return nil
}

// readPump pumps messages from the websocket connection into the protocol
// handlers, one at a time.
func (c *Conn) readPump() {
	defer func() {
		c.teardownOnClose()
		c.markClosed()
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.alive = true
		c.mu.Unlock()
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Error("WebSocket error", zap.String("connID", c.id), zap.Error(err))
			}
			break
		}

		if messageType != websocket.TextMessage {
			c.logger.Warn("Received unsupported frame type",
				zap.String("connID", c.id),
				zap.Int("type", messageType))
			continue
		}

		c.handleMessage(message)
	}
}

// writePump pumps frames from the send channel to the websocket connection.
func (c *Conn) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
			c.logger.Error("Failed to write message",
				zap.String("connID", c.id),
				zap.Error(err))
			return
		}
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// handleMessage dispatches one inbound protocol message. A malformed or
// out-of-order message produces a protocol error reply, never a closed
// connection.
func (c *Conn) handleMessage(raw []byte) {
	msgType, err := DecodeMessageType(raw)
	if err != nil {
		c.logger.Warn("Failed to parse message",
			zap.String("connID", c.id),
			zap.Error(err))
		c.sendJSON(NewErrorMessage("malformed message"))
		return
	}

	switch msgType {
	case MessageTypeAuth:
		c.handleAuth(raw)
	case MessageTypeVoiceSessionInit:
		c.handleVoiceSessionInit(raw)
	case MessageTypeAudioChunk:
		c.handleAudioChunk(raw)
	case MessageTypeTextMessage:
		c.handleTextMessage(raw)
	case MessageTypeInterruption:
		c.handleInterruption()
	case MessageTypeVoiceSessionEnd:
		c.handleVoiceSessionEnd()
	default:
		c.logger.Warn("Unknown message type",
			zap.String("connID", c.id),
			zap.String("type", string(msgType)))
		c.sendJSON(NewErrorMessage("unknown message type: " + string(msgType)))
	}
}

// handleAuth verifies the bearer credential. Failure keeps the connection
// open and Unauthenticated so the client may retry.
func (c *Conn) handleAuth(raw []byte) {
	var msg AuthMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendJSON(NewAuthErrorMessage("malformed auth message"))
		return
	}
	if msg.Token == "" {
		c.sendJSON(NewAuthErrorMessage("missing token"))
		return
	}

	userID, err := c.hub.verifier.Verify(msg.Token)
	if err != nil {
		c.logger.Warn("Authentication failed",
			zap.String("connID", c.id),
			zap.Error(err))
		c.sendJSON(NewAuthErrorMessage("invalid token"))
		return
	}

	c.mu.Lock()
	c.userID = userID
	if c.state == StateUnauthenticated {
		c.state = StateAuthenticated
	}
	c.mu.Unlock()

	c.logger.Info("Connection authenticated",
		zap.String("connID", c.id),
		zap.String("userID", userID))

	c.sendJSON(&AuthSuccessMessage{Type: MessageTypeAuthSuccess, UserID: userID})
}

// handleVoiceSessionInit binds the connection to an existing session after
// the ownership check. Lookup failures are not fatal: the client created the
// session out-of-band and may retry.
func (c *Conn) handleVoiceSessionInit(raw []byte) {
	var msg VoiceSessionInitMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendJSON(NewErrorMessage("malformed voice_session_init message"))
		return
	}

	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()

	if userID == "" {
		c.sendJSON(NewErrorMessage("not authenticated"))
		return
	}
	if msg.SessionID == "" {
		c.sendJSON(NewErrorMessage("missing sessionId"))
		return
	}

	handle, err := c.hub.registry.Lookup(msg.SessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			c.sendJSON(NewErrorMessage("voice session not found: " + msg.SessionID))
		} else {
			c.logger.Error("Session lookup failed",
				zap.String("connID", c.id),
				zap.String("sessionID", msg.SessionID),
				zap.Error(err))
			c.sendJSON(NewErrorMessage("session lookup failed"))
		}
		return
	}

	// A session may only be bound by its owner.
	if handle.OwnerUserID() != userID {
		c.logger.Warn("Session ownership mismatch",
			zap.String("connID", c.id),
			zap.String("sessionID", msg.SessionID),
			zap.String("userID", userID),
			zap.String("ownerUserID", handle.OwnerUserID()))
		c.sendJSON(NewErrorMessage("voice session belongs to another user"))
		return
	}

	c.mu.Lock()
	previous := c.session
	c.session = handle
	c.state = StateSessionBound
	c.mu.Unlock()

	if previous != nil && previous.ID() != handle.ID() {
		previous.DetachSink(c)
	}
	handle.AttachSink(c)

	c.logger.Info("Voice session bound",
		zap.String("connID", c.id),
		zap.String("sessionID", handle.ID()),
		zap.String("userID", userID))

	c.sendJSON(NewVoiceSessionReadyMessage(handle.ID(), handle.PersonalityMode(), handle.AudioSettings()))
}

// handleAudioChunk decodes and forwards one chunk to the bound session. The
// connection itself never buffers audio; that is the pipeline's concern.
func (c *Conn) handleAudioChunk(raw []byte) {
	var msg AudioChunkMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendJSON(NewErrorMessage("malformed audio_chunk message"))
		return
	}

	handle := c.boundSession()
	if handle == nil {
		c.sendJSON(NewErrorMessage("no voice session bound"))
		return
	}

	data, err := audio.DecodeBase64(msg.Data)
	if err != nil {
		c.sendJSON(NewErrorMessage("invalid base64 audio payload"))
		return
	}

	if err := handle.ProcessAudio(data); err != nil {
		c.logger.Error("Failed to process audio chunk",
			zap.String("connID", c.id),
			zap.String("sessionID", handle.ID()),
			zap.Error(err))
		c.sendJSON(NewErrorMessage("audio processing failed"))
		return
	}

	c.mu.Lock()
	c.state = StateStreaming
	c.mu.Unlock()
}

// handleTextMessage forwards plain text input, the non-audio fallback path.
func (c *Conn) handleTextMessage(raw []byte) {
	var msg TextMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendJSON(NewErrorMessage("malformed text_message"))
		return
	}

	handle := c.boundSession()
	if handle == nil {
		c.sendJSON(NewErrorMessage("no voice session bound"))
		return
	}

	if err := handle.ProcessText(msg.Text); err != nil {
		c.logger.Error("Failed to process text message",
			zap.String("connID", c.id),
			zap.String("sessionID", handle.ID()),
			zap.Error(err))
		c.sendJSON(NewErrorMessage("text processing failed"))
		return
	}

	c.mu.Lock()
	c.state = StateStreaming
	c.mu.Unlock()
}

// handleInterruption cuts off an in-progress synthesized reply. Silently
// ignored when no session is bound.
func (c *Conn) handleInterruption() {
	handle := c.boundSession()
	if handle == nil {
		return
	}

	handle.HandleInterruption()

	c.mu.Lock()
	if c.state == StateStreaming {
		c.state = StateInterrupted
	}
	c.mu.Unlock()
}

// handleVoiceSessionEnd tears the bound session down and drops back to
// Authenticated.
func (c *Conn) handleVoiceSessionEnd() {
	handle := c.boundSession()
	if handle == nil {
		c.sendJSON(NewErrorMessage("no voice session bound"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	summary, err := c.hub.registry.Teardown(ctx, handle.ID())
	if err != nil {
		c.logger.Error("Session teardown failed",
			zap.String("connID", c.id),
			zap.String("sessionID", handle.ID()),
			zap.Error(err))
		c.sendJSON(NewErrorMessage("session teardown failed"))
		return
	}

	handle.DetachSink(c)

	c.mu.Lock()
	c.session = nil
	c.state = StateAuthenticated
	c.mu.Unlock()

	c.logger.Info("Voice session ended",
		zap.String("connID", c.id),
		zap.String("sessionID", handle.ID()))

	c.sendJSON(&VoiceSessionEndedMessage{Type: MessageTypeVoiceSessionEnded, Result: summary})
}

// teardownOnClose runs best-effort teardown of any bound session when the
// transport closes. Failures are logged, never re-thrown: the connection is
// already gone.
func (c *Conn) teardownOnClose() {
	c.mu.Lock()
	handle := c.session
	c.session = nil
	c.state = StateClosed
	c.mu.Unlock()

	if handle == nil {
		return
	}

	handle.DetachSink(c)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := c.hub.registry.Teardown(ctx, handle.ID()); err != nil {
		c.logger.Warn("Best-effort teardown on close failed",
			zap.String("connID", c.id),
			zap.String("sessionID", handle.ID()),
			zap.Error(err))
	}
}

func (c *Conn) boundSession() repositories.SessionHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}
