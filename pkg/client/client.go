// Package client provides a reconnecting WebSocket transport for talking to
// the voice server. It handles authentication on connect, tracks the server
// handshake through to session readiness, applies exponential backoff on
// failure, and guards sends against the transport or session not being up.
package client

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aiandbotsgalore/bigsnuggles-voice/internal/audio"
	ws "github.com/aiandbotsgalore/bigsnuggles-voice/internal/websocket"
)

// State describes the transport and handshake lifecycle. Connected means the
// socket is up; Authenticated and Ready are flipped by the server's
// auth_success and voice_session_ready replies. Failed is terminal for the
// automatic reconnect loop; a manual Connect starts a fresh attempt budget.
type State string

const (
	StateDisconnected  State = "disconnected"
	StateConnecting    State = "connecting"
	StateConnected     State = "connected"
	StateAuthenticated State = "authenticated"
	StateReady         State = "ready"
	StateFailed        State = "failed"
	StateClosed        State = "closed"
)

const (
	baseReconnectDelay   = time.Second
	maxReconnectDelay    = 30 * time.Second
	maxReconnectAttempts = 5
	writeTimeout         = 10 * time.Second
)

var (
	// ErrNotConnected is returned by sends while the transport is down
	ErrNotConnected = errors.New("client is not connected")
	// ErrNotAuthenticated is returned by session binds before auth_success
	ErrNotAuthenticated = errors.New("client is not authenticated")
	// ErrNotReady is returned by session sends before voice_session_ready
	ErrNotReady = errors.New("client has no ready voice session")
	// ErrClosed is returned after Close has been called
	ErrClosed = errors.New("client is closed")
)

// Config holds the client configuration. URL is required.
type Config struct {
	URL    string
	Token  string
	Logger *zap.Logger
	Dialer *websocket.Dialer

	// OnMessage receives every server message, after the client has
	// updated its own state from it. Called from the read goroutine, so
	// it must not block for long.
	OnMessage func(msgType ws.MessageType, raw []byte)

	// OnStateChange is notified on every transport state transition,
	// including the terminal StateFailed when the reconnect budget is
	// exhausted.
	OnStateChange func(state State)
}

// Client is a reconnecting WebSocket client
type Client struct {
	cfg Config

	mu             sync.Mutex
	conn           *websocket.Conn
	state          State
	attempts       int
	reconnectTimer *time.Timer
	closed         bool

	writeMu sync.Mutex
}

// New creates a client. Connect must be called to establish the transport.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("URL is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &Client{
		cfg:   cfg,
		state: StateDisconnected,
	}, nil
}

// State returns the current transport state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// transportUp reports whether the socket is usable in the given state
func transportUp(state State) bool {
	switch state {
	case StateConnected, StateAuthenticated, StateReady:
		return true
	}
	return false
}

// Connect dials the server. On failure it schedules a reconnect with
// backoff and returns the dial error. Calling Connect after the automatic
// reconnect loop has given up starts over with a fresh attempt budget.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if transportUp(c.state) || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	if c.state == StateFailed {
		c.attempts = 0
	}
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	return c.dial()
}

func (c *Client) dial() error {
	conn, _, err := c.cfg.Dialer.Dial(c.cfg.URL, nil)
	if err != nil {
		c.cfg.Logger.Warn("Dial failed", zap.String("url", c.cfg.URL), zap.Error(err))
		c.mu.Lock()
		c.setStateLocked(StateDisconnected)
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return fmt.Errorf("failed to dial %s: %w", c.cfg.URL, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.attempts = 0
	c.setStateLocked(StateConnected)
	c.mu.Unlock()

	c.cfg.Logger.Info("Connected", zap.String("url", c.cfg.URL))

	go c.readLoop(conn)

	// Authenticate immediately; StateAuthenticated follows once the
	// server replies with auth_success
	if c.cfg.Token != "" {
		if err := c.sendJSON(ws.AuthMessage{
			Type:  ws.MessageTypeAuth,
			Token: c.cfg.Token,
		}); err != nil {
			return fmt.Errorf("failed to send auth message: %w", err)
		}
	}

	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}

		msgType, err := ws.DecodeMessageType(raw)
		if err != nil {
			c.cfg.Logger.Warn("Failed to decode message type", zap.Error(err))
			continue
		}

		c.observeHandshake(conn, msgType)

		if c.cfg.OnMessage != nil {
			c.cfg.OnMessage(msgType, raw)
		}
	}
}

// observeHandshake advances the client state from the server's protocol
// replies. Only the connection the message arrived on may advance state; a
// stale read loop is ignored.
func (c *Client) observeHandshake(conn *websocket.Conn, msgType ws.MessageType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn || c.closed {
		return
	}

	switch msgType {
	case ws.MessageTypeAuthSuccess:
		if c.state == StateConnected {
			c.setStateLocked(StateAuthenticated)
		}
	case ws.MessageTypeVoiceSessionReady:
		if c.state == StateAuthenticated || c.state == StateReady {
			c.setStateLocked(StateReady)
		}
	case ws.MessageTypeVoiceSessionEnded:
		if c.state == StateReady {
			c.setStateLocked(StateAuthenticated)
		}
	case ws.MessageTypeAuthError:
		if c.state == StateAuthenticated || c.state == StateReady {
			c.setStateLocked(StateConnected)
		}
	}
}

func (c *Client) handleDisconnect(conn *websocket.Conn, err error) {
	conn.Close()

	c.mu.Lock()
	defer c.mu.Unlock()

	// A stale read loop from a previous connection must not disturb the
	// current one
	if c.conn != conn {
		return
	}
	c.conn = nil

	if c.closed {
		return
	}

	// Authentication and session readiness do not survive the socket
	c.cfg.Logger.Warn("Connection lost", zap.Error(err))
	c.setStateLocked(StateDisconnected)
	c.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the single reconnect timer. Callers hold mu.
func (c *Client) scheduleReconnectLocked() {
	if c.closed || c.reconnectTimer != nil {
		return
	}
	if c.attempts >= maxReconnectAttempts {
		c.cfg.Logger.Error("Giving up after max reconnect attempts",
			zap.Int("attempts", c.attempts))
		c.setStateLocked(StateFailed)
		return
	}

	delay := reconnectDelay(c.attempts)
	c.attempts++
	c.cfg.Logger.Info("Scheduling reconnect",
		zap.Int("attempt", c.attempts),
		zap.Duration("delay", delay))

	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		if c.closed || transportUp(c.state) {
			c.mu.Unlock()
			return
		}
		c.setStateLocked(StateConnecting)
		c.mu.Unlock()

		if err := c.dial(); err != nil {
			c.cfg.Logger.Warn("Reconnect attempt failed", zap.Error(err))
		}
	})
}

// reconnectDelay doubles per attempt from one second, capped at thirty
func reconnectDelay(attempt int) time.Duration {
	delay := baseReconnectDelay << uint(attempt)
	if delay > maxReconnectDelay || delay <= 0 {
		return maxReconnectDelay
	}
	return delay
}

// Close tears down the transport and cancels any pending reconnect. The
// client cannot be reused afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.setStateLocked(StateClosed)
	c.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(writeTimeout)
		c.writeMu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		c.writeMu.Unlock()
		return conn.Close()
	}
	return nil
}

// InitVoiceSession asks the server to bind this connection to a session.
// Requires a successful auth_success first.
func (c *Client) InitVoiceSession(sessionID string) error {
	if err := c.requireState(StateAuthenticated); err != nil {
		return err
	}
	return c.sendJSON(ws.VoiceSessionInitMessage{
		Type:      ws.MessageTypeVoiceSessionInit,
		SessionID: sessionID,
	})
}

// SendAudioChunk encodes and sends one chunk of raw PCM audio. Guarded: a
// no-op returning ErrNotReady until voice_session_ready has arrived.
func (c *Client) SendAudioChunk(pcm []byte) error {
	if err := c.requireState(StateReady); err != nil {
		return err
	}
	return c.sendJSON(ws.AudioChunkMessage{
		Type: ws.MessageTypeAudioChunk,
		Data: audio.EncodeBase64(pcm),
	})
}

// SendText sends a plain text message on the bound session. Guarded the same
// way as SendAudioChunk.
func (c *Client) SendText(text string) error {
	if err := c.requireState(StateReady); err != nil {
		return err
	}
	return c.sendJSON(ws.TextMessage{
		Type: ws.MessageTypeTextMessage,
		Text: text,
	})
}

// SendInterruption tells the server the user started talking over the reply
func (c *Client) SendInterruption() error {
	if err := c.requireState(StateReady); err != nil {
		return err
	}
	return c.sendJSON(ws.BaseMessage{Type: ws.MessageTypeInterruption})
}

// EndVoiceSession asks the server to tear down the bound session
func (c *Client) EndVoiceSession() error {
	if err := c.requireState(StateReady); err != nil {
		return err
	}
	return c.sendJSON(ws.BaseMessage{Type: ws.MessageTypeVoiceSessionEnd})
}

// requireState checks that the handshake has progressed at least to min
// (StateAuthenticated or StateReady), distinguishing a downed transport from
// an incomplete handshake.
func (c *Client) requireState(min State) error {
	c.mu.Lock()
	state := c.state
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if !transportUp(state) {
		return ErrNotConnected
	}
	switch min {
	case StateAuthenticated:
		if state != StateAuthenticated && state != StateReady {
			return ErrNotAuthenticated
		}
	case StateReady:
		if state != StateReady {
			return ErrNotReady
		}
	}
	return nil
}

// sendJSON writes one message, guarded against the transport being down
func (c *Client) sendJSON(v interface{}) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	conn := c.conn
	up := transportUp(c.state)
	c.mu.Unlock()

	if !up || conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(v); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// setStateLocked updates state and fires the callback. Callers hold mu.
func (c *Client) setStateLocked(state State) {
	if c.state == state {
		return
	}
	c.state = state
	if c.cfg.OnStateChange != nil {
		// Fired on a fresh goroutine so callbacks can call back into
		// the client without deadlocking
		go c.cfg.OnStateChange(state)
	}
}
