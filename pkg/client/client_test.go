package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	ws "github.com/aiandbotsgalore/bigsnuggles-voice/internal/websocket"
)

func TestReconnectDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
		{100, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := reconnectDelay(tt.attempt); got != tt.want {
			t.Errorf("reconnectDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestNew_RequiresURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("Expected error when URL is missing")
	}
}

func TestClient_SendWhileDisconnected(t *testing.T) {
	c, err := New(Config{URL: "ws://localhost:1/ws"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := c.SendText("hello"); err != ErrNotConnected {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
	if err := c.SendAudioChunk([]byte{1, 2}); err != ErrNotConnected {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
	if err := c.SendInterruption(); err != ErrNotConnected {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
	if err := c.InitVoiceSession("s1"); err != ErrNotConnected {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
	if err := c.EndVoiceSession(); err != ErrNotConnected {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
}

func TestClient_SendAfterClose(t *testing.T) {
	c, err := New(Config{URL: "ws://localhost:1/ws"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := c.SendText("hello"); err != ErrClosed {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if err := c.Connect(); err != ErrClosed {
		t.Errorf("Connect after Close should return ErrClosed, got %v", err)
	}
	if c.State() != StateClosed {
		t.Errorf("Expected state closed, got %s", c.State())
	}
}

func TestClient_DialFailureSchedulesReconnect(t *testing.T) {
	// Nothing listens on this port
	c, err := New(Config{URL: "ws://127.0.0.1:1/ws"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	if err := c.Connect(); err == nil {
		t.Fatal("Expected dial error")
	}
	if c.State() != StateDisconnected {
		t.Errorf("Expected state disconnected, got %s", c.State())
	}

	c.mu.Lock()
	attempts := c.attempts
	timerArmed := c.reconnectTimer != nil
	c.mu.Unlock()
	if attempts != 1 {
		t.Errorf("Expected 1 reconnect attempt consumed, got %d", attempts)
	}
	if !timerArmed {
		t.Error("A reconnect timer should be armed after a dial failure")
	}

	// Close must disarm it
	c.Close()
	c.mu.Lock()
	timerArmed = c.reconnectTimer != nil
	c.mu.Unlock()
	if timerArmed {
		t.Error("Close should cancel the pending reconnect")
	}
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	states := make(chan State, 16)
	c, err := New(Config{
		URL:           "ws://127.0.0.1:1/ws",
		OnStateChange: func(state State) { states <- state },
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	// Exhaust the attempt budget directly, then one more failure must not
	// arm another timer
	c.mu.Lock()
	c.attempts = maxReconnectAttempts
	c.scheduleReconnectLocked()
	timerArmed := c.reconnectTimer != nil
	c.mu.Unlock()

	if timerArmed {
		t.Error("No reconnect should be scheduled past the attempt budget")
	}

	// Giving up is observable, not just logged
	if c.State() != StateFailed {
		t.Errorf("Expected state failed after exhausting attempts, got %s", c.State())
	}
	select {
	case state := <-states:
		if state != StateFailed {
			t.Errorf("Expected failed state notification, got %s", state)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnStateChange was not notified of the terminal state")
	}
}

func TestClient_ConnectRetriesAfterFailure(t *testing.T) {
	c, err := New(Config{URL: "ws://127.0.0.1:1/ws"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	c.mu.Lock()
	c.attempts = maxReconnectAttempts
	c.scheduleReconnectLocked()
	c.mu.Unlock()
	if c.State() != StateFailed {
		t.Fatalf("Expected state failed, got %s", c.State())
	}

	// A manual Connect gets a fresh attempt budget
	if err := c.Connect(); err == nil {
		t.Fatal("Expected dial error")
	}
	c.mu.Lock()
	attempts := c.attempts
	c.mu.Unlock()
	if attempts != 1 {
		t.Errorf("Connect from failed should reset the budget, got %d attempts", attempts)
	}
}

// protocolServer accepts one websocket connection, forwards every received
// message to the returned channel, and when handshake is true answers the
// client handshake: auth_success for auth, voice_session_ready for
// voice_session_init, voice_session_ended for voice_session_end.
func protocolServer(t *testing.T, handshake bool) (*httptest.Server, string, chan []byte) {
	t.Helper()
	received := make(chan []byte, 16)
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Greet like the real server
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"connected","message":"hi","timestamp":0}`))

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- raw

			if !handshake {
				continue
			}
			msgType, err := ws.DecodeMessageType(raw)
			if err != nil {
				continue
			}
			switch msgType {
			case ws.MessageTypeAuth:
				conn.WriteMessage(websocket.TextMessage,
					[]byte(`{"type":"auth_success","userId":"alice","timestamp":0}`))
			case ws.MessageTypeVoiceSessionInit:
				conn.WriteMessage(websocket.TextMessage,
					[]byte(`{"type":"voice_session_ready","sessionId":"s1","timestamp":0}`))
			case ws.MessageTypeVoiceSessionEnd:
				conn.WriteMessage(websocket.TextMessage,
					[]byte(`{"type":"voice_session_ended","timestamp":0}`))
			}
		}
	}))

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	return server, url, received
}

func waitForState(t *testing.T, c *Client, want State) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for state %s, stuck at %s", want, c.State())
}

func TestClient_HandshakeAndSend(t *testing.T) {
	server, url, received := protocolServer(t, true)
	defer server.Close()

	c, err := New(Config{URL: url, Token: "token-alice"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// The auth message goes out before anything else
	select {
	case raw := <-received:
		var msg ws.AuthMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("Failed to decode auth message: %v", err)
		}
		if msg.Type != ws.MessageTypeAuth || msg.Token != "token-alice" {
			t.Errorf("Unexpected first message: %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Server did not receive the auth message")
	}

	// auth_success moves the client to authenticated, unlocking the bind
	waitForState(t, c, StateAuthenticated)
	if err := c.InitVoiceSession("s1"); err != nil {
		t.Fatalf("InitVoiceSession failed: %v", err)
	}
	<-received // the init frame

	// voice_session_ready unlocks the session sends
	waitForState(t, c, StateReady)
	if err := c.SendText("hello bear"); err != nil {
		t.Fatalf("SendText failed: %v", err)
	}
	select {
	case raw := <-received:
		var msg ws.TextMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("Failed to decode text message: %v", err)
		}
		if msg.Text != "hello bear" {
			t.Errorf("Unexpected text: %s", msg.Text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Server did not receive the text message")
	}

	// Ending the session drops readiness again
	if err := c.EndVoiceSession(); err != nil {
		t.Fatalf("EndVoiceSession failed: %v", err)
	}
	<-received // the end frame
	waitForState(t, c, StateAuthenticated)
	if err := c.SendText("still there?"); err != ErrNotReady {
		t.Errorf("Expected ErrNotReady after session end, got %v", err)
	}
}

func TestClient_SendBeforeReadyRejected(t *testing.T) {
	// Server that never answers the handshake, so the client stays at
	// connected
	server, url, received := protocolServer(t, false)
	defer server.Close()

	c, err := New(Config{URL: url, Token: "token-alice"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	<-received // the auth frame
	if c.State() != StateConnected {
		t.Fatalf("Expected state connected, got %s", c.State())
	}

	// Session traffic before readiness must be rejected, not sent
	if err := c.SendAudioChunk([]byte{1, 2, 3, 4}); err != ErrNotReady {
		t.Errorf("Expected ErrNotReady for audio, got %v", err)
	}
	if err := c.SendText("too early"); err != ErrNotReady {
		t.Errorf("Expected ErrNotReady for text, got %v", err)
	}
	if err := c.SendInterruption(); err != ErrNotReady {
		t.Errorf("Expected ErrNotReady for interruption, got %v", err)
	}
	if err := c.EndVoiceSession(); err != ErrNotReady {
		t.Errorf("Expected ErrNotReady for end, got %v", err)
	}
	if err := c.InitVoiceSession("s1"); err != ErrNotAuthenticated {
		t.Errorf("Expected ErrNotAuthenticated for init, got %v", err)
	}

	// Nothing beyond auth reached the wire
	select {
	case raw := <-received:
		t.Errorf("Server received unexpected message: %s", raw)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestClient_AttemptsResetOnSuccess(t *testing.T) {
	server, url, _ := protocolServer(t, true)
	defer server.Close()

	c, err := New(Config{URL: url})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	// Pretend earlier attempts were burned
	c.mu.Lock()
	c.attempts = 3
	c.mu.Unlock()

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	c.mu.Lock()
	attempts := c.attempts
	c.mu.Unlock()
	if attempts != 0 {
		t.Errorf("Attempt counter should reset on success, got %d", attempts)
	}
}
