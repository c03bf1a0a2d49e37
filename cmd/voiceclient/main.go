// Command voiceclient is a manual smoke-test client: it obtains a dev token,
// creates a voice session over the REST API, then drives a short conversation
// over the websocket transport.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	ws "github.com/aiandbotsgalore/bigsnuggles-voice/internal/websocket"
	"github.com/aiandbotsgalore/bigsnuggles-voice/pkg/client"
)

type tokenResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

type sessionResponse struct {
	ID string `json:"id"`
}

func main() {
	base := os.Getenv("SERVER_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	userID := os.Getenv("USER_ID")
	if userID == "" {
		userID = "demo-user"
	}

	token, err := fetchToken(base, userID)
	if err != nil {
		log.Fatal("failed to fetch token: ", err)
	}
	log.Printf("authenticated as %s", userID)

	sessionID, err := createSession(base, token)
	if err != nil {
		log.Fatal("failed to create session: ", err)
	}
	log.Printf("created session %s", sessionID)

	done := make(chan struct{})
	var c *client.Client
	c, err = client.New(client.Config{
		URL:   "ws" + base[len("http"):] + "/ws",
		Token: token,
		OnMessage: func(msgType ws.MessageType, raw []byte) {
			log.Printf("<- %s: %s", msgType, truncate(raw, 120))
			if msgType == ws.MessageTypeAuthSuccess {
				if err := c.InitVoiceSession(sessionID); err != nil {
					log.Println("init failed: ", err)
				}
			}
			if msgType == ws.MessageTypeVoiceSessionReady {
				if err := c.SendText("Hi Big Snuggles, tell me something nice!"); err != nil {
					log.Println("send failed: ", err)
				}
			}
			if msgType == ws.MessageTypeSpeakingEnd {
				if err := c.EndVoiceSession(); err != nil {
					log.Println("end failed: ", err)
				}
			}
			if msgType == ws.MessageTypeVoiceSessionEnded {
				close(done)
			}
		},
	})
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	if err := c.Connect(); err != nil {
		log.Fatal("connect failed: ", err)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	select {
	case <-done:
		log.Println("conversation complete")
	case <-interrupt:
		log.Println("interrupted")
	case <-time.After(2 * time.Minute):
		log.Println("timed out waiting for the conversation to finish")
	}
}

func fetchToken(base, userID string) (string, error) {
	body, _ := json.Marshal(map[string]string{"user_id": userID})
	resp, err := http.Post(base+"/api/v1/auth/token", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var out tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func createSession(base, token string) (string, error) {
	body, _ := json.Marshal(map[string]string{"personality_mode": "cuddly"})
	req, err := http.NewRequest("POST", base+"/api/v1/voice-sessions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var out sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func truncate(raw []byte, n int) string {
	if len(raw) <= n {
		return string(raw)
	}
	return string(raw[:n]) + "..."
}
