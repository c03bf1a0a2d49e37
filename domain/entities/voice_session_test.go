package entities

import (
	"testing"
	"time"
)

func TestNewVoiceSession(t *testing.T) {
	session := NewVoiceSession("alice", PersonalityStoryteller)

	if session.ID == "" {
		t.Error("Session should get a generated ID")
	}
	if session.OwnerUserID != "alice" {
		t.Errorf("Expected owner alice, got %s", session.OwnerUserID)
	}
	if session.PersonalityMode != PersonalityStoryteller {
		t.Errorf("Expected storyteller mode, got %s", session.PersonalityMode)
	}
	if session.Status != VoiceSessionStatusActive {
		t.Errorf("New session should be active, got %s", session.Status)
	}
	if session.Audio != DefaultAudioSettings() {
		t.Errorf("New session should carry default audio settings, got %+v", session.Audio)
	}
	if session.CreatedAt.IsZero() {
		t.Error("CreatedAt should be stamped")
	}
}

func TestVoiceSession_Validate(t *testing.T) {
	valid := NewVoiceSession("alice", PersonalityCuddly)
	if err := valid.Validate(); err != nil {
		t.Errorf("Valid session should pass validation: %v", err)
	}

	noOwner := NewVoiceSession("", PersonalityCuddly)
	if err := noOwner.Validate(); err == nil {
		t.Error("Session without an owner should fail validation")
	}

	badMode := NewVoiceSession("alice", PersonalityMode("grumpy"))
	if err := badMode.Validate(); err == nil {
		t.Error("Unknown personality mode should fail validation")
	}
}

func TestVoiceSession_AddMessage(t *testing.T) {
	session := NewVoiceSession("alice", PersonalityCuddly)
	before := session.LastActiveAt

	time.Sleep(time.Millisecond)
	session.AddMessage(MessageRoleUser, "hello", 1200)
	session.AddMessage(MessageRoleAssistant, "hi there", 0)

	if len(session.Messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(session.Messages))
	}
	if session.Messages[0].Role != MessageRoleUser || session.Messages[0].Content != "hello" {
		t.Errorf("Unexpected first message: %+v", session.Messages[0])
	}
	if session.Messages[0].DurationMs != 1200 {
		t.Errorf("Expected duration 1200, got %d", session.Messages[0].DurationMs)
	}
	if !session.LastActiveAt.After(before) {
		t.Error("AddMessage should advance LastActiveAt")
	}
}

func TestVoiceSession_End(t *testing.T) {
	session := NewVoiceSession("alice", PersonalityZen)

	if !session.IsActive() {
		t.Error("New session should be active")
	}

	session.End()

	if session.IsActive() {
		t.Error("Ended session should not be active")
	}
	if session.Status != VoiceSessionStatusEnded {
		t.Errorf("Expected status ended, got %s", session.Status)
	}
	if session.EndedAt == nil {
		t.Error("EndedAt should be stamped")
	}
}
