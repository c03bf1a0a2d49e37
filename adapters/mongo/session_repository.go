package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/aiandbotsgalore/bigsnuggles-voice/domain/entities"
	"github.com/aiandbotsgalore/bigsnuggles-voice/domain/repositories"
)

type VoiceSessionRepository struct {
	collection *mongo.Collection
}

// NewVoiceSessionRepository creates a new MongoDB voice session store
func NewVoiceSessionRepository(db *mongo.Database) repositories.VoiceSessionStore {
	return &VoiceSessionRepository{
		collection: db.Collection("voice_sessions"),
	}
}

// Create implements repositories.VoiceSessionStore
func (r *VoiceSessionRepository) Create(ctx context.Context, session *entities.VoiceSession) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}
	if err := session.Validate(); err != nil {
		return err
	}

	// Session IDs are UUIDs generated by the entity, stored as _id directly
	if _, err := r.collection.InsertOne(ctx, session); err != nil {
		return fmt.Errorf("failed to create voice session: %w", err)
	}

	return nil
}

// GetByID implements repositories.VoiceSessionStore
func (r *VoiceSessionRepository) GetByID(ctx context.Context, id string) (*entities.VoiceSession, error) {
	if id == "" {
		return nil, errors.New("session ID cannot be empty")
	}

	var session entities.VoiceSession
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get voice session %s: %w", id, err)
	}

	return &session, nil
}

// Update implements repositories.VoiceSessionStore
func (r *VoiceSessionRepository) Update(ctx context.Context, session *entities.VoiceSession) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}
	if session.ID == "" {
		return errors.New("session ID cannot be empty")
	}

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": session.ID}, session)
	if err != nil {
		return fmt.Errorf("failed to update voice session: %w", err)
	}

	if result.MatchedCount == 0 {
		return repositories.ErrSessionNotFound
	}

	return nil
}
