package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/zinohome/cozychat-voice/domain/entities"
	"github.com/zinohome/cozychat-voice/domain/repositories"
)

// ErrPersonalityNotFound is returned when a personality id matches no document.
var ErrPersonalityNotFound = errors.New("personality not found")

type PersonalityRepository struct {
	collection *mongo.Collection
}

// NewPersonalityRepository creates a new MongoDB personality repository
func NewPersonalityRepository(db *mongo.Database) repositories.PersonalityRepository {
	return &PersonalityRepository{collection: db.Collection("personalities")}
}

// Create implements repositories.PersonalityRepository
func (r *PersonalityRepository) Create(ctx context.Context, personality *entities.Personality) error {
	if personality == nil {
		return errors.New("personality cannot be nil")
	}
	if err := personality.Validate(); err != nil {
		return err
	}

	if _, err := r.collection.InsertOne(ctx, personality); err != nil {
		return fmt.Errorf("failed to create personality: %w", err)
	}
	return nil
}

// GetByID implements repositories.PersonalityRepository
func (r *PersonalityRepository) GetByID(ctx context.Context, id string) (*entities.Personality, error) {
	if id == "" {
		return nil, errors.New("personality ID cannot be empty")
	}

	var personality entities.Personality
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&personality)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPersonalityNotFound
		}
		return nil, fmt.Errorf("failed to get personality %s: %w", id, err)
	}
	return &personality, nil
}

// List implements repositories.PersonalityRepository
func (r *PersonalityRepository) List(ctx context.Context) ([]*entities.Personality, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list personalities: %w", err)
	}
	defer cursor.Close(ctx)

	var personalities []*entities.Personality
	if err := cursor.All(ctx, &personalities); err != nil {
		return nil, fmt.Errorf("failed to decode personalities: %w", err)
	}
	return personalities, nil
}
