package entities

import (
	"errors"
	"time"
)

// Personality represents a selectable assistant persona
type Personality struct {
	ID           string    `json:"id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	Description  string    `json:"description" bson:"description"`
	Voice        string    `json:"voice" bson:"voice"`
	SystemPrompt string    `json:"system_prompt" bson:"system_prompt"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// User represents a CozyChat account
type User struct {
	ID        string    `json:"id" bson:"_id"`
	Email     string    `json:"email" bson:"email"`
	Name      string    `json:"name" bson:"name"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

func (p *Personality) Validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.Voice == "" {
		return errors.New("voice is required")
	}
	return nil
}

func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.Name == "" {
		return errors.New("name is required")
	}
	return nil
}
