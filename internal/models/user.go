package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Name           string
	Email          string
	HashedPassword string
	Activated      bool
}

// Minimal user representation safe to return to the client
type UserProjection struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`

	// Opaque reference the access token was issued for
	Subject string `json:"sub,omitempty"`
}

func (u User) Projection(subject string) UserProjection {
	return UserProjection{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		Subject:   subject,
	}
}
