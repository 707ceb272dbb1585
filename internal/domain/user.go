package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a user in the domain layer.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserResponse is the public projection of a user, safe to embed in story
// responses: id, display name, avatar.
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}

// ToResponse converts a User to its public projection.
func (u *User) ToResponse() *UserResponse {
	response := &UserResponse{
		ID:   u.ID,
		Name: u.Name,
	}
	if u.AvatarURL != nil {
		response.AvatarURL = *u.AvatarURL
	}
	return response
}
