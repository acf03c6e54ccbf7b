package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the read-only view of an alumni account. Accounts are owned
// by the profile service; the chat core only looks them up.
type User struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Role           string    `json:"role,omitempty"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// UserSummary is embedded in chat payloads (otherParticipant, requester...).
type UserSummary struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
}

// Summary strips the fields chat payloads never need.
func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		ProfilePicture: u.ProfilePicture,
	}
}

// UserSearchResult is a directory hit annotated with the caller's
// relationship to that user.
type UserSearchResult struct {
	UserSummary
	ConnectionStatus string     `json:"connectionStatus"`
	ConnectionID     *uuid.UUID `json:"connectionId"`
}
