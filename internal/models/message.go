package models

import (
	"time"

	"github.com/google/uuid"
)

// Content bounds, measured in characters after trimming.
const (
	MinMessageLength = 1
	MaxMessageLength = 5000

	MaxClientIDLength = 100
)

// MessageType distinguishes user text from generated notices.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeSystem MessageType = "system"
)

// ReadReceipt records when a user read a message.
type ReadReceipt struct {
	UserID uuid.UUID `json:"userId"`
	ReadAt time.Time `json:"readAt"`
}

// Message represents a chat message in the system
type Message struct {
	ID             uuid.UUID     `json:"id"`
	ConversationID uuid.UUID     `json:"conversationId"`
	SenderID       uuid.UUID     `json:"senderId"`
	Content        string        `json:"content"`
	MessageType    MessageType   `json:"messageType"`
	ReadBy         []ReadReceipt `json:"readBy"`
	Deleted        bool          `json:"deleted"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
	// ClientID is the sender's temporary id for the send. Resending with
	// the same ClientID returns the stored message instead of a copy.
	ClientID       string        `json:"clientId,omitempty"`

	Sender *UserSummary `json:"sender,omitempty"`
}

// IsReadBy reports whether userID already has a receipt.
func (m *Message) IsReadBy(userID uuid.UUID) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// MessageRequest is the body of POST /messages.
type MessageRequest struct {
	ConversationID uuid.UUID `json:"conversationId" binding:"required"`
	Content        string    `json:"content" binding:"required"`
	ClientID       string    `json:"clientId"`
}
