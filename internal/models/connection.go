package models

import (
	"time"

	"github.com/google/uuid"
)

// ConnectionStatus is the state of the relationship between two users.
type ConnectionStatus string

const (
	ConnectionPending  ConnectionStatus = "pending"
	ConnectionAccepted ConnectionStatus = "accepted"
	ConnectionRejected ConnectionStatus = "rejected"
	ConnectionBlocked  ConnectionStatus = "blocked"

	// ConnectionNone is reported by search for pairs without a record.
	ConnectionNone ConnectionStatus = "none"
)

// Valid reports whether s is one of the stored statuses.
func (s ConnectionStatus) Valid() bool {
	switch s {
	case ConnectionPending, ConnectionAccepted, ConnectionRejected, ConnectionBlocked:
		return true
	}
	return false
}

// MaxRequestMessageLength bounds the optional note sent with a request.
const MaxRequestMessageLength = 200

// Connection is the single record for an unordered pair of users.
type Connection struct {
	ID             uuid.UUID        `json:"id"`
	RequesterID    uuid.UUID        `json:"requesterId"`
	RecipientID    uuid.UUID        `json:"recipientId"`
	Status         ConnectionStatus `json:"status"`
	RequestMessage *string          `json:"requestMessage"`
	BlockedBy      *uuid.UUID       `json:"blockedBy"`
	RequestedAt    time.Time        `json:"requestedAt"`
	RespondedAt    *time.Time       `json:"respondedAt"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`

	Requester *UserSummary `json:"requester,omitempty"`
	Recipient *UserSummary `json:"recipient,omitempty"`
}

// Involves reports whether userID is one of the two parties.
func (c *Connection) Involves(userID uuid.UUID) bool {
	return c.RequesterID == userID || c.RecipientID == userID
}

// Other returns the party that is not userID.
func (c *Connection) Other(userID uuid.UUID) uuid.UUID {
	if c.RequesterID == userID {
		return c.RecipientID
	}
	return c.RequesterID
}

// ConnectionAction is what a recipient does with a pending request.
type ConnectionAction string

const (
	ActionAccept ConnectionAction = "accept"
	ActionReject ConnectionAction = "reject"
	ActionBlock  ConnectionAction = "block"
)

// SendConnectionRequest is the body of POST /connections/request.
type SendConnectionRequest struct {
	RecipientID    uuid.UUID `json:"recipientId" binding:"required"`
	RequestMessage string    `json:"requestMessage" binding:"max=200"`
}

// RespondConnectionRequest is the body of POST /connections/respond.
type RespondConnectionRequest struct {
	ConnectionID uuid.UUID        `json:"connectionId" binding:"required"`
	Action       ConnectionAction `json:"action" binding:"required,oneof=accept reject block"`
}

// TargetUserRequest is the body of the block/unblock-by-user endpoints.
type TargetUserRequest struct {
	UserID uuid.UUID `json:"userId" binding:"required"`
}
