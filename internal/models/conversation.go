package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxLastMessageLength bounds the preview stored on the conversation.
const MaxLastMessageLength = 500

// LastMessage is the preview shown in conversation lists.
type LastMessage struct {
	Content   string     `json:"content"`
	SenderID  *uuid.UUID `json:"senderId"`
	Timestamp time.Time  `json:"timestamp"`
}

// Conversation is a two-party thread. Participants are kept sorted so
// the pair has a single canonical form.
type Conversation struct {
	ID           uuid.UUID               `json:"id"`
	Participants [2]uuid.UUID            `json:"participants"`
	LastMessage  LastMessage             `json:"lastMessage"`
	Archived     map[uuid.UUID]bool      `json:"archived"`
	LastReadBy   map[uuid.UUID]time.Time `json:"lastReadBy"`
	CreatedAt    time.Time               `json:"createdAt"`
	UpdatedAt    time.Time               `json:"updatedAt"`
}

// SortedPair returns a and b in canonical order.
func SortedPair(a, b uuid.UUID) [2]uuid.UUID {
	if a.String() <= b.String() {
		return [2]uuid.UUID{a, b}
	}
	return [2]uuid.UUID{b, a}
}

// PairKey is the unordered-pair identity used by unique indexes.
func PairKey(a, b uuid.UUID) string {
	p := SortedPair(a, b)
	return p[0].String() + ":" + p[1].String()
}

// HasParticipant reports whether userID belongs to the thread.
func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.Participants[0] == userID || c.Participants[1] == userID
}

// Other returns the participant that is not userID.
func (c *Conversation) Other(userID uuid.UUID) uuid.UUID {
	if c.Participants[0] == userID {
		return c.Participants[1]
	}
	return c.Participants[0]
}

// IsArchivedFor reports whether userID has hidden the thread.
func (c *Conversation) IsArchivedFor(userID uuid.UUID) bool {
	return c.Archived[userID]
}

// ConversationView is a conversation as seen by one participant.
type ConversationView struct {
	*Conversation
	OtherParticipant *UserSummary `json:"otherParticipant"`
	UnreadCount      int          `json:"unreadCount"`
	UnreadKnown      bool         `json:"unreadKnown"`
}

// CreateConversationRequest is the body of POST /conversations.
type CreateConversationRequest struct {
	ParticipantID uuid.UUID `json:"participantId" binding:"required"`
}
