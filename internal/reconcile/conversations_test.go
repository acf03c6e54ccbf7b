package reconcile

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ammar1510/alumni-chat/internal/events"
	"github.com/ammar1510/alumni-chat/internal/models"
)

func view(id uuid.UUID, unread int) *models.ConversationView {
	return &models.ConversationView{
		Conversation: &models.Conversation{ID: id, Participants: models.SortedPair(alice, uuid.New())},
		UnreadCount:  unread,
	}
}

func inboxIDs(in Inbox) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(in.Items))
	for _, v := range in.Items {
		out = append(out, v.ID)
	}
	return out
}

func update(conversationID, sender uuid.UUID, content string) events.ConversationUpdate {
	return events.ConversationUpdate{
		ConversationID: conversationID,
		LastMessage:    models.LastMessage{Content: content, SenderID: &sender, Timestamp: epoch},
	}
}

func TestConversationUpdateMovesThreadToTop(t *testing.T) {
	first, second, third := uuid.New(), uuid.New(), uuid.New()
	inbox := Conversations(Inbox{Self: alice}, InboxLoaded{Items: []*models.ConversationView{
		view(first, 0), view(second, 0), view(third, 2),
	}})

	got := Conversations(inbox, update(third, bob, "ping"))

	assert.Equal(t, []uuid.UUID{third, first, second}, inboxIDs(got))
	assert.Equal(t, "ping", got.Items[0].LastMessage.Content)
	assert.Equal(t, 3, got.Unread(third))

	assert.Equal(t, []uuid.UUID{first, second, third}, inboxIDs(inbox), "input untouched")
	assert.Equal(t, 2, inbox.Unread(third))
	assert.Empty(t, inbox.Items[2].LastMessage.Content)
}

func TestConversationUpdateUnreadRules(t *testing.T) {
	id := uuid.New()
	base := Conversations(Inbox{Self: alice}, InboxLoaded{Items: []*models.ConversationView{view(id, 1)}})

	tests := []struct {
		name   string
		inbox  Inbox
		sender uuid.UUID
		want   int
	}{
		{"from other", base, bob, 2},
		{"from self", base, alice, 1},
		{"thread open", Conversations(base, Opened{ConversationID: id}), bob, 0},
		{"thread closed again", Conversations(Conversations(base, Opened{ConversationID: id}), Closed{}), bob, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Conversations(tt.inbox, update(id, tt.sender, "x"))
			assert.Equal(t, tt.want, got.Unread(id))
		})
	}
}

func TestUnknownConversationMarksInboxStale(t *testing.T) {
	inbox := Conversations(Inbox{Self: alice}, update(uuid.New(), bob, "hello"))
	assert.True(t, inbox.Stale)
	assert.Empty(t, inbox.Items)

	inbox = Conversations(inbox, InboxLoaded{})
	assert.False(t, inbox.Stale)
}

func TestOwnReadClearsUnread(t *testing.T) {
	id := uuid.New()
	inbox := Conversations(Inbox{Self: alice}, InboxLoaded{Items: []*models.ConversationView{view(id, 3)}})

	assert.Equal(t, 3, Conversations(inbox, events.MessageRead{ConversationID: id, UserID: bob}).Unread(id))
	assert.Zero(t, Conversations(inbox, events.MessageRead{ConversationID: id, UserID: alice}).Unread(id))
	assert.Equal(t, 3, inbox.Unread(id))
}

func TestUnreadLabel(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{-1, ""},
		{0, ""},
		{1, "1 new message"},
		{2, "2 new messages"},
		{3, "3 new messages"},
		{4, "4+ new messages"},
		{120, "4+ new messages"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, UnreadLabel(tt.n), "n=%d", tt.n)
	}
}

func TestUpdateTimestampFollowsLastMessage(t *testing.T) {
	id := uuid.New()
	inbox := Conversations(Inbox{Self: alice}, InboxLoaded{Items: []*models.ConversationView{view(id, 0)}})
	got := Conversations(inbox, update(id, bob, "later"))
	assert.True(t, got.Items[0].UpdatedAt.Equal(epoch))
	assert.True(t, inbox.Items[0].UpdatedAt.Equal(time.Time{}))
}
