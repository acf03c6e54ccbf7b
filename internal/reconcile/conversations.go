package reconcile

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ammar1510/alumni-chat/internal/events"
	"github.com/ammar1510/alumni-chat/internal/models"
)

// Inbox is the conversation list of one signed-in user, most recent
// first.
type Inbox struct {
	Self  uuid.UUID
	Items []*models.ConversationView
	// Open is the thread currently on screen; it never accrues unread.
	Open uuid.UUID
	// Stale is set when an update names a thread the list does not
	// hold yet; the owner should refetch.
	Stale bool
}

// InboxLoaded replaces the list with a fresh GET /conversations page.
type InboxLoaded struct {
	Items []*models.ConversationView
}

// Opened marks a thread as on screen and clears its unread count.
type Opened struct {
	ConversationID uuid.UUID
}

// Closed clears the on-screen thread.
type Closed struct{}

// Conversations applies one action to the inbox without modifying it.
func Conversations(state Inbox, action any) Inbox {
	switch a := action.(type) {
	case InboxLoaded:
		state.Items = append([]*models.ConversationView(nil), a.Items...)
		state.Stale = false
		return state

	case Opened:
		state.Open = a.ConversationID
		return state.setUnread(a.ConversationID, 0)

	case Closed:
		state.Open = uuid.Nil
		return state

	case events.ConversationUpdate:
		i := state.indexOf(a.ConversationID)
		if i < 0 {
			state.Stale = true
			return state
		}
		view := cloneView(state.Items[i])
		view.LastMessage = a.LastMessage
		view.UpdatedAt = a.LastMessage.Timestamp
		fromOther := a.LastMessage.SenderID != nil && *a.LastMessage.SenderID != state.Self
		if fromOther && a.ConversationID != state.Open {
			view.UnreadCount++
		}

		items := make([]*models.ConversationView, 0, len(state.Items))
		items = append(items, view)
		items = append(items, state.Items[:i]...)
		items = append(items, state.Items[i+1:]...)
		state.Items = items
		return state

	case events.MessageRead:
		// Another of our sessions read the thread.
		if a.UserID != state.Self || a.MessageID != nil {
			return state
		}
		return state.setUnread(a.ConversationID, 0)
	}
	return state
}

// Unread returns the unread count of one thread, or 0 if it is unknown.
func (in Inbox) Unread(conversationID uuid.UUID) int {
	if i := in.indexOf(conversationID); i >= 0 {
		return in.Items[i].UnreadCount
	}
	return 0
}

func (in Inbox) indexOf(conversationID uuid.UUID) int {
	for i, v := range in.Items {
		if v.Conversation != nil && v.ID == conversationID {
			return i
		}
	}
	return -1
}

func (in Inbox) setUnread(conversationID uuid.UUID, n int) Inbox {
	i := in.indexOf(conversationID)
	if i < 0 || in.Items[i].UnreadCount == n {
		return in
	}
	items := append([]*models.ConversationView(nil), in.Items...)
	view := cloneView(items[i])
	view.UnreadCount = n
	items[i] = view
	in.Items = items
	return in
}

// cloneView copies the view and its conversation header. Maps inside the
// conversation are shared; the reducers never write them.
func cloneView(v *models.ConversationView) *models.ConversationView {
	out := *v
	if v.Conversation != nil {
		conv := *v.Conversation
		out.Conversation = &conv
	}
	return &out
}

// UnreadLabel renders an unread count for list badges. Counts above
// three collapse to "4+ new messages".
func UnreadLabel(n int) string {
	switch {
	case n <= 0:
		return ""
	case n == 1:
		return "1 new message"
	case n < 4:
		return fmt.Sprintf("%d new messages", n)
	default:
		return "4+ new messages"
	}
}
