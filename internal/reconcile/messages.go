// Package reconcile keeps a client's local view of chat consistent with
// the server. The reducers are pure: they return a new state and never
// modify the one passed in, so callers can hand snapshots to renderers
// without locking.
package reconcile

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ammar1510/alumni-chat/internal/events"
	"github.com/ammar1510/alumni-chat/internal/models"
)

// Item is one rendered row. Optimistic rows have no ID yet and are
// matched to their confirmation by TempID.
type Item struct {
	models.Message
	TempID     string
	Optimistic bool
	Failed     bool
	FailReason string
}

// Pending reports whether the row still waits for the server.
func (it Item) Pending() bool {
	return it.Optimistic && !it.Failed
}

// Thread is the ordered history of one open conversation. Confirmed
// rows are kept by creation time; optimistic rows trail them.
type Thread struct {
	ConversationID uuid.UUID
	Items          []Item
	HasMore        bool
	// Page is the oldest page loaded so far.
	Page int
}

// Optimistic is the local echo of a send before the server answers.
type Optimistic struct {
	TempID   string
	SenderID uuid.UUID
	Content  string
	At       time.Time
}

// PageLoaded carries one page of history from GET /messages.
type PageLoaded struct {
	Messages []*models.Message
	HasMore  bool
	Page     int
}

// SendFailed marks a placeholder as failed. It stays visible so the
// user can retry.
type SendFailed struct {
	TempID string
	Reason string
}

// RestConfirmed is the REST fallback's answer to a send. It resolves the
// placeholder the same way message:sent does.
type RestConfirmed struct {
	TempID  string
	Message *models.Message
}

// Retry puts a failed placeholder back into the sending state.
type Retry struct {
	TempID string
}

// Messages applies one action to a thread. Actions are the local types
// above or server events; anything else, or an event for a different
// conversation, returns the state unchanged.
func Messages(state Thread, action any) Thread {
	switch a := action.(type) {
	case Optimistic:
		if a.TempID == "" || state.indexOfTemp(a.TempID) >= 0 {
			return state
		}
		return state.withItems(append(state.copyItems(), Item{
			Message: models.Message{
				ConversationID: state.ConversationID,
				SenderID:       a.SenderID,
				Content:        a.Content,
				MessageType:    models.MessageTypeText,
				CreatedAt:      a.At,
				UpdatedAt:      a.At,
			},
			TempID:     a.TempID,
			Optimistic: true,
		}))

	case events.MessageSent:
		if !state.owns(a.ConversationID) {
			return state
		}
		return state.confirm(a.TempID, a.Message)

	case RestConfirmed:
		return state.confirm(a.TempID, a.Message)

	case events.MessageNew:
		if !state.owns(a.ConversationID) || a.Message == nil || state.indexOf(a.Message.ID) >= 0 {
			return state
		}
		if state.placeholderFor(a.Message) >= 0 {
			return state.confirm(a.Message.ClientID, a.Message)
		}
		return state.insert(*a.Message)

	case events.MessageRead:
		if !state.owns(a.ConversationID) {
			return state
		}
		return state.markRead(a.UserID, a.MessageID)

	case events.MessageDeleted:
		if !state.owns(a.ConversationID) {
			return state
		}
		i := state.indexOf(a.MessageID)
		if i < 0 {
			return state
		}
		items := make([]Item, 0, len(state.Items)-1)
		items = append(items, state.Items[:i]...)
		items = append(items, state.Items[i+1:]...)
		return state.withItems(items)

	case PageLoaded:
		return state.mergePage(a)

	case SendFailed:
		i := state.indexOfTemp(a.TempID)
		if i < 0 {
			return state
		}
		items := state.copyItems()
		items[i].Failed = true
		items[i].FailReason = a.Reason
		return state.withItems(items)

	case Retry:
		i := state.indexOfTemp(a.TempID)
		if i < 0 || !state.Items[i].Failed {
			return state
		}
		items := state.copyItems()
		items[i].Failed = false
		items[i].FailReason = ""
		return state.withItems(items)
	}
	return state
}

// PendingSends returns the placeholders still waiting for the server.
func (t Thread) PendingSends() []Item {
	var out []Item
	for _, it := range t.Items {
		if it.Pending() {
			out = append(out, it)
		}
	}
	return out
}

func (t Thread) owns(conversationID uuid.UUID) bool {
	return t.ConversationID == uuid.Nil || t.ConversationID == conversationID
}

func (t Thread) indexOf(id uuid.UUID) int {
	if id == uuid.Nil {
		return -1
	}
	for i, it := range t.Items {
		if !it.Optimistic && it.ID == id {
			return i
		}
	}
	return -1
}

func (t Thread) indexOfTemp(tempID string) int {
	if tempID == "" {
		return -1
	}
	for i, it := range t.Items {
		if it.Optimistic && it.TempID == tempID {
			return i
		}
	}
	return -1
}

// placeholderFor finds the local row msg was stored from, matched by the
// client id the sender attached to it.
func (t Thread) placeholderFor(msg *models.Message) int {
	if msg.ClientID == "" {
		return -1
	}
	i := t.indexOfTemp(msg.ClientID)
	if i < 0 || t.Items[i].SenderID != msg.SenderID {
		return -1
	}
	return i
}

func (t Thread) copyItems() []Item {
	items := make([]Item, len(t.Items), len(t.Items)+1)
	copy(items, t.Items)
	return items
}

func (t Thread) withItems(items []Item) Thread {
	t.Items = items
	return t
}

// confirm swaps the placeholder for the server's copy, keeping its
// position. If the broadcast already inserted the message the
// placeholder is dropped instead.
func (t Thread) confirm(tempID string, msg *models.Message) Thread {
	if msg == nil {
		return t
	}
	placeholder := t.indexOfTemp(tempID)
	if t.indexOf(msg.ID) >= 0 {
		if placeholder < 0 {
			return t
		}
		items := make([]Item, 0, len(t.Items)-1)
		items = append(items, t.Items[:placeholder]...)
		items = append(items, t.Items[placeholder+1:]...)
		return t.withItems(items)
	}
	if placeholder < 0 {
		return t.insert(*msg)
	}
	items := t.copyItems()
	items[placeholder] = Item{Message: *msg, TempID: tempID}
	return t.withItems(items)
}

// insert places a confirmed message by creation time, ahead of any
// optimistic rows.
func (t Thread) insert(msg models.Message) Thread {
	pos := len(t.Items)
	for pos > 0 {
		prev := t.Items[pos-1]
		if !prev.Optimistic && !msg.CreatedAt.Before(prev.CreatedAt) {
			break
		}
		pos--
	}
	items := make([]Item, 0, len(t.Items)+1)
	items = append(items, t.Items[:pos]...)
	items = append(items, Item{Message: msg})
	items = append(items, t.Items[pos:]...)
	return t.withItems(items)
}

func (t Thread) markRead(userID uuid.UUID, messageID *uuid.UUID) Thread {
	var items []Item
	for i, it := range t.Items {
		if it.Optimistic {
			continue
		}
		if messageID != nil {
			if it.ID != *messageID {
				continue
			}
		} else if it.SenderID == userID {
			continue
		}
		if it.IsReadBy(userID) {
			continue
		}
		if items == nil {
			items = t.copyItems()
		}
		readBy := make([]models.ReadReceipt, len(it.ReadBy), len(it.ReadBy)+1)
		copy(readBy, it.ReadBy)
		items[i].ReadBy = append(readBy, models.ReadReceipt{UserID: userID})
	}
	if items == nil {
		return t
	}
	return t.withItems(items)
}

// mergePage folds a page of history into the thread. The page's copy of
// a message wins over the local one since it is fresher. A placeholder
// whose send the page shows as stored, failed or not, is resolved to it.
func (t Thread) mergePage(p PageLoaded) Thread {
	byID := make(map[uuid.UUID]Item, len(t.Items)+len(p.Messages))
	stored := make(map[string]bool)
	for _, it := range t.Items {
		if !it.Optimistic {
			byID[it.ID] = it
		}
	}
	for _, m := range p.Messages {
		if m == nil || m.Deleted {
			continue
		}
		if t.ConversationID != uuid.Nil && m.ConversationID != t.ConversationID {
			continue
		}
		tempID := byID[m.ID].TempID
		if t.placeholderFor(m) >= 0 {
			tempID = m.ClientID
			stored[tempID] = true
		}
		byID[m.ID] = Item{Message: *m, TempID: tempID}
	}

	var pending []Item
	for _, it := range t.Items {
		if it.Optimistic && !stored[it.TempID] {
			pending = append(pending, it)
		}
	}

	items := make([]Item, 0, len(byID)+len(pending))
	for _, it := range byID {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID.String() < items[j].ID.String()
	})
	items = append(items, pending...)

	t.Items = items
	if p.Page >= t.Page {
		t.Page = p.Page
		t.HasMore = p.HasMore
	}
	return t
}
