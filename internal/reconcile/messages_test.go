package reconcile

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammar1510/alumni-chat/internal/events"
	"github.com/ammar1510/alumni-chat/internal/models"
)

var (
	conv  = uuid.New()
	alice = uuid.New()
	bob   = uuid.New()
	epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

func serverMessage(sender uuid.UUID, content string, at time.Duration) *models.Message {
	return &models.Message{
		ID:             uuid.New(),
		ConversationID: conv,
		SenderID:       sender,
		Content:        content,
		MessageType:    models.MessageTypeText,
		ReadBy:         []models.ReadReceipt{},
		CreatedAt:      epoch.Add(at),
		UpdatedAt:      epoch.Add(at),
	}
}

func apply(state Thread, actions ...any) Thread {
	for _, a := range actions {
		state = Messages(state, a)
	}
	return state
}

func ids(t Thread) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(t.Items))
	for _, it := range t.Items {
		out = append(out, it.ID)
	}
	return out
}

func TestOptimisticSendIsConfirmedInPlace(t *testing.T) {
	earlier := serverMessage(bob, "hey", 0)
	m1 := serverMessage(alice, "hi", time.Second)

	state := apply(Thread{ConversationID: conv},
		PageLoaded{Messages: []*models.Message{earlier}, Page: 1},
		Optimistic{TempID: "tmp1", SenderID: alice, Content: "hi", At: epoch.Add(time.Second)},
	)
	require.Len(t, state.Items, 2)
	assert.True(t, state.Items[1].Pending())
	assert.Equal(t, uuid.Nil, state.Items[1].ID)

	state = Messages(state, events.MessageSent{ConversationID: conv, Message: m1, TempID: "tmp1"})

	require.Len(t, state.Items, 2)
	assert.Equal(t, []uuid.UUID{earlier.ID, m1.ID}, ids(state))
	assert.False(t, state.Items[1].Optimistic)
	assert.Empty(t, state.PendingSends())
}

func TestConfirmationAndBroadcastConvergeInEitherOrder(t *testing.T) {
	m1 := serverMessage(alice, "hi", 0)
	optimistic := Optimistic{TempID: "tmp1", SenderID: alice, Content: "hi", At: epoch}
	sent := events.MessageSent{ConversationID: conv, Message: m1, TempID: "tmp1"}
	broadcast := events.MessageNew{ConversationID: conv, Message: m1}
	rest := RestConfirmed{TempID: "tmp1", Message: m1}

	tests := []struct {
		name    string
		actions []any
	}{
		{"confirmation first", []any{optimistic, sent, broadcast}},
		{"broadcast first", []any{optimistic, broadcast, sent}},
		{"rest fallback then broadcast", []any{optimistic, rest, broadcast}},
		{"broadcast then rest fallback", []any{optimistic, broadcast, rest}},
		{"duplicate confirmation", []any{optimistic, sent, sent}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := apply(Thread{ConversationID: conv}, tt.actions...)
			assert.Equal(t, []uuid.UUID{m1.ID}, ids(state))
			assert.Empty(t, state.PendingSends())
		})
	}
}

func TestBroadcastLeavesMatchingPlaceholderAlone(t *testing.T) {
	m1 := serverMessage(alice, "hi", 0)
	state := apply(Thread{ConversationID: conv},
		Optimistic{TempID: "tmp1", SenderID: alice, Content: "hi", At: epoch},
		events.MessageNew{ConversationID: conv, Message: m1},
	)

	require.Len(t, state.Items, 2)
	assert.Equal(t, m1.ID, state.Items[0].ID, "confirmed rows sort ahead of placeholders")
	assert.True(t, state.Items[1].Pending())
}

func TestConfirmationWithoutPlaceholderInserts(t *testing.T) {
	m1 := serverMessage(alice, "from another tab", 0)
	state := Messages(Thread{ConversationID: conv}, events.MessageSent{ConversationID: conv, Message: m1, TempID: "unknown"})
	assert.Equal(t, []uuid.UUID{m1.ID}, ids(state))
}

func TestReducerDoesNotMutateInput(t *testing.T) {
	m1 := serverMessage(bob, "one", 0)
	before := apply(Thread{ConversationID: conv},
		PageLoaded{Messages: []*models.Message{m1}, Page: 1},
		Optimistic{TempID: "tmp1", SenderID: alice, Content: "two", At: epoch.Add(time.Second)},
	)
	snapshot := append([]Item(nil), before.Items...)

	after := apply(before,
		events.MessageRead{ConversationID: conv, UserID: alice},
		SendFailed{TempID: "tmp1", Reason: "offline"},
		events.MessageDeleted{ConversationID: conv, MessageID: m1.ID},
	)

	assert.Equal(t, snapshot, before.Items)
	assert.Empty(t, before.Items[0].ReadBy)
	assert.Len(t, after.Items, 1)
	assert.True(t, after.Items[0].Failed)
}

func TestReadReceipts(t *testing.T) {
	fromBob := serverMessage(bob, "question", 0)
	fromAlice := serverMessage(alice, "answer", time.Second)
	base := Messages(Thread{ConversationID: conv}, PageLoaded{Messages: []*models.Message{fromBob, fromAlice}, Page: 1})

	t.Run("whole conversation skips own messages", func(t *testing.T) {
		state := Messages(base, events.MessageRead{ConversationID: conv, UserID: alice})
		assert.True(t, state.Items[0].IsReadBy(alice))
		assert.False(t, state.Items[1].IsReadBy(alice))
	})

	t.Run("single message", func(t *testing.T) {
		state := Messages(base, events.MessageRead{ConversationID: conv, UserID: bob, MessageID: &fromAlice.ID})
		assert.False(t, state.Items[0].IsReadBy(bob))
		assert.True(t, state.Items[1].IsReadBy(bob))
	})

	t.Run("idempotent", func(t *testing.T) {
		read := events.MessageRead{ConversationID: conv, UserID: alice}
		state := apply(base, read, read)
		assert.Len(t, state.Items[0].ReadBy, 1)
	})

	t.Run("unseen message is ignored", func(t *testing.T) {
		unseen := uuid.New()
		state := Messages(base, events.MessageRead{ConversationID: conv, UserID: bob, MessageID: &unseen})
		assert.Equal(t, base, state)
	})

	t.Run("other conversation is ignored", func(t *testing.T) {
		state := Messages(base, events.MessageRead{ConversationID: uuid.New(), UserID: alice})
		assert.Equal(t, base, state)
	})
}

func TestDeleteUnknownIsNoop(t *testing.T) {
	m1 := serverMessage(bob, "keep", 0)
	base := Messages(Thread{ConversationID: conv}, PageLoaded{Messages: []*models.Message{m1}, Page: 1})
	state := Messages(base, events.MessageDeleted{ConversationID: conv, MessageID: uuid.New()})
	assert.Equal(t, base, state)
}

func TestOlderPagesArePrependedAndDeduped(t *testing.T) {
	m1 := serverMessage(bob, "1", 0)
	m2 := serverMessage(alice, "2", time.Second)
	m3 := serverMessage(bob, "3", 2*time.Second)
	m4 := serverMessage(alice, "4", 3*time.Second)

	state := apply(Thread{ConversationID: conv},
		PageLoaded{Messages: []*models.Message{m3, m4}, HasMore: true, Page: 1},
		Optimistic{TempID: "tmp1", SenderID: alice, Content: "5", At: epoch.Add(4 * time.Second)},
		// m3 moved into page 2 after a newer message shifted the window.
		PageLoaded{Messages: []*models.Message{m1, m2, m3}, HasMore: false, Page: 2},
	)

	assert.Equal(t, []uuid.UUID{m1.ID, m2.ID, m3.ID, m4.ID, uuid.Nil}, ids(state))
	assert.Equal(t, "tmp1", state.Items[4].TempID)
	assert.Equal(t, 2, state.Page)
	assert.False(t, state.HasMore)

	refreshed := Messages(state, PageLoaded{Messages: []*models.Message{m3, m4}, HasMore: true, Page: 1})
	assert.Equal(t, ids(state), ids(refreshed))
	assert.Equal(t, 2, refreshed.Page, "reloading page 1 keeps the older pages")
	assert.False(t, refreshed.HasMore)
}

func TestLateBroadcastIsOrderedByCreation(t *testing.T) {
	m1 := serverMessage(bob, "1", 0)
	m3 := serverMessage(bob, "3", 2*time.Second)
	m2 := serverMessage(alice, "2", time.Second)

	state := apply(Thread{ConversationID: conv},
		PageLoaded{Messages: []*models.Message{m1, m3}, Page: 1},
		events.MessageNew{ConversationID: conv, Message: m2},
	)
	assert.Equal(t, []uuid.UUID{m1.ID, m2.ID, m3.ID}, ids(state))
}

func TestFailedSendCanBeRetried(t *testing.T) {
	state := apply(Thread{ConversationID: conv},
		Optimistic{TempID: "tmp1", SenderID: alice, Content: "hi", At: epoch},
		SendFailed{TempID: "tmp1", Reason: "rate limit exceeded"},
	)
	require.Len(t, state.Items, 1)
	assert.True(t, state.Items[0].Failed)
	assert.Equal(t, "rate limit exceeded", state.Items[0].FailReason)
	assert.Empty(t, state.PendingSends())

	state = Messages(state, Retry{TempID: "tmp1"})
	assert.Len(t, state.PendingSends(), 1)

	m1 := serverMessage(alice, "hi", 0)
	state = Messages(state, RestConfirmed{TempID: "tmp1", Message: m1})
	assert.Equal(t, []uuid.UUID{m1.ID}, ids(state))
}

func TestDuplicateOptimisticIgnored(t *testing.T) {
	op := Optimistic{TempID: "tmp1", SenderID: alice, Content: "hi", At: epoch}
	state := apply(Thread{ConversationID: conv}, op, op)
	assert.Len(t, state.Items, 1)
}

func TestRefetchResolvesSendWhoseConfirmationWasLost(t *testing.T) {
	stored := serverMessage(alice, "hi", time.Second)
	stored.ClientID = "tmp1"

	state := apply(Thread{ConversationID: conv},
		Optimistic{TempID: "tmp1", SenderID: alice, Content: "hi", At: epoch.Add(time.Second)},
		SendFailed{TempID: "tmp1", Reason: "connection lost"},
		PageLoaded{Messages: []*models.Message{stored}, Page: 1},
	)

	require.Len(t, state.Items, 1)
	assert.Equal(t, stored.ID, state.Items[0].ID)
	assert.Equal(t, "tmp1", state.Items[0].TempID)
	assert.False(t, state.Items[0].Optimistic)
	assert.False(t, state.Items[0].Failed)

	again := Messages(state, events.MessageSent{ConversationID: conv, Message: stored, TempID: "tmp1"})
	assert.Equal(t, []uuid.UUID{stored.ID}, ids(again), "a late confirmation adds nothing")
}

func TestRefetchKeepsPlaceholdersItDoesNotHold(t *testing.T) {
	other := serverMessage(alice, "hi", time.Second)
	other.ClientID = "tmp-elsewhere"
	fromBob := serverMessage(bob, "hi", 2*time.Second)
	fromBob.ClientID = "tmp1"

	state := apply(Thread{ConversationID: conv},
		Optimistic{TempID: "tmp1", SenderID: alice, Content: "hi", At: epoch.Add(time.Second)},
		SendFailed{TempID: "tmp1", Reason: "connection lost"},
		PageLoaded{Messages: []*models.Message{other, fromBob}, Page: 1},
	)

	require.Len(t, state.Items, 3)
	assert.Equal(t, "tmp1", state.Items[2].TempID)
	assert.True(t, state.Items[2].Failed)
}

func TestBroadcastCarryingClientIDResolvesPlaceholder(t *testing.T) {
	stored := serverMessage(alice, "hi", time.Second)
	stored.ClientID = "tmp1"

	state := apply(Thread{ConversationID: conv},
		Optimistic{TempID: "tmp1", SenderID: alice, Content: "hi", At: epoch.Add(time.Second)},
		events.MessageNew{ConversationID: conv, Message: stored},
	)

	require.Len(t, state.Items, 1)
	assert.Equal(t, stored.ID, state.Items[0].ID)
	assert.False(t, state.Items[0].Optimistic)
}
