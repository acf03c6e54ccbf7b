package realtime_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammar1510/alumni-chat/internal/api"
	"github.com/ammar1510/alumni-chat/internal/auth"
	"github.com/ammar1510/alumni-chat/internal/cache"
	"github.com/ammar1510/alumni-chat/internal/chat"
	"github.com/ammar1510/alumni-chat/internal/database"
	"github.com/ammar1510/alumni-chat/internal/events"
	"github.com/ammar1510/alumni-chat/internal/models"
	"github.com/ammar1510/alumni-chat/internal/realtime"
)

type gatewayFixture struct {
	server *httptest.Server
	svc    *chat.Service
	hub    *realtime.Hub
	users  map[string]*models.User
}

func newGatewayFixture(t *testing.T, opts realtime.Options, svcOpts ...chat.Option) *gatewayFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth.InitJWTKey([]byte("gateway-test-secret"))

	db := database.NewMemoryDB()
	hub := realtime.NewHub(realtime.NewRegistry(), realtime.NewLocalBroker(0))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	svc := chat.NewService(db, cache.NewMemoryUnread(), hub, svcOpts...)
	gw := realtime.NewGateway(svc, hub, opts)
	server := httptest.NewServer(api.NewRouter(api.RouterConfig{Service: svc, WebSocket: gw, Presence: hub}))
	t.Cleanup(func() {
		cancel()
		server.Close()
	})

	f := &gatewayFixture{server: server, svc: svc, hub: hub, users: map[string]*models.User{}}
	for _, name := range []string{"ada", "bea", "cy"} {
		u := &models.User{ID: uuid.New(), Name: name, Email: name + "@alumni.test"}
		db.AddUser(u)
		f.users[name] = u
	}
	return f
}

// conversation connects a and b and opens their thread.
func (f *gatewayFixture) conversation(t *testing.T, a, b string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	conn, err := f.svc.SendRequest(ctx, f.users[a].ID, f.users[b].ID, "")
	require.NoError(t, err)
	_, err = f.svc.Respond(ctx, f.users[b].ID, conn.ID, models.ActionAccept)
	require.NoError(t, err)
	view, _, err := f.svc.GetOrCreateConversation(ctx, f.users[a].ID, f.users[b].ID)
	require.NoError(t, err)
	return view.ID
}

func (f *gatewayFixture) token(t *testing.T, name string) string {
	t.Helper()
	token, _, err := auth.GenerateToken(f.users[name], time.Hour)
	require.NoError(t, err)
	return token
}

func (f *gatewayFixture) dial(t *testing.T, name string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/chat/ws?token=" + f.token(t, name)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// join subscribes conn to the conversation and waits until the hub
// sees the membership.
func (f *gatewayFixture) join(t *testing.T, conn *websocket.Conn, conversationID uuid.UUID) {
	t.Helper()
	room := events.ConversationRoom(conversationID)
	before := len(f.hub.Registry().Members(room))
	emit(t, conn, events.JoinConversation{ConversationID: conversationID})
	require.Eventually(t, func() bool {
		return len(f.hub.Registry().Members(room)) == before+1
	}, 2*time.Second, 10*time.Millisecond)
}

func emit(t *testing.T, conn *websocket.Conn, ev events.Event) {
	t.Helper()
	frame, err := events.Encode(ev)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

// expect reads frames until one named name arrives.
func expect(t *testing.T, conn *websocket.Conn, name string) events.Event {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", name)
		ev, err := events.DecodeServer(raw)
		require.NoError(t, err)
		if ev.EventName() == name {
			return ev
		}
	}
}

// expectNone fails if a frame named name arrives within wait. The
// connection is unusable afterwards.
func expectNone(t *testing.T, conn *websocket.Conn, name string, wait time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		ev, err := events.DecodeServer(raw)
		require.NoError(t, err)
		assert.NotEqual(t, name, ev.EventName(), "unexpected %s", name)
	}
}

func TestUpgradeRequiresToken(t *testing.T) {
	f := newGatewayFixture(t, realtime.Options{})
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/chat/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url+"?token=forged", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, f.hub.Registry().Len())
}

func TestSendMessageOverSocket(t *testing.T) {
	f := newGatewayFixture(t, realtime.Options{})
	convID := f.conversation(t, "ada", "bea")

	ada := f.dial(t, "ada")
	bea := f.dial(t, "bea")
	f.join(t, ada, convID)
	f.join(t, bea, convID)

	emit(t, ada, events.SendMessage{ConversationID: convID, Content: "hello", TempID: "tmp1"})

	sent := expect(t, ada, events.NameMessageSent).(events.MessageSent)
	assert.Equal(t, "tmp1", sent.TempID)
	assert.Equal(t, "hello", sent.Message.Content)
	assert.Equal(t, f.users["ada"].ID, sent.Message.SenderID)

	news := expect(t, bea, events.NameMessageNew).(events.MessageNew)
	assert.Equal(t, sent.Message.ID, news.Message.ID)
	require.NotNil(t, news.Message.Sender)
	assert.Equal(t, "ada", news.Message.Sender.Name)

	update := expect(t, bea, events.NameConversationUpdate).(events.ConversationUpdate)
	assert.Equal(t, convID, update.ConversationID)
	assert.Equal(t, "hello", update.LastMessage.Content)

	expectNone(t, ada, events.NameMessageNew, 200*time.Millisecond)
}

func TestReadAndDeleteBroadcast(t *testing.T) {
	f := newGatewayFixture(t, realtime.Options{})
	convID := f.conversation(t, "ada", "bea")
	msg, err := f.svc.SendMessage(context.Background(), f.users["ada"].ID, convID, "did you get this?", "")
	require.NoError(t, err)

	ada := f.dial(t, "ada")
	bea := f.dial(t, "bea")
	f.join(t, ada, convID)
	f.join(t, bea, convID)

	emit(t, bea, events.MarkRead{ConversationID: convID, MessageID: &msg.ID})
	read := expect(t, ada, events.NameMessageRead).(events.MessageRead)
	assert.Equal(t, f.users["bea"].ID, read.UserID)
	require.NotNil(t, read.MessageID)
	assert.Equal(t, msg.ID, *read.MessageID)

	emit(t, bea, events.MarkRead{ConversationID: convID})
	read = expect(t, ada, events.NameMessageRead).(events.MessageRead)
	assert.Nil(t, read.MessageID)

	emit(t, ada, events.DeleteMessage{ConversationID: convID, MessageID: msg.ID})
	deleted := expect(t, bea, events.NameMessageDeleted).(events.MessageDeleted)
	assert.Equal(t, msg.ID, deleted.MessageID)
	expect(t, ada, events.NameMessageDeleted)
}

func TestSocketErrorsGoToSenderOnly(t *testing.T) {
	f := newGatewayFixture(t, realtime.Options{})
	convID := f.conversation(t, "ada", "bea")

	ada := f.dial(t, "ada")
	cy := f.dial(t, "cy")

	emit(t, cy, events.JoinConversation{ConversationID: convID})
	denied := expect(t, cy, events.NameMessageError).(events.MessageError)
	assert.Equal(t, "FORBIDDEN", denied.Code)
	assert.Empty(t, f.hub.Registry().Members(events.ConversationRoom(convID)))

	emit(t, ada, events.SendMessage{ConversationID: convID, Content: "   ", TempID: "tmp-empty"})
	invalid := expect(t, ada, events.NameMessageError).(events.MessageError)
	assert.Equal(t, "INVALID_ARGUMENT", invalid.Code)
	assert.Equal(t, "tmp-empty", invalid.TempID)

	emit(t, ada, events.SendMessage{ConversationID: uuid.New(), Content: "hi", TempID: "tmp-404"})
	missing := expect(t, ada, events.NameMessageError).(events.MessageError)
	assert.Equal(t, "NOT_FOUND", missing.Code)

	require.NoError(t, ada.WriteMessage(websocket.TextMessage, []byte(`{"event":"message:teleport","data":{}}`)))
	unknown := expect(t, ada, events.NameMessageError).(events.MessageError)
	assert.Equal(t, "INVALID_ARGUMENT", unknown.Code)

	require.NoError(t, ada.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	expect(t, ada, events.NameMessageError)
}

func TestSendIsRateLimited(t *testing.T) {
	f := newGatewayFixture(t, realtime.Options{}, chat.WithRateLimiter(cache.NewMemoryRateLimiter(2, time.Minute)))
	convID := f.conversation(t, "ada", "bea")
	ada := f.dial(t, "ada")

	for i, temp := range []string{"t1", "t2", "t3"} {
		emit(t, ada, events.SendMessage{ConversationID: convID, Content: "spam", TempID: temp})
		if i < 2 {
			assert.Equal(t, temp, expect(t, ada, events.NameMessageSent).(events.MessageSent).TempID)
		}
	}
	limited := expect(t, ada, events.NameMessageError).(events.MessageError)
	assert.Equal(t, "RATE_LIMITED", limited.Code)
	assert.Equal(t, "t3", limited.TempID)
}

// postMessage sends over REST as name and returns the status code.
func (f *gatewayFixture) postMessage(t *testing.T, name string, convID uuid.UUID, content string) int {
	t.Helper()
	body, err := json.Marshal(gin.H{"conversationId": convID, "content": content})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/chat/messages", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+f.token(t, name))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestRateLimitIsSharedAcrossSessionsAndREST(t *testing.T) {
	f := newGatewayFixture(t, realtime.Options{}, chat.WithRateLimiter(cache.NewMemoryRateLimiter(3, time.Minute)))
	convID := f.conversation(t, "ada", "bea")
	laptop := f.dial(t, "ada")
	phone := f.dial(t, "ada")

	emit(t, laptop, events.SendMessage{ConversationID: convID, Content: "from laptop", TempID: "l1"})
	assert.Equal(t, "l1", expect(t, laptop, events.NameMessageSent).(events.MessageSent).TempID)
	emit(t, phone, events.SendMessage{ConversationID: convID, Content: "from phone", TempID: "p1"})
	assert.Equal(t, "p1", expect(t, phone, events.NameMessageSent).(events.MessageSent).TempID)
	assert.Equal(t, http.StatusCreated, f.postMessage(t, "ada", convID, "from the web"))

	assert.Equal(t, http.StatusTooManyRequests, f.postMessage(t, "ada", convID, "one more"))
	emit(t, phone, events.SendMessage{ConversationID: convID, Content: "and another", TempID: "p2"})
	limited := expect(t, phone, events.NameMessageError).(events.MessageError)
	assert.Equal(t, "RATE_LIMITED", limited.Code)
	assert.Equal(t, "p2", limited.TempID)

	assert.Equal(t, http.StatusCreated, f.postMessage(t, "bea", convID, "my budget is separate"))
}

func TestResendWithSameTempIDConfirmsStoredMessage(t *testing.T) {
	f := newGatewayFixture(t, realtime.Options{})
	convID := f.conversation(t, "ada", "bea")
	ada := f.dial(t, "ada")

	emit(t, ada, events.SendMessage{ConversationID: convID, Content: "once", TempID: "tmp-1"})
	first := expect(t, ada, events.NameMessageSent).(events.MessageSent)
	emit(t, ada, events.SendMessage{ConversationID: convID, Content: "once", TempID: "tmp-1"})
	second := expect(t, ada, events.NameMessageSent).(events.MessageSent)

	assert.Equal(t, first.Message.ID, second.Message.ID)
	assert.Equal(t, "tmp-1", second.Message.ClientID)
	page, err := f.svc.ListMessages(context.Background(), f.users["bea"].ID, convID, chat.PageRequest{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func TestTypingIndicatorExpires(t *testing.T) {
	f := newGatewayFixture(t, realtime.Options{TypingTTL: 100 * time.Millisecond})
	convID := f.conversation(t, "ada", "bea")

	ada := f.dial(t, "ada")
	bea := f.dial(t, "bea")
	f.join(t, ada, convID)
	f.join(t, bea, convID)

	emit(t, ada, events.StartTyping{ConversationID: convID, ReceiverID: f.users["bea"].ID})
	started := expect(t, bea, events.NameTypingStart).(events.TypingStarted)
	assert.Equal(t, f.users["ada"].ID, started.UserID)

	stopped := expect(t, bea, events.NameTypingStop).(events.TypingStopped)
	assert.Equal(t, convID, stopped.ConversationID)
	assert.Equal(t, f.users["ada"].ID, stopped.UserID)
}

func TestPresence(t *testing.T) {
	f := newGatewayFixture(t, realtime.Options{})
	ada := f.dial(t, "ada")
	assert.True(t, f.hub.Online(f.users["ada"].ID))

	bea := f.dial(t, "bea")
	online := expect(t, ada, events.NameUserOnline).(events.UserOnline)
	assert.Equal(t, f.users["bea"].ID, online.UserID)

	require.NoError(t, bea.Close())
	offline := expect(t, ada, events.NameUserOffline).(events.UserOffline)
	assert.Equal(t, f.users["bea"].ID, offline.UserID)
	assert.False(t, f.hub.Online(f.users["bea"].ID))
}

func TestConnectionEventsReachPersonalRoom(t *testing.T) {
	f := newGatewayFixture(t, realtime.Options{})
	bea := f.dial(t, "bea")

	conn, err := f.svc.SendRequest(context.Background(), f.users["ada"].ID, f.users["bea"].ID, "hi, same cohort")
	require.NoError(t, err)

	req := expect(t, bea, events.NameConnectionRequest).(events.ConnectionRequest)
	assert.Equal(t, conn.ID, req.Connection.ID)
	require.NotNil(t, req.Connection.RequestMessage)
	assert.Equal(t, "hi, same cohort", *req.Connection.RequestMessage)
}
