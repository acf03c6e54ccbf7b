// Package client is a Go chat client. It keeps one reconciled view per
// open conversation, sends over the WebSocket when connected and falls
// back to REST otherwise, and re-joins its rooms after a reconnect.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ammar1510/alumni-chat/internal/apperrors"
	"github.com/ammar1510/alumni-chat/internal/auth"
	"github.com/ammar1510/alumni-chat/internal/events"
	"github.com/ammar1510/alumni-chat/internal/logger"
	"github.com/ammar1510/alumni-chat/internal/reconcile"
)

const (
	writeWait   = 10 * time.Second
	minBackoff  = 250 * time.Millisecond
	maxBackoff  = 30 * time.Second
	defaultPage = 20
	typingIdle  = 2 * time.Second
)

var (
	// ErrOffline is returned by socket-only operations while disconnected.
	ErrOffline = errors.New("not connected")
	// ErrNotOpen is returned when acting on a conversation that was not opened.
	ErrNotOpen = errors.New("conversation is not open")

	log = logger.New("client")
)

// Options configure a Client.
type Options struct {
	// BaseURL is the server root, e.g. http://localhost:8080.
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Dialer     *websocket.Dialer
	PageSize   int
	// TypingIdle is how long after the last StartTyping the client sends
	// typing:stop on its own. Defaults to two seconds.
	TypingIdle time.Duration
	// OnEvent is called after each server event is applied. It runs on
	// the read goroutine and must not block.
	OnEvent func(events.Event)
}

type Client struct {
	opts   Options
	self   uuid.UUID
	http   *http.Client
	dialer *websocket.Dialer

	mu        sync.Mutex
	threads   map[uuid.UUID]reconcile.Thread
	inbox     reconcile.Inbox
	typing    map[uuid.UUID]map[uuid.UUID]bool
	online    map[uuid.UUID]bool
	viaSocket map[string]uuid.UUID // tempID -> conversation, awaiting message:sent
	idle      map[uuid.UUID]*time.Timer
	conn      *websocket.Conn
	closed    bool

	writeMu sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a client for the user named by the token. The token is
// verified by the server, not here.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	self, err := tokenUser(opts.Token)
	if err != nil {
		return nil, err
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPage
	}
	if opts.TypingIdle <= 0 {
		opts.TypingIdle = typingIdle
	}

	c := &Client{
		opts:      opts,
		self:      self,
		http:      opts.HTTPClient,
		dialer:    opts.Dialer,
		threads:   make(map[uuid.UUID]reconcile.Thread),
		inbox:     reconcile.Inbox{Self: self},
		typing:    make(map[uuid.UUID]map[uuid.UUID]bool),
		online:    make(map[uuid.UUID]bool),
		viaSocket: make(map[string]uuid.UUID),
		idle:      make(map[uuid.UUID]*time.Timer),
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 15 * time.Second}
	}
	if c.dialer == nil {
		c.dialer = websocket.DefaultDialer
	}
	return c, nil
}

func tokenUser(token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, auth.ErrMissingToken
	}
	claims := &auth.JWTClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
	}
	id := claims.UserID
	if id == "" {
		id = claims.Subject
	}
	userID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad user id", auth.ErrInvalidToken)
	}
	return userID, nil
}

// Self is the signed-in user.
func (c *Client) Self() uuid.UUID { return c.self }

// Connect opens the WebSocket. After a successful first dial the client
// keeps reconnecting with backoff until Close.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil || c.closed {
		c.mu.Unlock()
		return errors.New("client already connected or closed")
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		c.mu.Lock()
		c.cancel()
		c.cancel = nil
		c.mu.Unlock()
		return err
	}
	if !c.setConn(conn) {
		return errors.New("client closed")
	}
	c.wg.Add(1)
	go c.maintain(conn)
	return nil
}

// Close stops reconnecting and closes the socket.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	cancel := c.cancel
	for id, t := range c.idle {
		t.Stop()
		delete(c.idle, id)
	}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		c.writeMu.Lock()
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		conn.Close()
	}
	c.wg.Wait()
	return nil
}

// Connected reports whether the socket is currently up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.opts.BaseURL + "/api/chat/ws")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.RawQuery = url.Values{"token": {c.opts.Token}}.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", u.Host, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Host, err)
	}
	return conn, nil
}

func (c *Client) setConn(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		conn.Close()
		return false
	}
	c.conn = conn
	return true
}

// maintain owns the read side of the current connection and replaces it
// when it drops.
func (c *Client) maintain(conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		c.readLoop(conn)
		c.connectionLost(conn)

		next, ok := c.redial()
		if !ok {
			return
		}
		if !c.setConn(next) {
			return
		}
		conn = next
		log.Info("reconnected as %s", c.self)
		c.resume(c.ctx)
	}
}

func (c *Client) redial() (*websocket.Conn, bool) {
	backoff := minBackoff
	for {
		select {
		case <-c.ctx.Done():
			return nil, false
		case <-time.After(backoff):
		}
		conn, err := c.dial(c.ctx)
		if err == nil {
			return conn, true
		}
		log.Warn("reconnect failed: %v", err)
		backoff = min(backoff*2, maxBackoff)
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("connection lost: %v", err)
			}
			return
		}
		ev, err := events.DecodeServer(raw)
		if err != nil {
			log.Warn("dropping frame: %v", err)
			continue
		}
		c.apply(ev)
	}
}

// connectionLost fails sends that were waiting on the dropped socket;
// their confirmation will never arrive on a new one.
func (c *Client) connectionLost(conn *websocket.Conn) {
	conn.Close()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn = nil
	}
	for tempID, conversationID := range c.viaSocket {
		c.applyThread(conversationID, reconcile.SendFailed{TempID: tempID, Reason: "connection lost"})
	}
	c.viaSocket = make(map[string]uuid.UUID)
	c.typing = make(map[uuid.UUID]map[uuid.UUID]bool)
}

// resume re-joins every open room and refetches the newest page of each
// to pick up what was missed while offline.
func (c *Client) resume(ctx context.Context) {
	for _, conversationID := range c.openThreads() {
		if err := c.emit(events.JoinConversation{ConversationID: conversationID}); err != nil {
			log.Warn("rejoin %s: %v", conversationID, err)
			return
		}
		if err := c.loadPage(ctx, conversationID, 1); err != nil {
			log.Warn("refresh %s: %v", conversationID, err)
		}
	}
}

func (c *Client) openThreads() []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(c.threads))
	for id := range c.threads {
		ids = append(ids, id)
	}
	return ids
}

func (c *Client) emit(ev events.Event) error {
	frame, err := events.Encode(ev)
	if err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrOffline
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) apply(ev events.Event) {
	c.mu.Lock()
	switch e := ev.(type) {
	case events.MessageSent:
		delete(c.viaSocket, e.TempID)
		c.applyThread(e.ConversationID, e)
	case events.MessageNew:
		c.applyThread(e.ConversationID, e)
	case events.MessageDeleted:
		c.applyThread(e.ConversationID, e)
	case events.MessageRead:
		c.applyThread(e.ConversationID, e)
		c.inbox = reconcile.Conversations(c.inbox, e)
	case events.MessageError:
		if conversationID, ok := c.viaSocket[e.TempID]; ok && e.TempID != "" {
			delete(c.viaSocket, e.TempID)
			c.applyThread(conversationID, reconcile.SendFailed{TempID: e.TempID, Reason: e.Error})
		} else {
			log.Warn("server error %s: %s", e.Code, e.Error)
		}
	case events.ConversationUpdate:
		c.inbox = reconcile.Conversations(c.inbox, e)
	case events.TypingStarted:
		if c.typing[e.ConversationID] == nil {
			c.typing[e.ConversationID] = make(map[uuid.UUID]bool)
		}
		c.typing[e.ConversationID][e.UserID] = true
	case events.TypingStopped:
		delete(c.typing[e.ConversationID], e.UserID)
	case events.UserOnline:
		c.online[e.UserID] = true
	case events.UserOffline:
		delete(c.online, e.UserID)
	}
	c.mu.Unlock()

	if c.opts.OnEvent != nil {
		c.opts.OnEvent(ev)
	}
}

// applyThread runs the message reducer on an open thread. Callers hold mu.
func (c *Client) applyThread(conversationID uuid.UUID, action any) {
	if thread, ok := c.threads[conversationID]; ok {
		c.threads[conversationID] = reconcile.Messages(thread, action)
	}
}

// Open loads the newest page of a conversation and subscribes to its
// room. The room is joined before the fetch so nothing published in
// between is lost; the page merge drops duplicates.
func (c *Client) Open(ctx context.Context, conversationID uuid.UUID) error {
	c.mu.Lock()
	if _, ok := c.threads[conversationID]; !ok {
		c.threads[conversationID] = reconcile.Thread{ConversationID: conversationID}
	}
	c.inbox = reconcile.Conversations(c.inbox, reconcile.Opened{ConversationID: conversationID})
	c.mu.Unlock()

	if err := c.emit(events.JoinConversation{ConversationID: conversationID}); err != nil && !errors.Is(err, ErrOffline) {
		log.Warn("join %s: %v", conversationID, err)
	}
	if err := c.loadPage(ctx, conversationID, 1); err != nil {
		c.mu.Lock()
		delete(c.threads, conversationID)
		c.mu.Unlock()
		return err
	}
	return nil
}

// LoadOlder fetches the next page back in history, if there is one.
func (c *Client) LoadOlder(ctx context.Context, conversationID uuid.UUID) error {
	thread, ok := c.Thread(conversationID)
	if !ok {
		return ErrNotOpen
	}
	if !thread.HasMore {
		return nil
	}
	return c.loadPage(ctx, conversationID, thread.Page+1)
}

func (c *Client) loadPage(ctx context.Context, conversationID uuid.UUID, page int) error {
	msgs, hasMore, err := c.fetchMessages(ctx, conversationID, page)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyThread(conversationID, reconcile.PageLoaded{Messages: msgs, HasMore: hasMore, Page: page})
	return nil
}

// CloseThread unsubscribes from a conversation and forgets its history.
func (c *Client) CloseThread(conversationID uuid.UUID) {
	c.mu.Lock()
	delete(c.threads, conversationID)
	delete(c.typing, conversationID)
	if t, ok := c.idle[conversationID]; ok {
		t.Stop()
		delete(c.idle, conversationID)
	}
	if c.inbox.Open == conversationID {
		c.inbox = reconcile.Conversations(c.inbox, reconcile.Closed{})
	}
	c.mu.Unlock()

	if err := c.emit(events.LeaveConversation{ConversationID: conversationID}); err != nil && !errors.Is(err, ErrOffline) {
		log.Warn("leave %s: %v", conversationID, err)
	}
}

// Send shows the message immediately and delivers it. The returned
// tempID identifies the placeholder until it is confirmed.
func (c *Client) Send(ctx context.Context, conversationID uuid.UUID, content string) (string, error) {
	tempID := "tmp-" + uuid.NewString()
	c.mu.Lock()
	if _, ok := c.threads[conversationID]; !ok {
		c.mu.Unlock()
		return "", ErrNotOpen
	}
	c.applyThread(conversationID, reconcile.Optimistic{
		TempID:   tempID,
		SenderID: c.self,
		Content:  content,
		At:       time.Now(),
	})
	c.mu.Unlock()

	return tempID, c.deliver(ctx, conversationID, tempID, content)
}

// Retry resends a failed placeholder.
func (c *Client) Retry(ctx context.Context, conversationID uuid.UUID, tempID string) error {
	c.mu.Lock()
	thread, ok := c.threads[conversationID]
	if !ok {
		c.mu.Unlock()
		return ErrNotOpen
	}
	var content string
	found := false
	for _, it := range thread.Items {
		if it.Optimistic && it.TempID == tempID && it.Failed {
			content, found = it.Content, true
			break
		}
	}
	if !found {
		c.mu.Unlock()
		return apperrors.NotFound("no failed message " + tempID)
	}
	c.applyThread(conversationID, reconcile.Retry{TempID: tempID})
	c.mu.Unlock()

	return c.deliver(ctx, conversationID, tempID, content)
}

// deliver sends over the socket when it is up. Otherwise the REST
// response is authoritative and resolves the placeholder directly.
func (c *Client) deliver(ctx context.Context, conversationID uuid.UUID, tempID, content string) error {
	c.mu.Lock()
	c.viaSocket[tempID] = conversationID
	c.mu.Unlock()

	err := c.emit(events.SendMessage{ConversationID: conversationID, Content: content, TempID: tempID})
	if err == nil {
		return nil
	}
	c.mu.Lock()
	delete(c.viaSocket, tempID)
	c.mu.Unlock()
	if !errors.Is(err, ErrOffline) {
		log.Warn("socket send failed, using REST: %v", err)
	}

	msg, err := c.postMessage(ctx, conversationID, content, tempID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.applyThread(conversationID, reconcile.SendFailed{TempID: tempID, Reason: apperrors.From(err).Message})
		return err
	}
	c.applyThread(conversationID, reconcile.RestConfirmed{TempID: tempID, Message: msg})
	return nil
}

// MarkRead marks everything the other participant sent as read.
func (c *Client) MarkRead(ctx context.Context, conversationID uuid.UUID) error {
	err := c.emit(events.MarkRead{ConversationID: conversationID})
	if err != nil {
		if err = c.markReadREST(ctx, conversationID); err != nil {
			return err
		}
	}
	// The server does not echo our own read back to this session.
	c.mu.Lock()
	read := events.MessageRead{ConversationID: conversationID, UserID: c.self}
	c.applyThread(conversationID, read)
	c.inbox = reconcile.Conversations(c.inbox, read)
	c.mu.Unlock()
	return nil
}

// Delete removes one of our messages. The socket path is confirmed by
// the message:deleted broadcast.
func (c *Client) Delete(ctx context.Context, conversationID, messageID uuid.UUID) error {
	if err := c.emit(events.DeleteMessage{ConversationID: conversationID, MessageID: messageID}); err == nil {
		return nil
	}
	if err := c.deleteREST(ctx, messageID); err != nil {
		return err
	}
	c.mu.Lock()
	c.applyThread(conversationID, events.MessageDeleted{ConversationID: conversationID, MessageID: messageID})
	c.mu.Unlock()
	return nil
}

// StartTyping tells the room we are typing. Call it again on every
// keystroke; once the calls stop for TypingIdle the client sends
// typing:stop itself. Typing only travels over the socket.
func (c *Client) StartTyping(conversationID, receiverID uuid.UUID) error {
	if err := c.emit(events.StartTyping{ConversationID: conversationID, ReceiverID: receiverID}); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.idle[conversationID]; ok {
		t.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(c.opts.TypingIdle, func() {
		c.typingIdle(conversationID, receiverID, timer)
	})
	c.idle[conversationID] = timer
	return nil
}

func (c *Client) StopTyping(conversationID, receiverID uuid.UUID) error {
	c.mu.Lock()
	if t, ok := c.idle[conversationID]; ok {
		t.Stop()
		delete(c.idle, conversationID)
	}
	c.mu.Unlock()
	return c.emit(events.StopTyping{ConversationID: conversationID, ReceiverID: receiverID})
}

// typingIdle fires when StartTyping was not refreshed in time. A timer
// replaced by a later StartTyping does nothing.
func (c *Client) typingIdle(conversationID, receiverID uuid.UUID, timer *time.Timer) {
	c.mu.Lock()
	if c.idle[conversationID] != timer {
		c.mu.Unlock()
		return
	}
	delete(c.idle, conversationID)
	c.mu.Unlock()

	if err := c.emit(events.StopTyping{ConversationID: conversationID, ReceiverID: receiverID}); err != nil && !errors.Is(err, ErrOffline) {
		log.Warn("typing stop %s: %v", conversationID, err)
	}
}

// LoadConversations replaces the inbox with the first page from the server.
func (c *Client) LoadConversations(ctx context.Context) error {
	views, err := c.fetchConversations(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.inbox = reconcile.Conversations(c.inbox, reconcile.InboxLoaded{Items: views})
	if c.inbox.Open != uuid.Nil {
		c.inbox = reconcile.Conversations(c.inbox, reconcile.Opened{ConversationID: c.inbox.Open})
	}
	c.mu.Unlock()
	return nil
}

// Thread returns a snapshot of an open conversation.
func (c *Client) Thread(conversationID uuid.UUID) (reconcile.Thread, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.threads[conversationID]
	return t, ok
}

// Inbox returns a snapshot of the conversation list.
func (c *Client) Inbox() reconcile.Inbox {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inbox
}

// Typing lists who is typing in a conversation.
func (c *Client) Typing(conversationID uuid.UUID) []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []uuid.UUID
	for id := range c.typing[conversationID] {
		out = append(out, id)
	}
	return out
}

// Online reports presence as last announced by the server.
func (c *Client) Online(userID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online[userID]
}

// Messages is a convenience for rendering: the confirmed and pending
// rows of a thread in display order.
func (c *Client) Messages(conversationID uuid.UUID) []reconcile.Item {
	t, _ := c.Thread(conversationID)
	return t.Items
}
