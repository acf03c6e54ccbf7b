// Package realtime is the WebSocket side of chat: sessions, rooms,
// presence, typing indicators and event fan-out.
package realtime

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ammar1510/alumni-chat/internal/apperrors"
	"github.com/ammar1510/alumni-chat/internal/chat"
	"github.com/ammar1510/alumni-chat/internal/events"
)

const handlerTimeout = 10 * time.Second

// Options tune a Gateway. Zero values take the defaults.
type Options struct {
	// TypingTTL is how long a typing:start lasts without a refresh.
	TypingTTL time.Duration
	// AllowedOrigins restricts browser upgrades; empty allows any origin.
	AllowedOrigins []string
}

func (o Options) withDefaults() Options {
	if o.TypingTTL <= 0 {
		o.TypingTTL = 3 * time.Second
	}
	return o
}

// Gateway upgrades authenticated requests and routes client events to
// the chat service.
type Gateway struct {
	svc      *chat.Service
	hub      *Hub
	typing   *TypingTracker
	upgrader websocket.Upgrader
	opts     Options
}

func NewGateway(svc *chat.Service, hub *Hub, opts Options) *Gateway {
	opts = opts.withDefaults()
	g := &Gateway{svc: svc, hub: hub, opts: opts}
	g.typing = NewTypingTracker(opts.TypingTTL, g.typingExpired)
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return g
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		log.Warn("rejected websocket origin %s", origin)
		return false
	}
}

// HandleWebSocket upgrades a request that passed the auth middleware.
// The session is registered before the upgrade completes so events
// published right after the handshake are not missed.
func (g *Gateway) HandleWebSocket(c *gin.Context) {
	v, exists := c.Get("userID")
	userID, ok := v.(uuid.UUID)
	if !exists || !ok {
		log.Warn("no userID in context, rejecting connection from %s", c.Request.RemoteAddr)
		c.JSON(http.StatusUnauthorized, gin.H{"error": true, "code": apperrors.CodeUnauthenticated, "message": "unauthorized"})
		return
	}

	s := newSession(userID)
	first := g.hub.registry.Add(s)

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("failed to upgrade connection: %v", err)
		g.hub.Unregister(s)
		return
	}
	s.conn = conn

	go s.writePump()
	go s.readPump(g)
	log.Info("session %s connected for user %s", s.ID, userID)

	if first {
		g.hub.Publish(context.Background(), BroadcastRoom, s.ID, events.UserOnline{UserID: userID})
	}
}

// disconnect runs once the read loop ends.
func (g *Gateway) disconnect(s *Session) {
	for _, conversationID := range g.typing.StopSession(s.ID) {
		g.hub.Publish(context.Background(), events.ConversationRoom(conversationID), s.ID,
			events.TypingStopped{ConversationID: conversationID, UserID: s.UserID})
	}
	g.hub.Unregister(s)
}

func (g *Gateway) typingExpired(conversationID, userID uuid.UUID) {
	g.hub.Publish(context.Background(), events.ConversationRoom(conversationID), "",
		events.TypingStopped{ConversationID: conversationID, UserID: userID})
}

// handle decodes and runs one client frame. Failures are reported to
// the sending session only.
func (g *Gateway) handle(s *Session, raw []byte) {
	ctx, cancel := context.WithTimeout(events.WithOrigin(context.Background(), s.ID), handlerTimeout)
	defer cancel()

	var tempID string
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic handling frame from session %s: %v", s.ID, r)
			g.fail(ctx, s, apperrors.Internal("internal error", fmt.Errorf("%v", r)), tempID)
		}
	}()

	ev, err := events.DecodeClient(raw)
	if err != nil {
		g.fail(ctx, s, apperrors.InvalidArgument(err.Error()), "")
		return
	}

	switch e := ev.(type) {
	case events.JoinConversation:
		err = g.join(ctx, s, e)
	case events.LeaveConversation:
		g.hub.registry.Leave(s, events.ConversationRoom(e.ConversationID))
	case events.SendMessage:
		tempID = e.TempID
		err = g.sendMessage(ctx, s, e)
	case events.MarkRead:
		err = g.markRead(ctx, s, e)
	case events.StartTyping:
		err = g.startTyping(ctx, s, e)
	case events.StopTyping:
		g.stopTyping(ctx, s, e.ConversationID)
	case events.DeleteMessage:
		_, err = g.svc.DeleteMessage(ctx, s.UserID, e.MessageID)
	}
	if err != nil {
		g.fail(ctx, s, err, tempID)
	}
}

func (g *Gateway) fail(ctx context.Context, s *Session, err error, tempID string) {
	appErr := apperrors.From(err)
	if appErr.Code == apperrors.CodeInternal {
		log.Error("session %s: %v", s.ID, err)
	}
	g.hub.Send(ctx, s, events.MessageError{Error: appErr.Message, Code: string(appErr.Code), TempID: tempID})
}

func (g *Gateway) join(ctx context.Context, s *Session, e events.JoinConversation) error {
	if err := g.svc.IsParticipant(ctx, s.UserID, e.ConversationID); err != nil {
		return err
	}
	g.hub.registry.Join(s, events.ConversationRoom(e.ConversationID))
	log.Debug("session %s joined conversation %s", s.ID, e.ConversationID)
	return nil
}

// sendMessage relies on the service for validation, deduplication by
// tempId and the per-user rate limit shared with POST /messages.
func (g *Gateway) sendMessage(ctx context.Context, s *Session, e events.SendMessage) error {
	msg, err := g.svc.SendMessage(ctx, s.UserID, e.ConversationID, e.Content, e.TempID)
	if err != nil {
		return err
	}
	g.hub.Send(ctx, s, events.MessageSent{ConversationID: e.ConversationID, Message: msg, TempID: e.TempID})
	g.stopTyping(ctx, s, e.ConversationID)
	return nil
}

func (g *Gateway) markRead(ctx context.Context, s *Session, e events.MarkRead) error {
	if e.MessageID != nil {
		_, err := g.svc.MarkMessageRead(ctx, s.UserID, *e.MessageID)
		return err
	}
	_, err := g.svc.MarkConversationRead(ctx, s.UserID, e.ConversationID)
	return err
}

func (g *Gateway) startTyping(ctx context.Context, s *Session, e events.StartTyping) error {
	if err := g.svc.IsParticipant(ctx, s.UserID, e.ConversationID); err != nil {
		return err
	}
	if g.typing.Start(s.ID, e.ConversationID, s.UserID) {
		g.hub.Publish(ctx, events.ConversationRoom(e.ConversationID), s.ID,
			events.TypingStarted{ConversationID: e.ConversationID, UserID: s.UserID})
	}
	return nil
}

func (g *Gateway) stopTyping(ctx context.Context, s *Session, conversationID uuid.UUID) {
	if g.typing.Stop(conversationID, s.UserID) {
		g.hub.Publish(ctx, events.ConversationRoom(conversationID), s.ID,
			events.TypingStopped{ConversationID: conversationID, UserID: s.UserID})
	}
}
