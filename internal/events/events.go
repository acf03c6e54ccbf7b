// Package events defines the realtime wire contract. Every frame is a
// JSON text message {"event": name, "data": payload}; each name maps to
// exactly one Go type per direction.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ammar1510/alumni-chat/internal/models"
)

const (
	NameConversationJoin   = "conversation:join"
	NameConversationLeave  = "conversation:leave"
	NameMessageSend        = "message:send"
	NameMessageDelete      = "message:delete"
	NameMessageNew         = "message:new"
	NameMessageSent        = "message:sent"
	NameMessageRead        = "message:read"
	NameMessageDeleted     = "message:deleted"
	NameMessageError       = "message:error"
	NameTypingStart        = "typing:start"
	NameTypingStop         = "typing:stop"
	NameConnectionRequest  = "connection_request"
	NameConnectionUpdate   = "connection:update"
	NameConversationUpdate = "conversation:update"
	NameUserOnline         = "user:online"
	NameUserOffline        = "user:offline"
)

var ErrUnknownEvent = errors.New("unknown event")

// Event is any payload that can travel in a frame.
type Event interface {
	EventName() string
}

// Frame is the wire envelope.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client to server.

type JoinConversation struct {
	ConversationID uuid.UUID `json:"conversationId"`
}

type LeaveConversation struct {
	ConversationID uuid.UUID `json:"conversationId"`
}

type SendMessage struct {
	ConversationID uuid.UUID `json:"conversationId"`
	Content        string    `json:"content"`
	TempID         string    `json:"tempId"`
}

// MarkRead without MessageID marks everything the other side sent.
type MarkRead struct {
	ConversationID uuid.UUID  `json:"conversationId"`
	MessageID      *uuid.UUID `json:"messageId,omitempty"`
}

type StartTyping struct {
	ConversationID uuid.UUID `json:"conversationId"`
	ReceiverID     uuid.UUID `json:"receiverId"`
}

type StopTyping struct {
	ConversationID uuid.UUID `json:"conversationId"`
	ReceiverID     uuid.UUID `json:"receiverId"`
}

type DeleteMessage struct {
	ConversationID uuid.UUID `json:"conversationId"`
	MessageID      uuid.UUID `json:"messageId"`
}

func (JoinConversation) EventName() string  { return NameConversationJoin }
func (LeaveConversation) EventName() string { return NameConversationLeave }
func (SendMessage) EventName() string       { return NameMessageSend }
func (MarkRead) EventName() string          { return NameMessageRead }
func (StartTyping) EventName() string       { return NameTypingStart }
func (StopTyping) EventName() string        { return NameTypingStop }
func (DeleteMessage) EventName() string     { return NameMessageDelete }

// Server to client.

type MessageNew struct {
	ConversationID uuid.UUID       `json:"conversationId"`
	Message        *models.Message `json:"message"`
}

// MessageSent goes only to the session that sent the message.
type MessageSent struct {
	ConversationID uuid.UUID       `json:"conversationId"`
	Message        *models.Message `json:"message"`
	TempID         string          `json:"tempId"`
}

type MessageRead struct {
	ConversationID uuid.UUID  `json:"conversationId"`
	UserID         uuid.UUID  `json:"userId"`
	MessageID      *uuid.UUID `json:"messageId,omitempty"`
}

type MessageDeleted struct {
	ConversationID uuid.UUID `json:"conversationId"`
	MessageID      uuid.UUID `json:"messageId"`
}

type MessageError struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	TempID string `json:"tempId,omitempty"`
}

type TypingStarted struct {
	ConversationID uuid.UUID `json:"conversationId"`
	UserID         uuid.UUID `json:"userId"`
}

type TypingStopped struct {
	ConversationID uuid.UUID `json:"conversationId"`
	UserID         uuid.UUID `json:"userId"`
}

type ConnectionRequest struct {
	Connection *models.Connection `json:"connection"`
}

type ConnectionUpdate struct {
	Connection *models.Connection `json:"connection"`
}

type ConversationUpdate struct {
	ConversationID uuid.UUID          `json:"conversationId"`
	LastMessage    models.LastMessage `json:"lastMessage"`
}

type UserOnline struct {
	UserID uuid.UUID `json:"userId"`
}

type UserOffline struct {
	UserID uuid.UUID `json:"userId"`
}

func (MessageNew) EventName() string         { return NameMessageNew }
func (MessageSent) EventName() string        { return NameMessageSent }
func (MessageRead) EventName() string        { return NameMessageRead }
func (MessageDeleted) EventName() string     { return NameMessageDeleted }
func (MessageError) EventName() string       { return NameMessageError }
func (TypingStarted) EventName() string      { return NameTypingStart }
func (TypingStopped) EventName() string      { return NameTypingStop }
func (ConnectionRequest) EventName() string  { return NameConnectionRequest }
func (ConnectionUpdate) EventName() string   { return NameConnectionUpdate }
func (ConversationUpdate) EventName() string { return NameConversationUpdate }
func (UserOnline) EventName() string         { return NameUserOnline }
func (UserOffline) EventName() string        { return NameUserOffline }

// Encode wraps ev in a frame.
func Encode(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: ev.EventName(), Data: data})
}

// DecodeClient parses a frame sent by a client.
func DecodeClient(raw []byte) (Event, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	var (
		ev  Event
		err error
	)
	switch f.Event {
	case NameConversationJoin:
		ev = decode[JoinConversation](f.Data, &err)
	case NameConversationLeave:
		ev = decode[LeaveConversation](f.Data, &err)
	case NameMessageSend:
		ev = decode[SendMessage](f.Data, &err)
	case NameMessageRead:
		ev = decode[MarkRead](f.Data, &err)
	case NameTypingStart:
		ev = decode[StartTyping](f.Data, &err)
	case NameTypingStop:
		ev = decode[StopTyping](f.Data, &err)
	case NameMessageDelete:
		ev = decode[DeleteMessage](f.Data, &err)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, f.Event)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", f.Event, err)
	}
	return ev, nil
}

// DecodeServer parses a frame sent by the gateway.
func DecodeServer(raw []byte) (Event, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	var (
		ev  Event
		err error
	)
	switch f.Event {
	case NameMessageNew:
		ev = decode[MessageNew](f.Data, &err)
	case NameMessageSent:
		ev = decode[MessageSent](f.Data, &err)
	case NameMessageRead:
		ev = decode[MessageRead](f.Data, &err)
	case NameMessageDeleted:
		ev = decode[MessageDeleted](f.Data, &err)
	case NameMessageError:
		ev = decode[MessageError](f.Data, &err)
	case NameTypingStart:
		ev = decode[TypingStarted](f.Data, &err)
	case NameTypingStop:
		ev = decode[TypingStopped](f.Data, &err)
	case NameConnectionRequest:
		ev = decode[ConnectionRequest](f.Data, &err)
	case NameConnectionUpdate:
		ev = decode[ConnectionUpdate](f.Data, &err)
	case NameConversationUpdate:
		ev = decode[ConversationUpdate](f.Data, &err)
	case NameUserOnline:
		ev = decode[UserOnline](f.Data, &err)
	case NameUserOffline:
		ev = decode[UserOffline](f.Data, &err)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, f.Event)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", f.Event, err)
	}
	return ev, nil
}

func decode[T Event](data json.RawMessage, errp *error) Event {
	var v T
	if len(data) == 0 {
		*errp = errors.New("missing data")
		return v
	}
	*errp = json.Unmarshal(data, &v)
	return v
}

// UserRoom is the personal room every session of userID joins.
func UserRoom(userID uuid.UUID) string {
	return "user:" + userID.String()
}

// ConversationRoom carries message and typing traffic for one thread.
func ConversationRoom(conversationID uuid.UUID) string {
	return "conversation:" + conversationID.String()
}

type originKey struct{}

// WithOrigin tags ctx with the realtime session that triggered a change,
// so broadcasts can skip the sender's own socket.
func WithOrigin(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, originKey{}, sessionID)
}

// OriginFrom returns the session id set by WithOrigin, or "".
func OriginFrom(ctx context.Context) string {
	id, _ := ctx.Value(originKey{}).(string)
	return id
}
