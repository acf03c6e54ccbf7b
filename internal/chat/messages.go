package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ammar1510/alumni-chat/internal/apperrors"
	"github.com/ammar1510/alumni-chat/internal/database"
	"github.com/ammar1510/alumni-chat/internal/events"
	"github.com/ammar1510/alumni-chat/internal/models"
)

// ValidateContent trims content and checks its length in characters.
func ValidateContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	n := utf8.RuneCountInString(trimmed)
	if n < models.MinMessageLength || n > models.MaxMessageLength {
		return "", apperrors.InvalidArgument(fmt.Sprintf(
			"message content must be between %d and %d characters", models.MinMessageLength, models.MaxMessageLength))
	}
	return trimmed, nil
}

func preview(content string) string {
	if utf8.RuneCountInString(content) <= models.MaxLastMessageLength {
		return content
	}
	return string([]rune(content)[:models.MaxLastMessageLength])
}

// SendMessage stores a message from senderID and fans it out. The session
// tagged on ctx with events.WithOrigin does not receive message:new.
//
// clientID is the sender's temporary id. Sending again with the same
// clientID returns the stored message without storing or broadcasting a
// second copy.
func (s *Service) SendMessage(ctx context.Context, senderID, conversationID uuid.UUID, content, clientID string) (*models.Message, error) {
	content, err := ValidateContent(content)
	if err != nil {
		return nil, err
	}
	if len(clientID) > models.MaxClientIDLength {
		return nil, apperrors.InvalidArgument(fmt.Sprintf("tempId must be at most %d characters", models.MaxClientIDLength))
	}
	conv, err := s.participantConversation(ctx, senderID, conversationID)
	if err != nil {
		return nil, err
	}
	if stored, err := s.storedSend(ctx, senderID, conversationID, clientID); stored != nil || err != nil {
		return stored, err
	}
	if !s.limit.Allow(ctx, senderID) {
		return nil, apperrors.RateLimited("rate limit exceeded, please wait")
	}

	now := s.now()
	msg := &models.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		MessageType:    models.MessageTypeText,
		ReadBy:         []models.ReadReceipt{{UserID: senderID, ReadAt: now}},
		CreatedAt:      now,
		UpdatedAt:      now,
		ClientID:       clientID,
	}
	err = s.db.CreateMessage(ctx, msg)
	if errors.Is(err, database.ErrMessageExists) {
		return s.storedSend(ctx, senderID, conversationID, clientID)
	}
	if err != nil {
		return nil, s.storeErr("create message", err)
	}

	// The message is stored; a stale preview is only logged.
	last := models.LastMessage{Content: preview(content), SenderID: &senderID, Timestamp: now}
	if err := s.db.UpdateLastMessage(ctx, conversationID, last); err != nil {
		s.log.Error("last message for %s after %s: %v", conversationID, msg.ID, err)
	}

	for _, p := range conv.Participants {
		if p != senderID {
			s.unread.Incr(ctx, p, conversationID)
		}
	}
	msg.Sender = s.summaries(ctx, senderID)[senderID]

	s.notify.Publish(ctx, events.ConversationRoom(conversationID), events.OriginFrom(ctx),
		events.MessageNew{ConversationID: conversationID, Message: msg})
	update := events.ConversationUpdate{ConversationID: conversationID, LastMessage: last}
	for _, p := range conv.Participants {
		s.notify.Publish(ctx, events.UserRoom(p), "", update)
	}

	s.log.Debug("message %s sent to %s by %s", msg.ID, conversationID, senderID)
	return msg, nil
}

// storedSend returns the message senderID already stored under clientID,
// or nil when there is none.
func (s *Service) storedSend(ctx context.Context, senderID, conversationID uuid.UUID, clientID string) (*models.Message, error) {
	if clientID == "" {
		return nil, nil
	}
	msg, err := s.db.FindMessageByClientID(ctx, senderID, clientID)
	if errors.Is(err, database.ErrMessageNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.storeErr("find message by client id", err)
	}
	if msg.ConversationID != conversationID {
		return nil, apperrors.Conflict("tempId already used in another conversation")
	}
	s.log.Debug("message %s resent as %s, returning stored copy", msg.ID, clientID)
	msg.Sender = s.summaries(ctx, senderID)[senderID]
	return msg, nil
}

// ListMessages returns one page of history in chronological order. Page 1
// holds the newest messages.
func (s *Service) ListMessages(ctx context.Context, userID, conversationID uuid.UUID, page PageRequest) (*Page[*models.Message], error) {
	if _, err := s.participantConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	page = page.normalize()

	msgs, total, err := s.db.ListMessages(ctx, conversationID, page.Limit, page.offset())
	if err != nil {
		return nil, s.storeErr("list messages", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	s.attachSenders(ctx, msgs)
	return &Page[*models.Message]{Items: msgs, Total: total, Page: page.Page, Limit: page.Limit}, nil
}

// MarkMessageRead adds userID's receipt to one message. Repeating the call
// is a no-op.
func (s *Service) MarkMessageRead(ctx context.Context, userID, messageID uuid.UUID) (*models.Message, error) {
	msg, err := s.db.GetMessageByID(ctx, messageID)
	if err != nil {
		return nil, s.storeErr("get message", err)
	}
	if msg.Deleted {
		return nil, apperrors.NotFound("message not found")
	}
	if _, err := s.participantConversation(ctx, userID, msg.ConversationID); err != nil {
		return nil, err
	}

	now := s.now()
	added, err := s.db.AddReadReceipt(ctx, messageID, userID, now)
	if err != nil {
		return nil, s.storeErr("add read receipt", err)
	}
	if added {
		msg.ReadBy = append(msg.ReadBy, models.ReadReceipt{UserID: userID, ReadAt: now})
		s.notify.Publish(ctx, events.ConversationRoom(msg.ConversationID), events.OriginFrom(ctx),
			events.MessageRead{ConversationID: msg.ConversationID, UserID: userID, MessageID: &msg.ID})
	}
	return msg, nil
}

// DeleteMessage soft-deletes a message. Only its sender may do so; deleting
// twice succeeds and broadcasts again.
func (s *Service) DeleteMessage(ctx context.Context, userID, messageID uuid.UUID) (*models.Message, error) {
	msg, err := s.db.GetMessageByID(ctx, messageID)
	if err != nil {
		return nil, s.storeErr("get message", err)
	}
	if msg.SenderID != userID {
		return nil, apperrors.Forbidden("you can only delete your own messages")
	}

	if !msg.Deleted {
		if err := s.db.SoftDeleteMessage(ctx, messageID); err != nil {
			return nil, s.storeErr("delete message", err)
		}
		msg.Deleted = true
		msg.UpdatedAt = s.now()
	}

	s.notify.Publish(ctx, events.ConversationRoom(msg.ConversationID), "",
		events.MessageDeleted{ConversationID: msg.ConversationID, MessageID: msg.ID})
	return msg, nil
}

func (s *Service) attachSenders(ctx context.Context, msgs []*models.Message) {
	if len(msgs) == 0 {
		return
	}
	ids := make([]uuid.UUID, 0, len(msgs))
	seen := make(map[uuid.UUID]bool)
	for _, m := range msgs {
		if !seen[m.SenderID] {
			seen[m.SenderID] = true
			ids = append(ids, m.SenderID)
		}
	}
	users := s.summaries(ctx, ids...)
	for _, m := range msgs {
		m.Sender = users[m.SenderID]
	}
}
