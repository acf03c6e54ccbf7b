package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ammar1510/alumni-chat/internal/apperrors"
	"github.com/ammar1510/alumni-chat/internal/database"
	"github.com/ammar1510/alumni-chat/internal/events"
	"github.com/ammar1510/alumni-chat/internal/models"
)

// annotateConcurrency bounds the parallel unread lookups per listing.
const annotateConcurrency = 8

// GetOrCreateConversation returns the pair's thread, creating it on first
// use. The bool reports whether it was created by this call.
func (s *Service) GetOrCreateConversation(ctx context.Context, userID, participantID uuid.UUID) (*models.ConversationView, bool, error) {
	if participantID == uuid.Nil {
		return nil, false, apperrors.InvalidArgument("participantId is required")
	}
	if participantID == userID {
		return nil, false, apperrors.InvalidArgument("cannot start a conversation with yourself")
	}

	conn, err := s.db.FindConnectionBetween(ctx, userID, participantID)
	if err != nil && !errors.Is(err, database.ErrConnectionNotFound) {
		return nil, false, s.storeErr("find connection", err)
	}
	if conn == nil || conn.Status != models.ConnectionAccepted {
		return nil, false, apperrors.Forbidden("you can only message accepted connections")
	}

	conv, err := s.db.FindConversationByPair(ctx, userID, participantID)
	if err == nil {
		return s.view(ctx, userID, conv), false, nil
	}
	if !errors.Is(err, database.ErrConversationNotFound) {
		return nil, false, s.storeErr("find conversation", err)
	}

	now := s.now()
	conv = &models.Conversation{
		ID:           uuid.New(),
		Participants: models.SortedPair(userID, participantID),
		LastMessage:  models.LastMessage{Timestamp: now},
		Archived:     map[uuid.UUID]bool{},
		LastReadBy:   map[uuid.UUID]time.Time{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.CreateConversation(ctx, conv); err != nil {
		if !errors.Is(err, database.ErrConversationExists) {
			return nil, false, s.storeErr("create conversation", err)
		}
		// A concurrent create won; converge on its document.
		conv, err = s.db.FindConversationByPair(ctx, userID, participantID)
		if err != nil {
			return nil, false, s.storeErr("find conversation", err)
		}
		return s.view(ctx, userID, conv), false, nil
	}

	s.log.Info("conversation %s created by %s", conv.ID, userID)
	return s.view(ctx, userID, conv), true, nil
}

// GetConversation returns one thread as seen by userID.
func (s *Service) GetConversation(ctx context.Context, userID, conversationID uuid.UUID) (*models.ConversationView, error) {
	conv, err := s.participantConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, userID, conv), nil
}

// ListConversations pages through the caller's visible threads, most
// recent activity first, each annotated with the other participant and
// an unread count.
func (s *Service) ListConversations(ctx context.Context, userID uuid.UUID, page PageRequest) (*Page[*models.ConversationView], error) {
	page = page.normalize()
	convs, total, err := s.db.ListConversations(ctx, userID, page.Limit, page.offset())
	if err != nil {
		return nil, s.storeErr("list conversations", err)
	}

	others := make([]uuid.UUID, len(convs))
	for i, c := range convs {
		others[i] = c.Other(userID)
	}
	users := s.summaries(ctx, others...)

	views := make([]*models.ConversationView, len(convs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(annotateConcurrency)
	for i, c := range convs {
		views[i] = &models.ConversationView{Conversation: c, OtherParticipant: users[others[i]]}
		view := views[i]
		g.Go(func() error {
			view.UnreadCount, view.UnreadKnown = s.unreadCount(gctx, userID, view.ID)
			return nil
		})
	}
	g.Wait()

	return &Page[*models.ConversationView]{Items: views, Total: total, Page: page.Page, Limit: page.Limit}, nil
}

// unreadCount prefers the cache and recounts from the store when the
// cache cannot answer.
func (s *Service) unreadCount(ctx context.Context, userID, conversationID uuid.UUID) (int, bool) {
	if n, ok := s.unread.Get(ctx, userID, conversationID); ok {
		return n, true
	}
	n, err := s.db.CountUnread(ctx, conversationID, userID)
	if err != nil {
		s.log.Warn("count unread %s/%s: %v", userID, conversationID, err)
		return 0, false
	}
	return n, true
}

func (s *Service) view(ctx context.Context, userID uuid.UUID, conv *models.Conversation) *models.ConversationView {
	other := conv.Other(userID)
	v := &models.ConversationView{
		Conversation:     conv,
		OtherParticipant: s.summaries(ctx, other)[other],
	}
	v.UnreadCount, v.UnreadKnown = s.unreadCount(ctx, userID, conv.ID)
	return v
}

// IsParticipant reports whether userID may join the conversation's room.
func (s *Service) IsParticipant(ctx context.Context, userID, conversationID uuid.UUID) error {
	_, err := s.participantConversation(ctx, userID, conversationID)
	return err
}

// ArchiveConversation hides the thread for userID only.
func (s *Service) ArchiveConversation(ctx context.Context, userID, conversationID uuid.UUID) error {
	if _, err := s.participantConversation(ctx, userID, conversationID); err != nil {
		return err
	}
	if err := s.db.SetArchived(ctx, conversationID, userID, true); err != nil {
		return s.storeErr("archive conversation", err)
	}
	return nil
}

// MarkConversationRead records that userID has read the thread, adds
// receipts to everything the other side sent and clears the unread cache.
// It returns how many messages gained a receipt.
func (s *Service) MarkConversationRead(ctx context.Context, userID, conversationID uuid.UUID) (int, error) {
	if _, err := s.participantConversation(ctx, userID, conversationID); err != nil {
		return 0, err
	}

	now := s.now()
	if err := s.db.SetLastRead(ctx, conversationID, userID, now); err != nil {
		return 0, s.storeErr("set last read", err)
	}
	marked, err := s.db.MarkConversationRead(ctx, conversationID, userID, now)
	if err != nil {
		return 0, s.storeErr("mark conversation read", err)
	}
	s.unread.Reset(ctx, userID, conversationID)

	s.notify.Publish(ctx, events.ConversationRoom(conversationID), events.OriginFrom(ctx),
		events.MessageRead{ConversationID: conversationID, UserID: userID})
	return marked, nil
}
