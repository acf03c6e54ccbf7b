// Package chat holds the connection, conversation and message rules.
// Every REST handler and realtime event goes through Service, so both
// transports validate and broadcast identically.
package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ammar1510/alumni-chat/internal/apperrors"
	"github.com/ammar1510/alumni-chat/internal/cache"
	"github.com/ammar1510/alumni-chat/internal/database"
	"github.com/ammar1510/alumni-chat/internal/events"
	"github.com/ammar1510/alumni-chat/internal/logger"
	"github.com/ammar1510/alumni-chat/internal/models"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Notifier fans events out to realtime sessions.
type Notifier interface {
	// Publish delivers ev to every session in room except skip ("" skips none).
	Publish(ctx context.Context, room, skip string, ev events.Event)
}

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, string, string, events.Event) {}

// PageRequest is a 1-based page number and size.
type PageRequest struct {
	Page  int
	Limit int
}

func (p PageRequest) normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

func (p PageRequest) offset() int {
	return (p.Page - 1) * p.Limit
}

// Page is one slice of a listing plus the unpaginated total.
type Page[T any] struct {
	Items []T
	Total int
	Page  int
	Limit int
}

func (p *Page[T]) HasMore() bool {
	return p.Page*p.Limit < p.Total
}

func (p *Page[T]) TotalPages() int {
	if p.Limit == 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

type Service struct {
	db     database.DBInterface
	unread cache.UnreadCounter
	notify Notifier
	limit  cache.RateLimiter
	log    *logger.Logger
	now    func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithRateLimiter meters SendMessage per sender. Without it sends are
// unlimited.
func WithRateLimiter(l cache.RateLimiter) Option {
	return func(s *Service) {
		if l != nil {
			s.limit = l
		}
	}
}

// NewService wires the store, unread cache and notifier. A nil counter
// disables the cache; a nil notifier drops events.
func NewService(db database.DBInterface, unread cache.UnreadCounter, notify Notifier, opts ...Option) *Service {
	if unread == nil {
		unread = cache.Disabled{}
	}
	if notify == nil {
		notify = nopNotifier{}
	}
	s := &Service{
		db:     db,
		unread: unread,
		notify: notify,
		limit:  cache.Unlimited{},
		log:    logger.New("chat"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// storeErr maps store sentinels onto the error taxonomy.
func (s *Service) storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrUserNotFound):
		return apperrors.Wrap(apperrors.CodeNotFound, "user not found", err)
	case errors.Is(err, database.ErrConnectionNotFound):
		return apperrors.Wrap(apperrors.CodeNotFound, "connection not found", err)
	case errors.Is(err, database.ErrConversationNotFound):
		return apperrors.Wrap(apperrors.CodeNotFound, "conversation not found", err)
	case errors.Is(err, database.ErrMessageNotFound):
		return apperrors.Wrap(apperrors.CodeNotFound, "message not found", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperrors.Unavailable("request cancelled", err)
	}
	s.log.Error("%s: %v", op, err)
	return apperrors.Internal("internal server error", err)
}

// summaries resolves user ids to profile summaries, skipping unknown ids.
func (s *Service) summaries(ctx context.Context, ids ...uuid.UUID) map[uuid.UUID]*models.UserSummary {
	out := make(map[uuid.UUID]*models.UserSummary, len(ids))
	users, err := s.db.GetUsersByIDs(ctx, ids)
	if err != nil {
		s.log.Warn("user lookup failed: %v", err)
		return out
	}
	for id, u := range users {
		out[id] = u.Summary()
	}
	return out
}

// participantConversation loads a conversation and checks userID belongs to it.
func (s *Service) participantConversation(ctx context.Context, userID, conversationID uuid.UUID) (*models.Conversation, error) {
	conv, err := s.db.GetConversationByID(ctx, conversationID)
	if err != nil {
		return nil, s.storeErr("get conversation", err)
	}
	if !conv.HasParticipant(userID) {
		return nil, apperrors.Forbidden("you are not a participant of this conversation")
	}
	return conv, nil
}
