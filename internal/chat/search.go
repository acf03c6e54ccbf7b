package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/ammar1510/alumni-chat/internal/apperrors"
	"github.com/ammar1510/alumni-chat/internal/database"
	"github.com/ammar1510/alumni-chat/internal/models"
)

func searchQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", apperrors.InvalidArgument("search query is required")
	}
	return q, nil
}

// SearchUsers finds directory users by name or email and reports the
// caller's connection with each hit.
func (s *Service) SearchUsers(ctx context.Context, userID uuid.UUID, q string, page PageRequest) (*Page[*models.UserSearchResult], error) {
	q, err := searchQuery(q)
	if err != nil {
		return nil, err
	}
	page = page.normalize()

	users, total, err := s.db.SearchUsers(ctx, q, userID, page.Limit, page.offset())
	if err != nil {
		return nil, s.storeErr("search users", err)
	}

	results := make([]*models.UserSearchResult, 0, len(users))
	for _, u := range users {
		r := &models.UserSearchResult{
			UserSummary:      *u.Summary(),
			ConnectionStatus: string(models.ConnectionNone),
		}
		conn, err := s.db.FindConnectionBetween(ctx, userID, u.ID)
		switch {
		case err == nil:
			r.ConnectionStatus = string(conn.Status)
			r.ConnectionID = &conn.ID
		case !errors.Is(err, database.ErrConnectionNotFound):
			return nil, s.storeErr("find connection", err)
		}
		results = append(results, r)
	}
	return &Page[*models.UserSearchResult]{Items: results, Total: total, Page: page.Page, Limit: page.Limit}, nil
}

// SearchMessages matches message content across the caller's conversations.
func (s *Service) SearchMessages(ctx context.Context, userID uuid.UUID, q string, page PageRequest) (*Page[*models.Message], error) {
	q, err := searchQuery(q)
	if err != nil {
		return nil, err
	}
	page = page.normalize()

	msgs, total, err := s.db.SearchMessages(ctx, userID, q, page.Limit, page.offset())
	if err != nil {
		return nil, s.storeErr("search messages", err)
	}
	s.attachSenders(ctx, msgs)
	return &Page[*models.Message]{Items: msgs, Total: total, Page: page.Page, Limit: page.Limit}, nil
}
