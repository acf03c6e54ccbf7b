package chat

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ammar1510/alumni-chat/internal/apperrors"
	"github.com/ammar1510/alumni-chat/internal/database"
	"github.com/ammar1510/alumni-chat/internal/events"
	"github.com/ammar1510/alumni-chat/internal/models"
)

// SendRequest creates a pending connection from requesterID to recipientID.
func (s *Service) SendRequest(ctx context.Context, requesterID, recipientID uuid.UUID, message string) (*models.Connection, error) {
	if recipientID == uuid.Nil {
		return nil, apperrors.InvalidArgument("recipientId is required")
	}
	if recipientID == requesterID {
		return nil, apperrors.InvalidArgument("cannot send a connection request to yourself")
	}
	message = strings.TrimSpace(message)
	if utf8.RuneCountInString(message) > models.MaxRequestMessageLength {
		return nil, apperrors.InvalidArgument("request message must be at most 200 characters")
	}

	if _, err := s.db.GetUserByID(ctx, recipientID); err != nil {
		return nil, s.storeErr("get recipient", err)
	}

	existing, err := s.db.FindConnectionBetween(ctx, requesterID, recipientID)
	if err == nil {
		return nil, connectionExists(existing)
	}
	if !errors.Is(err, database.ErrConnectionNotFound) {
		return nil, s.storeErr("find connection", err)
	}

	now := s.now()
	conn := &models.Connection{
		ID:          uuid.New(),
		RequesterID: requesterID,
		RecipientID: recipientID,
		Status:      models.ConnectionPending,
		RequestedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if message != "" {
		conn.RequestMessage = &message
	}

	if err := s.db.CreateConnection(ctx, conn); err != nil {
		if errors.Is(err, database.ErrConnectionExists) {
			// Lost a race with the other side's request.
			if existing, findErr := s.db.FindConnectionBetween(ctx, requesterID, recipientID); findErr == nil {
				return nil, connectionExists(existing)
			}
			return nil, apperrors.Conflict("connection already exists")
		}
		return nil, s.storeErr("create connection", err)
	}

	s.attachParties(ctx, conn)
	s.log.Info("connection request %s: %s -> %s", conn.ID, requesterID, recipientID)
	s.notify.Publish(ctx, events.UserRoom(recipientID), "", events.ConnectionRequest{Connection: conn})
	return conn, nil
}

func connectionExists(c *models.Connection) error {
	return apperrors.Conflict("connection already exists").
		With("status", c.Status).
		With("connectionId", c.ID)
}

// Respond applies the recipient's decision to a pending request. Block is
// also accepted from the requester and from any non-blocked state.
func (s *Service) Respond(ctx context.Context, userID, connectionID uuid.UUID, action models.ConnectionAction) (*models.Connection, error) {
	switch action {
	case models.ActionAccept, models.ActionReject, models.ActionBlock:
	default:
		return nil, apperrors.InvalidArgument("action must be one of accept, reject, block")
	}

	conn, err := s.db.GetConnectionByID(ctx, connectionID)
	if err != nil {
		return nil, s.storeErr("get connection", err)
	}

	if action == models.ActionBlock {
		return s.block(ctx, userID, conn)
	}

	if conn.RecipientID != userID {
		return nil, apperrors.Forbidden("only the recipient can respond to this request")
	}
	if conn.Status != models.ConnectionPending {
		return nil, apperrors.Conflict("connection request is no longer pending").With("status", conn.Status)
	}

	now := s.now()
	conn.RespondedAt = &now
	conn.UpdatedAt = now
	if action == models.ActionAccept {
		conn.Status = models.ConnectionAccepted
	} else {
		conn.Status = models.ConnectionRejected
	}
	if err := s.db.UpdateConnection(ctx, conn); err != nil {
		return nil, s.storeErr("update connection", err)
	}

	s.attachParties(ctx, conn)
	s.log.Info("connection %s %s by %s", conn.ID, conn.Status, userID)
	s.notify.Publish(ctx, events.UserRoom(conn.RequesterID), "", events.ConnectionUpdate{Connection: conn})
	return conn, nil
}

// Block blocks an existing connection; either party may do so.
func (s *Service) Block(ctx context.Context, userID, connectionID uuid.UUID) (*models.Connection, error) {
	return s.Respond(ctx, userID, connectionID, models.ActionBlock)
}

// BlockUser blocks targetID, creating a blocked record when the pair has
// no connection yet.
func (s *Service) BlockUser(ctx context.Context, userID, targetID uuid.UUID) (*models.Connection, error) {
	if targetID == uuid.Nil {
		return nil, apperrors.InvalidArgument("userId is required")
	}
	if targetID == userID {
		return nil, apperrors.InvalidArgument("cannot block yourself")
	}

	conn, err := s.db.FindConnectionBetween(ctx, userID, targetID)
	if err == nil {
		return s.block(ctx, userID, conn)
	}
	if !errors.Is(err, database.ErrConnectionNotFound) {
		return nil, s.storeErr("find connection", err)
	}
	if _, err := s.db.GetUserByID(ctx, targetID); err != nil {
		return nil, s.storeErr("get target", err)
	}

	now := s.now()
	conn = &models.Connection{
		ID:          uuid.New(),
		RequesterID: userID,
		RecipientID: targetID,
		Status:      models.ConnectionBlocked,
		BlockedBy:   &userID,
		RequestedAt: now,
		RespondedAt: &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.CreateConnection(ctx, conn); err != nil {
		if errors.Is(err, database.ErrConnectionExists) {
			return nil, apperrors.Conflict("connection changed concurrently, retry")
		}
		return nil, s.storeErr("create connection", err)
	}
	s.log.Info("user %s blocked %s", userID, targetID)
	return conn, nil
}

func (s *Service) block(ctx context.Context, userID uuid.UUID, conn *models.Connection) (*models.Connection, error) {
	if !conn.Involves(userID) {
		return nil, apperrors.Forbidden("you are not part of this connection")
	}
	if conn.Status == models.ConnectionBlocked {
		return nil, apperrors.Conflict("connection is already blocked").With("status", conn.Status)
	}

	now := s.now()
	conn.Status = models.ConnectionBlocked
	conn.BlockedBy = &userID
	conn.RespondedAt = &now
	conn.UpdatedAt = now
	if err := s.db.UpdateConnection(ctx, conn); err != nil {
		return nil, s.storeErr("update connection", err)
	}

	s.attachParties(ctx, conn)
	s.log.Info("connection %s blocked by %s", conn.ID, userID)
	s.notify.Publish(ctx, events.UserRoom(conn.Other(userID)), "", events.ConnectionUpdate{Connection: conn})
	return conn, nil
}

// Unblock deletes a blocked connection. Only the blocker may do this.
func (s *Service) Unblock(ctx context.Context, userID, targetID uuid.UUID) error {
	conn, err := s.db.FindConnectionBetween(ctx, userID, targetID)
	if errors.Is(err, database.ErrConnectionNotFound) || (err == nil && conn.Status != models.ConnectionBlocked) {
		return apperrors.NotFound("no blocked connection with this user")
	}
	if err != nil {
		return s.storeErr("find connection", err)
	}
	if conn.BlockedBy == nil || *conn.BlockedBy != userID {
		return apperrors.Forbidden("only the user who blocked can unblock")
	}

	if err := s.db.DeleteConnection(ctx, conn.ID); err != nil {
		return s.storeErr("delete connection", err)
	}
	s.log.Info("connection %s unblocked by %s", conn.ID, userID)
	return nil
}

// Remove deletes any connection the caller is part of.
func (s *Service) Remove(ctx context.Context, userID, connectionID uuid.UUID) error {
	conn, err := s.db.GetConnectionByID(ctx, connectionID)
	if err != nil {
		return s.storeErr("get connection", err)
	}
	if !conn.Involves(userID) {
		return apperrors.Forbidden("you are not part of this connection")
	}
	if err := s.db.DeleteConnection(ctx, conn.ID); err != nil {
		return s.storeErr("delete connection", err)
	}
	s.log.Info("connection %s removed by %s", conn.ID, userID)
	return nil
}

// Cancel withdraws the caller's own pending request to recipientID.
func (s *Service) Cancel(ctx context.Context, userID, recipientID uuid.UUID) error {
	conn, err := s.db.FindConnectionBetween(ctx, userID, recipientID)
	if errors.Is(err, database.ErrConnectionNotFound) ||
		(err == nil && (conn.Status != models.ConnectionPending || conn.RequesterID != userID)) {
		return apperrors.NotFound("pending request not found")
	}
	if err != nil {
		return s.storeErr("find connection", err)
	}
	if err := s.db.DeleteConnection(ctx, conn.ID); err != nil {
		return s.storeErr("delete connection", err)
	}
	s.log.Info("connection request %s cancelled", conn.ID)
	return nil
}

// ListConnections pages through the caller's connections, newest first.
func (s *Service) ListConnections(ctx context.Context, userID uuid.UUID, status models.ConnectionStatus, page PageRequest) (*Page[*models.Connection], error) {
	if status != "" && !status.Valid() {
		return nil, apperrors.InvalidArgument("invalid status filter")
	}
	page = page.normalize()

	conns, total, err := s.db.ListConnections(ctx, database.ConnectionFilter{
		UserID: userID,
		Status: status,
		Limit:  page.Limit,
		Offset: page.offset(),
	})
	if err != nil {
		return nil, s.storeErr("list connections", err)
	}
	s.attachParties(ctx, conns...)
	return &Page[*models.Connection]{Items: conns, Total: total, Page: page.Page, Limit: page.Limit}, nil
}

// Pending lists requests waiting on the caller.
func (s *Service) Pending(ctx context.Context, userID uuid.UUID) ([]*models.Connection, error) {
	return s.pendingBy(ctx, userID, database.RoleRecipient)
}

// Sent lists the caller's outgoing requests still awaiting an answer.
func (s *Service) Sent(ctx context.Context, userID uuid.UUID) ([]*models.Connection, error) {
	return s.pendingBy(ctx, userID, database.RoleRequester)
}

func (s *Service) pendingBy(ctx context.Context, userID uuid.UUID, role database.ConnectionRole) ([]*models.Connection, error) {
	conns, _, err := s.db.ListConnections(ctx, database.ConnectionFilter{
		UserID: userID,
		Role:   role,
		Status: models.ConnectionPending,
	})
	if err != nil {
		return nil, s.storeErr("list pending", err)
	}
	s.attachParties(ctx, conns...)
	return conns, nil
}

func (s *Service) attachParties(ctx context.Context, conns ...*models.Connection) {
	if len(conns) == 0 {
		return
	}
	ids := make([]uuid.UUID, 0, 2*len(conns))
	for _, c := range conns {
		ids = append(ids, c.RequesterID, c.RecipientID)
	}
	users := s.summaries(ctx, ids...)
	for _, c := range conns {
		c.Requester = users[c.RequesterID]
		c.Recipient = users[c.RecipientID]
	}
}
