package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ammar1510/alumni-chat/internal/apperrors"
	"github.com/ammar1510/alumni-chat/internal/chat"
	"github.com/ammar1510/alumni-chat/internal/models"
)

// ChatHandler serves the /api/chat REST surface.
type ChatHandler struct {
	Service *chat.Service
}

// NewChatHandler creates a new chat handler
func NewChatHandler(svc *chat.Service) *ChatHandler {
	return &ChatHandler{Service: svc}
}

// caller returns the authenticated user or writes a 401.
func caller(c *gin.Context) (uuid.UUID, bool) {
	id, exists := currentUser(c)
	if !exists {
		respondError(c, apperrors.Unauthenticated("unauthorized"))
		return uuid.Nil, false
	}
	return id, true
}

// SendConnectionRequest handles POST /connections/request.
func (h *ChatHandler) SendConnectionRequest(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	var req models.SendConnectionRequest
	if !bindJSON(c, &req) {
		return
	}

	conn, err := h.Service.SendRequest(c.Request.Context(), userID, req.RecipientID, req.RequestMessage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"message":    "Connection request sent successfully",
		"connection": conn,
	})
}

// RespondToConnection handles POST /connections/respond.
func (h *ChatHandler) RespondToConnection(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	var req models.RespondConnectionRequest
	if !bindJSON(c, &req) {
		return
	}

	conn, err := h.Service.Respond(c.Request.Context(), userID, req.ConnectionID, req.Action)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "Connection " + string(conn.Status), "connection": conn})
}

// ListConnections handles GET /connections.
func (h *ChatHandler) ListConnections(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	status := models.ConnectionStatus(c.Query("status"))
	page, err := h.Service.ListConnections(c.Request.Context(), userID, status, pageQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"data": page.Items, "pagination": paginationOf(page)})
}

// PendingRequests handles GET /connections/pending.
func (h *ChatHandler) PendingRequests(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	conns, err := h.Service.Pending(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"data": conns})
}

// SentRequests handles GET /connections/sent.
func (h *ChatHandler) SentRequests(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	conns, err := h.Service.Sent(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"data": conns})
}

// CancelRequest handles DELETE /connections/request/:recipientId.
func (h *ChatHandler) CancelRequest(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	recipientID, ok := uuidParam(c, "recipientId")
	if !ok {
		return
	}
	if err := h.Service.Cancel(c.Request.Context(), userID, recipientID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "Connection request cancelled"})
}

// RemoveConnection handles DELETE /connections/:id.
func (h *ChatHandler) RemoveConnection(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	connectionID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.Service.Remove(c.Request.Context(), userID, connectionID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "Connection removed"})
}

// BlockConnection handles PUT /connections/:id/block.
func (h *ChatHandler) BlockConnection(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	connectionID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	conn, err := h.Service.Block(c.Request.Context(), userID, connectionID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "User blocked", "connection": conn})
}

// BlockUser handles POST /connections/block.
func (h *ChatHandler) BlockUser(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	var req models.TargetUserRequest
	if !bindJSON(c, &req) {
		return
	}
	conn, err := h.Service.BlockUser(c.Request.Context(), userID, req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "User blocked", "connection": conn})
}

// UnblockUser handles POST /connections/unblock.
func (h *ChatHandler) UnblockUser(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	var req models.TargetUserRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.Service.Unblock(c.Request.Context(), userID, req.UserID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "User unblocked"})
}
