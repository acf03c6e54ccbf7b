package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ammar1510/alumni-chat/internal/models"
)

// ListConversations handles GET /conversations.
func (h *ChatHandler) ListConversations(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	page, err := h.Service.ListConversations(c.Request.Context(), userID, pageQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"data": page.Items, "pagination": paginationOf(page)})
}

// GetConversation handles GET /conversations/:id.
func (h *ChatHandler) GetConversation(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	conversationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	view, err := h.Service.GetConversation(c.Request.Context(), userID, conversationID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"data": view})
}

// CreateConversation handles POST /conversations. It answers 201 for a
// new thread and 200 when the pair already had one.
func (h *ChatHandler) CreateConversation(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	var req models.CreateConversationRequest
	if !bindJSON(c, &req) {
		return
	}

	view, created, err := h.Service.GetOrCreateConversation(c.Request.Context(), userID, req.ParticipantID)
	if err != nil {
		respondError(c, err)
		return
	}
	status, message := http.StatusOK, "Conversation exists"
	if created {
		status, message = http.StatusCreated, "Conversation created"
	}
	c.JSON(status, gin.H{"success": true, "message": message, "data": view})
}

// MarkConversationRead handles PUT /conversations/:id/read.
func (h *ChatHandler) MarkConversationRead(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	conversationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	marked, err := h.Service.MarkConversationRead(c.Request.Context(), userID, conversationID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "Conversation marked as read", "marked": marked})
}

// ArchiveConversation handles DELETE /conversations/:id.
func (h *ChatHandler) ArchiveConversation(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	conversationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.Service.ArchiveConversation(c.Request.Context(), userID, conversationID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "Conversation archived successfully"})
}
