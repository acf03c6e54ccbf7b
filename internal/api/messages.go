package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ammar1510/alumni-chat/internal/models"
)

// GetMessages handles GET /messages/:conversationId. Items are oldest
// first within the page; page 1 is the newest slice of history.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	conversationID, ok := uuidParam(c, "conversationId")
	if !ok {
		return
	}

	page, err := h.Service.ListMessages(c.Request.Context(), userID, conversationID, pageQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"data":       page.Items,
		"hasMore":    page.HasMore(),
		"pagination": paginationOf(page),
	})
}

// SendMessage handles POST /messages, the fallback for message:send.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	var req models.MessageRequest
	if !bindJSON(c, &req) {
		return
	}

	message, err := h.Service.SendMessage(c.Request.Context(), userID, req.ConversationID, req.Content, req.ClientID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Message sent successfully",
		"data":    message,
	})
}

// MarkMessageAsRead handles PUT /messages/:id/read.
func (h *ChatHandler) MarkMessageAsRead(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	messageID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	message, err := h.Service.MarkMessageRead(c.Request.Context(), userID, messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "Message marked as read", "data": message})
}

// DeleteMessage handles DELETE /messages/:id.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	messageID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if _, err := h.Service.DeleteMessage(c.Request.Context(), userID, messageID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "Message deleted"})
}
