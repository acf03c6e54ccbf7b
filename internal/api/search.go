package api

import (
	"github.com/gin-gonic/gin"
)

// SearchUsers handles GET /search/users?q=.
func (h *ChatHandler) SearchUsers(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	page, err := h.Service.SearchUsers(c.Request.Context(), userID, c.Query("q"), pageQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"data": page.Items, "pagination": paginationOf(page)})
}

// SearchMessages handles GET /search/messages?q=.
func (h *ChatHandler) SearchMessages(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	page, err := h.Service.SearchMessages(c.Request.Context(), userID, c.Query("q"), pageQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"data": page.Items, "pagination": paginationOf(page)})
}
