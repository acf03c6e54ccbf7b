package api

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ammar1510/alumni-chat/internal/apperrors"
	"github.com/ammar1510/alumni-chat/internal/auth"
)

const (
	ctxUserID = "userID"
	ctxRole   = "role"
)

// AuthMiddleware validates the JWT and stores the caller in the context.
// The token comes from "Authorization: Bearer" or, for browsers opening
// a WebSocket, the token query parameter.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := auth.BearerToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			abortWithError(c, apperrors.Unauthenticated("authorization token required"))
			return
		}

		identity, err := auth.Authenticate(tokenString)
		if err != nil {
			abortWithError(c, apperrors.Unauthenticated("invalid token"))
			return
		}

		c.Set(ctxUserID, identity.UserID)
		c.Set(ctxRole, identity.Role)
		c.Next()
	}
}

// currentUser returns the id set by AuthMiddleware.
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(ctxUserID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
