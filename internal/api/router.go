package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ammar1510/alumni-chat/internal/chat"
)

// WebSocketHandler upgrades an authenticated request into a session.
type WebSocketHandler interface {
	HandleWebSocket(c *gin.Context)
}

// Presence answers whether a user has a live session.
type Presence interface {
	Online(userID uuid.UUID) bool
}

// Pinger reports store health for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterConfig holds everything NewRouter mounts. WebSocket, Presence
// and Health are optional.
type RouterConfig struct {
	Service        *chat.Service
	WebSocket      WebSocketHandler
	Presence       Presence
	Health         Pinger
	AllowedOrigins []string
}

// NewRouter builds the gin engine with CORS, health and /api/chat routes.
func NewRouter(cfg RouterConfig) *gin.Engine {
	useJSONFieldNames()

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/health", healthHandler(cfg.Health))

	h := NewChatHandler(cfg.Service)
	authorized := router.Group("/api/chat")
	authorized.Use(AuthMiddleware())
	{
		authorized.POST("/connections/request", h.SendConnectionRequest)
		authorized.POST("/connections/respond", h.RespondToConnection)
		authorized.GET("/connections", h.ListConnections)
		authorized.GET("/connections/pending", h.PendingRequests)
		authorized.GET("/connections/sent", h.SentRequests)
		authorized.DELETE("/connections/request/:recipientId", h.CancelRequest)
		authorized.DELETE("/connections/:id", h.RemoveConnection)
		authorized.PUT("/connections/:id/block", h.BlockConnection)
		authorized.POST("/connections/block", h.BlockUser)
		authorized.POST("/connections/unblock", h.UnblockUser)

		authorized.GET("/conversations", h.ListConversations)
		authorized.GET("/conversations/:id", h.GetConversation)
		authorized.POST("/conversations", h.CreateConversation)
		authorized.PUT("/conversations/:id/read", h.MarkConversationRead)
		authorized.DELETE("/conversations/:id", h.ArchiveConversation)

		authorized.GET("/messages/:conversationId", h.GetMessages)
		authorized.POST("/messages", h.SendMessage)
		authorized.PUT("/messages/:id/read", h.MarkMessageAsRead)
		authorized.DELETE("/messages/:id", h.DeleteMessage)

		authorized.GET("/search/users", h.SearchUsers)
		authorized.GET("/search/messages", h.SearchMessages)

		if cfg.Presence != nil {
			authorized.GET("/presence/:userId", presenceHandler(cfg.Presence))
		}
		if cfg.WebSocket != nil {
			authorized.GET("/ws", cfg.WebSocket.HandleWebSocket)
		}
	}

	return router
}

func healthHandler(p Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				log.Warn("health check failed: %v", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func presenceHandler(p Presence) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := caller(c); !ok {
			return
		}
		userID, ok := uuidParam(c, "userId")
		if !ok {
			return
		}
		respondOK(c, gin.H{"userId": userID, "online": p.Online(userID)})
	}
}
