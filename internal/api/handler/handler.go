package handler

import (
	"context"
	"net/http"
	"time"

	"supportdesk/backend/internal/auth"
	"supportdesk/backend/internal/chathub"
	"supportdesk/backend/internal/config"
	"supportdesk/backend/internal/models"
	"supportdesk/backend/internal/session"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// RateLimiter counts one request for key and reports whether it may proceed.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Handler holds the dependencies of the HTTP and websocket endpoints.
type Handler struct {
	Hub      *chathub.ManagerService
	Sessions *session.Service
	Auth     auth.Verifier
	Limiter  RateLimiter
	Upgrader websocket.Upgrader
	CORS     cors.Config
}

func NewHandler(hub *chathub.ManagerService, sessions *session.Service, verifier auth.Verifier, limiter RateLimiter, cfg config.AppConfig) *Handler {
	return &Handler{
		Hub:      hub,
		Sessions: sessions,
		Auth:     verifier,
		Limiter:  limiter,
		CORS: cors.Config{
			AllowOriginFunc:  cfg.OriginAllowed,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		},
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return cfg.OriginAllowed(r.Header.Get("Origin"))
			},
		},
	}
}

// RegisterRoutes mounts every endpoint on r.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// The browser frontend calls /api cross-origin with its jwt cookie.
	r.Use(cors.New(h.CORS))

	r.GET("/healthz", h.Health)
	r.GET("/ws", h.ServeWebSocket)

	api := r.Group("/api", h.Authenticate())
	api.POST("/chat/initiate", RequireRole(models.RoleCustomer), h.InitiateSession)
	api.POST("/chat/message", h.RateLimit(), h.SendMessage)
	api.GET("/chat/:id/messages", h.ListMessages)
	api.GET("/agents", RequireRole(models.RoleCustomer), h.ListAgents)
	api.GET("/customer-queries", RequireRole(models.RoleAgent), h.ListCustomerQueries)
	api.POST("/chat/resolve", RequireRole(models.RoleCustomer), h.ResolveSession)
	api.GET("/chats", RequireRole(models.RoleAdmin), h.ListAllSessions)
	api.GET("/chat/:id/messagesforadmin", RequireRole(models.RoleAdmin), h.ListMessagesForAdmin)
}

func (h *Handler) Health(c *gin.Context) {
	online := 0
	if h.Hub != nil {
		online = len(h.Hub.Online())
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "online": online})
}
