package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RateLimit throttles per principal. Limiter failures let the request through.
func (h *Handler) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.Limiter == nil {
			c.Next()
			return
		}
		p, _ := principalFrom(c)
		allowed, err := h.Limiter.Allow(c.Request.Context(), p.ID)
		if err != nil {
			log.Printf("WARNING: Rate limiter unavailable, allowing %s: %v", p.ID, err)
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many messages, slow down"})
			return
		}
		c.Next()
	}
}
