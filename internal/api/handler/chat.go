package handler

import (
	"net/http"
	"strconv"

	"supportdesk/backend/internal/models"

	"github.com/gin-gonic/gin"
)

type initiateRequest struct {
	AgentID string `json:"agentId"`
}

type sendMessageRequest struct {
	ChatSessionID models.SessionRef `json:"chatSessionId"`
	Message       string            `json:"message"`
}

type resolveRequest struct {
	ChatSessionID models.SessionRef `json:"chatSessionId"`
}

func (h *Handler) InitiateSession(c *gin.Context) {
	p, _ := principalFrom(c)
	var req initiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "agentId is required"})
		return
	}

	s, created, err := h.Sessions.InitiateSession(c.Request.Context(), p.ID, req.AgentID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !created {
		c.JSON(http.StatusOK, gin.H{
			"message":       "Existing chat session found",
			"chatSessionId": s.ID,
			"status":        s.Status,
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":       "Chat session initiated successfully",
		"chatSessionId": s.ID,
		"status":        s.Status,
	})
}

func (h *Handler) SendMessage(c *gin.Context) {
	p, _ := principalFrom(c)
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ChatSessionID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chatSessionId and message are required"})
		return
	}

	msg, err := h.Sessions.SendMessage(c.Request.Context(), uint(req.ChatSessionID), p, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":   "Message sent successfully",
		"messageId": msg.ID,
		"sentAt":    msg.SentAt,
	})
}

func (h *Handler) ListMessages(c *gin.Context) {
	p, _ := principalFrom(c)
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	history, err := h.Sessions.ListMessages(c.Request.Context(), id, p.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": history.Status, "messages": history.Messages})
}

func (h *Handler) ListMessagesForAdmin(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	history, err := h.Sessions.ListMessagesForAdmin(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": history.Status, "messages": history.Messages})
}

func (h *Handler) ListAgents(c *gin.Context) {
	agents, err := h.Sessions.ListAgents(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

func (h *Handler) ListCustomerQueries(c *gin.Context) {
	p, _ := principalFrom(c)
	queries, err := h.Sessions.ListCustomerQueries(c.Request.Context(), p.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customerQueries": queries})
}

func (h *Handler) ResolveSession(c *gin.Context) {
	p, _ := principalFrom(c)
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ChatSessionID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chatSessionId is required"})
		return
	}

	if err := h.Sessions.ResolveSession(c.Request.Context(), uint(req.ChatSessionID), p.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Query resolved successfully"})
}

func (h *Handler) ListAllSessions(c *gin.Context) {
	chats, err := h.Sessions.ListAllSessions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func sessionIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Chat session ID is required"})
		return 0, false
	}
	return uint(id), true
}
