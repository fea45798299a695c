package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"pulse/internal/domain"
	"pulse/internal/service"
)

type createSessionRequest struct {
	Title string `json:"title"`
}

type chatMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type escalateRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) listChatSessions(c *gin.Context) {
	sessions, err := h.svc.Chat.ListSessions(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionsToResponse(sessions))
}

func (h *Handler) createChatSession(c *gin.Context) {
	var req createSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	session, err := h.svc.Chat.CreateSession(c.Request.Context(), currentUser(c), req.Title)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionToResponse(*session))
}

func (h *Handler) getChatSession(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	session, err := h.svc.Chat.GetSession(c.Request.Context(), currentUser(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionToResponse(*session))
}

// listChatMessages serves both the owner and admins; ?after= polls for new messages.
func (h *Handler) listChatMessages(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var after int64
	if raw := strings.TrimSpace(c.Query("after")); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			badRequest(c, "invalid after")
			return
		}
		after = v
	}
	msgs, err := h.svc.Chat.Messages(c.Request.Context(), currentUser(c), id, after)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messagesToResponse(msgs))
}

func (h *Handler) sendChatMessage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req chatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.svc.Chat.SendMessage(c.Request.Context(), currentUser(c), id, req.Content, service.TurnEvents{})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, turnToResponse(result))
}

// streamChatMessage runs one turn and reports it as server-sent events:
// message, token (repeated), escalated, then done or error.
func (h *Handler) streamChatMessage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req chatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	send := func(event string, data any) {
		c.SSEvent(event, data)
		c.Writer.Flush()
	}

	result, err := h.svc.Chat.SendMessage(ctx, currentUser(c), id, req.Content, service.TurnEvents{
		UserMessage: func(msg domain.ChatMessage) {
			send("message", messageToResponse(msg))
		},
		Token: func(chunk string) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			send("token", gin.H{"content": chunk})
			return nil
		},
		Escalated: func(session domain.ChatSession) {
			send("escalated", sessionToResponse(session))
		},
	})
	if err != nil {
		h.logger.WithField("session_id", id).Warnf("chat stream failed: %v", err)
		if !c.Writer.Written() {
			c.Status(errorStatus(err))
		}
		send("error", gin.H{"error": err.Error()})
		return
	}
	send("done", turnToResponse(result))
}

func (h *Handler) escalateChat(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req escalateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	session, err := h.svc.Chat.Escalate(c.Request.Context(), currentUser(c), id, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionToResponse(*session))
}

func (h *Handler) cancelEscalation(c *gin.Context) {
	h.sessionAction(c, h.svc.Chat.CancelEscalation)
}

func (h *Handler) closeChat(c *gin.Context) {
	h.sessionAction(c, h.svc.Chat.Close)
}

func (h *Handler) intervene(c *gin.Context) {
	h.sessionAction(c, h.svc.Chat.Intervene)
}

func (h *Handler) releaseChat(c *gin.Context) {
	h.sessionAction(c, h.svc.Chat.Release)
}

type sessionActionFunc func(ctx context.Context, actor *domain.User, id int64) (*domain.ChatSession, error)

func (h *Handler) sessionAction(c *gin.Context, action sessionActionFunc) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	session, err := action(c.Request.Context(), currentUser(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionToResponse(*session))
}

func (h *Handler) adminChatSessions(c *gin.Context) {
	var statuses []domain.ChatStatus
	for _, raw := range c.QueryArray("status") {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
				statuses = append(statuses, domain.ChatStatus(part))
			}
		}
	}
	sessions, err := h.svc.Chat.ListByStatus(c.Request.Context(), statuses...)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionsToResponse(sessions))
}

func (h *Handler) adminChatMessage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req chatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	msg, err := h.svc.Chat.AdminMessage(c.Request.Context(), currentUser(c), id, req.Content)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, messageToResponse(*msg))
}
