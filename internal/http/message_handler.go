package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messenger/internal/domain"
	"messenger/internal/service"
)

// MessageHandler mantiene dependencias para los endpoints de mensajes.
type MessageHandler struct {
	logger   *zap.Logger
	messages *service.MessageService
}

// NewMessageHandler crea una instancia de MessageHandler.
func NewMessageHandler(logger *zap.Logger, messages *service.MessageService) *MessageHandler {
	return &MessageHandler{
		logger:   logger,
		messages: messages,
	}
}

// SendMessage maneja POST /messages/send/.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req struct {
		Sender         string `json:"sender"`
		Recipient      string `json:"recipient"`
		MessageContent string `json:"message_content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid send message request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), service.SendInput{
		Sender:         req.Sender,
		Recipient:      req.Recipient,
		MessageContent: req.MessageContent,
	})
	if err != nil {
		h.writeError(c, "send message failed", err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// ListMessages maneja GET /messages/.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	var in service.ListInput
	if v, ok := c.GetQuery("sender"); ok {
		in.Sender = &v
	}
	if v, ok := c.GetQuery("recipient"); ok {
		in.Recipient = &v
	}
	if v, ok := c.GetQuery("is_read"); ok {
		isRead, err := strconv.ParseBool(v)
		if err != nil {
			h.logger.Warn("invalid is_read filter", zap.String("is_read", v))
			c.JSON(http.StatusBadRequest, gin.H{"error": "is_read must be true or false"})
			return
		}
		in.IsRead = &isRead
	}

	messages, err := h.messages.List(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, "list messages failed", err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

// MarkRead maneja POST /messages/:id/read/.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	msg, err := h.messages.MarkRead(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "mark read failed", err)
		return
	}

	c.JSON(http.StatusOK, msg)
}

// Health maneja GET /healthz.
func (h *MessageHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.messages.Ping(ctx); err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeError traduce errores de servicio a códigos HTTP.
func (h *MessageHandler) writeError(c *gin.Context, msg string, err error) {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		h.logger.Warn(msg, zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message", "field": vErr.Field, "detail": vErr.Reason})
	case errors.Is(err, service.ErrSendRateLimited):
		h.logger.Warn(msg, zap.Error(err))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many messages, try again later"})
	case errors.Is(err, domain.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
	default:
		h.logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
