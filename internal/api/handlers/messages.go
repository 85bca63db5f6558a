package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/receiptme/receiptd/internal/core"
)

type CreateMessageRequest struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

type RecentMessagesResponse struct {
	Messages []*core.Message `json:"messages"`
}

type MessageHandler struct {
	store       core.MessageStore
	notifier    Notifier
	recentLimit int
	maxRecent   int
	logger      zerolog.Logger
}

func NewMessageHandler(store core.MessageStore, notifier Notifier, recentLimit, maxRecent int, logger zerolog.Logger) *MessageHandler {
	return &MessageHandler{
		store:       store,
		notifier:    notifierOrNop(notifier),
		recentLimit: recentLimit,
		maxRecent:   maxRecent,
		logger:      logger,
	}
}

func (h *MessageHandler) CreateMessage(c *gin.Context) {
	var req CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	sender, content, err := core.ValidateNewMessage(req.Sender, req.Content)
	if err != nil {
		respondError(c, h.logger, "create message", err)
		return
	}

	m, err := h.store.Create(c.Request.Context(), sender, content)
	if err != nil {
		respondError(c, h.logger, "create message", err)
		return
	}

	h.logger.Info().
		Str("id", m.ID).
		Int64("sequence_number", m.SequenceNumber).
		Str("sender", m.Sender).
		Msg("message created")
	h.notifier.MessageCreated(m)

	c.JSON(http.StatusCreated, m)
}

func (h *MessageHandler) ListRecent(c *gin.Context) {
	limit := h.recentLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > h.maxRecent {
		limit = h.maxRecent
	}

	messages, err := h.store.ListRecent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, "list recent", err)
		return
	}

	c.JSON(http.StatusOK, RecentMessagesResponse{Messages: messages})
}
