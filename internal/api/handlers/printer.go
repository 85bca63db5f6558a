package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/receiptme/receiptd/internal/core"
)

type MarkPrintedRequest struct {
	ID string `json:"id"`
}

type NextToPrintResponse struct {
	Message *core.Message `json:"message"`
}

// PrinterHandler serves the worker-facing queue endpoints.
type PrinterHandler struct {
	store      core.MessageStore
	notifier   Notifier
	claimLease time.Duration
	logger     zerolog.Logger
}

func NewPrinterHandler(store core.MessageStore, notifier Notifier, claimLease time.Duration, logger zerolog.Logger) *PrinterHandler {
	return &PrinterHandler{
		store:      store,
		notifier:   notifierOrNop(notifier),
		claimLease: claimLease,
		logger:     logger,
	}
}

// NextToPrint returns the oldest unprinted message. With a worker_id query
// parameter the message is claimed for that worker first.
func (h *PrinterHandler) NextToPrint(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		m   *core.Message
		err error
	)
	if workerID := strings.TrimSpace(c.Query("worker_id")); workerID != "" {
		m, err = h.store.ClaimNext(ctx, workerID, h.claimLease)
	} else {
		m, err = h.store.FindOldestUnprinted(ctx)
	}
	if err != nil {
		respondError(c, h.logger, "next to print", err)
		return
	}

	if m != nil {
		h.logger.Debug().Str("id", m.ID).Str("claimed_by", m.ClaimedBy).Msg("offering message")
	}
	c.JSON(http.StatusOK, NextToPrintResponse{Message: m})
}

func (h *PrinterHandler) MarkPrinted(c *gin.Context) {
	var req MarkPrintedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	id, err := core.ValidateMessageID(req.ID)
	if err != nil {
		respondError(c, h.logger, "mark printed", err)
		return
	}

	ctx := c.Request.Context()
	if err := h.store.MarkPrinted(ctx, id); err != nil {
		respondError(c, h.logger, "mark printed", err)
		return
	}

	if m, err := h.store.Get(ctx, id); err == nil {
		h.notifier.MessagePrinted(m)
	}
	h.logger.Info().Str("id", id).Msg("message marked printed")

	c.JSON(http.StatusOK, gin.H{"status": "ok", "id": id})
}
