package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/receiptme/receiptd/internal/core"
)

// Notifier receives message lifecycle events. The webhook sender implements it.
type Notifier interface {
	MessageCreated(m *core.Message)
	MessagePrinted(m *core.Message)
}

type nopNotifier struct{}

func (nopNotifier) MessageCreated(*core.Message) {}
func (nopNotifier) MessagePrinted(*core.Message) {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

func respondError(c *gin.Context, logger zerolog.Logger, op string, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		logger.Warn().Err(err).Str("op", op).Msg("rejected request")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		logger.Error().Err(err).Str("op", op).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
