package client

import (
	"strings"
	"time"

	"github.com/receiptme/receiptd/internal/core"
)

type wireMessage struct {
	ID             string  `json:"id"`
	Sender         string  `json:"sender"`
	Content        string  `json:"content"`
	SequenceNumber int64   `json:"sequence_number"`
	CreatedAt      string  `json:"created_at"`
	Printed        bool    `json:"printed"`
	PrintedAt      *string `json:"printed_at"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// parseTimestamp accepts RFC 3339 and the common zone-less variants, which
// are read as UTC. Unparseable input yields the zero time.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func (w *wireMessage) toMessage() *core.Message {
	m := &core.Message{
		ID:             w.ID,
		Sender:         w.Sender,
		Content:        w.Content,
		SequenceNumber: w.SequenceNumber,
		CreatedAt:      parseTimestamp(w.CreatedAt),
		Printed:        w.Printed,
	}
	if w.PrintedAt != nil {
		if t := parseTimestamp(*w.PrintedAt); !t.IsZero() {
			m.PrintedAt = &t
		}
	}
	return m
}
