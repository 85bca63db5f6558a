package core

import (
	"context"
	"time"
)

const (
	MaxSenderLength  = 50
	MaxContentLength = 280
)

// Message is one queued receipt. Only Printed and PrintedAt ever change after
// creation, and only from unprinted to printed.
type Message struct {
	ID             string     `json:"id"`
	Sender         string     `json:"sender"`
	Content        string     `json:"content"`
	SequenceNumber int64      `json:"sequence_number"`
	CreatedAt      time.Time  `json:"created_at"`
	Printed        bool       `json:"printed"`
	PrintedAt      *time.Time `json:"printed_at"`

	ClaimedBy string     `json:"-"`
	ClaimedAt *time.Time `json:"-"`
}

// MessageStore is the persisted message log. Each operation is atomic on its
// own; FindOldestUnprinted followed by MarkPrinted is not.
type MessageStore interface {
	Create(ctx context.Context, sender, content string) (*Message, error)
	Get(ctx context.Context, id string) (*Message, error)
	ListRecent(ctx context.Context, limit int) ([]*Message, error)
	// FindOldestUnprinted returns nil, nil when every message is printed.
	FindOldestUnprinted(ctx context.Context) (*Message, error)
	// MarkPrinted is idempotent; a second call keeps the first PrintedAt.
	MarkPrinted(ctx context.Context, id string) error
	// ClaimNext conditionally claims the oldest unprinted message that is
	// unclaimed, already held by workerID, or whose claim is older than lease.
	ClaimNext(ctx context.Context, workerID string, lease time.Duration) (*Message, error)
	Close() error
}
