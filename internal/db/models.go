package db

import (
	"database/sql"
	"time"

	"github.com/receiptme/receiptd/internal/core"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// SQLite keeps timestamps as unix nanoseconds so the queue index orders them
// numerically.
func scanSQLiteMessage(row rowScanner) (*core.Message, error) {
	var (
		m         core.Message
		createdAt int64
		printed   int
		printedAt sql.NullInt64
		claimedBy sql.NullString
		claimedAt sql.NullInt64
	)
	if err := row.Scan(
		&m.ID, &m.Sender, &m.Content, &m.SequenceNumber,
		&createdAt, &printed, &printedAt, &claimedBy, &claimedAt,
	); err != nil {
		return nil, err
	}

	m.CreatedAt = fromNanos(createdAt)
	m.Printed = printed == 1
	if printedAt.Valid {
		t := fromNanos(printedAt.Int64)
		m.PrintedAt = &t
	}
	if claimedBy.Valid {
		m.ClaimedBy = claimedBy.String
	}
	if claimedAt.Valid {
		t := fromNanos(claimedAt.Int64)
		m.ClaimedAt = &t
	}
	return &m, nil
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
