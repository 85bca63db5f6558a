package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/receiptme/receiptd/internal/core"
)

const maxClaimAttempts = 5

type Option func(*options)

type options struct {
	now   func() time.Time
	newID func() string
}

// WithClock overrides the time source used for created_at, printed_at and
// claim timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// SQLiteStore implements core.MessageStore on a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	opts options
}

var _ core.MessageStore = (*SQLiteStore)(nil)

func NewSQLiteStore(database *sql.DB, opts ...Option) *SQLiteStore {
	return &SQLiteStore{db: database, opts: buildOptions(opts)}
}

// OpenSQLiteStore opens the database at path and wraps it in a store.
func OpenSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	database, err := Open(Config{Path: path})
	if err != nil {
		return nil, err
	}
	return NewSQLiteStore(database, opts...), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Create(ctx context.Context, sender, content string) (*core.Message, error) {
	m := &core.Message{
		ID:        s.opts.newID(),
		Sender:    sender,
		Content:   content,
		CreatedAt: s.opts.now().UTC(),
	}

	result, err := s.db.ExecContext(ctx, InsertMessage, m.ID, m.Sender, m.Content, toNanos(m.CreatedAt))
	if err != nil {
		return nil, &core.StoreError{Op: "create", Err: err}
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return nil, &core.StoreError{Op: "create", Err: fmt.Errorf("failed to get sequence number: %w", err)}
	}
	m.SequenceNumber = seq
	m.CreatedAt = fromNanos(toNanos(m.CreatedAt))
	return m, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*core.Message, error) {
	m, err := scanSQLiteMessage(s.db.QueryRowContext(ctx, GetMessageByID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, &core.StoreError{Op: "get", Err: err}
	}
	return m, nil
}

func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]*core.Message, error) {
	if limit <= 0 {
		return []*core.Message{}, nil
	}

	rows, err := s.db.QueryContext(ctx, ListRecentMessages, limit)
	if err != nil {
		return nil, &core.StoreError{Op: "list recent", Err: err}
	}
	defer rows.Close()

	messages := make([]*core.Message, 0, limit)
	for rows.Next() {
		m, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, &core.StoreError{Op: "list recent", Err: fmt.Errorf("failed to scan message: %w", err)}
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.StoreError{Op: "list recent", Err: err}
	}
	return messages, nil
}

func (s *SQLiteStore) FindOldestUnprinted(ctx context.Context) (*core.Message, error) {
	m, err := scanSQLiteMessage(s.db.QueryRowContext(ctx, FindOldestUnprinted))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &core.StoreError{Op: "find oldest unprinted", Err: err}
	}
	return m, nil
}

func (s *SQLiteStore) MarkPrinted(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, MarkMessagePrinted, toNanos(s.opts.now()), id)
	if err != nil {
		return &core.StoreError{Op: "mark printed", Err: err}
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return &core.StoreError{Op: "mark printed", Err: fmt.Errorf("failed to get affected rows: %w", err)}
	}
	if affected > 0 {
		return nil
	}

	// Nothing changed: either already printed or unknown.
	var one int
	err = s.db.QueryRowContext(ctx, MessageExists, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	if err != nil {
		return &core.StoreError{Op: "mark printed", Err: err}
	}
	return nil
}

func (s *SQLiteStore) ClaimNext(ctx context.Context, workerID string, lease time.Duration) (*core.Message, error) {
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		now := s.opts.now()
		expired := toNanos(now.Add(-lease))

		candidate, err := scanSQLiteMessage(s.db.QueryRowContext(ctx, FindOldestClaimable, workerID, expired))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, &core.StoreError{Op: "claim next", Err: err}
		}

		claimed, err := s.claim(ctx, candidate.ID, workerID, now, expired)
		if err != nil {
			return nil, err
		}
		if !claimed {
			continue
		}

		claimedAt := fromNanos(toNanos(now))
		candidate.ClaimedBy = workerID
		candidate.ClaimedAt = &claimedAt
		return candidate, nil
	}
	return nil, core.ErrClaimConflict
}

func (s *SQLiteStore) claim(ctx context.Context, id, workerID string, now time.Time, expired int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, ClaimMessage, workerID, toNanos(now), id, workerID, expired)
	if err != nil {
		return false, &core.StoreError{Op: "claim", Err: err}
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, &core.StoreError{Op: "claim", Err: fmt.Errorf("failed to get affected rows: %w", err)}
	}
	return affected == 1, nil
}
