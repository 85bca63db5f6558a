package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/receiptme/receiptd/internal/core"
)

// PostgresStore implements core.MessageStore on PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	opts options
}

var _ core.MessageStore = (*PostgresStore)(nil)

// OpenPostgresStore connects to dsn and applies pending migrations.
func OpenPostgresStore(ctx context.Context, dsn string, opts ...Option) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}

	s := &PostgresStore{pool: pool, opts: buildOptions(opts)}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, CreateMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := s.pool.Query(ctx, GetAppliedMigrations)
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}
	applied, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("failed to scan migration version: %w", err)
	}
	done := make(map[string]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	migrations, err := loadMigrations("migrations/postgres")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	for _, m := range migrations {
		if done[m.Version] {
			continue
		}
		err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", m.Version, err)
			}
			if _, err := tx.Exec(ctx, PgRecordMigration, m.Version); err != nil {
				return fmt.Errorf("failed to record migration %s: %w", m.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Postgres stores microseconds; trimming up front keeps returned records
// identical to what a later read sees.
func (s *PostgresStore) now() time.Time {
	return s.opts.now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresStore) Create(ctx context.Context, sender, content string) (*core.Message, error) {
	m := &core.Message{
		ID:        s.opts.newID(),
		Sender:    sender,
		Content:   content,
		CreatedAt: s.now(),
	}
	err := s.pool.QueryRow(ctx, PgInsertMessage, m.ID, m.Sender, m.Content, m.CreatedAt).Scan(&m.SequenceNumber)
	if err != nil {
		return nil, &core.StoreError{Op: "create", Err: err}
	}
	return m, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*core.Message, error) {
	m, err := scanPgMessage(s.pool.QueryRow(ctx, PgGetMessageByID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, &core.StoreError{Op: "get", Err: err}
	}
	return m, nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*core.Message, error) {
	if limit <= 0 {
		return []*core.Message{}, nil
	}

	rows, err := s.pool.Query(ctx, PgListRecentMessages, limit)
	if err != nil {
		return nil, &core.StoreError{Op: "list recent", Err: err}
	}
	defer rows.Close()

	messages := make([]*core.Message, 0, limit)
	for rows.Next() {
		m, err := scanPgMessage(rows)
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

func (s *PostgresStore) FindOldestUnprinted(ctx context.Context) (*core.Message, error) {
	m, err := scanPgMessage(s.pool.QueryRow(ctx, PgFindOldestUnprinted))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &core.StoreError{Op: "find oldest unprinted", Err: err}
	}
	return m, nil
}

func (s *PostgresStore) MarkPrinted(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, PgMarkMessagePrinted, s.now(), id)
	if err != nil {
		return &core.StoreError{Op: "mark printed", Err: err}
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, PgMessageExists, id).Scan(&exists); err != nil {
		return &core.StoreError{Op: "mark printed", Err: err}
	}
	if !exists {
		return core.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ClaimNext(ctx context.Context, workerID string, lease time.Duration) (*core.Message, error) {
	now := s.now()
	m, err := scanPgMessage(s.pool.QueryRow(ctx, PgClaimNext, workerID, now, now.Add(-lease)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &core.StoreError{Op: "claim next", Err: err}
	}
	return m, nil
}

func scanPgMessage(row pgx.Row) (*core.Message, error) {
	var (
		m         core.Message
		claimedBy *string
	)
	if err := row.Scan(
		&m.ID, &m.Sender, &m.Content, &m.SequenceNumber,
		&m.CreatedAt, &m.Printed, &m.PrintedAt, &claimedBy, &m.ClaimedAt,
	); err != nil {
		return nil, err
	}

	m.CreatedAt = m.CreatedAt.UTC()
	if m.PrintedAt != nil {
		t := m.PrintedAt.UTC()
		m.PrintedAt = &t
	}
	if claimedBy != nil {
		m.ClaimedBy = *claimedBy
	}
	return &m, nil
}
