package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receiptme/receiptd/internal/core"
)

func newPostgresStore(t *testing.T) (*PostgresStore, *fakeClock) {
	t.Helper()
	dsn := os.Getenv("RECEIPTD_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("RECEIPTD_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	clock := newFakeClock()
	store, err := OpenPostgresStore(ctx, dsn, WithClock(clock.Now))
	require.NoError(t, err)
	_, err = store.pool.Exec(ctx, "TRUNCATE messages RESTART IDENTITY")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, clock
}

func TestPostgresQueueFlow(t *testing.T) {
	store, clock := newPostgresStore(t)
	ctx := context.Background()

	ann, err := store.Create(ctx, "Ann", "Hi")
	require.NoError(t, err)
	assert.Equal(t, int64(1), ann.SequenceNumber)
	assert.False(t, ann.Printed)
	assert.Nil(t, ann.PrintedAt)

	second, err := store.Create(ctx, "Bob", "Second")
	require.NoError(t, err)

	next, err := store.FindOldestUnprinted(ctx)
	require.NoError(t, err)
	assert.Equal(t, ann.ID, next.ID)

	clock.Advance(time.Minute)
	require.NoError(t, store.MarkPrinted(ctx, ann.ID))
	printed, err := store.Get(ctx, ann.ID)
	require.NoError(t, err)
	firstPrintedAt := *printed.PrintedAt

	clock.Advance(time.Minute)
	require.NoError(t, store.MarkPrinted(ctx, ann.ID))
	again, err := store.Get(ctx, ann.ID)
	require.NoError(t, err)
	assert.True(t, again.PrintedAt.Equal(firstPrintedAt))

	next, err = store.FindOldestUnprinted(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, next.ID)

	recent, err := store.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, second.ID, recent[0].ID)

	assert.ErrorIs(t, store.MarkPrinted(ctx, "missing"), core.ErrNotFound)
}

func TestPostgresClaimNext(t *testing.T) {
	store, clock := newPostgresStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx, "Ann", "one")
	require.NoError(t, err)
	clock.Advance(time.Second)
	second, err := store.Create(ctx, "Bob", "two")
	require.NoError(t, err)

	a, err := store.ClaimNext(ctx, "worker-a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, first.ID, a.ID)

	b, err := store.ClaimNext(ctx, "worker-b", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, second.ID, b.ID)

	clock.Advance(2 * time.Minute)
	takeover, err := store.ClaimNext(ctx, "worker-b", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, first.ID, takeover.ID)
}
