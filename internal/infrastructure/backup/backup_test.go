package backup

import (
	"context"
	"testing"
	"time"

	"locallive/internal/core/domain"
	"locallive/internal/infrastructure/repositories/memory"
	"locallive/internal/infrastructure/seed"
	"locallive/pkg/backup"
	"locallive/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

func seededRepos(t *testing.T) Repositories {
	t.Helper()
	ctx := context.Background()
	c, err := seed.Default(testNow)
	require.NoError(t, err)

	auctions := memory.NewMemoryAuctionRepository()
	for _, a := range c.Auctions {
		require.NoError(t, auctions.Save(ctx, a.Auction(2, 5, testNow)))
	}
	feed := memory.NewMemoryFeedRepository(0)
	for channel, events := range c.Chat {
		for i := range events {
			e := events[i]
			_, err := feed.Append(ctx, channel, &e)
			require.NoError(t, err)
		}
	}
	return Repositories{
		Streams:  memory.NewMemoryStreamRepository(c.Streams...),
		Auctions: auctions,
		Feed:     feed,
	}
}

func emptyRepos() Repositories {
	return Repositories{
		Streams:  memory.NewMemoryStreamRepository(),
		Auctions: memory.NewMemoryAuctionRepository(),
		Feed:     memory.NewMemoryFeedRepository(0),
	}
}

func newTestBackupService(t *testing.T) *backup.BackupService {
	t.Helper()
	storage, err := backup.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	return backup.NewBackupService(storage, "1")
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	service := newTestBackupService(t)
	source := seededRepos(t)

	scheduler := NewScheduler(service, source, Config{Interval: time.Hour, RetentionDays: 7}, logger.Nop())
	name, err := scheduler.RunBackup(ctx)
	require.NoError(t, err)

	target := emptyRepos()
	result, err := NewRestoreService(service, target, logger.Nop()).RestoreLatest(ctx, time.Now().Add(time.Minute), DefaultRestoreOptions())
	require.NoError(t, err)
	assert.Equal(t, name, result.Name)
	assert.Equal(t, 2, result.Streams)
	assert.Equal(t, 1, result.Auctions)
	assert.Equal(t, 1, result.Channels)

	live, err := target.Streams.ListLive(ctx)
	require.NoError(t, err)
	require.Len(t, live, 2)

	a, err := target.Auctions.Get(ctx, "sarahs-kitchen-live")
	require.NoError(t, err)
	assert.Equal(t, 18.0, a.CurrentBid)
	assert.Equal(t, "Dozen Chocolate Chip Cookies", a.ItemName)

	events, err := target.Feed.List(ctx, "sarahs-kitchen-live")
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, "seed-1", events[0].ID)
	assert.Equal(t, int64(1), events[0].Seq)
	assert.Equal(t, domain.EventBid, events[3].Kind)
}

func TestRestore_SkipsOrOverwritesExisting(t *testing.T) {
	ctx := context.Background()
	service := newTestBackupService(t)
	source := seededRepos(t)

	a, err := source.Auctions.Get(ctx, "sarahs-kitchen-live")
	require.NoError(t, err)
	a.CurrentBid = 30
	require.NoError(t, source.Auctions.Save(ctx, a))

	_, err = NewScheduler(service, source, Config{Interval: time.Hour}, logger.Nop()).RunBackup(ctx)
	require.NoError(t, err)

	target := seededRepos(t)
	restore := NewRestoreService(service, target, logger.Nop())

	result, err := restore.RestoreLatest(ctx, time.Now().Add(time.Minute), DefaultRestoreOptions())
	require.NoError(t, err)
	assert.Zero(t, result.Streams)
	assert.Zero(t, result.Auctions)
	assert.Zero(t, result.Channels)

	got, err := target.Auctions.Get(ctx, "sarahs-kitchen-live")
	require.NoError(t, err)
	assert.Equal(t, 18.0, got.CurrentBid)

	opts := DefaultRestoreOptions()
	opts.OverwriteExisting = true
	result, err = restore.RestoreLatest(ctx, time.Now().Add(time.Minute), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Auctions)
	assert.Equal(t, 1, result.Channels)

	got, err = target.Auctions.Get(ctx, "sarahs-kitchen-live")
	require.NoError(t, err)
	assert.Equal(t, 30.0, got.CurrentBid)

	events, err := target.Feed.List(ctx, "sarahs-kitchen-live")
	require.NoError(t, err)
	assert.Len(t, events, 4)
}

func TestRestoreLatest_NothingToRestore(t *testing.T) {
	result, err := NewRestoreService(newTestBackupService(t), emptyRepos(), logger.Nop()).
		RestoreLatest(context.Background(), time.Now(), DefaultRestoreOptions())
	require.NoError(t, err)
	assert.Empty(t, result.Name)
}

func TestScheduler_StopsOnStop(t *testing.T) {
	scheduler := NewScheduler(newTestBackupService(t), emptyRepos(), Config{Interval: time.Hour}, logger.Nop())

	done := make(chan struct{})
	go func() {
		scheduler.Start(context.Background())
		close(done)
	}()
	scheduler.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
