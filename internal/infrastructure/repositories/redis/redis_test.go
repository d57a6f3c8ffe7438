package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"locallive/internal/core/domain"
	"locallive/internal/infrastructure/seed"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNewRedisClient_SeedsCatalogOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	catalog, err := seed.Default(time.Now())
	require.NoError(t, err)

	client, err := NewRedisClient(ctx, ClientOptions{Address: mr.Addr(), PoolSize: 2}, catalog, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer client.Close()

	streams := NewRedisStreamRepository(client)
	live, err := streams.ListLive(ctx)
	require.NoError(t, err)
	assert.Len(t, live, 2)

	feed := NewRedisFeedRepository(client, 0)
	events, err := feed.List(ctx, "sarahs-kitchen-live")
	require.NoError(t, err)
	assert.Len(t, events, 4)

	// second run is a no-op
	require.NoError(t, Migrate(ctx, client, catalog, nil))
	events, _ = feed.List(ctx, "sarahs-kitchen-live")
	assert.Len(t, events, 4)
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := NewRedisClient(ctx, ClientOptions{Address: "127.0.0.1:1", PoolSize: 1}, nil, nil)
	assert.Error(t, err)
}

func TestRedisStreamRepository(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	repo := NewRedisStreamRepository(client)

	stream := &domain.LiveStream{ID: "k1", Channel: "u1-kitchen-1", Title: "Pies", IsLive: true, ViewerCount: 1}
	require.NoError(t, repo.Create(ctx, stream))
	assert.Error(t, repo.Create(ctx, stream))

	got, err := repo.GetByChannel(ctx, "u1-kitchen-1")
	require.NoError(t, err)
	assert.Equal(t, "Pies", got.Title)

	n, err := repo.AdjustViewers(ctx, "k1", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = repo.AdjustViewers(ctx, "k1", -10)
	require.NoError(t, err)
	assert.Zero(t, n)

	got.IsLive = false
	require.NoError(t, repo.Update(ctx, got))
	live, err := repo.ListLive(ctx)
	require.NoError(t, err)
	assert.Empty(t, live)

	require.NoError(t, repo.Delete(ctx, "k1"))
	_, err = repo.GetByChannel(ctx, "u1-kitchen-1")
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)
	_, err = repo.AdjustViewers(ctx, "k1", 1)
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)
}

func TestRedisFeedRepository(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	repo := NewRedisFeedRepository(client, 3)

	last, err := repo.Last(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, last)

	for i := 0; i < 5; i++ {
		e := domain.ChatEvent{ID: fmt.Sprintf("e%d", i), Kind: domain.EventMessage, Message: "hi"}
		seq, err := repo.Append(ctx, "c1", &e)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), seq)
	}

	events, err := repo.List(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "e2", events[0].ID)
	assert.Equal(t, "e4", events[2].ID)

	last, err = repo.Last(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), last.Seq)

	require.NoError(t, repo.Delete(ctx, "c1"))
	events, err = repo.List(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRedisAuctionRepository(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	repo := NewRedisAuctionRepository(client)

	_, err := repo.Get(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)

	require.NoError(t, repo.Save(ctx, &domain.Auction{Channel: "c1", CurrentBid: 18, Increment: 2, Status: domain.AuctionOpen}))
	a, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 20.0, a.NextBid())
}

func TestRedisUserRepository_KeepsPasswordHash(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	repo := NewRedisUserRepository(client)

	u := &domain.User{ID: "u1", Email: "sarah@example.com", DisplayName: "Sarah", PasswordHash: []byte("hash")}
	require.NoError(t, repo.Create(ctx, u))
	assert.ErrorIs(t, repo.Create(ctx, &domain.User{ID: "u2", Email: "SARAH@example.com"}), domain.ErrUserExists)

	got, err := repo.GetByEmail(ctx, "sarah@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Sarah", got.DisplayName)
	assert.Equal(t, []byte("hash"), got.PasswordHash)
}

func TestRedisAuctionRepository_RetriesTransientErrors(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()
	repo := NewRedisAuctionRepository(client)
	require.NoError(t, repo.Save(ctx, &domain.Auction{Channel: "c1", CurrentBid: 18, Increment: 2, Status: domain.AuctionOpen}))

	mr.SetError("ERR server busy")
	go func() {
		time.Sleep(5 * time.Millisecond)
		mr.SetError("")
	}()

	a, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 18.0, a.CurrentBid)
}

func TestRedisAuctionRepository_MissIsNotRetried(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()
	repo := NewRedisAuctionRepository(client)
	require.NoError(t, client.Ping(ctx).Err())

	before := mr.CommandCount()
	_, err := repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)
	assert.Equal(t, 1, mr.CommandCount()-before)
}

func TestRedisAuctionRepository_GivesUpOnPersistentErrors(t *testing.T) {
	client, mr := newTestClient(t)
	repo := NewRedisAuctionRepository(client)

	mr.SetError("ERR server busy")
	_, err := repo.Get(context.Background(), "c1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up after 3 attempts")
	assert.Contains(t, err.Error(), "server busy")
}
