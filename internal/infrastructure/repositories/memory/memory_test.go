package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"locallive/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFeedRepository_AppendKeepsOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryFeedRepository(0)

	for i := 0; i < 10; i++ {
		e := domain.ChatEvent{ID: fmt.Sprintf("e%d", i), Kind: domain.EventMessage, Message: "hi"}
		seq, err := repo.Append(ctx, "c1", &e)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), seq)
	}

	events, err := repo.List(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, events, 10)
	for i, e := range events {
		assert.Equal(t, fmt.Sprintf("e%d", i), e.ID)
	}

	last, err := repo.Last(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "e9", last.ID)

	empty, err := repo.List(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryFeedRepository_TrimsOldest(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryFeedRepository(3)

	for i := 0; i < 5; i++ {
		e := domain.ChatEvent{ID: fmt.Sprintf("e%d", i)}
		_, err := repo.Append(ctx, "c1", &e)
		require.NoError(t, err)
	}
	events, _ := repo.List(ctx, "c1")
	require.Len(t, events, 3)
	assert.Equal(t, "e2", events[0].ID)
	assert.Equal(t, int64(5), events[2].Seq)

	require.NoError(t, repo.Delete(ctx, "c1"))
	last, err := repo.Last(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestMemoryStreamRepository(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	repo := NewMemoryStreamRepository(
		domain.LiveStream{ID: "2", Channel: "b", IsLive: true, StartedAt: now},
		domain.LiveStream{ID: "1", Channel: "a", IsLive: true, StartedAt: now.Add(-time.Minute), ViewerCount: 1},
	)

	require.NoError(t, repo.Create(ctx, &domain.LiveStream{ID: "3", Channel: "c", IsLive: false}))
	assert.Error(t, repo.Create(ctx, &domain.LiveStream{ID: "3"}))

	live, err := repo.ListLive(ctx)
	require.NoError(t, err)
	require.Len(t, live, 2)
	assert.Equal(t, domain.StreamID("1"), live[0].ID)

	byChannel, err := repo.GetByChannel(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, domain.StreamID("2"), byChannel.ID)

	n, err := repo.AdjustViewers(ctx, "1", -3)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "missing"), domain.ErrStreamNotFound)
}

func TestMemoryStreamRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStreamRepository(domain.LiveStream{ID: "1", Title: "orig"})

	s, _ := repo.GetByID(ctx, "1")
	s.Title = "changed"

	again, _ := repo.GetByID(ctx, "1")
	assert.Equal(t, "orig", again.Title)
}

func TestMemoryUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	require.NoError(t, repo.Create(ctx, &domain.User{ID: "u1", Email: "Sarah@Example.com"}))
	assert.ErrorIs(t, repo.Create(ctx, &domain.User{ID: "u2", Email: "sarah@example.com"}), domain.ErrUserExists)

	u, err := repo.GetByEmail(ctx, "SARAH@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("u1"), u.ID)

	_, err = repo.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestMemoryCatalogRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryCatalogRepository(
		[]domain.FoodItem{{ID: "1", Title: "Cookies"}},
		[]domain.Seller{{ID: "baker1", Name: "Sarah's Sweet Kitchen"}},
	)

	items, _ := repo.ListFoodItems(ctx)
	assert.Len(t, items, 1)

	_, err := repo.GetFoodItem(ctx, "2")
	assert.ErrorIs(t, err, domain.ErrFoodItemNotFound)

	s, err := repo.GetSeller(ctx, "baker1")
	require.NoError(t, err)
	assert.Equal(t, "Sarah's Sweet Kitchen", s.Name)
}

func TestMemoryAuctionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAuctionRepository()

	_, err := repo.Get(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)

	require.NoError(t, repo.Save(ctx, &domain.Auction{Channel: "c1", CurrentBid: 18}))
	a, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 18.0, a.CurrentBid)

	require.NoError(t, repo.Delete(ctx, "c1"))
	_, err = repo.Get(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)
}
