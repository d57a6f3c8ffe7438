package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"locallive/internal/core/domain"
	"locallive/internal/infrastructure/repositories/memory"
	"locallive/pkg/distributed"
	"locallive/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuctions(t *testing.T, locker distributed.Locker) (*AuctionService, *FeedService) {
	t.Helper()
	feed := newTestFeed()
	svc := NewAuctionService(memory.NewMemoryAuctionRepository(), feed, locker, testAuctionSettings, nil, logger.Nop())
	return svc, feed
}

func TestAuctionService_BidsRaiseByIncrement(t *testing.T) {
	ctx := context.Background()
	svc, feed := newTestAuctions(t, nil)

	opened, err := svc.Open(ctx, "ch", "s1", "Dozen Cookies")
	require.NoError(t, err)
	assert.Equal(t, 12.0, opened.CurrentBid)

	const k = 4
	for i := 0; i < k; i++ {
		_, err := svc.Bid(ctx, "ch", viewer("u1"))
		require.NoError(t, err)
	}

	a, err := svc.Get(ctx, "ch")
	require.NoError(t, err)
	assert.Equal(t, 12.0+2*k, a.CurrentBid)
	assert.Equal(t, k, a.BidCount)
	assert.Equal(t, domain.UserID("u1"), a.LastBidder)

	events, err := feed.Events(ctx, "ch")
	require.NoError(t, err)
	require.Len(t, events, k)
	assert.Equal(t, domain.EventBid, events[k-1].Kind)
	assert.Equal(t, 20.0, *events[k-1].Amount)
	assert.Equal(t, "$20 for the Dozen Cookies!", events[k-1].Message)
}

func TestAuctionService_BuyNowClosesAuction(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAuctions(t, nil)

	require.NoError(t, svc.Restore(ctx, &domain.Auction{
		Channel:    "ch",
		ItemName:   "Cookies",
		CurrentBid: 18,
		Status:     domain.AuctionOpen,
		EndsAt:     time.Now().Add(time.Minute),
	}))

	a, err := svc.BuyNow(ctx, "ch", viewer("buyer"))
	require.NoError(t, err)
	assert.Equal(t, 23.0, a.CurrentBid)
	assert.Equal(t, domain.AuctionSold, a.Status)

	_, err = svc.Bid(ctx, "ch", viewer("late"))
	assert.ErrorIs(t, err, domain.ErrAuctionClosed)
}

func TestAuctionService_UnknownChannel(t *testing.T) {
	svc, _ := newTestAuctions(t, nil)

	_, err := svc.Bid(context.Background(), "missing", viewer("u1"))
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func TestAuctionService_ConcurrentBidsAreSerialized(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	lockers := map[string]distributed.Locker{
		"local": distributed.NewLocalLocker(),
		"redis": distributed.NewLockManager(client, "locallive:lock:", 5*time.Second),
	}

	for name, locker := range lockers {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc, _ := newTestAuctions(t, locker)
			_, err := svc.Open(ctx, "ch", "s1", "Cookies")
			require.NoError(t, err)

			const bidders, each = 5, 4
			var wg sync.WaitGroup
			for i := 0; i < bidders; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					for j := 0; j < each; j++ {
						_, err := svc.Bid(ctx, "ch", viewer(fmt.Sprintf("u%d", i)))
						assert.NoError(t, err)
					}
				}(i)
			}
			wg.Wait()

			a, err := svc.Get(ctx, "ch")
			require.NoError(t, err)
			assert.Equal(t, 12.0+2*bidders*each, a.CurrentBid)
			assert.Equal(t, bidders*each, a.BidCount)
		})
	}
}
