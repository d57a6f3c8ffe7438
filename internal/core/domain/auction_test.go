package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuction(now time.Time) *Auction {
	return &Auction{
		Channel:       "sarahs-kitchen-live",
		ItemName:      "Dozen Chocolate Chip Cookies",
		StartingPrice: 12,
		CurrentBid:    18,
		Increment:     2,
		BuyNowPremium: 5,
		Status:        AuctionOpen,
		EndsAt:        now.Add(5 * time.Minute),
	}
}

func TestAuction_KBidsRaiseByIncrement(t *testing.T) {
	now := time.Now()
	a := newTestAuction(now)

	for i := 0; i < 4; i++ {
		_, err := a.PlaceBid("u1", now)
		require.NoError(t, err)
	}
	assert.Equal(t, 26.0, a.CurrentBid)
	assert.Equal(t, 4, a.BidCount)
	assert.Equal(t, 28.0, a.NextBid())
	assert.Equal(t, 31.0, a.BuyNowPrice())
}

func TestAuction_BuyNowClosesAuction(t *testing.T) {
	now := time.Now()
	a := newTestAuction(now)

	price, err := a.BuyNow("buyer", now)
	require.NoError(t, err)
	assert.Equal(t, 23.0, price)
	assert.Equal(t, AuctionSold, a.Status)
	assert.Zero(t, a.TimeLeft(now))

	_, err = a.PlaceBid("late", now)
	assert.ErrorIs(t, err, ErrAuctionClosed)
	_, err = a.BuyNow("late", now)
	assert.ErrorIs(t, err, ErrAuctionClosed)
}

func TestAuction_TimeLeft(t *testing.T) {
	now := time.Now()
	a := newTestAuction(now)
	assert.Equal(t, 5*time.Minute, a.TimeLeft(now))
	assert.Zero(t, a.TimeLeft(now.Add(time.Hour)))
}
