package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"locallive/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedService_AppendKeepsOrder(t *testing.T) {
	ctx := context.Background()
	feed := newTestFeed()

	for i := 0; i < 20; i++ {
		_, err := feed.SendMessage(ctx, "ch", viewer("u1"), fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
	}

	events, err := feed.Events(ctx, "ch")
	require.NoError(t, err)
	require.Len(t, events, 20)
	for i, e := range events {
		assert.Equal(t, fmt.Sprintf("msg %d", i), e.Message)
		assert.Equal(t, "ch", e.Channel)
		assert.NotEmpty(t, e.ID)
		if i > 0 {
			assert.Greater(t, e.Seq, events[i-1].Seq)
		}
	}
}

func TestFeedService_RejectsEmptyMessage(t *testing.T) {
	ctx := context.Background()
	feed := newTestFeed()

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := feed.SendMessage(ctx, "ch", viewer("u1"), text)
		assert.ErrorIs(t, err, domain.ErrEmptyMessage)
	}

	events, err := feed.Events(ctx, "ch")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestFeedService_ProducersStampActorKindAndAmount(t *testing.T) {
	ctx := context.Background()
	feed := newTestFeed()
	host := domain.Actor{ID: "host", Username: "BakingMama", IsHost: true}

	msg, err := feed.SendMessage(ctx, "ch", host, "Welcome!")
	require.NoError(t, err)
	assert.Equal(t, domain.EventMessage, msg.Kind)
	assert.Equal(t, "BakingMama", msg.Username)
	assert.True(t, msg.IsHost)
	assert.Nil(t, msg.Amount)

	like, err := feed.SendLike(ctx, "ch", viewer("u2"))
	require.NoError(t, err)
	assert.Equal(t, domain.EventLike, like.Kind)
	assert.Equal(t, "liked the stream", like.Message)

	gift, err := feed.SendGift(ctx, "ch", viewer("u3"), 10)
	require.NoError(t, err)
	assert.Equal(t, domain.EventGift, gift.Kind)
	assert.Equal(t, "sent a gift", gift.Message)
	require.NotNil(t, gift.Amount)
	assert.Equal(t, 10.0, *gift.Amount)

	bid, err := feed.SendBid(ctx, "ch", viewer("u4"), 20, "$20 for the cookies!")
	require.NoError(t, err)
	assert.Equal(t, domain.EventBid, bid.Kind)
	assert.Equal(t, 20.0, *bid.Amount)

	join, err := feed.SendJoin(ctx, "ch", viewer("u5"))
	require.NoError(t, err)
	assert.Equal(t, domain.EventJoin, join.Kind)
	assert.Equal(t, domain.UserID("u5"), join.UserID)
}

func TestFeedService_GiftDenominations(t *testing.T) {
	feed := newTestFeed()

	_, err := feed.SendGift(context.Background(), "ch", viewer("u1"), 7)
	assert.ErrorIs(t, err, domain.ErrInvalidGift)
	assert.Equal(t, []float64{5, 10}, feed.GiftAmounts())
}

func TestFeedService_ClampsTimestamps(t *testing.T) {
	ctx := context.Background()
	clock := testNow
	feed := newTestFeed(WithFeedClock(func() time.Time { return clock }))

	first, err := feed.SendMessage(ctx, "ch", viewer("u1"), "first")
	require.NoError(t, err)

	clock = testNow.Add(-time.Minute)
	second, err := feed.SendMessage(ctx, "ch", viewer("u1"), "second")
	require.NoError(t, err)

	assert.Equal(t, first.Timestamp, second.Timestamp)
}

func TestFeedService_PublishesAfterAppend(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{err: errors.New("hub down")}
	feed := newTestFeed(WithPublisher(pub))

	event, err := feed.SendLike(ctx, "ch", viewer("u1"))
	require.NoError(t, err, "publish failure must not fail the append")

	published := pub.Events()
	require.Len(t, published, 1)
	assert.Equal(t, event.ID, published[0].ID)
}

func TestFeedService_Discard(t *testing.T) {
	ctx := context.Background()
	feed := newTestFeed()

	_, err := feed.SendLike(ctx, "ch", viewer("u1"))
	require.NoError(t, err)
	require.NoError(t, feed.Discard(ctx, "ch"))

	events, err := feed.Events(ctx, "ch")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestFeedService_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	feed := newTestFeed()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, err := feed.SendMessage(ctx, "ch", viewer(fmt.Sprintf("u%d", i)), "hi")
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	events, err := feed.Events(ctx, "ch")
	require.NoError(t, err)
	require.Len(t, events, 100)
	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].Timestamp.Before(events[i-1].Timestamp))
	}
}
