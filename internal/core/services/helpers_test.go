package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"locallive/internal/core/domain"
	"locallive/internal/infrastructure/repositories/memory"
	"locallive/internal/infrastructure/seed"
	"locallive/pkg/logger"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

func testCatalog(t *testing.T) *seed.Catalog {
	t.Helper()
	c, err := seed.Default(testNow)
	require.NoError(t, err)
	return c
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ChatEvent
	err    error
}

func (p *recordingPublisher) PublishEvent(ctx context.Context, event domain.ChatEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Events() []domain.ChatEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.ChatEvent(nil), p.events...)
}

func newTestFeed(opts ...FeedOption) *FeedService {
	return NewFeedService(memory.NewMemoryFeedRepository(0), []float64{5, 10}, logger.Nop(), opts...)
}

var testAuctionSettings = AuctionSettings{
	Increment:     2,
	BuyNowPremium: 5,
	StartingPrice: 12,
	Duration:      30 * time.Minute,
}

func viewer(id string) domain.Actor {
	return domain.Actor{ID: domain.UserID(id), Username: id}
}
