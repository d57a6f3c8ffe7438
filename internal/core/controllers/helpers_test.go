package controllers

import (
	"context"
	"sync"
	"testing"
	"time"

	"locallive/internal/core/domain"
	"locallive/internal/core/ports"
	"locallive/internal/core/services"
	"locallive/internal/infrastructure/repositories/memory"
	"locallive/internal/infrastructure/seed"
	"locallive/internal/infrastructure/video"
	"locallive/pkg/logger"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

// sessionFactory hands out mock sessions and remembers them so tests can
// drive remote participants.
type sessionFactory struct {
	cfg video.MockConfig

	mu       sync.Mutex
	sessions []*video.MockSession
}

func (f *sessionFactory) NewSession() ports.VideoSession {
	s := video.NewMockSession(f.cfg, video.DeniedDevices{}, nil, logger.Nop())
	f.mu.Lock()
	f.sessions = append(f.sessions, s)
	f.mu.Unlock()
	return s
}

func (f *sessionFactory) last() *video.MockSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sessions) == 0 {
		return nil
	}
	return f.sessions[len(f.sessions)-1]
}

type testEnv struct {
	deps     *Deps
	sessions *sessionFactory
	catalog  *seed.Catalog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	c, err := seed.Default(testNow)
	require.NoError(t, err)

	log := logger.Nop()
	streamRepo := memory.NewMemoryStreamRepository(c.Streams...)
	feed := services.NewFeedService(memory.NewMemoryFeedRepository(0), []float64{5, 10, 20}, log,
		services.WithFeedClock(func() time.Time { return testNow }))
	auctions := services.NewAuctionService(memory.NewMemoryAuctionRepository(), feed, nil, services.AuctionSettings{
		Increment:     2,
		BuyNowPremium: 5,
		StartingPrice: 12,
		Duration:      30 * time.Minute,
	}, nil, log)
	for _, a := range c.Auctions {
		require.NoError(t, auctions.Restore(context.Background(), a.Auction(2, 5, testNow)))
	}
	streams := services.NewStreamService(streamRepo, auctions, feed, nil, log)
	catalogService := services.NewCatalogService(memory.NewMemoryCatalogRepository(c.FoodItems, c.Sellers), streamRepo, time.Minute, nil)
	t.Cleanup(catalogService.Close)

	sessions := &sessionFactory{cfg: video.MockConfig{
		JoinDelay: 5 * time.Millisecond,
		HostDelay: 10 * time.Millisecond,
		HostUID:   "host_sarah",
	}}
	return &testEnv{
		deps: &Deps{
			Catalog:  catalogService,
			Streams:  streams,
			Feed:     feed,
			Auctions: auctions,
			Sessions: sessions,
			Logger:   log,
			Now:      func() time.Time { return testNow },
		},
		sessions: sessions,
		catalog:  c,
	}
}

func (e *testEnv) stream(t *testing.T, id domain.StreamID) domain.LiveStream {
	t.Helper()
	s, err := e.deps.Streams.Get(context.Background(), id)
	require.NoError(t, err)
	return *s
}

var testUser = &domain.User{ID: "u42", DisplayName: "Jamie Rivera", Email: "jamie@example.com"}

func signedIn() AppContext {
	return AppContext{User: testUser}
}
