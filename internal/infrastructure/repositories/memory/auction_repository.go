package memory

import (
	"context"
	"sync"

	"locallive/internal/core/domain"
	"locallive/internal/core/ports"
)

type MemoryAuctionRepository struct {
	auctions map[string]domain.Auction
	mu       sync.RWMutex
}

func NewMemoryAuctionRepository() ports.AuctionRepository {
	return &MemoryAuctionRepository{
		auctions: make(map[string]domain.Auction),
	}
}

func (r *MemoryAuctionRepository) Save(ctx context.Context, auction *domain.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auctions[auction.Channel] = *auction
	return nil
}

func (r *MemoryAuctionRepository) Get(ctx context.Context, channel string) (*domain.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.auctions[channel]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	return &a, nil
}

func (r *MemoryAuctionRepository) Delete(ctx context.Context, channel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.auctions, channel)
	return nil
}
