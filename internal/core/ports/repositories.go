package ports

import (
	"context"

	"locallive/internal/core/domain"
)

type CatalogRepository interface {
	ListFoodItems(ctx context.Context) ([]domain.FoodItem, error)
	GetFoodItem(ctx context.Context, id domain.FoodItemID) (*domain.FoodItem, error)
	GetSeller(ctx context.Context, id domain.SellerID) (*domain.Seller, error)
}

type StreamRepository interface {
	Create(ctx context.Context, stream *domain.LiveStream) error
	GetByID(ctx context.Context, id domain.StreamID) (*domain.LiveStream, error)
	GetByChannel(ctx context.Context, channel string) (*domain.LiveStream, error)
	Update(ctx context.Context, stream *domain.LiveStream) error
	Delete(ctx context.Context, id domain.StreamID) error
	ListLive(ctx context.Context) ([]*domain.LiveStream, error)
	// AdjustViewers adds delta to the viewer count, clamped at zero, and returns the new count.
	AdjustViewers(ctx context.Context, id domain.StreamID, delta int) (int, error)
}

// FeedRepository stores the per-channel event log in append order.
type FeedRepository interface {
	// Append stores event at the end of the channel log and returns its sequence number.
	Append(ctx context.Context, channel string, event *domain.ChatEvent) (int64, error)
	List(ctx context.Context, channel string) ([]domain.ChatEvent, error)
	Last(ctx context.Context, channel string) (*domain.ChatEvent, error)
	Delete(ctx context.Context, channel string) error
}

type AuctionRepository interface {
	Save(ctx context.Context, auction *domain.Auction) error
	Get(ctx context.Context, channel string) (*domain.Auction, error)
	Delete(ctx context.Context, channel string) error
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id domain.UserID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}
