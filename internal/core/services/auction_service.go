package services

import (
	"context"
	"fmt"
	"time"

	"locallive/internal/core/domain"
	"locallive/internal/core/ports"
	"locallive/pkg/distributed"
	"locallive/pkg/tracing"

	"go.uber.org/zap"
)

type AuctionSettings struct {
	Increment     float64
	BuyNowPremium float64
	StartingPrice float64
	Duration      time.Duration
}

// AuctionService is the single authority for bids. Bids on one channel are
// applied one at a time through the locker.
type AuctionService struct {
	repo     ports.AuctionRepository
	feed     *FeedService
	locker   distributed.Locker
	settings AuctionSettings
	metrics  ports.Metrics
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewAuctionService(
	repo ports.AuctionRepository,
	feed *FeedService,
	locker distributed.Locker,
	settings AuctionSettings,
	metrics ports.Metrics,
	logger *zap.SugaredLogger,
) *AuctionService {
	if locker == nil {
		locker = distributed.NewLocalLocker()
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &AuctionService{
		repo:     repo,
		feed:     feed,
		locker:   locker,
		settings: settings,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Open starts a fresh auction for the channel's current item.
func (s *AuctionService) Open(ctx context.Context, channel string, streamID domain.StreamID, itemName string) (*domain.Auction, error) {
	now := s.now()
	a := &domain.Auction{
		Channel:       channel,
		StreamID:      streamID,
		ItemName:      itemName,
		StartingPrice: s.settings.StartingPrice,
		CurrentBid:    s.settings.StartingPrice,
		Increment:     s.settings.Increment,
		BuyNowPremium: s.settings.BuyNowPremium,
		Status:        domain.AuctionOpen,
		EndsAt:        now.Add(s.settings.Duration),
		UpdatedAt:     now,
	}
	if err := s.repo.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to open auction: %w", err)
	}
	return a, nil
}

// Restore saves a prepared auction, e.g. from seed data.
func (s *AuctionService) Restore(ctx context.Context, a *domain.Auction) error {
	a.Increment = s.settings.Increment
	a.BuyNowPremium = s.settings.BuyNowPremium
	return s.repo.Save(ctx, a)
}

func (s *AuctionService) Get(ctx context.Context, channel string) (*domain.Auction, error) {
	return s.repo.Get(ctx, channel)
}

// Bid raises the current bid by one increment on behalf of actor.
func (s *AuctionService) Bid(ctx context.Context, channel string, actor domain.Actor) (*domain.Auction, error) {
	ctx, span := tracing.TraceAuction(ctx, "bid", channel)
	defer span.End()

	a, err := s.mutate(ctx, channel, func(a *domain.Auction) error {
		_, err := a.PlaceBid(actor.ID, s.now())
		return err
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	tracing.AddSpanAttributes(ctx, tracing.AmountKey.Float64(a.CurrentBid))
	s.metrics.BidPlaced(channel, a.CurrentBid)
	s.announce(ctx, channel, actor, a.CurrentBid, fmt.Sprintf("$%s for the %s!", formatAmount(a.CurrentBid), a.ItemName))
	return a, nil
}

// BuyNow sells the item at the buy-now price and closes the auction.
func (s *AuctionService) BuyNow(ctx context.Context, channel string, actor domain.Actor) (*domain.Auction, error) {
	ctx, span := tracing.TraceAuction(ctx, "buy_now", channel)
	defer span.End()

	a, err := s.mutate(ctx, channel, func(a *domain.Auction) error {
		_, err := a.BuyNow(actor.ID, s.now())
		return err
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	s.metrics.BidPlaced(channel, a.CurrentBid)
	s.announce(ctx, channel, actor, a.CurrentBid, fmt.Sprintf("bought the %s for $%s!", a.ItemName, formatAmount(a.CurrentBid)))
	return a, nil
}

func (s *AuctionService) Close(ctx context.Context, channel string) error {
	return s.repo.Delete(ctx, channel)
}

func (s *AuctionService) mutate(ctx context.Context, channel string, fn func(*domain.Auction) error) (*domain.Auction, error) {
	var result *domain.Auction
	err := s.locker.WithLock(ctx, "auction:"+channel, func(ctx context.Context) error {
		a, err := s.repo.Get(ctx, channel)
		if err != nil {
			return err
		}
		if err := fn(a); err != nil {
			return err
		}
		if err := s.repo.Save(ctx, a); err != nil {
			return fmt.Errorf("failed to save auction: %w", err)
		}
		result = a
		return nil
	})
	return result, err
}

// announce posts the bid to the channel feed; a feed failure does not undo the bid.
func (s *AuctionService) announce(ctx context.Context, channel string, actor domain.Actor, amount float64, text string) {
	if s.feed == nil {
		return
	}
	if _, err := s.feed.SendBid(ctx, channel, actor, amount, text); err != nil {
		s.logger.Warnw("failed to post bid to feed",
			"channel", channel,
			"amount", amount,
			"error", err,
		)
	}
}

func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
