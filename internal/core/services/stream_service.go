package services

import (
	"context"
	"fmt"
	"time"

	"locallive/internal/core/domain"
	"locallive/internal/core/ports"
	"locallive/pkg/utils"

	"go.uber.org/zap"
)

// GoLiveRequest describes a kitchen broadcast about to start.
type GoLiveRequest struct {
	Title       string
	Description string
	Category    domain.Category
	Thumbnail   string
}

// StreamService manages live stream listings and their auctions and feeds.
type StreamService struct {
	streamRepo ports.StreamRepository
	auctions   *AuctionService
	feed       *FeedService
	notifier   ports.StreamNotifier
	metrics    ports.Metrics
	logger     *zap.SugaredLogger
	now        func() time.Time
}

func NewStreamService(
	streamRepo ports.StreamRepository,
	auctions *AuctionService,
	feed *FeedService,
	metrics ports.Metrics,
	logger *zap.SugaredLogger,
) *StreamService {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &StreamService{
		streamRepo: streamRepo,
		auctions:   auctions,
		feed:       feed,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// SetNotifier registers the listener told about streams starting and ending.
func (s *StreamService) SetNotifier(n ports.StreamNotifier) {
	s.notifier = n
}

// GoLive publishes a listing for the user's kitchen and opens its auction.
func (s *StreamService) GoLive(ctx context.Context, user *domain.User, req GoLiveRequest) (*domain.LiveStream, error) {
	if user == nil {
		return nil, domain.ErrUnauthenticated
	}
	title := utils.SanitizeString(req.Title)
	if title == "" {
		return nil, domain.ErrEmptyTitle
	}
	if req.Category == "" || req.Category == domain.CategoryAll {
		req.Category = domain.CategoryOther
	}

	now := s.now()
	stream := &domain.LiveStream{
		ID:          domain.StreamID(utils.GenerateStreamID()),
		SellerID:    domain.SellerID(user.ID),
		SellerName:  user.ProfileName(),
		Title:       title,
		Description: utils.SanitizeString(req.Description),
		Thumbnail:   req.Thumbnail,
		Channel:     utils.KitchenChannel(user.KitchenHandle(), now),
		IsLive:      true,
		Category:    req.Category,
		StartedAt:   now,
	}
	if err := s.streamRepo.Create(ctx, stream); err != nil {
		return nil, fmt.Errorf("failed to create live stream: %w", err)
	}

	if s.auctions != nil {
		if _, err := s.auctions.Open(ctx, stream.Channel, stream.ID, stream.Title); err != nil {
			if delErr := s.streamRepo.Delete(ctx, stream.ID); delErr != nil {
				s.logger.Warnw("failed to roll back live stream", "stream_id", stream.ID, "error", delErr)
			}
			return nil, err
		}
	}

	s.metrics.StreamStarted(stream.ID)
	if s.notifier != nil {
		if err := s.notifier.StreamStarted(ctx, stream); err != nil {
			s.logger.Warnw("failed to announce live stream", "stream_id", stream.ID, "error", err)
		}
	}
	s.logger.Infow("kitchen went live",
		"stream_id", stream.ID,
		"channel", stream.Channel,
		"seller_id", stream.SellerID,
	)
	return stream, nil
}

// End removes the listing and drops its auction and feed.
func (s *StreamService) End(ctx context.Context, id domain.StreamID) error {
	stream, err := s.streamRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.streamRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete live stream: %w", err)
	}

	if s.auctions != nil {
		if err := s.auctions.Close(ctx, stream.Channel); err != nil {
			s.logger.Warnw("failed to close auction", "channel", stream.Channel, "error", err)
		}
	}
	if s.feed != nil {
		if err := s.feed.Discard(ctx, stream.Channel); err != nil {
			s.logger.Warnw("failed to discard feed", "channel", stream.Channel, "error", err)
		}
	}

	if s.notifier != nil {
		if err := s.notifier.StreamEnded(ctx, stream); err != nil {
			s.logger.Warnw("failed to announce stream end", "stream_id", id, "error", err)
		}
	}

	s.metrics.StreamEnded(id)
	s.logger.Infow("kitchen stream ended", "stream_id", id, "channel", stream.Channel)
	return nil
}

func (s *StreamService) Get(ctx context.Context, id domain.StreamID) (*domain.LiveStream, error) {
	return s.streamRepo.GetByID(ctx, id)
}

func (s *StreamService) GetByChannel(ctx context.Context, channel string) (*domain.LiveStream, error) {
	return s.streamRepo.GetByChannel(ctx, channel)
}

// ViewerJoined and ViewerLeft adjust the listed viewer count, never below zero.
func (s *StreamService) ViewerJoined(ctx context.Context, id domain.StreamID) (int, error) {
	return s.adjust(ctx, id, 1)
}

func (s *StreamService) ViewerLeft(ctx context.Context, id domain.StreamID) (int, error) {
	return s.adjust(ctx, id, -1)
}

func (s *StreamService) adjust(ctx context.Context, id domain.StreamID, delta int) (int, error) {
	count, err := s.streamRepo.AdjustViewers(ctx, id, delta)
	if err != nil {
		return 0, fmt.Errorf("failed to adjust viewers: %w", err)
	}
	s.metrics.ViewersChanged(id, count)
	return count, nil
}
