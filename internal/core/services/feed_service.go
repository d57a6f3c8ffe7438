package services

import (
	"context"
	"fmt"
	"time"

	"locallive/internal/core/domain"
	"locallive/internal/core/ports"
	"locallive/pkg/distributed"
	"locallive/pkg/tracing"
	"locallive/pkg/utils"

	"go.uber.org/zap"
)

const maxMessageRunes = 500

// FeedService owns the per-channel chat and event logs.
type FeedService struct {
	repo        ports.FeedRepository
	publisher   ports.FeedPublisher
	locker      distributed.Locker
	giftAmounts []float64
	metrics     ports.Metrics
	logger      *zap.SugaredLogger
	now         func() time.Time
}

type FeedOption func(*FeedService)

// WithPublisher pushes appended events to live viewers.
func WithPublisher(p ports.FeedPublisher) FeedOption {
	return func(s *FeedService) { s.publisher = p }
}

// WithFeedLocker replaces the in-process channel lock, e.g. with a Redis lock.
func WithFeedLocker(l distributed.Locker) FeedOption {
	return func(s *FeedService) { s.locker = l }
}

func WithFeedMetrics(m ports.Metrics) FeedOption {
	return func(s *FeedService) { s.metrics = m }
}

func WithFeedClock(now func() time.Time) FeedOption {
	return func(s *FeedService) { s.now = now }
}

func NewFeedService(repo ports.FeedRepository, giftAmounts []float64, logger *zap.SugaredLogger, opts ...FeedOption) *FeedService {
	s := &FeedService{
		repo:        repo,
		locker:      distributed.NewLocalLocker(),
		giftAmounts: append([]float64(nil), giftAmounts...),
		metrics:     ports.NopMetrics{},
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetPublisher replaces the publisher after construction, for publishers
// that themselves read from the feed.
func (s *FeedService) SetPublisher(p ports.FeedPublisher) {
	s.publisher = p
}

// Append validates event and stores it at the end of the channel log.
// The stored timestamp is never earlier than the previous event's.
func (s *FeedService) Append(ctx context.Context, channel string, event domain.ChatEvent) (domain.ChatEvent, error) {
	ctx, span := tracing.TraceFeedAppend(ctx, channel, string(event.Kind))
	defer span.End()

	event.Message = utils.TruncateString(utils.SanitizeString(event.Message), maxMessageRunes)
	if err := event.Validate(); err != nil {
		return domain.ChatEvent{}, err
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	event.ID = utils.GenerateEventID()
	event.Channel = channel

	err := s.locker.WithLock(ctx, "feed:"+channel, func(ctx context.Context) error {
		last, err := s.repo.Last(ctx, channel)
		if err != nil {
			return err
		}
		if last != nil && event.Timestamp.Before(last.Timestamp) {
			event.Timestamp = last.Timestamp
		}
		_, err = s.repo.Append(ctx, channel, &event)
		return err
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return domain.ChatEvent{}, fmt.Errorf("failed to append chat event: %w", err)
	}

	s.metrics.ChatEventAppended(event.Kind)
	if s.publisher != nil {
		if err := s.publisher.PublishEvent(ctx, event); err != nil {
			s.logger.Warnw("failed to publish chat event",
				"channel", channel,
				"event_id", event.ID,
				"error", err,
			)
		}
	}
	return event, nil
}

func (s *FeedService) SendMessage(ctx context.Context, channel string, actor domain.Actor, text string) (domain.ChatEvent, error) {
	return s.Append(ctx, channel, domain.NewChatEvent(actor, domain.EventMessage, text, nil, s.now()))
}

func (s *FeedService) SendLike(ctx context.Context, channel string, actor domain.Actor) (domain.ChatEvent, error) {
	return s.Append(ctx, channel, domain.NewChatEvent(actor, domain.EventLike, domain.LikeText, nil, s.now()))
}

// SendGift accepts only the configured denominations.
func (s *FeedService) SendGift(ctx context.Context, channel string, actor domain.Actor, amount float64) (domain.ChatEvent, error) {
	if !s.validGift(amount) {
		return domain.ChatEvent{}, domain.ErrInvalidGift
	}
	return s.Append(ctx, channel, domain.NewChatEvent(actor, domain.EventGift, domain.GiftText, domain.Amount(amount), s.now()))
}

func (s *FeedService) SendBid(ctx context.Context, channel string, actor domain.Actor, amount float64, text string) (domain.ChatEvent, error) {
	return s.Append(ctx, channel, domain.NewChatEvent(actor, domain.EventBid, text, domain.Amount(amount), s.now()))
}

func (s *FeedService) SendJoin(ctx context.Context, channel string, actor domain.Actor) (domain.ChatEvent, error) {
	return s.Append(ctx, channel, domain.NewChatEvent(actor, domain.EventJoin, domain.JoinText, nil, s.now()))
}

// Events returns the channel log in display order.
func (s *FeedService) Events(ctx context.Context, channel string) ([]domain.ChatEvent, error) {
	events, err := s.repo.List(ctx, channel)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat events: %w", err)
	}
	return events, nil
}

// Discard drops the channel log when its stream ends.
func (s *FeedService) Discard(ctx context.Context, channel string) error {
	if err := s.repo.Delete(ctx, channel); err != nil {
		return fmt.Errorf("failed to discard chat feed: %w", err)
	}
	s.logger.Debugw("chat feed discarded", "channel", channel)
	return nil
}

func (s *FeedService) GiftAmounts() []float64 {
	return append([]float64(nil), s.giftAmounts...)
}

func (s *FeedService) validGift(amount float64) bool {
	for _, a := range s.giftAmounts {
		if a == amount {
			return true
		}
	}
	return false
}
