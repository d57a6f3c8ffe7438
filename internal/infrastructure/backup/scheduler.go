package backup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"locallive/internal/core/domain"
	"locallive/internal/core/ports"
	"locallive/pkg/backup"

	"go.uber.org/zap"
)

const (
	SectionStreams  = "streams"
	SectionAuctions = "auctions"
	SectionChat     = "chat"
)

// Repositories are the stores a snapshot reads from and a restore writes to.
type Repositories struct {
	Streams  ports.StreamRepository
	Auctions ports.AuctionRepository
	Feed     ports.FeedRepository
}

// Scheduler periodically snapshots the live listings, their auctions and
// their chat logs.
type Scheduler struct {
	backupService *backup.BackupService
	repos         Repositories
	interval      time.Duration
	retention     time.Duration
	logger        *zap.SugaredLogger
	now           func() time.Time
	stopChan      chan struct{}
}

type Config struct {
	Interval      time.Duration
	RetentionDays int
}

func NewScheduler(backupService *backup.BackupService, repos Repositories, cfg Config, logger *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		backupService: backupService,
		repos:         repos,
		interval:      cfg.Interval,
		retention:     time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		logger:        logger,
		now:           time.Now,
		stopChan:      make(chan struct{}),
	}
}

// Start blocks taking a snapshot every interval until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunBackup(ctx); err != nil {
				s.logger.Errorw("scheduled snapshot failed", "error", err)
			}
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopChan)
}

// RunBackup takes one snapshot and prunes the ones past retention.
func (s *Scheduler) RunBackup(ctx context.Context) (string, error) {
	data, err := s.collectData(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to collect snapshot data: %w", err)
	}

	name, err := s.backupService.CreateBackup(ctx, data)
	if err != nil {
		return "", err
	}
	s.logger.Infow("snapshot created",
		"name", name,
		"streams", data.Metadata["stream_count"],
		"auctions", data.Metadata["auction_count"],
	)

	if s.retention > 0 {
		removed, err := s.backupService.Prune(ctx, s.now().Add(-s.retention))
		if err != nil {
			s.logger.Warnw("failed to prune old snapshots", "error", err)
		} else if removed > 0 {
			s.logger.Infow("pruned old snapshots", "removed", removed)
		}
	}
	return name, nil
}

func (s *Scheduler) collectData(ctx context.Context) (*backup.BackupData, error) {
	streams, err := s.repos.Streams.ListLive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list streams: %w", err)
	}

	auctions := make([]*domain.Auction, 0, len(streams))
	chat := make(map[string][]domain.ChatEvent, len(streams))
	for _, stream := range streams {
		a, err := s.repos.Auctions.Get(ctx, stream.Channel)
		switch {
		case err == nil:
			auctions = append(auctions, a)
		case !errors.Is(err, domain.ErrAuctionNotFound):
			s.logger.Warnw("failed to read auction", "channel", stream.Channel, "error", err)
		}

		events, err := s.repos.Feed.List(ctx, stream.Channel)
		if err != nil {
			s.logger.Warnw("failed to read chat log", "channel", stream.Channel, "error", err)
			continue
		}
		if len(events) > 0 {
			chat[stream.Channel] = events
		}
	}

	data := &backup.BackupData{
		Metadata: map[string]interface{}{
			"stream_count":  len(streams),
			"auction_count": len(auctions),
			"chat_channels": len(chat),
		},
	}
	if err := data.Put(SectionStreams, streams); err != nil {
		return nil, err
	}
	if err := data.Put(SectionAuctions, auctions); err != nil {
		return nil, err
	}
	if err := data.Put(SectionChat, chat); err != nil {
		return nil, err
	}
	return data, nil
}
