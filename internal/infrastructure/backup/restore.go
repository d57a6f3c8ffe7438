package backup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"locallive/internal/core/domain"
	"locallive/pkg/backup"

	"go.uber.org/zap"
)

type RestoreService struct {
	backupService *backup.BackupService
	repos         Repositories
	logger        *zap.SugaredLogger
}

func NewRestoreService(backupService *backup.BackupService, repos Repositories, logger *zap.SugaredLogger) *RestoreService {
	return &RestoreService{
		backupService: backupService,
		repos:         repos,
		logger:        logger,
	}
}

type RestoreOptions struct {
	// OverwriteExisting replaces records already in the repositories,
	// such as the seeded demo streams.
	OverwriteExisting bool
	RestoreStreams    bool
	RestoreAuctions   bool
	RestoreChat       bool
}

func DefaultRestoreOptions() RestoreOptions {
	return RestoreOptions{
		OverwriteExisting: false,
		RestoreStreams:    true,
		RestoreAuctions:   true,
		RestoreChat:       true,
	}
}

type RestoreResult struct {
	Name     string
	Streams  int
	Auctions int
	Channels int
}

// RestoreLatest restores the newest snapshot taken at or before at. It
// returns a zero result when there is nothing to restore.
func (rs *RestoreService) RestoreLatest(ctx context.Context, at time.Time, options RestoreOptions) (RestoreResult, error) {
	name, ok, err := rs.backupService.Latest(ctx, at)
	if err != nil {
		return RestoreResult{}, err
	}
	if !ok {
		return RestoreResult{}, nil
	}
	return rs.RestoreFromBackup(ctx, name, options)
}

func (rs *RestoreService) RestoreFromBackup(ctx context.Context, name string, options RestoreOptions) (RestoreResult, error) {
	result := RestoreResult{Name: name}

	data, err := rs.backupService.RestoreBackup(ctx, name)
	if err != nil {
		return result, fmt.Errorf("failed to load snapshot: %w", err)
	}

	if options.RestoreStreams {
		if result.Streams, err = rs.restoreStreams(ctx, data, options); err != nil {
			return result, fmt.Errorf("failed to restore streams: %w", err)
		}
	}
	if options.RestoreAuctions {
		if result.Auctions, err = rs.restoreAuctions(ctx, data, options); err != nil {
			return result, fmt.Errorf("failed to restore auctions: %w", err)
		}
	}
	if options.RestoreChat {
		if result.Channels, err = rs.restoreChat(ctx, data, options); err != nil {
			return result, fmt.Errorf("failed to restore chat: %w", err)
		}
	}

	rs.logger.Infow("snapshot restored",
		"name", name,
		"streams", result.Streams,
		"auctions", result.Auctions,
		"chat_channels", result.Channels,
	)
	return result, nil
}

func (rs *RestoreService) restoreStreams(ctx context.Context, data *backup.BackupData, options RestoreOptions) (int, error) {
	var streams []*domain.LiveStream
	if _, err := data.Get(SectionStreams, &streams); err != nil {
		return 0, err
	}

	restored := 0
	for _, stream := range streams {
		existing, err := rs.repos.Streams.GetByID(ctx, stream.ID)
		switch {
		case err == nil && existing != nil:
			if !options.OverwriteExisting {
				rs.logger.Debugw("skipping existing stream", "stream_id", stream.ID)
				continue
			}
			err = rs.repos.Streams.Update(ctx, stream)
		case errors.Is(err, domain.ErrStreamNotFound):
			err = rs.repos.Streams.Create(ctx, stream)
		}
		if err != nil {
			return restored, fmt.Errorf("stream %s: %w", stream.ID, err)
		}
		restored++
	}
	return restored, nil
}

func (rs *RestoreService) restoreAuctions(ctx context.Context, data *backup.BackupData, options RestoreOptions) (int, error) {
	var auctions []*domain.Auction
	if _, err := data.Get(SectionAuctions, &auctions); err != nil {
		return 0, err
	}

	restored := 0
	for _, a := range auctions {
		_, err := rs.repos.Auctions.Get(ctx, a.Channel)
		if err == nil && !options.OverwriteExisting {
			continue
		}
		if err != nil && !errors.Is(err, domain.ErrAuctionNotFound) {
			return restored, fmt.Errorf("auction %s: %w", a.Channel, err)
		}
		if err := rs.repos.Auctions.Save(ctx, a); err != nil {
			return restored, fmt.Errorf("auction %s: %w", a.Channel, err)
		}
		restored++
	}
	return restored, nil
}

// restoreChat replays each channel log in order, so sequence numbers are
// reassigned by the feed repository.
func (rs *RestoreService) restoreChat(ctx context.Context, data *backup.BackupData, options RestoreOptions) (int, error) {
	var chat map[string][]domain.ChatEvent
	if _, err := data.Get(SectionChat, &chat); err != nil {
		return 0, err
	}

	restored := 0
	for channel, events := range chat {
		existing, err := rs.repos.Feed.List(ctx, channel)
		if err != nil {
			return restored, fmt.Errorf("channel %s: %w", channel, err)
		}
		if len(existing) > 0 {
			if !options.OverwriteExisting {
				continue
			}
			if err := rs.repos.Feed.Delete(ctx, channel); err != nil {
				return restored, fmt.Errorf("channel %s: %w", channel, err)
			}
		}
		for i := range events {
			e := events[i]
			e.Channel = channel
			if _, err := rs.repos.Feed.Append(ctx, channel, &e); err != nil {
				return restored, fmt.Errorf("channel %s: %w", channel, err)
			}
		}
		restored++
	}
	return restored, nil
}
