package memory

import (
	"context"
	"sync"

	"locallive/internal/core/domain"
	"locallive/internal/core/ports"
)

type channelLog struct {
	events  []domain.ChatEvent
	lastSeq int64
}

type MemoryFeedRepository struct {
	logs      map[string]*channelLog
	maxEvents int
	mu        sync.RWMutex
}

// NewMemoryFeedRepository keeps at most maxEvents per channel, dropping the
// oldest first. maxEvents <= 0 keeps everything.
func NewMemoryFeedRepository(maxEvents int) ports.FeedRepository {
	return &MemoryFeedRepository{
		logs:      make(map[string]*channelLog),
		maxEvents: maxEvents,
	}
}

func (r *MemoryFeedRepository) Append(ctx context.Context, channel string, event *domain.ChatEvent) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	log, ok := r.logs[channel]
	if !ok {
		log = &channelLog{}
		r.logs[channel] = log
	}

	log.lastSeq++
	event.Seq = log.lastSeq
	log.events = append(log.events, *event)
	if r.maxEvents > 0 && len(log.events) > r.maxEvents {
		log.events = append([]domain.ChatEvent(nil), log.events[len(log.events)-r.maxEvents:]...)
	}
	return event.Seq, nil
}

func (r *MemoryFeedRepository) List(ctx context.Context, channel string) ([]domain.ChatEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	log, ok := r.logs[channel]
	if !ok {
		return []domain.ChatEvent{}, nil
	}
	return append([]domain.ChatEvent(nil), log.events...), nil
}

func (r *MemoryFeedRepository) Last(ctx context.Context, channel string) (*domain.ChatEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	log, ok := r.logs[channel]
	if !ok || len(log.events) == 0 {
		return nil, nil
	}
	last := log.events[len(log.events)-1]
	return &last, nil
}

func (r *MemoryFeedRepository) Delete(ctx context.Context, channel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.logs, channel)
	return nil
}
