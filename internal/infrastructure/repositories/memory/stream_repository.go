package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"locallive/internal/core/domain"
	"locallive/internal/core/ports"
)

type MemoryStreamRepository struct {
	streams map[domain.StreamID]*domain.LiveStream
	mu      sync.RWMutex
}

func NewMemoryStreamRepository(seed ...domain.LiveStream) ports.StreamRepository {
	r := &MemoryStreamRepository{
		streams: make(map[domain.StreamID]*domain.LiveStream),
	}
	for i := range seed {
		s := seed[i]
		r.streams[s.ID] = &s
	}
	return r
}

func (r *MemoryStreamRepository) Create(ctx context.Context, stream *domain.LiveStream) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.streams[stream.ID]; exists {
		return fmt.Errorf("stream already exists: %s", stream.ID)
	}

	cp := *stream
	r.streams[stream.ID] = &cp
	return nil
}

func (r *MemoryStreamRepository) GetByID(ctx context.Context, id domain.StreamID) (*domain.LiveStream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stream, exists := r.streams[id]
	if !exists {
		return nil, domain.ErrStreamNotFound
	}

	cp := *stream
	return &cp, nil
}

func (r *MemoryStreamRepository) GetByChannel(ctx context.Context, channel string) (*domain.LiveStream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, stream := range r.streams {
		if stream.Channel == channel {
			cp := *stream
			return &cp, nil
		}
	}
	return nil, domain.ErrStreamNotFound
}

func (r *MemoryStreamRepository) Update(ctx context.Context, stream *domain.LiveStream) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.streams[stream.ID]; !exists {
		return domain.ErrStreamNotFound
	}

	cp := *stream
	r.streams[stream.ID] = &cp
	return nil
}

func (r *MemoryStreamRepository) Delete(ctx context.Context, id domain.StreamID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.streams[id]; !exists {
		return domain.ErrStreamNotFound
	}

	delete(r.streams, id)
	return nil
}

// ListLive returns live streams ordered by start time, oldest first.
func (r *MemoryStreamRepository) ListLive(ctx context.Context) ([]*domain.LiveStream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var live []*domain.LiveStream
	for _, stream := range r.streams {
		if stream.IsLive {
			cp := *stream
			live = append(live, &cp)
		}
	}
	sortStreams(live)
	return live, nil
}

func (r *MemoryStreamRepository) AdjustViewers(ctx context.Context, id domain.StreamID, delta int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stream, exists := r.streams[id]
	if !exists {
		return 0, domain.ErrStreamNotFound
	}
	return stream.AdjustViewers(delta), nil
}

func sortStreams(streams []*domain.LiveStream) {
	sort.SliceStable(streams, func(i, j int) bool {
		if streams[i].StartedAt.Equal(streams[j].StartedAt) {
			return streams[i].ID < streams[j].ID
		}
		return streams[i].StartedAt.Before(streams[j].StartedAt)
	})
}
