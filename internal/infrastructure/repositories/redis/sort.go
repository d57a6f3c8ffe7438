package redis

import (
	"sort"

	"locallive/internal/core/domain"
)

func sortStreams(streams []*domain.LiveStream) {
	sort.SliceStable(streams, func(i, j int) bool {
		if streams[i].StartedAt.Equal(streams[j].StartedAt) {
			return streams[i].ID < streams[j].ID
		}
		return streams[i].StartedAt.Before(streams[j].StartedAt)
	})
}
