package monitoring

import (
	"testing"
	"time"

	"locallive/internal/core/domain"
	"locallive/internal/infrastructure/webrtc"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusCollector_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.ChatEventAppended(domain.EventMessage)
	c.ChatEventAppended(domain.EventMessage)
	c.ChatEventAppended(domain.EventGift)
	c.BidPlaced("sarahs-kitchen-live", 20)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.chatEventsTotal.WithLabelValues("message")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.chatEventsTotal.WithLabelValues("gift")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.bidsTotal.WithLabelValues("sarahs-kitchen-live")))
}

func TestPrometheusCollector_StreamLifecycle(t *testing.T) {
	c := NewPrometheusCollector(prometheus.NewRegistry())

	c.StreamStarted("s1")
	c.ViewersChanged("s1", 7)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.streamsActiveTotal))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.streamViewers.WithLabelValues("s1")))

	c.StreamEnded("s1")
	assert.Equal(t, 0.0, testutil.ToFloat64(c.streamsActiveTotal))
	assert.Equal(t, 0, testutil.CollectAndCount(c.streamViewers))
}

func TestPrometheusCollector_VideoSessions(t *testing.T) {
	c := NewPrometheusCollector(prometheus.NewRegistry())

	c.VideoSessionJoined(domain.RoleAudience)
	c.VideoSessionJoined(domain.RoleHost)
	c.VideoSessionLeft(domain.RoleAudience)
	c.CatalogQueried("food_items", 3, time.Millisecond)

	assert.Equal(t, 0.0, testutil.ToFloat64(c.videoSessionsActive.WithLabelValues("audience")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.videoSessionsActive.WithLabelValues("host")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.catalogQueryTotal.WithLabelValues("food_items")))
}

func TestPrometheusCollector_LinkQuality(t *testing.T) {
	c := NewPrometheusCollector(prometheus.NewRegistry())

	c.RecordLinkQuality("audience", webrtc.LinkQuality{PacketLoss: 0.05, Jitter: 3 * time.Millisecond, NACKs: 4, Reports: 1})
	c.RecordLinkQuality("audience", webrtc.LinkQuality{NACKs: 2})

	assert.Equal(t, 6.0, testutil.ToFloat64(c.linkNACKs.WithLabelValues("audience")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.linkPacketLoss))
}
