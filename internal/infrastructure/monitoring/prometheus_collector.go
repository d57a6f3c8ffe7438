package monitoring

import (
	"time"

	"locallive/internal/core/domain"
	"locallive/internal/core/ports"
	"locallive/internal/infrastructure/webrtc"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	streamsActiveTotal   prometheus.Gauge
	websocketConnections prometheus.Gauge
	videoSessionsActive  *prometheus.GaugeVec

	chatEventsTotal   *prometheus.CounterVec
	bidsTotal         *prometheus.CounterVec
	videoJoinsTotal   *prometheus.CounterVec
	feedDroppedTotal  prometheus.Counter
	catalogQueryTotal *prometheus.CounterVec

	bidAmount       prometheus.Histogram
	catalogDuration *prometheus.HistogramVec
	catalogResults  *prometheus.HistogramVec

	streamViewers *prometheus.GaugeVec

	linkPacketLoss *prometheus.HistogramVec
	linkJitter     *prometheus.HistogramVec
	linkNACKs      *prometheus.CounterVec
}

var (
	_ ports.Metrics          = (*PrometheusCollector)(nil)
	_ webrtc.QualityRecorder = (*PrometheusCollector)(nil)
)

// NewPrometheusCollector registers the collectors with reg; nil means the
// default registry.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusCollector{
		streamsActiveTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "locallive_streams_active_total",
			Help: "Number of live streams",
		}),

		websocketConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "locallive_websocket_connections",
			Help: "Number of connected feed websockets",
		}),

		videoSessionsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "locallive_video_sessions_active",
			Help: "Number of joined video sessions by role",
		}, []string{"role"}),

		chatEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "locallive_chat_events_total",
			Help: "Chat events appended by kind",
		}, []string{"kind"}),

		bidsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "locallive_bids_total",
			Help: "Accepted auction bids by channel",
		}, []string{"channel"}),

		videoJoinsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "locallive_video_joins_total",
			Help: "Video channel joins by role",
		}, []string{"role"}),

		feedDroppedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "locallive_feed_messages_dropped_total",
			Help: "Feed messages dropped for slow websocket clients",
		}),

		catalogQueryTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "locallive_catalog_queries_total",
			Help: "Catalog queries by kind",
		}, []string{"kind"}),

		bidAmount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "locallive_bid_amount_dollars",
			Help:    "Accepted bid amounts",
			Buckets: []float64{5, 10, 15, 20, 30, 50, 100},
		}),

		catalogDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "locallive_catalog_query_duration_seconds",
			Help:    "Duration of catalog queries",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"kind"}),

		catalogResults: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "locallive_catalog_query_results",
			Help:    "Number of listings returned by catalog queries",
			Buckets: prometheus.LinearBuckets(0, 5, 10),
		}, []string{"kind"}),

		streamViewers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "locallive_stream_viewers",
			Help: "Viewer count of each live stream",
		}, []string{"stream_id"}),

		linkPacketLoss: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "locallive_rtc_packet_loss_ratio",
			Help:    "Fraction of packets lost reported by RTCP receiver reports",
			Buckets: []float64{0, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5},
		}, []string{"role"}),

		linkJitter: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "locallive_rtc_jitter_seconds",
			Help:    "Interarrival jitter reported by RTCP receiver reports",
			Buckets: []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.25},
		}, []string{"role"}),

		linkNACKs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "locallive_rtc_nacks_total",
			Help: "Packets negatively acknowledged by receivers",
		}, []string{"role"}),
	}
}

func (p *PrometheusCollector) ChatEventAppended(kind domain.EventKind) {
	p.chatEventsTotal.WithLabelValues(string(kind)).Inc()
}

func (p *PrometheusCollector) BidPlaced(channel string, amount float64) {
	p.bidsTotal.WithLabelValues(channel).Inc()
	p.bidAmount.Observe(amount)
}

func (p *PrometheusCollector) ViewersChanged(streamID domain.StreamID, count int) {
	p.streamViewers.WithLabelValues(string(streamID)).Set(float64(count))
}

func (p *PrometheusCollector) StreamStarted(streamID domain.StreamID) {
	p.streamsActiveTotal.Inc()
}

func (p *PrometheusCollector) StreamEnded(streamID domain.StreamID) {
	p.streamsActiveTotal.Dec()
	p.streamViewers.DeleteLabelValues(string(streamID))
}

func (p *PrometheusCollector) VideoSessionJoined(role domain.Role) {
	p.videoJoinsTotal.WithLabelValues(string(role)).Inc()
	p.videoSessionsActive.WithLabelValues(string(role)).Inc()
}

func (p *PrometheusCollector) VideoSessionLeft(role domain.Role) {
	p.videoSessionsActive.WithLabelValues(string(role)).Dec()
}

func (p *PrometheusCollector) CatalogQueried(kind string, results int, took time.Duration) {
	p.catalogQueryTotal.WithLabelValues(kind).Inc()
	p.catalogDuration.WithLabelValues(kind).Observe(took.Seconds())
	p.catalogResults.WithLabelValues(kind).Observe(float64(results))
}

func (p *PrometheusCollector) WebSocketConnected() {
	p.websocketConnections.Inc()
}

func (p *PrometheusCollector) WebSocketDisconnected() {
	p.websocketConnections.Dec()
}

func (p *PrometheusCollector) FeedMessageDropped() {
	p.feedDroppedTotal.Inc()
}

func (p *PrometheusCollector) RecordLinkQuality(role string, q webrtc.LinkQuality) {
	if q.Reports > 0 {
		p.linkPacketLoss.WithLabelValues(role).Observe(q.PacketLoss)
		p.linkJitter.WithLabelValues(role).Observe(q.Jitter.Seconds())
	}
	p.linkNACKs.WithLabelValues(role).Add(float64(q.NACKs))
}
