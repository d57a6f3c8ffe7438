package video

import (
	"fmt"

	"locallive/internal/core/ports"
	"locallive/internal/infrastructure/webrtc"
	"locallive/pkg/config"

	pionwebrtc "github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// SessionFactory builds the VideoSession implementation named by video.provider.
type SessionFactory struct {
	provider string
	mock     MockConfig
	rtc      webrtc.Config
	devices  ports.MediaDevices
	signaler ports.Signaler
	metrics  ports.Metrics
	logger   *zap.SugaredLogger
}

var _ ports.VideoSessionFactory = (*SessionFactory)(nil)

func NewSessionFactory(cfg *config.Config, devices ports.MediaDevices, signaler ports.Signaler, metrics ports.Metrics, logger *zap.SugaredLogger) (*SessionFactory, error) {
	if cfg.Video.Provider == "webrtc" && signaler == nil {
		return nil, fmt.Errorf("webrtc video provider requires a signaler")
	}
	if cfg.UsesPlaceholderAppID() {
		logger.Warnw("video app id not configured, using placeholder",
			"app_id", config.PlaceholderAppID,
			"provider", cfg.Video.Provider,
		)
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}

	return &SessionFactory{
		provider: cfg.Video.Provider,
		mock: MockConfig{
			JoinDelay: cfg.Video.JoinDelay,
			HostDelay: cfg.Video.HostDelay,
			HostUID:   cfg.Video.MockHostUID,
		},
		rtc:      RTCConfig(cfg),
		devices:  devices,
		signaler: signaler,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// NewSession never returns nil. If the peer connection API cannot be built
// the mock session is used and the failure is logged.
func (f *SessionFactory) NewSession() ports.VideoSession {
	if f.provider == "webrtc" {
		session, err := webrtc.NewSession(f.rtc, f.devices, f.signaler, f.metrics, f.logger)
		if err == nil {
			return session
		}
		f.logger.Errorw("failed to create webrtc session, falling back to mock", "error", err)
	}
	return NewMockSession(f.mock, f.devices, f.metrics, f.logger)
}

// RTCConfig converts the webrtc config section to the pion settings.
func RTCConfig(cfg *config.Config) webrtc.Config {
	out := webrtc.Config{GatherTimeout: cfg.WebRTC.GatherTimeout}
	out.PortRange.Min = cfg.WebRTC.PortRange.Min
	out.PortRange.Max = cfg.WebRTC.PortRange.Max
	for _, s := range cfg.WebRTC.ICEServers {
		out.ICEServers = append(out.ICEServers, pionwebrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return out
}
