package video

import (
	"context"
	"errors"
	"sync"
	"time"

	"locallive/internal/core/domain"
	"locallive/internal/core/ports"
	"locallive/pkg/tracing"

	"go.uber.org/zap"
)

type MockConfig struct {
	JoinDelay time.Duration
	HostDelay time.Duration
	HostUID   string
}

// MockSession simulates a video provider: joins succeed after JoinDelay and
// audience members see a synthetic host HostDelay later.
type MockSession struct {
	cfg     MockConfig
	devices ports.MediaDevices
	metrics ports.Metrics
	logger  *zap.SugaredLogger

	mu           sync.Mutex
	state        domain.SessionState
	channel      string
	uid          string
	role         domain.Role
	video        *domain.LocalTrack
	audio        *domain.LocalTrack
	sources      []ports.MediaSource
	hostTimer    *time.Timer
	participants *domain.ParticipantSet
	onJoined     func(domain.Participant)
	onLeft       func(string)
}

var _ ports.VideoSession = (*MockSession)(nil)

func NewMockSession(cfg MockConfig, devices ports.MediaDevices, metrics ports.Metrics, logger *zap.SugaredLogger) *MockSession {
	if cfg.HostUID == "" {
		cfg.HostUID = "host_sarah"
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &MockSession{
		cfg:          cfg,
		devices:      devices,
		metrics:      metrics,
		logger:       logger,
		state:        domain.SessionIdle,
		participants: domain.NewParticipantSet(),
	}
}

func (s *MockSession) JoinChannel(ctx context.Context, channel, uid string, role domain.Role) error {
	if !role.Valid() {
		return errors.New("invalid role")
	}

	ctx, span := tracing.TraceVideo(ctx, "join", channel, string(role))
	defer span.End()

	s.mu.Lock()
	if s.state != domain.SessionIdle {
		s.mu.Unlock()
		return domain.ErrSessionBusy
	}
	s.state = domain.SessionJoining
	s.channel, s.uid, s.role = channel, uid, role
	s.mu.Unlock()

	if err := sleepCtx(ctx, s.cfg.JoinDelay); err != nil {
		tracing.RecordError(ctx, err)
		s.logger.Warnw("failed to join channel", "channel", channel, "uid", uid, "error", err)
		s.mu.Lock()
		s.state = domain.SessionIdle
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if s.state != domain.SessionJoining {
		// left while joining
		s.mu.Unlock()
		return domain.ErrNotJoined
	}
	s.state = domain.SessionJoinedIdle
	if role == domain.RoleAudience {
		s.hostTimer = time.AfterFunc(s.cfg.HostDelay, s.announceHost)
	}
	s.mu.Unlock()

	s.metrics.VideoSessionJoined(role)
	s.logger.Infow("joined channel", "channel", channel, "uid", uid, "role", role)

	if role == domain.RoleHost {
		if _, err := s.StartLocalVideo(ctx); err != nil {
			s.logger.Warnw("failed to start local video", "channel", channel, "error", err)
		}
	}
	return nil
}

func (s *MockSession) announceHost() {
	p := domain.Participant{
		UID:   s.cfg.HostUID,
		Video: &domain.RemoteTrack{ID: s.cfg.HostUID + "-video", Kind: domain.MediaVideo, Codec: "video/VP8"},
	}

	s.mu.Lock()
	if !s.state.Joined() {
		s.mu.Unlock()
		return
	}
	added := s.participants.Add(p)
	s.state = domain.SessionJoinedStreaming
	fn := s.onJoined
	s.mu.Unlock()

	if added && fn != nil {
		fn(p)
	}
}

// StartLocalVideo opens the camera and microphone once. A refused device
// yields a placeholder track.
func (s *MockSession) StartLocalVideo(ctx context.Context) (*domain.LocalTrack, error) {
	s.mu.Lock()
	if s.video != nil {
		track := *s.video
		s.mu.Unlock()
		return &track, nil
	}
	s.mu.Unlock()

	video, videoSrc := s.open(ctx, domain.MediaVideo)
	audio, audioSrc := s.open(ctx, domain.MediaAudio)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.video != nil {
		// lost a race with a concurrent call
		closeSources(videoSrc, audioSrc)
		track := *s.video
		return &track, nil
	}
	s.video, s.audio = &video, &audio
	for _, src := range []ports.MediaSource{videoSrc, audioSrc} {
		if src != nil {
			s.sources = append(s.sources, src)
		}
	}
	if s.state.Joined() {
		s.state = domain.SessionJoinedStreaming
	}
	track := video
	return &track, nil
}

func (s *MockSession) open(ctx context.Context, kind domain.MediaKind) (domain.LocalTrack, ports.MediaSource) {
	src, err := s.devices.Open(ctx, kind)
	if err != nil {
		s.logger.Warnw("media device unavailable, using placeholder", "kind", kind, "error", err)
		return domain.PlaceholderTrack(kind), nil
	}
	return src.Track(), src
}

// LeaveChannel releases local tracks and forgets participants, reporting
// each one through the user-left callback. Leaving an idle session does
// nothing.
func (s *MockSession) LeaveChannel(ctx context.Context) error {
	s.mu.Lock()
	if s.state == domain.SessionIdle || s.state == domain.SessionLeaving {
		s.mu.Unlock()
		return nil
	}
	wasJoined := s.state.Joined()
	channel, uid, role := s.channel, s.uid, s.role
	s.state = domain.SessionLeaving
	if s.hostTimer != nil {
		s.hostTimer.Stop()
		s.hostTimer = nil
	}
	sources := s.sources
	s.sources = nil
	s.video, s.audio = nil, nil
	gone := s.participants.Clear()
	onLeft := s.onLeft
	s.state = domain.SessionIdle
	s.mu.Unlock()

	closeSources(sources...)
	if onLeft != nil {
		for _, uid := range gone {
			onLeft(uid)
		}
	}
	if wasJoined {
		s.metrics.VideoSessionLeft(role)
	}
	s.logger.Infow("left channel", "channel", channel, "uid", uid)
	return nil
}

func (s *MockSession) ToggleMicrophone(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.audio == nil {
		return false
	}
	s.audio.Enabled = !s.audio.Enabled
	return s.audio.Enabled
}

func (s *MockSession) ToggleCamera(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.video == nil {
		return false
	}
	s.video.Enabled = !s.video.Enabled
	return s.video.Enabled
}

// SwitchCamera is a no-op for the mock provider.
func (s *MockSession) SwitchCamera(ctx context.Context) error {
	return nil
}

func (s *MockSession) OnUserJoined(fn func(domain.Participant)) {
	s.mu.Lock()
	s.onJoined = fn
	s.mu.Unlock()
}

func (s *MockSession) OnUserLeft(fn func(string)) {
	s.mu.Lock()
	s.onLeft = fn
	s.mu.Unlock()
}

// RemoveParticipant simulates a remote participant leaving.
func (s *MockSession) RemoveParticipant(uid string) {
	s.mu.Lock()
	_, removed := s.participants.Remove(uid)
	fn := s.onLeft
	s.mu.Unlock()

	if removed && fn != nil {
		fn(uid)
	}
}

func (s *MockSession) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *MockSession) Participants() []domain.Participant {
	return s.participants.List()
}

func (s *MockSession) LocalTracks() []domain.LocalTrack {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.LocalTrack
	if s.video != nil {
		out = append(out, *s.video)
	}
	if s.audio != nil {
		out = append(out, *s.audio)
	}
	return out
}

func closeSources(sources ...ports.MediaSource) {
	for _, src := range sources {
		if src != nil {
			src.Close()
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

