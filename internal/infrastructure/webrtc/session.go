package webrtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"locallive/internal/core/domain"
	"locallive/internal/core/ports"
	"locallive/pkg/tracing"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"go.uber.org/zap"
)

type localMedia struct {
	info    domain.LocalTrack
	source  ports.MediaSource
	track   *webrtc.TrackLocalStaticSample
	enabled atomic.Bool
}

// Session is the production VideoSession: one pion peer connection to the
// SFU, negotiated through a Signaler.
type Session struct {
	config   Config
	api      *webrtc.API
	devices  ports.MediaDevices
	signaler ports.Signaler
	metrics  ports.Metrics
	logger   *zap.SugaredLogger

	mu           sync.Mutex
	state        domain.SessionState
	channel      string
	uid          string
	role         domain.Role
	pc           *webrtc.PeerConnection
	local        map[domain.MediaKind]*localMedia
	stopPumps    context.CancelFunc
	pumps        sync.WaitGroup
	participants *domain.ParticipantSet
	liveTracks   map[string]int
	onJoined     func(domain.Participant)
	onLeft       func(string)
}

var _ ports.VideoSession = (*Session)(nil)

func NewSession(config Config, devices ports.MediaDevices, signaler ports.Signaler, metrics ports.Metrics, logger *zap.SugaredLogger) (*Session, error) {
	api, err := newAPI(config)
	if err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Session{
		config:       config,
		api:          api,
		devices:      devices,
		signaler:     signaler,
		metrics:      metrics,
		logger:       logger,
		state:        domain.SessionIdle,
		local:        make(map[domain.MediaKind]*localMedia),
		participants: domain.NewParticipantSet(),
		liveTracks:   make(map[string]int),
	}, nil
}

func (s *Session) JoinChannel(ctx context.Context, channel, uid string, role domain.Role) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
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

	err := s.connect(ctx, channel, uid, role)

	s.mu.Lock()
	if s.state != domain.SessionJoining {
		// left while joining
		s.mu.Unlock()
		s.teardown()
		if lerr := s.signaler.Leave(context.WithoutCancel(ctx), channel, uid); lerr != nil {
			s.logger.Debugw("failed to signal leave", "channel", channel, "uid", uid, "error", lerr)
		}
		s.logger.Infow("left channel while joining", "channel", channel, "uid", uid)
		return domain.ErrNotJoined
	}
	if err == nil {
		s.state = domain.SessionJoinedIdle
		if len(s.local) > 0 || s.participants.Len() > 0 {
			s.state = domain.SessionJoinedStreaming
		}
	}
	s.mu.Unlock()

	if err != nil {
		tracing.RecordError(ctx, err)
		s.logger.Warnw("failed to join channel",
			"channel", channel,
			"uid", uid,
			"role", role,
			"error", err,
		)
		s.teardown()
		return err
	}

	s.metrics.VideoSessionJoined(role)
	s.logger.Infow("joined channel", "channel", channel, "uid", uid, "role", role)
	return nil
}

func (s *Session) connect(ctx context.Context, channel, uid string, role domain.Role) error {
	pc, err := s.api.NewPeerConnection(webrtc.Configuration{ICEServers: s.config.ICEServers})
	if err != nil {
		return fmt.Errorf("failed to create peer connection: %w", err)
	}
	s.mu.Lock()
	s.pc = pc
	s.mu.Unlock()

	if role == domain.RoleHost {
		if _, err := s.StartLocalVideo(ctx); err != nil {
			return err
		}
		if err := s.publish(pc); err != nil {
			return err
		}
	} else {
		for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio} {
			if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
				Direction: webrtc.RTPTransceiverDirectionRecvonly,
			}); err != nil {
				return fmt.Errorf("failed to add %s transceiver: %w", kind, err)
			}
		}
	}

	pc.OnTrack(s.handleRemoteTrack)

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("failed to create offer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("failed to set local description: %w", err)
	}
	if err := waitGathered(ctx, gathered, s.config.GatherTimeout); err != nil {
		return err
	}

	answer, err := s.signaler.Exchange(ctx, channel, uid, role, *pc.LocalDescription())
	if err != nil {
		return fmt.Errorf("signaling failed: %w", err)
	}
	if err := pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}
	return nil
}

// publish adds the captured tracks to pc and starts feeding them.
func (s *Session) publish(pc *webrtc.PeerConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pumpCtx, cancel := context.WithCancel(context.Background())
	s.stopPumps = cancel

	for _, lm := range s.local {
		if lm.track == nil {
			continue
		}
		sender, err := pc.AddTrack(lm.track)
		if err != nil {
			return fmt.Errorf("failed to add %s track: %w", lm.info.Kind, err)
		}
		go drainRTCP(sender)

		s.pumps.Add(1)
		go s.pump(pumpCtx, lm)
	}
	return nil
}

func (s *Session) pump(ctx context.Context, lm *localMedia) {
	defer s.pumps.Done()
	for {
		data, duration, err := lm.source.NextSample(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				s.logger.Warnw("capture source failed", "kind", lm.info.Kind, "error", err)
			}
			return
		}
		if !lm.enabled.Load() {
			continue
		}
		if err := lm.track.WriteSample(media.Sample{Data: data, Duration: duration}); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			s.logger.Debugw("failed to write sample", "kind", lm.info.Kind, "error", err)
		}
	}
}

func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

// StartLocalVideo opens the camera and microphone once. A refused device
// yields a placeholder track that is never published.
func (s *Session) StartLocalVideo(ctx context.Context) (*domain.LocalTrack, error) {
	s.mu.Lock()
	if lm, ok := s.local[domain.MediaVideo]; ok {
		info := lm.info
		s.mu.Unlock()
		return &info, nil
	}
	streamID := s.uid
	s.mu.Unlock()

	if streamID == "" {
		streamID = "local"
	}
	video, err := s.openLocal(ctx, domain.MediaVideo, streamID)
	if err != nil {
		return nil, err
	}
	audio, err := s.openLocal(ctx, domain.MediaAudio, streamID)
	if err != nil {
		closeLocal(video)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if lm, ok := s.local[domain.MediaVideo]; ok {
		closeLocal(video, audio)
		info := lm.info
		return &info, nil
	}
	s.local[domain.MediaVideo] = video
	s.local[domain.MediaAudio] = audio
	if s.state.Joined() {
		s.state = domain.SessionJoinedStreaming
	}
	info := video.info
	return &info, nil
}

func (s *Session) openLocal(ctx context.Context, kind domain.MediaKind, streamID string) (*localMedia, error) {
	src, err := s.devices.Open(ctx, kind)
	if err != nil {
		s.logger.Warnw("media device unavailable, using placeholder", "kind", kind, "error", err)
		lm := &localMedia{info: domain.PlaceholderTrack(kind)}
		lm.enabled.Store(true)
		return lm, nil
	}

	info := src.Track()
	track, err := webrtc.NewTrackLocalStaticSample(codecFor(string(kind)), info.ID, streamID)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("failed to create %s track: %w", kind, err)
	}
	lm := &localMedia{info: info, source: src, track: track}
	lm.enabled.Store(info.Enabled)
	return lm, nil
}

func closeLocal(media ...*localMedia) {
	for _, lm := range media {
		if lm != nil && lm.source != nil {
			lm.source.Close()
		}
	}
}

func (s *Session) handleRemoteTrack(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	uid := remote.StreamID()
	rt := &domain.RemoteTrack{ID: remote.ID(), Codec: remote.Codec().MimeType}
	p := domain.Participant{UID: uid}
	if remote.Kind() == webrtc.RTPCodecTypeAudio {
		rt.Kind = domain.MediaAudio
		p.Audio = rt
	} else {
		rt.Kind = domain.MediaVideo
		p.Video = rt
	}

	s.mu.Lock()
	added := s.participants.Add(p)
	s.liveTracks[uid]++
	if s.state.Joined() {
		s.state = domain.SessionJoinedStreaming
	}
	fn := s.onJoined
	s.mu.Unlock()

	if added && fn != nil {
		fn(p)
	}

	go s.readRemote(uid, remote)
}

// readRemote consumes a remote track; its participant leaves when the last
// of its tracks ends.
func (s *Session) readRemote(uid string, remote *webrtc.TrackRemote) {
	for {
		if _, _, err := remote.ReadRTP(); err != nil {
			break
		}
	}

	s.mu.Lock()
	s.liveTracks[uid]--
	var removed bool
	if s.liveTracks[uid] <= 0 {
		delete(s.liveTracks, uid)
		_, removed = s.participants.Remove(uid)
	}
	fn := s.onLeft
	s.mu.Unlock()

	if removed && fn != nil {
		fn(uid)
	}
}

// LeaveChannel releases media and the peer connection. Remote participants
// still present are reported through the user-left callback. Leaving an idle
// session does nothing.
func (s *Session) LeaveChannel(ctx context.Context) error {
	s.mu.Lock()
	if s.state == domain.SessionIdle || s.state == domain.SessionLeaving {
		s.mu.Unlock()
		return nil
	}
	wasJoined := s.state.Joined()
	channel, uid, role := s.channel, s.uid, s.role
	s.state = domain.SessionLeaving
	s.mu.Unlock()

	s.teardown()

	if wasJoined {
		if err := s.signaler.Leave(ctx, channel, uid); err != nil {
			s.logger.Warnw("failed to signal leave", "channel", channel, "uid", uid, "error", err)
		}
		s.metrics.VideoSessionLeft(role)
	}
	s.logger.Infow("left channel", "channel", channel, "uid", uid)
	return nil
}

func (s *Session) teardown() {
	s.mu.Lock()
	pc := s.pc
	s.pc = nil
	stop := s.stopPumps
	s.stopPumps = nil
	local := s.local
	s.local = make(map[domain.MediaKind]*localMedia)
	gone := s.participants.Clear()
	s.liveTracks = make(map[string]int)
	onLeft := s.onLeft
	s.mu.Unlock()

	if onLeft != nil {
		for _, uid := range gone {
			onLeft(uid)
		}
	}
	if stop != nil {
		stop()
	}
	for _, lm := range local {
		closeLocal(lm)
	}
	s.pumps.Wait()
	if pc != nil {
		if err := pc.Close(); err != nil {
			s.logger.Debugw("error closing peer connection", "error", err)
		}
	}

	s.mu.Lock()
	s.state = domain.SessionIdle
	s.mu.Unlock()
}

func (s *Session) ToggleMicrophone(ctx context.Context) bool {
	return s.toggle(domain.MediaAudio)
}

func (s *Session) ToggleCamera(ctx context.Context) bool {
	return s.toggle(domain.MediaVideo)
}

func (s *Session) toggle(kind domain.MediaKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	lm, ok := s.local[kind]
	if !ok {
		return false
	}
	lm.info.Enabled = !lm.info.Enabled
	lm.enabled.Store(lm.info.Enabled)
	return lm.info.Enabled
}

// SwitchCamera asks the capture devices for the other camera.
func (s *Session) SwitchCamera(ctx context.Context) error {
	s.mu.Lock()
	lm, ok := s.local[domain.MediaVideo]
	s.mu.Unlock()
	if !ok || lm.info.Placeholder {
		return nil
	}
	return s.devices.SwitchCamera(ctx)
}

func (s *Session) OnUserJoined(fn func(domain.Participant)) {
	s.mu.Lock()
	s.onJoined = fn
	s.mu.Unlock()
}

func (s *Session) OnUserLeft(fn func(string)) {
	s.mu.Lock()
	s.onLeft = fn
	s.mu.Unlock()
}

func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Participants() []domain.Participant {
	return s.participants.List()
}

func (s *Session) LocalTracks() []domain.LocalTrack {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.LocalTrack
	for _, kind := range []domain.MediaKind{domain.MediaVideo, domain.MediaAudio} {
		if lm, ok := s.local[kind]; ok {
			out = append(out, lm.info)
		}
	}
	return out
}
