package webrtc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"locallive/internal/core/domain"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// SFU forwards each channel's host tracks to its audience peer connections.
type SFU struct {
	config   Config
	api      *webrtc.API
	recorder QualityRecorder

	rooms map[string]*room
	mu    sync.RWMutex

	logger *zap.SugaredLogger
}

type room struct {
	channel    string
	host       *sfuPeer
	audience   map[string]*sfuPeer
	forwarders map[string]*trackForwarder // by media kind
}

type sfuPeer struct {
	uid       string
	role      domain.Role
	pc        *webrtc.PeerConnection
	createdAt time.Time
}

// trackForwarder relays one host track. Writing to the local track fans the
// packet out to every peer connection it was added to.
type trackForwarder struct {
	kind  string
	track *webrtc.TrackLocalStaticRTP
	ssrc  atomic.Uint32 // host's remote SSRC, 0 until the track arrives
}

func NewSFU(config Config, recorder QualityRecorder, logger *zap.SugaredLogger) (*SFU, error) {
	api, err := newAPI(config)
	if err != nil {
		return nil, err
	}
	return &SFU{
		config:   config,
		api:      api,
		recorder: recorder,
		rooms:    make(map[string]*room),
		logger:   logger,
	}, nil
}

// Answer accepts a client offer for channel and returns the SFU's answer.
// A host replaces any previous host of the channel; audience members need a
// host to be present.
func (s *SFU) Answer(ctx context.Context, channel, uid string, role domain.Role, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if !role.Valid() {
		return webrtc.SessionDescription{}, fmt.Errorf("invalid role %q", role)
	}
	if role == domain.RoleAudience && !s.HasHost(channel) {
		return webrtc.SessionDescription{}, domain.ErrChannelNotLive
	}

	pc, err := s.api.NewPeerConnection(webrtc.Configuration{ICEServers: s.config.ICEServers})
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to create peer connection: %w", err)
	}

	peer := &sfuPeer{uid: uid, role: role, pc: pc, createdAt: time.Now()}
	if role == domain.RoleHost {
		err = s.attachHost(channel, peer)
	} else {
		err = s.attachAudience(channel, peer)
	}
	if err != nil {
		s.removePeer(channel, peer)
		pc.Close()
		return webrtc.SessionDescription{}, err
	}

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.logger.Infow("peer connection state changed",
			"channel", channel,
			"uid", uid,
			"connection_state", state,
		)
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			s.removePeer(channel, peer)
		}
	})

	answer, err := s.negotiate(ctx, pc, offer)
	if err != nil {
		s.removePeer(channel, peer)
		return webrtc.SessionDescription{}, err
	}

	s.logger.Infow("peer joined channel",
		"channel", channel,
		"uid", uid,
		"role", role,
	)
	return answer, nil
}

func (s *SFU) negotiate(ctx context.Context, pc *webrtc.PeerConnection, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := pc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to set remote description: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to create answer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to set local description: %w", err)
	}
	if err := waitGathered(ctx, gathered, s.config.GatherTimeout); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return *pc.LocalDescription(), nil
}

func (s *SFU) attachHost(channel string, peer *sfuPeer) error {
	forwarders := make(map[string]*trackForwarder, 2)
	for _, kind := range []string{"video", "audio"} {
		track, err := webrtc.NewTrackLocalStaticRTP(codecFor(kind), peer.uid+"-"+kind, peer.uid)
		if err != nil {
			return fmt.Errorf("failed to create %s forwarder: %w", kind, err)
		}
		forwarders[kind] = &trackForwarder{kind: kind, track: track}
	}

	peer.pc.OnTrack(s.handleHostTrack(channel, peer.uid, forwarders))

	s.mu.Lock()
	r := s.roomLocked(channel)
	previous := r.host
	stale := r.audience
	r.host = peer
	r.forwarders = forwarders
	r.audience = make(map[string]*sfuPeer)
	s.mu.Unlock()

	// audience of a replaced host must renegotiate against the new tracks
	if previous != nil {
		previous.pc.Close()
	}
	for _, p := range stale {
		p.pc.Close()
	}
	return nil
}

func (s *SFU) attachAudience(channel string, peer *sfuPeer) error {
	s.mu.Lock()
	r, ok := s.rooms[channel]
	if !ok || r.host == nil {
		s.mu.Unlock()
		return domain.ErrChannelNotLive
	}
	if existing, ok := r.audience[peer.uid]; ok {
		existing.pc.Close()
	}
	r.audience[peer.uid] = peer
	forwarders := make([]*trackForwarder, 0, len(r.forwarders))
	for _, f := range r.forwarders {
		forwarders = append(forwarders, f)
	}
	s.mu.Unlock()

	for _, f := range forwarders {
		sender, err := peer.pc.AddTrack(f.track)
		if err != nil {
			return fmt.Errorf("failed to add %s track: %w", f.kind, err)
		}
		go s.readSenderRTCP(channel, peer.uid, f, sender)
	}
	s.requestKeyframe(channel)
	return nil
}

// requestKeyframe sends a PLI to the host so viewers that just joined, or
// lost packets, can start decoding again.
func (s *SFU) requestKeyframe(channel string) {
	s.mu.RLock()
	var (
		host      *sfuPeer
		forwarder *trackForwarder
	)
	if r, ok := s.rooms[channel]; ok {
		host, forwarder = r.host, r.forwarders["video"]
	}
	s.mu.RUnlock()

	if host == nil || forwarder == nil {
		return
	}
	ssrc := forwarder.ssrc.Load()
	if ssrc == 0 {
		return
	}
	if err := host.pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: ssrc}}); err != nil {
		s.logger.Debugw("failed to request keyframe", "channel", channel, "error", err)
	}
}

func (s *SFU) roomLocked(channel string) *room {
	r, ok := s.rooms[channel]
	if !ok {
		r = &room{channel: channel, audience: make(map[string]*sfuPeer)}
		s.rooms[channel] = r
	}
	return r
}

func (s *SFU) handleHostTrack(channel, uid string, forwarders map[string]*trackForwarder) func(*webrtc.TrackRemote, *webrtc.RTPReceiver) {
	return func(remote *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		kind := remote.Kind().String()
		forwarder, ok := forwarders[kind]
		if !ok {
			s.logger.Warnw("ignoring unexpected host track", "channel", channel, "kind", kind)
			return
		}

		s.logger.Infow("host started streaming track",
			"channel", channel,
			"uid", uid,
			"track_id", remote.ID(),
			"codec", remote.Codec().MimeType,
		)

		forwarder.ssrc.Store(uint32(remote.SSRC()))
		go s.readReceiverRTCP(receiver)
		if forwarder.kind == "video" {
			s.requestKeyframe(channel)
		}
		s.forward(channel, forwarder, remote)
	}
}

// forward copies RTP from the host until its track ends.
func (s *SFU) forward(channel string, forwarder *trackForwarder, remote *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	packet := &rtp.Packet{}
	var forwarded uint64

	for {
		n, _, err := remote.Read(buf)
		if err != nil {
			s.logger.Infow("host track ended",
				"channel", channel,
				"kind", forwarder.kind,
				"packets_forwarded", forwarded,
				"error", err,
			)
			return
		}
		if err := packet.Unmarshal(buf[:n]); err != nil {
			s.logger.Warnw("error unmarshaling RTP packet", "channel", channel, "error", err)
			continue
		}
		if err := forwarder.track.WriteRTP(packet); err != nil {
			s.logger.Debugw("error writing RTP packet", "channel", channel, "error", err)
		}
		forwarded++
	}
}

// readReceiverRTCP drains the host receiver so interceptors keep running.
func (s *SFU) readReceiverRTCP(receiver *webrtc.RTPReceiver) {
	for {
		if _, _, err := receiver.ReadRTCP(); err != nil {
			return
		}
	}
}

// readSenderRTCP reads audience receiver reports for link quality.
func (s *SFU) readSenderRTCP(channel, uid string, forwarder *trackForwarder, sender *webrtc.RTPSender) {
	clockRate := forwarder.track.Codec().ClockRate
	for {
		packets, _, err := sender.ReadRTCP()
		if err != nil {
			return
		}
		q := summarizeRTCP(packets, clockRate)
		if q.Reports == 0 && q.NACKs == 0 && q.PLIs == 0 {
			continue
		}
		if s.recorder != nil {
			s.recorder.RecordLinkQuality(string(domain.RoleAudience), q)
		}
		if q.PLIs > 0 && forwarder.kind == "video" {
			s.requestKeyframe(channel)
		}
		s.logger.Debugw("audience link quality",
			"channel", channel,
			"uid", uid,
			"kind", forwarder.kind,
			"packet_loss", q.PacketLoss,
			"jitter", q.Jitter,
			"report_delay", q.ReportDelay,
			"nacks", q.NACKs,
		)
	}
}

// Remove disconnects uid from channel. Removing the host ends the channel
// for its audience.
func (s *SFU) Remove(channel, uid string) {
	s.remove(channel, uid, nil)
}

// removePeer removes peer only if it is still the registered connection
// for its uid.
func (s *SFU) removePeer(channel string, peer *sfuPeer) {
	s.remove(channel, peer.uid, peer)
}

func (s *SFU) remove(channel, uid string, only *sfuPeer) {
	var closing []*sfuPeer
	matches := func(p *sfuPeer) bool {
		return p != nil && p.uid == uid && (only == nil || p == only)
	}

	s.mu.Lock()
	r, ok := s.rooms[channel]
	if !ok {
		s.mu.Unlock()
		return
	}
	if matches(r.host) {
		closing = append(closing, r.host)
		for _, p := range r.audience {
			closing = append(closing, p)
		}
		delete(s.rooms, channel)
	} else if p, ok := r.audience[uid]; ok && matches(p) {
		closing = append(closing, p)
		delete(r.audience, uid)
	}
	s.mu.Unlock()

	for _, p := range closing {
		if err := p.pc.Close(); err != nil {
			s.logger.Debugw("error closing peer connection", "channel", channel, "uid", p.uid, "error", err)
		}
	}
	if len(closing) > 0 {
		s.logger.Infow("peer left channel", "channel", channel, "uid", uid, "closed", len(closing))
	}
}

func (s *SFU) HasHost(channel string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[channel]
	return ok && r.host != nil
}

// AudienceCount returns the number of audience peers in channel.
func (s *SFU) AudienceCount(channel string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.rooms[channel]; ok {
		return len(r.audience)
	}
	return 0
}

// Close disconnects every peer.
func (s *SFU) Close() {
	s.mu.Lock()
	rooms := s.rooms
	s.rooms = make(map[string]*room)
	s.mu.Unlock()

	for _, r := range rooms {
		if r.host != nil {
			r.host.pc.Close()
		}
		for _, p := range r.audience {
			p.pc.Close()
		}
	}
}
