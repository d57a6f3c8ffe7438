package webrtc

import (
	"context"
	"sync"
	"testing"
	"time"

	"locallive/internal/core/domain"
	"locallive/internal/core/ports"
	"locallive/pkg/logger"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChannel = "sarahs-kitchen-live"

func newTestSFU(t *testing.T) *SFU {
	t.Helper()
	sfu, err := NewSFU(Config{GatherTimeout: 5 * time.Second}, nil, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(sfu.Close)
	return sfu
}

// clientOffer builds a gathered offer from a plain pion peer connection.
func clientOffer(t *testing.T, role domain.Role) (*webrtc.PeerConnection, webrtc.SessionDescription) {
	t.Helper()
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { pc.Close() })

	if role == domain.RoleHost {
		track, err := webrtc.NewTrackLocalStaticSample(codecFor("video"), "host-video", "host_sarah")
		require.NoError(t, err)
		_, err = pc.AddTrack(track)
		require.NoError(t, err)
	} else {
		_, err = pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		})
		require.NoError(t, err)
	}

	offer, err := pc.CreateOffer(nil)
	require.NoError(t, err)
	gathered := webrtc.GatheringCompletePromise(pc)
	require.NoError(t, pc.SetLocalDescription(offer))
	<-gathered
	return pc, *pc.LocalDescription()
}

func TestSFU_AudienceNeedsHost(t *testing.T) {
	sfu := newTestSFU(t)
	_, offer := clientOffer(t, domain.RoleAudience)

	_, err := sfu.Answer(context.Background(), testChannel, "user_1", domain.RoleAudience, offer)
	assert.ErrorIs(t, err, domain.ErrChannelNotLive)
	assert.Equal(t, 0, sfu.AudienceCount(testChannel))
}

func TestSFU_RejectsInvalidRole(t *testing.T) {
	sfu := newTestSFU(t)
	_, err := sfu.Answer(context.Background(), testChannel, "user_1", domain.Role("moderator"), webrtc.SessionDescription{})
	assert.Error(t, err)
}

func TestSFU_HostThenAudience(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sfu := newTestSFU(t)

	_, hostOffer := clientOffer(t, domain.RoleHost)
	answer, err := sfu.Answer(ctx, testChannel, "host_sarah", domain.RoleHost, hostOffer)
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeAnswer, answer.Type)
	assert.True(t, sfu.HasHost(testChannel))

	_, viewerOffer := clientOffer(t, domain.RoleAudience)
	answer, err = sfu.Answer(ctx, testChannel, "user_1", domain.RoleAudience, viewerOffer)
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeAnswer, answer.Type)
	assert.Equal(t, 1, sfu.AudienceCount(testChannel))

	sfu.Remove(testChannel, "user_1")
	assert.Equal(t, 0, sfu.AudienceCount(testChannel))
	assert.True(t, sfu.HasHost(testChannel))

	sfu.Remove(testChannel, "host_sarah")
	assert.False(t, sfu.HasHost(testChannel))

	// removing an unknown peer is a no-op
	sfu.Remove(testChannel, "host_sarah")
}

type stubSource struct {
	track domain.LocalTrack
	done  chan struct{}
	once  sync.Once
}

func (s *stubSource) Track() domain.LocalTrack { return s.track }

func (s *stubSource) NextSample(ctx context.Context) ([]byte, time.Duration, error) {
	select {
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	case <-s.done:
		return nil, 0, context.Canceled
	case <-time.After(20 * time.Millisecond):
		return []byte{0x10, 0x02, 0x00}, 20 * time.Millisecond, nil
	}
}

func (s *stubSource) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

type stubDevices struct {
	denied bool
}

func (d stubDevices) Open(ctx context.Context, kind domain.MediaKind) (ports.MediaSource, error) {
	if d.denied {
		return nil, domain.ErrDeviceDenied
	}
	return &stubSource{
		track: domain.LocalTrack{ID: "stub-" + string(kind), Kind: kind, Label: "stub", Enabled: true},
		done:  make(chan struct{}),
	}, nil
}

func (d stubDevices) SwitchCamera(ctx context.Context) error { return nil }

// sfuSignaler hands offers straight to an in-process SFU.
type sfuSignaler struct {
	sfu *SFU

	mu     sync.Mutex
	leaves []string
}

func (s *sfuSignaler) Exchange(ctx context.Context, channel, uid string, role domain.Role, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	return s.sfu.Answer(ctx, channel, uid, role, offer)
}

func (s *sfuSignaler) Leave(ctx context.Context, channel, uid string) error {
	s.mu.Lock()
	s.leaves = append(s.leaves, uid)
	s.mu.Unlock()
	s.sfu.Remove(channel, uid)
	return nil
}

func TestSession_HostJoinAndLeave(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	signaler := &sfuSignaler{sfu: newTestSFU(t)}
	session, err := NewSession(Config{GatherTimeout: 5 * time.Second}, stubDevices{}, signaler, nil, logger.Nop())
	require.NoError(t, err)

	assert.False(t, session.ToggleCamera(ctx))

	require.NoError(t, session.JoinChannel(ctx, testChannel, "host_sarah", domain.RoleHost))
	assert.Equal(t, domain.SessionJoinedStreaming, session.State())
	assert.True(t, signaler.sfu.HasHost(testChannel))

	tracks := session.LocalTracks()
	require.Len(t, tracks, 2)
	assert.Equal(t, "stub-video", tracks[0].ID)

	assert.False(t, session.ToggleCamera(ctx))
	assert.True(t, session.ToggleCamera(ctx))

	err = session.JoinChannel(ctx, testChannel, "host_sarah", domain.RoleHost)
	assert.ErrorIs(t, err, domain.ErrSessionBusy)

	require.NoError(t, session.LeaveChannel(ctx))
	require.NoError(t, session.LeaveChannel(ctx))
	assert.Equal(t, domain.SessionIdle, session.State())
	assert.Empty(t, session.LocalTracks())
	assert.False(t, signaler.sfu.HasHost(testChannel))
	assert.Equal(t, []string{"host_sarah"}, signaler.leaves)
}

func TestSession_AudienceJoinFailsWithoutHost(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	signaler := &sfuSignaler{sfu: newTestSFU(t)}
	session, err := NewSession(Config{GatherTimeout: 5 * time.Second}, stubDevices{}, signaler, nil, logger.Nop())
	require.NoError(t, err)

	err = session.JoinChannel(ctx, testChannel, "user_1", domain.RoleAudience)
	assert.ErrorIs(t, err, domain.ErrChannelNotLive)
	assert.Equal(t, domain.SessionIdle, session.State())
	assert.Empty(t, session.Participants())
}

func TestSession_DeniedDevicesUsePlaceholder(t *testing.T) {
	session, err := NewSession(Config{}, stubDevices{denied: true}, &sfuSignaler{sfu: newTestSFU(t)}, nil, logger.Nop())
	require.NoError(t, err)

	track, err := session.StartLocalVideo(context.Background())
	require.NoError(t, err)
	assert.True(t, track.Placeholder)
	assert.NoError(t, session.SwitchCamera(context.Background()))
}

// gatedSignaler holds the offer exchange until release is closed.
type gatedSignaler struct {
	*sfuSignaler
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedSignaler) Exchange(ctx context.Context, channel, uid string, role domain.Role, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.sfuSignaler.Exchange(ctx, channel, uid, role, offer)
}

func TestSession_LeaveWhileJoining(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	signaler := &gatedSignaler{
		sfuSignaler: &sfuSignaler{sfu: newTestSFU(t)},
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	session, err := NewSession(Config{GatherTimeout: 5 * time.Second}, stubDevices{}, signaler, nil, logger.Nop())
	require.NoError(t, err)

	joinErr := make(chan error, 1)
	go func() {
		joinErr <- session.JoinChannel(ctx, testChannel, "host_sarah", domain.RoleHost)
	}()

	select {
	case <-signaler.entered:
	case <-ctx.Done():
		t.Fatal("offer never reached the signaler")
	}
	assert.Equal(t, domain.SessionJoining, session.State())

	require.NoError(t, session.LeaveChannel(ctx))
	assert.Equal(t, domain.SessionIdle, session.State())
	close(signaler.release)

	select {
	case err := <-joinErr:
		assert.ErrorIs(t, err, domain.ErrNotJoined)
	case <-ctx.Done():
		t.Fatal("join never returned")
	}
	assert.Equal(t, domain.SessionIdle, session.State())
	assert.Empty(t, session.LocalTracks())
	assert.False(t, signaler.sfu.HasHost(testChannel))
}
