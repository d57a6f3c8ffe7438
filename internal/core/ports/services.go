package ports

import (
	"context"
	"time"

	"locallive/internal/core/domain"

	"github.com/pion/webrtc/v3"
)

// VideoSession is the capability set a page needs from a real-time video provider.
// Implementations are picked by configuration, never at call sites.
type VideoSession interface {
	JoinChannel(ctx context.Context, channel, uid string, role domain.Role) error
	StartLocalVideo(ctx context.Context) (*domain.LocalTrack, error)
	LeaveChannel(ctx context.Context) error
	ToggleMicrophone(ctx context.Context) bool
	ToggleCamera(ctx context.Context) bool
	SwitchCamera(ctx context.Context) error
	OnUserJoined(fn func(p domain.Participant))
	OnUserLeft(fn func(uid string))
	State() domain.SessionState
	Participants() []domain.Participant
	LocalTracks() []domain.LocalTrack
}

type VideoSessionFactory interface {
	NewSession() VideoSession
}

// MediaSource is an opened capture device.
type MediaSource interface {
	Track() domain.LocalTrack
	// NextSample blocks until the next encoded frame is available.
	NextSample(ctx context.Context) ([]byte, time.Duration, error)
	Close() error
}

type MediaDevices interface {
	Open(ctx context.Context, kind domain.MediaKind) (MediaSource, error)
	SwitchCamera(ctx context.Context) error
}

// Signaler exchanges session descriptions with the media server.
type Signaler interface {
	Exchange(ctx context.Context, channel, uid string, role domain.Role, offer webrtc.SessionDescription) (webrtc.SessionDescription, error)
	Leave(ctx context.Context, channel, uid string) error
}

// FeedPublisher pushes appended chat events to connected viewers.
type FeedPublisher interface {
	PublishEvent(ctx context.Context, event domain.ChatEvent) error
}

// StreamNotifier hears about kitchens going live and ending.
type StreamNotifier interface {
	StreamStarted(ctx context.Context, stream *domain.LiveStream) error
	StreamEnded(ctx context.Context, stream *domain.LiveStream) error
}

// AuthProvider reports sign-in state changes to subscribers.
type AuthProvider interface {
	OnAuthStateChanged(fn func(domain.AuthState)) (unsubscribe func())
	SignOut(ctx context.Context) error
}

type Geolocator interface {
	CurrentPosition(ctx context.Context, highAccuracy bool) (domain.Location, error)
}

type Metrics interface {
	ChatEventAppended(kind domain.EventKind)
	BidPlaced(channel string, amount float64)
	ViewersChanged(streamID domain.StreamID, count int)
	StreamStarted(streamID domain.StreamID)
	StreamEnded(streamID domain.StreamID)
	VideoSessionJoined(role domain.Role)
	VideoSessionLeft(role domain.Role)
	CatalogQueried(kind string, results int, took time.Duration)
}

type NopMetrics struct{}

func (NopMetrics) ChatEventAppended(domain.EventKind) {}
func (NopMetrics) BidPlaced(string, float64) {}
func (NopMetrics) ViewersChanged(domain.StreamID, int) {}
func (NopMetrics) StreamStarted(domain.StreamID) {}
func (NopMetrics) StreamEnded(domain.StreamID) {}
func (NopMetrics) VideoSessionJoined(domain.Role) {}
func (NopMetrics) VideoSessionLeft(domain.Role) {}
func (NopMetrics) CatalogQueried(string, int, time.Duration) {}
