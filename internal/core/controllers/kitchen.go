package controllers

import (
	"context"
	"strings"
	"sync"
	"time"

	"locallive/internal/core/domain"
	"locallive/internal/core/ports"
	"locallive/internal/core/services"
	"locallive/pkg/utils"
)

// KitchenController is the host's page: the go-live dialog, the broadcast
// session and its stats.
type KitchenController struct {
	app  AppContext
	deps *Deps

	mu          sync.Mutex
	dialogOpen  bool
	title       string
	description string
	category    domain.Category
	streaming   bool
	stream      *domain.LiveStream
	session     ports.VideoSession
	startedAt   time.Time
	closed      bool
}

type StreamStats struct {
	Viewers  int    `json:"viewers"`
	Duration string `json:"duration"`
	Likes    int    `json:"likes"`
}

type KitchenView struct {
	DialogOpen   bool                `json:"dialog_open"`
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	Category     domain.Category     `json:"category"`
	CanGoLive    bool                `json:"can_go_live"`
	Streaming    bool                `json:"streaming"`
	Stream       *domain.LiveStream  `json:"stream,omitempty"`
	SessionState domain.SessionState `json:"session_state"`
	LocalTracks  []domain.LocalTrack `json:"local_tracks"`
	Stats        StreamStats         `json:"stats"`
}

func NewKitchenController(app AppContext, deps *Deps) *KitchenController {
	return &KitchenController{app: app, deps: deps, category: domain.CategoryOther}
}

func (k *KitchenController) OpenDialog() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.dialogOpen = true
}

func (k *KitchenController) CloseDialog() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.dialogOpen = false
}

// SetForm fills the go-live dialog. An empty category keeps the current one.
func (k *KitchenController) SetForm(title, description, category string) error {
	var c domain.Category
	if category != "" {
		parsed, err := domain.ParseCategory(category)
		if err != nil {
			return err
		}
		c = parsed
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.title = title
	k.description = description
	if c != "" {
		k.category = c
	}
	return nil
}

// StartStream lists the kitchen as live and joins its channel as host. If
// the join fails, or the page is closed before it completes, the listing is
// withdrawn again.
func (k *KitchenController) StartStream(ctx context.Context) (*domain.LiveStream, error) {
	if k.app.User == nil {
		return nil, domain.ErrUnauthenticated
	}

	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil, domain.ErrSessionBusy
	}
	if k.streaming {
		k.mu.Unlock()
		return nil, domain.ErrAlreadyLive
	}
	if strings.TrimSpace(k.title) == "" {
		k.mu.Unlock()
		return nil, domain.ErrEmptyTitle
	}
	req := services.GoLiveRequest{
		Title:       k.title,
		Description: k.description,
		Category:    k.category,
	}
	// Holding streaming=true while the join is in flight keeps a second
	// StartStream out.
	k.streaming = true
	k.mu.Unlock()

	stream, session, err := k.goLive(ctx, req)
	if err != nil {
		k.mu.Lock()
		k.streaming = false
		k.mu.Unlock()
		return nil, err
	}

	k.mu.Lock()
	if k.closed {
		k.streaming = false
		k.mu.Unlock()
		if err := k.release(context.WithoutCancel(ctx), stream, session); err != nil {
			k.deps.Logger.Warnw("failed to withdraw live stream", "stream_id", stream.ID, "error", err)
		}
		return nil, domain.ErrNotJoined
	}
	k.stream = stream
	k.session = session
	k.startedAt = stream.StartedAt
	k.dialogOpen = false
	k.title, k.description = "", ""
	k.mu.Unlock()
	return stream, nil
}

func (k *KitchenController) goLive(ctx context.Context, req services.GoLiveRequest) (*domain.LiveStream, ports.VideoSession, error) {
	stream, err := k.deps.Streams.GoLive(ctx, k.app.User, req)
	if err != nil {
		return nil, nil, err
	}

	session := k.deps.Sessions.NewSession()
	if err := session.JoinChannel(ctx, stream.Channel, string(k.app.User.ID), domain.RoleHost); err != nil {
		k.deps.Logger.Warnw("failed to join kitchen channel as host",
			"channel", stream.Channel,
			"error", err,
		)
		if endErr := k.deps.Streams.End(context.WithoutCancel(ctx), stream.ID); endErr != nil {
			k.deps.Logger.Warnw("failed to withdraw live stream", "stream_id", stream.ID, "error", endErr)
		}
		return nil, nil, err
	}
	return stream, session, nil
}

// StopStream leaves the channel, ends the listing and resets the stats.
func (k *KitchenController) StopStream(ctx context.Context) error {
	k.mu.Lock()
	if !k.streaming || k.stream == nil {
		k.mu.Unlock()
		return domain.ErrNotLive
	}
	stream, session := k.stream, k.session
	k.streaming = false
	k.stream, k.session = nil, nil
	k.startedAt = time.Time{}
	k.mu.Unlock()

	return k.release(ctx, stream, session)
}

func (k *KitchenController) release(ctx context.Context, stream *domain.LiveStream, session ports.VideoSession) error {
	if err := session.LeaveChannel(ctx); err != nil {
		k.deps.Logger.Warnw("failed to leave kitchen channel", "channel", stream.Channel, "error", err)
	}
	return k.deps.Streams.End(ctx, stream.ID)
}

func (k *KitchenController) currentSession() ports.VideoSession {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.session
}

// ToggleMicrophone returns false when there is no broadcast.
func (k *KitchenController) ToggleMicrophone(ctx context.Context) bool {
	if s := k.currentSession(); s != nil {
		return s.ToggleMicrophone(ctx)
	}
	return false
}

func (k *KitchenController) ToggleCamera(ctx context.Context) bool {
	if s := k.currentSession(); s != nil {
		return s.ToggleCamera(ctx)
	}
	return false
}

func (k *KitchenController) SwitchCamera(ctx context.Context) error {
	if s := k.currentSession(); s != nil {
		return s.SwitchCamera(ctx)
	}
	return domain.ErrNotJoined
}

// View reports the dialog, broadcast and stats. Viewers and likes are read
// from the listing and the feed.
func (k *KitchenController) View(ctx context.Context) (*KitchenView, error) {
	k.mu.Lock()
	view := &KitchenView{
		DialogOpen:   k.dialogOpen,
		Title:        k.title,
		Description:  k.description,
		Category:     k.category,
		CanGoLive:    strings.TrimSpace(k.title) != "" && !k.streaming,
		Streaming:    k.streaming && k.stream != nil,
		SessionState: domain.SessionIdle,
		LocalTracks:  []domain.LocalTrack{},
		Stats:        StreamStats{Duration: utils.FormatStreamDuration(0)},
	}
	stream, session, startedAt := k.stream, k.session, k.startedAt
	k.mu.Unlock()

	if stream == nil {
		return view, nil
	}

	current, err := k.deps.Streams.Get(ctx, stream.ID)
	if err != nil {
		return nil, err
	}
	view.Stream = current
	view.Stats.Viewers = current.ViewerCount
	view.Stats.Duration = utils.FormatStreamDuration(k.deps.now().Sub(startedAt))

	events, err := k.deps.Feed.Events(ctx, stream.Channel)
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		if e.Kind == domain.EventLike {
			view.Stats.Likes++
		}
	}

	if session != nil {
		view.SessionState = session.State()
		view.LocalTracks = session.LocalTracks()
	}
	return view, nil
}

// Close stops a running broadcast in the background. A go-live still in
// flight is withdrawn once its join completes.
func (k *KitchenController) Close() {
	k.mu.Lock()
	k.closed = true
	streaming := k.streaming && k.stream != nil
	k.mu.Unlock()
	if !streaming {
		return
	}
	go func() {
		if err := k.StopStream(context.Background()); err != nil {
			k.deps.Logger.Warnw("failed to stop kitchen stream on close", "error", err)
		}
	}()
}
