package controllers

import (
	"context"
	"errors"
	"sync"
	"time"

	"locallive/internal/core/domain"
	"locallive/internal/core/ports"
	"locallive/pkg/utils"
)

const viewerAdjustTimeout = 5 * time.Second

// LiveStreamController is one viewer's page for a live stream: the audience
// video session, chat, auction and follow state.
type LiveStreamController struct {
	app    AppContext
	deps   *Deps
	stream domain.LiveStream

	mu          sync.Mutex
	session     ports.VideoSession
	uid         string
	viewerCount int
	following   bool
	joined      bool
	closed      bool
}

// AuctionView is the bidding panel.
type AuctionView struct {
	ItemName      string               `json:"item_name"`
	StartingPrice float64              `json:"starting_price"`
	CurrentBid    float64              `json:"current_bid"`
	NextBid       float64              `json:"next_bid"`
	BuyNowPrice   float64              `json:"buy_now_price"`
	BidCount      int                  `json:"bid_count"`
	Status        domain.AuctionStatus `json:"status"`
	TimeLeft      string               `json:"time_left"`
}

// ChatLine is an event with its fixed presentation.
type ChatLine struct {
	domain.ChatEvent
	Treatment domain.Treatment `json:"treatment"`
	Clock     string           `json:"clock"`
}

type LiveView struct {
	Stream       domain.LiveStream    `json:"stream"`
	ViewerCount  int                  `json:"viewer_count"`
	Following    bool                 `json:"following"`
	Joined       bool                 `json:"joined"`
	SessionState domain.SessionState  `json:"session_state"`
	Participants []domain.Participant `json:"participants"`
	Duration     string               `json:"duration"`
	Auction      *AuctionView         `json:"auction,omitempty"`
	GiftAmounts  []float64            `json:"gift_amounts"`
}

func NewLiveStreamController(app AppContext, deps *Deps, stream domain.LiveStream) *LiveStreamController {
	return &LiveStreamController{
		app:         app,
		deps:        deps,
		stream:      stream,
		viewerCount: stream.ViewerCount,
	}
}

func (l *LiveStreamController) Channel() string {
	return l.stream.Channel
}

// Join enters the channel as audience and posts the join event. A failed
// join is logged and leaves the page not joined.
func (l *LiveStreamController) Join(ctx context.Context) error {
	l.mu.Lock()
	if l.joined || l.closed {
		l.mu.Unlock()
		return domain.ErrSessionBusy
	}
	if l.session == nil {
		l.session = l.deps.Sessions.NewSession()
		l.session.OnUserJoined(l.onUserJoined)
		l.session.OnUserLeft(l.onUserLeft)
	}
	session := l.session
	l.uid = utils.ViewerUID(l.deps.now())
	uid := l.uid
	l.mu.Unlock()

	if err := session.JoinChannel(ctx, l.stream.Channel, uid, domain.RoleAudience); err != nil {
		l.deps.Logger.Warnw("failed to join live stream",
			"channel", l.stream.Channel,
			"uid", uid,
			"error", err,
		)
		return err
	}

	l.mu.Lock()
	l.joined = true
	l.mu.Unlock()

	if l.app.User != nil {
		if _, err := l.deps.Feed.SendJoin(ctx, l.stream.Channel, l.app.Actor()); err != nil {
			l.deps.Logger.Warnw("failed to post join event", "channel", l.stream.Channel, "error", err)
		}
	}
	return nil
}

// Leave exits the channel. Leaving when not joined is a no-op.
func (l *LiveStreamController) Leave(ctx context.Context) error {
	l.mu.Lock()
	session := l.session
	wasJoined := l.joined
	l.joined = false
	l.mu.Unlock()

	if session == nil || !wasJoined {
		return nil
	}
	return session.LeaveChannel(ctx)
}

func (l *LiveStreamController) onUserJoined(p domain.Participant) {
	l.mu.Lock()
	l.viewerCount++
	l.mu.Unlock()
	l.adjustViewers(1)
}

func (l *LiveStreamController) onUserLeft(uid string) {
	l.mu.Lock()
	if l.viewerCount > 0 {
		l.viewerCount--
	}
	l.mu.Unlock()
	l.adjustViewers(-1)
}

func (l *LiveStreamController) adjustViewers(delta int) {
	ctx, cancel := context.WithTimeout(context.Background(), viewerAdjustTimeout)
	defer cancel()

	var err error
	if delta > 0 {
		_, err = l.deps.Streams.ViewerJoined(ctx, l.stream.ID)
	} else {
		_, err = l.deps.Streams.ViewerLeft(ctx, l.stream.ID)
	}
	if err != nil {
		l.deps.Logger.Debugw("failed to adjust listed viewers",
			"stream_id", l.stream.ID,
			"delta", delta,
			"error", err,
		)
	}
}

func (l *LiveStreamController) ToggleFollow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.following = !l.following
	return l.following
}

func (l *LiveStreamController) Bid(ctx context.Context) (*AuctionView, error) {
	if l.app.User == nil {
		return nil, domain.ErrUnauthenticated
	}
	a, err := l.deps.Auctions.Bid(ctx, l.stream.Channel, l.app.Actor())
	if err != nil {
		return nil, err
	}
	return l.auctionView(a), nil
}

func (l *LiveStreamController) BuyNow(ctx context.Context) (*AuctionView, error) {
	if l.app.User == nil {
		return nil, domain.ErrUnauthenticated
	}
	a, err := l.deps.Auctions.BuyNow(ctx, l.stream.Channel, l.app.Actor())
	if err != nil {
		return nil, err
	}
	return l.auctionView(a), nil
}

func (l *LiveStreamController) SendMessage(ctx context.Context, text string) (*ChatLine, error) {
	return l.send(func(actor domain.Actor) (domain.ChatEvent, error) {
		return l.deps.Feed.SendMessage(ctx, l.stream.Channel, actor, text)
	})
}

func (l *LiveStreamController) SendLike(ctx context.Context) (*ChatLine, error) {
	return l.send(func(actor domain.Actor) (domain.ChatEvent, error) {
		return l.deps.Feed.SendLike(ctx, l.stream.Channel, actor)
	})
}

func (l *LiveStreamController) SendGift(ctx context.Context, amount float64) (*ChatLine, error) {
	return l.send(func(actor domain.Actor) (domain.ChatEvent, error) {
		return l.deps.Feed.SendGift(ctx, l.stream.Channel, actor, amount)
	})
}

func (l *LiveStreamController) send(fn func(domain.Actor) (domain.ChatEvent, error)) (*ChatLine, error) {
	if l.app.User == nil {
		return nil, domain.ErrUnauthenticated
	}
	event, err := fn(l.app.Actor())
	if err != nil {
		return nil, err
	}
	line := chatLine(event)
	return &line, nil
}

// Chat returns the channel feed in display order.
func (l *LiveStreamController) Chat(ctx context.Context) ([]ChatLine, error) {
	events, err := l.deps.Feed.Events(ctx, l.stream.Channel)
	if err != nil {
		return nil, err
	}
	lines := make([]ChatLine, 0, len(events))
	for _, e := range events {
		lines = append(lines, chatLine(e))
	}
	return lines, nil
}

func (l *LiveStreamController) View(ctx context.Context) (*LiveView, error) {
	l.mu.Lock()
	view := &LiveView{
		Stream:       l.stream,
		ViewerCount:  l.viewerCount,
		Following:    l.following,
		Joined:       l.joined,
		SessionState: domain.SessionIdle,
		Participants: []domain.Participant{},
		Duration:     utils.FormatStreamDuration(l.deps.now().Sub(l.stream.StartedAt)),
		GiftAmounts:  l.deps.Feed.GiftAmounts(),
	}
	session := l.session
	l.mu.Unlock()

	if session != nil {
		view.SessionState = session.State()
		view.Participants = session.Participants()
	}

	a, err := l.deps.Auctions.Get(ctx, l.stream.Channel)
	switch {
	case err == nil:
		view.Auction = l.auctionView(a)
	case !errors.Is(err, domain.ErrAuctionNotFound):
		return nil, err
	}
	return view, nil
}

func (l *LiveStreamController) auctionView(a *domain.Auction) *AuctionView {
	return &AuctionView{
		ItemName:      a.ItemName,
		StartingPrice: a.StartingPrice,
		CurrentBid:    a.CurrentBid,
		NextBid:       a.NextBid(),
		BuyNowPrice:   a.BuyNowPrice(),
		BidCount:      a.BidCount,
		Status:        a.Status,
		TimeLeft:      utils.FormatTimeLeft(a.TimeLeft(l.deps.now())),
	}
}

// Close leaves the channel in the background; it never blocks the caller.
func (l *LiveStreamController) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	go func() {
		if err := l.Leave(context.Background()); err != nil {
			l.deps.Logger.Warnw("failed to leave live stream", "channel", l.stream.Channel, "error", err)
		}
	}()
}

func chatLine(e domain.ChatEvent) ChatLine {
	return ChatLine{
		ChatEvent: e,
		Treatment: e.Treatment(),
		Clock:     utils.FormatClock(e.Timestamp),
	}
}
