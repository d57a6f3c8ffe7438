package domain

import (
	"strings"
	"time"
)

type EventKind string

const (
	EventMessage EventKind = "message"
	EventLike    EventKind = "like"
	EventGift    EventKind = "gift"
	EventJoin    EventKind = "join"
	EventBid     EventKind = "bid"
)

const (
	LikeText = "liked the stream"
	GiftText = "sent a gift"
	JoinText = "joined the stream"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventMessage, EventLike, EventGift, EventJoin, EventBid:
		return true
	}
	return false
}

// CarriesAmount reports whether events of this kind have an amount.
func (k EventKind) CarriesAmount() bool {
	return k == EventGift || k == EventBid
}

// Treatment is the fixed presentation of one event kind.
type Treatment struct {
	Icon      string `json:"icon"`
	Color     string `json:"color"`
	Highlight bool   `json:"highlight"`
}

var treatments = map[EventKind]Treatment{
	EventMessage: {Icon: "avatar", Color: "gray"},
	EventLike:    {Icon: "heart", Color: "red"},
	EventGift:    {Icon: "gift", Color: "yellow"},
	EventJoin:    {Icon: "door", Color: "blue"},
	EventBid:     {Icon: "avatar", Color: "green", Highlight: true},
}

func (k EventKind) Treatment() Treatment {
	if t, ok := treatments[k]; ok {
		return t
	}
	return treatments[EventMessage]
}

// Actor is the identity stamped on every event a participant produces.
type Actor struct {
	ID          UserID `json:"id"`
	Username    string `json:"username"`
	Avatar      string `json:"avatar,omitempty"`
	IsHost      bool   `json:"is_host"`
	IsModerator bool   `json:"is_moderator"`
}

type ChatEvent struct {
	ID          string    `json:"id" yaml:"id"`
	Seq         int64     `json:"seq" yaml:"-"`
	Channel     string    `json:"channel" yaml:"-"`
	UserID      UserID    `json:"user_id" yaml:"user_id"`
	Username    string    `json:"username" yaml:"username"`
	Avatar      string    `json:"avatar,omitempty" yaml:"avatar"`
	Message     string    `json:"message" yaml:"message"`
	Timestamp   time.Time `json:"timestamp" yaml:"-"`
	Kind        EventKind `json:"type" yaml:"type"`
	Amount      *float64  `json:"amount,omitempty" yaml:"amount"`
	IsHost      bool      `json:"is_host,omitempty" yaml:"is_host"`
	IsModerator bool      `json:"is_moderator,omitempty" yaml:"is_moderator"`
	// Ago seeds Timestamp relative to load time.
	Ago time.Duration `json:"-" yaml:"ago"`
}

// NewChatEvent stamps actor identity onto an event of the given kind.
func NewChatEvent(actor Actor, kind EventKind, message string, amount *float64, at time.Time) ChatEvent {
	return ChatEvent{
		UserID:      actor.ID,
		Username:    actor.Username,
		Avatar:      actor.Avatar,
		Message:     message,
		Timestamp:   at,
		Kind:        kind,
		Amount:      amount,
		IsHost:      actor.IsHost,
		IsModerator: actor.IsModerator,
	}
}

// Validate checks the per-kind shape of the event.
func (e ChatEvent) Validate() error {
	if !e.Kind.Valid() {
		return ErrInvalidEventKind
	}
	if e.Kind == EventMessage && strings.TrimSpace(e.Message) == "" {
		return ErrEmptyMessage
	}
	if e.Kind.CarriesAmount() {
		if e.Amount == nil || *e.Amount <= 0 {
			return ErrInvalidAmount
		}
	} else if e.Amount != nil {
		return ErrInvalidAmount
	}
	return nil
}

func (e ChatEvent) Treatment() Treatment {
	return e.Kind.Treatment()
}

// Amount returns a pointer suitable for ChatEvent.Amount.
func Amount(v float64) *float64 {
	return &v
}
