package domain

import "errors"

var (
	ErrStreamNotFound    = errors.New("stream not found")
	ErrFoodItemNotFound  = errors.New("food item not found")
	ErrSellerNotFound    = errors.New("seller not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserExists        = errors.New("user already exists")
	ErrInvalidCredential = errors.New("invalid credentials")
	ErrUnauthenticated   = errors.New("not signed in")

	ErrEmptyMessage     = errors.New("message must not be empty")
	ErrEmptyTitle       = errors.New("stream title must not be empty")
	ErrInvalidEventKind = errors.New("invalid chat event kind")
	ErrInvalidGift      = errors.New("gift amount is not an offered denomination")
	ErrInvalidAmount    = errors.New("amount must be positive")

	ErrUnknownCategory = errors.New("unknown category")
	ErrInvalidRadius   = errors.New("radius must be positive")
	ErrUnknownPage     = errors.New("unknown page")

	ErrSessionBusy    = errors.New("video session already joining or joined")
	ErrNotJoined      = errors.New("video session not joined")
	ErrAlreadyLive    = errors.New("kitchen is already streaming")
	ErrNotLive        = errors.New("kitchen is not streaming")
	ErrDeviceDenied   = errors.New("media device access denied")
	ErrNoLocalTracks  = errors.New("no local tracks")
	ErrPeerNotFound   = errors.New("peer not found")
	ErrChannelNotLive = errors.New("channel has no publisher")

	ErrAuctionNotFound = errors.New("auction not found")
	ErrAuctionClosed   = errors.New("auction is closed")
	ErrBidTooLow       = errors.New("bid below next allowed amount")

	ErrLocationUnavailable = errors.New("location unavailable")
)
