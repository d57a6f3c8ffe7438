package domain

import "time"

type AuctionStatus string

const (
	AuctionOpen AuctionStatus = "open"
	AuctionSold AuctionStatus = "sold"
)

type Auction struct {
	Channel       string        `json:"channel"`
	StreamID      StreamID      `json:"stream_id"`
	ItemName      string        `json:"item_name"`
	StartingPrice float64       `json:"starting_price"`
	CurrentBid    float64       `json:"current_bid"`
	Increment     float64       `json:"increment"`
	BuyNowPremium float64       `json:"buy_now_premium"`
	BidCount      int           `json:"bid_count"`
	LastBidder    UserID        `json:"last_bidder,omitempty"`
	Status        AuctionStatus `json:"status"`
	EndsAt        time.Time     `json:"ends_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (a *Auction) NextBid() float64 {
	return a.CurrentBid + a.Increment
}

func (a *Auction) BuyNowPrice() float64 {
	return a.CurrentBid + a.BuyNowPremium
}

// TimeLeft is zero once the auction has ended.
func (a *Auction) TimeLeft(now time.Time) time.Duration {
	if a.Status != AuctionOpen || !now.Before(a.EndsAt) {
		return 0
	}
	return a.EndsAt.Sub(now)
}

// PlaceBid raises the current bid by one increment and returns the new amount.
func (a *Auction) PlaceBid(bidder UserID, now time.Time) (float64, error) {
	if a.Status != AuctionOpen {
		return 0, ErrAuctionClosed
	}
	a.CurrentBid = a.NextBid()
	a.BidCount++
	a.LastBidder = bidder
	a.UpdatedAt = now
	return a.CurrentBid, nil
}

// BuyNow closes the auction at the buy-now price.
func (a *Auction) BuyNow(buyer UserID, now time.Time) (float64, error) {
	if a.Status != AuctionOpen {
		return 0, ErrAuctionClosed
	}
	price := a.BuyNowPrice()
	a.CurrentBid = price
	a.LastBidder = buyer
	a.Status = AuctionSold
	a.UpdatedAt = now
	return price, nil
}
