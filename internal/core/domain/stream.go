package domain

import (
	"time"
)

type StreamID string
type SellerID string

type LiveStream struct {
	ID          StreamID  `json:"id" yaml:"id"`
	SellerID    SellerID  `json:"seller_id" yaml:"seller_id"`
	SellerName  string    `json:"seller_name" yaml:"seller_name"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description"`
	Thumbnail   string    `json:"thumbnail" yaml:"thumbnail"`
	Channel     string    `json:"channel" yaml:"channel"`
	ViewerCount int       `json:"viewer_count" yaml:"viewer_count"`
	DistanceKm  float64   `json:"distance_km" yaml:"distance_km"`
	IsLive      bool      `json:"is_live" yaml:"is_live"`
	Category    Category  `json:"category" yaml:"category"`
	StartedAt   time.Time `json:"started_at" yaml:"-"`
	// StartedAgo seeds StartedAt relative to load time.
	StartedAgo time.Duration `json:"-" yaml:"started_ago"`
}

// AdjustViewers applies delta to the viewer count, never going below zero.
func (s *LiveStream) AdjustViewers(delta int) int {
	s.ViewerCount += delta
	if s.ViewerCount < 0 {
		s.ViewerCount = 0
	}
	return s.ViewerCount
}

func (s LiveStream) ListingTitle() string { return s.Title }
func (s LiveStream) ListingSeller() string { return s.SellerName }
func (s LiveStream) ListingCategory() Category { return s.Category }
func (s LiveStream) ListingDistance() float64 { return s.DistanceKm }

type Seller struct {
	ID         SellerID `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	Avatar     string   `json:"avatar,omitempty" yaml:"avatar"`
	Location   string   `json:"location,omitempty" yaml:"location"`
	IsVerified bool     `json:"is_verified" yaml:"is_verified"`
}
