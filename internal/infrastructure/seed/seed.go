// Package seed loads the demo catalog shipped with the binary.
package seed

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"locallive/internal/core/domain"

	"gopkg.in/yaml.v2"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type AuctionSeed struct {
	Channel       string          `yaml:"channel"`
	StreamID      domain.StreamID `yaml:"stream_id"`
	ItemName      string          `yaml:"item_name"`
	StartingPrice float64         `yaml:"starting_price"`
	CurrentBid    float64         `yaml:"current_bid"`
	TimeLeft      time.Duration   `yaml:"time_left"`
}

type Catalog struct {
	Sellers   []domain.Seller                `yaml:"sellers"`
	Streams   []domain.LiveStream            `yaml:"streams"`
	FoodItems []domain.FoodItem              `yaml:"food_items"`
	Auctions  []AuctionSeed                  `yaml:"auctions"`
	Chat      map[string][]domain.ChatEvent `yaml:"chat"`
}

// Default returns the embedded catalog with relative times resolved against now.
func Default(now time.Time) (*Catalog, error) {
	return Parse(defaultCatalog, now)
}

// Load reads a catalog file, falling back to the embedded one when path is empty.
func Load(path string, now time.Time) (*Catalog, error) {
	if path == "" {
		return Default(now)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	return Parse(data, now)
}

func Parse(data []byte, now time.Time) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal seed yaml: %w", err)
	}

	for i := range c.Streams {
		c.Streams[i].StartedAt = now.Add(-c.Streams[i].StartedAgo)
	}
	for channel, events := range c.Chat {
		for i := range events {
			events[i].Channel = channel
			events[i].Timestamp = now.Add(-events[i].Ago)
			if err := events[i].Validate(); err != nil {
				return nil, fmt.Errorf("seed chat event %s: %w", events[i].ID, err)
			}
		}
	}
	for _, item := range c.FoodItems {
		if item.Price <= 0 {
			return nil, fmt.Errorf("seed food item %s: price must be positive", item.ID)
		}
	}
	return &c, nil
}

// Auction builds the open auction for a seeded entry.
func (a AuctionSeed) Auction(increment, buyNowPremium float64, now time.Time) *domain.Auction {
	return &domain.Auction{
		Channel:       a.Channel,
		StreamID:      a.StreamID,
		ItemName:      a.ItemName,
		StartingPrice: a.StartingPrice,
		CurrentBid:    a.CurrentBid,
		Increment:     increment,
		BuyNowPremium: buyNowPremium,
		Status:        domain.AuctionOpen,
		EndsAt:        now.Add(a.TimeLeft),
		UpdatedAt:     now,
	}
}
