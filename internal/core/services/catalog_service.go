package services

import (
	"context"
	"fmt"
	"time"

	"locallive/internal/core/catalog"
	"locallive/internal/core/domain"
	"locallive/internal/core/ports"
	"locallive/pkg/cache"
	"locallive/pkg/tracing"
)

const foodItemsCacheKey = "catalog:items"

// SellerProfile aggregates a seller's listings and ratings.
type SellerProfile struct {
	Seller        domain.Seller      `json:"seller"`
	Listings      []domain.FoodItem  `json:"listings"`
	LiveStream    *domain.LiveStream `json:"live_stream,omitempty"`
	AverageRating float64            `json:"average_rating"`
	TotalReviews  int                `json:"total_reviews"`
}

type CatalogService struct {
	catalogRepo ports.CatalogRepository
	streamRepo  ports.StreamRepository
	items       *cache.Cache[[]domain.FoodItem]
	metrics     ports.Metrics
}

func NewCatalogService(
	catalogRepo ports.CatalogRepository,
	streamRepo ports.StreamRepository,
	cacheTTL time.Duration,
	metrics ports.Metrics,
) *CatalogService {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &CatalogService{
		catalogRepo: catalogRepo,
		streamRepo:  streamRepo,
		items:       cache.New[[]domain.FoodItem](cacheTTL),
		metrics:     metrics,
	}
}

// FoodItems returns the food items matching q in catalog order.
func (s *CatalogService) FoodItems(ctx context.Context, q catalog.Query) ([]domain.FoodItem, error) {
	ctx, span := tracing.TraceCatalogQuery(ctx, "food_items")
	defer span.End()
	start := time.Now()

	items, err := s.items.GetOrSet(ctx, foodItemsCacheKey, s.catalogRepo.ListFoodItems)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("failed to list food items: %w", err)
	}

	out := catalog.Filter(items, q)
	tracing.AddSpanAttributes(ctx, tracing.ResultsKey.Int(len(out)))
	s.metrics.CatalogQueried("food_items", len(out), time.Since(start))
	return out, nil
}

// LiveStreams returns live streams matching q's category and radius.
// Streams are not searched by text.
func (s *CatalogService) LiveStreams(ctx context.Context, q catalog.Query) ([]domain.LiveStream, error) {
	ctx, span := tracing.TraceCatalogQuery(ctx, "live_streams")
	defer span.End()
	start := time.Now()

	live, err := s.streamRepo.ListLive(ctx)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("failed to list live streams: %w", err)
	}

	streams := make([]domain.LiveStream, 0, len(live))
	for _, st := range live {
		streams = append(streams, *st)
	}
	q.Text = ""
	out := catalog.Filter(streams, q)
	s.metrics.CatalogQueried("live_streams", len(out), time.Since(start))
	return out, nil
}

func (s *CatalogService) Stream(ctx context.Context, id domain.StreamID) (*domain.LiveStream, error) {
	return s.streamRepo.GetByID(ctx, id)
}

func (s *CatalogService) FoodItem(ctx context.Context, id domain.FoodItemID) (*domain.FoodItem, error) {
	return s.catalogRepo.GetFoodItem(ctx, id)
}

func (s *CatalogService) SellerProfile(ctx context.Context, id domain.SellerID) (*SellerProfile, error) {
	seller, err := s.catalogRepo.GetSeller(ctx, id)
	if err != nil {
		return nil, err
	}

	items, err := s.items.GetOrSet(ctx, foodItemsCacheKey, s.catalogRepo.ListFoodItems)
	if err != nil {
		return nil, fmt.Errorf("failed to list food items: %w", err)
	}

	profile := &SellerProfile{Seller: *seller, Listings: []domain.FoodItem{}}
	var weighted float64
	for _, it := range items {
		if it.SellerID != id {
			continue
		}
		profile.Listings = append(profile.Listings, it)
		profile.TotalReviews += it.ReviewCount
		weighted += it.Rating * float64(it.ReviewCount)
	}
	if profile.TotalReviews > 0 {
		profile.AverageRating = roundTo(weighted/float64(profile.TotalReviews), 1)
	}

	live, err := s.streamRepo.ListLive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list live streams: %w", err)
	}
	for _, st := range live {
		if st.SellerID == id {
			profile.LiveStream = st
			break
		}
	}
	return profile, nil
}

// Close stops the item cache sweeper.
func (s *CatalogService) Close() {
	s.items.Stop()
}
