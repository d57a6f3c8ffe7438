package memory

import (
	"context"

	"locallive/internal/core/domain"
	"locallive/internal/core/ports"
)

// MemoryCatalogRepository serves a fixed, read-only catalog.
type MemoryCatalogRepository struct {
	items   []domain.FoodItem
	sellers map[domain.SellerID]domain.Seller
}

func NewMemoryCatalogRepository(items []domain.FoodItem, sellers []domain.Seller) ports.CatalogRepository {
	r := &MemoryCatalogRepository{
		items:   append([]domain.FoodItem(nil), items...),
		sellers: make(map[domain.SellerID]domain.Seller, len(sellers)),
	}
	for _, s := range sellers {
		r.sellers[s.ID] = s
	}
	return r
}

func (r *MemoryCatalogRepository) ListFoodItems(ctx context.Context) ([]domain.FoodItem, error) {
	return append([]domain.FoodItem(nil), r.items...), nil
}

func (r *MemoryCatalogRepository) GetFoodItem(ctx context.Context, id domain.FoodItemID) (*domain.FoodItem, error) {
	for i := range r.items {
		if r.items[i].ID == id {
			item := r.items[i]
			return &item, nil
		}
	}
	return nil, domain.ErrFoodItemNotFound
}

func (r *MemoryCatalogRepository) GetSeller(ctx context.Context, id domain.SellerID) (*domain.Seller, error) {
	s, ok := r.sellers[id]
	if !ok {
		return nil, domain.ErrSellerNotFound
	}
	return &s, nil
}
