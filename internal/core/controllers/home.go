package controllers

import (
	"context"
	"strings"
	"sync"

	"locallive/internal/core/catalog"
	"locallive/internal/core/domain"
)

// HomeController holds the browse filters of the home page.
type HomeController struct {
	app  AppContext
	deps *Deps

	mu          sync.Mutex
	search      string
	category    domain.Category
	radiusKm    float64
	showFilters bool
}

type HomeView struct {
	Search        string              `json:"search"`
	Category      domain.Category     `json:"category"`
	RadiusKm      float64             `json:"radius_km"`
	RadiusLabel   string              `json:"radius_label"`
	ShowFilters   bool                `json:"show_filters"`
	HasLocation   bool                `json:"has_location"`
	Categories    []domain.Category   `json:"categories"`
	RadiusOptions []float64           `json:"radius_options"`
	LiveStreams   []domain.LiveStream `json:"live_streams"`
	FoodItems     []domain.FoodItem   `json:"food_items"`
}

func NewHomeController(app AppContext, deps *Deps) *HomeController {
	return &HomeController{
		app:      app,
		deps:     deps,
		category: domain.CategoryAll,
		radiusKm: deps.defaultRadius(),
	}
}

// SetContext swaps in a newer app context, such as one with a fresh
// location, keeping the filters.
func (h *HomeController) SetContext(app AppContext) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.app = app
}

func (h *HomeController) SetSearch(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.search = strings.TrimSpace(text)
}

func (h *HomeController) SetCategory(name string) error {
	c, err := domain.ParseCategory(name)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.category = c
	return nil
}

// SetRadius accepts only the offered radius options.
func (h *HomeController) SetRadius(km float64) error {
	if !catalog.ValidRadius(km, h.deps.radiusOptions()) {
		return domain.ErrInvalidRadius
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.radiusKm = km
	return nil
}

func (h *HomeController) ToggleFilters() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.showFilters = !h.showFilters
	return h.showFilters
}

func (h *HomeController) query() catalog.Query {
	h.mu.Lock()
	defer h.mu.Unlock()
	return catalog.Query{Text: h.search, Category: h.category, RadiusKm: h.radiusKm}
}

// View applies the current filters to the catalog.
func (h *HomeController) View(ctx context.Context) (*HomeView, error) {
	q := h.query()

	items, err := h.deps.Catalog.FoodItems(ctx, q)
	if err != nil {
		return nil, err
	}
	streams, err := h.deps.Catalog.LiveStreams(ctx, q)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	showFilters := h.showFilters
	hasLocation := h.app.HasLocation()
	h.mu.Unlock()

	return &HomeView{
		Search:        q.Text,
		Category:      q.Category,
		RadiusKm:      q.RadiusKm,
		RadiusLabel:   catalog.RadiusLabel(q.RadiusKm),
		ShowFilters:   showFilters,
		HasLocation:   hasLocation,
		Categories:    domain.Categories,
		RadiusOptions: h.deps.radiusOptions(),
		LiveStreams:   streams,
		FoodItems:     items,
	}, nil
}

func (h *HomeController) Close() {}
