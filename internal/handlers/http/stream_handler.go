package http

import (
	"net/http"
	"strconv"

	"locallive/internal/core/catalog"
	"locallive/internal/core/domain"
	"locallive/internal/core/services"
	"locallive/pkg/errors"

	"github.com/gin-gonic/gin"
)

// StreamHandler serves the public catalog: listings that need no session.
type StreamHandler struct {
	catalog       *services.CatalogService
	radiusOptions []float64
}

func NewStreamHandler(catalogService *services.CatalogService, radiusOptions []float64) *StreamHandler {
	if len(radiusOptions) == 0 {
		radiusOptions = catalog.RadiusOptions
	}
	return &StreamHandler{
		catalog:       catalogService,
		radiusOptions: radiusOptions,
	}
}

func (h *StreamHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/categories", h.ListCategories)
		api.GET("/streams", h.ListStreams)
		api.GET("/streams/:id", h.GetStream)
		api.GET("/food", h.ListFoodItems)
		api.GET("/sellers/:id", h.GetSeller)
	}
}

func (h *StreamHandler) ListCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"categories":     domain.Categories,
		"radius_options": h.radiusOptions,
	})
}

func (h *StreamHandler) ListStreams(c *gin.Context) {
	q, err := parseQuery(c, h.radiusOptions, catalog.Unbounded)
	if err != nil {
		c.Error(err)
		return
	}

	streams, err := h.catalog.LiveStreams(c.Request.Context(), q)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"streams": streams,
		"total":   len(streams),
	})
}

func (h *StreamHandler) GetStream(c *gin.Context) {
	stream, err := h.catalog.Stream(c.Request.Context(), domain.StreamID(c.Param("id")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stream": stream})
}

func (h *StreamHandler) ListFoodItems(c *gin.Context) {
	q, err := parseQuery(c, h.radiusOptions, catalog.Unbounded)
	if err != nil {
		c.Error(err)
		return
	}

	items, err := h.catalog.FoodItems(c.Request.Context(), q)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"food_items": items,
		"total":      len(items),
	})
}

func (h *StreamHandler) GetSeller(c *gin.Context) {
	profile, err := h.catalog.SellerProfile(c.Request.Context(), domain.SellerID(c.Param("id")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// parseQuery reads q, category and radius. A missing radius means
// defaultRadius; a present one must be an offered option.
func parseQuery(c *gin.Context, options []float64, defaultRadius float64) (catalog.Query, error) {
	q := catalog.Query{
		Text:     c.Query("q"),
		Category: domain.CategoryAll,
		RadiusKm: defaultRadius,
	}

	if name := c.Query("category"); name != "" {
		category, err := domain.ParseCategory(name)
		if err != nil {
			return q, err
		}
		q.Category = category
	}

	if raw := c.Query("radius"); raw != "" {
		km, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return q, errors.NewInvalidInputError("radius must be a number")
		}
		if !catalog.ValidRadius(km, options) {
			return q, domain.ErrInvalidRadius
		}
		q.RadiusKm = km
	}
	return q, nil
}
