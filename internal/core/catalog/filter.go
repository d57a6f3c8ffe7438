// Package catalog holds the pure listing filter shared by the home feed and the API.
package catalog

import (
	"fmt"
	"math"
	"strings"

	"locallive/internal/core/domain"
)

// Listing is anything the home feed can show: food items and live streams.
type Listing interface {
	ListingTitle() string
	ListingSeller() string
	ListingCategory() domain.Category
	ListingDistance() float64
}

type Query struct {
	Text     string
	Category domain.Category
	RadiusKm float64
}

// Unbounded matches every listing regardless of distance.
var Unbounded = math.Inf(1)

// RadiusOptions are the selectable search radii in km.
var RadiusOptions = []float64{1, 2, 5, 10, 20, 50}

const DefaultRadiusKm = 5.0

// Matches applies the three filter clauses to a single listing.
func (q Query) Matches(l Listing) bool {
	if q.Text != "" {
		needle := strings.ToLower(q.Text)
		if !strings.Contains(strings.ToLower(l.ListingTitle()), needle) &&
			!strings.Contains(strings.ToLower(l.ListingSeller()), needle) {
			return false
		}
	}
	if q.Category != "" && q.Category != domain.CategoryAll && l.ListingCategory() != q.Category {
		return false
	}
	return l.ListingDistance() <= q.RadiusKm
}

// Filter returns the listings matching q, preserving input order.
func Filter[T Listing](items []T, q Query) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if q.Matches(item) {
			out = append(out, item)
		}
	}
	return out
}

// RadiusLabel renders a radius for the location badge.
func RadiusLabel(km float64) string {
	if math.IsInf(km, 1) {
		return "Any distance"
	}
	return fmt.Sprintf("Within %skm", trimFloat(km))
}

// ValidRadius reports whether km is one of the offered options.
func ValidRadius(km float64, options []float64) bool {
	for _, o := range options {
		if o == km {
			return true
		}
	}
	return false
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.1f", v)
	return strings.TrimSuffix(s, ".0")
}
