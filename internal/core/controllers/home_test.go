package controllers

import (
	"context"
	"testing"

	"locallive/internal/core/catalog"
	"locallive/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHomeController_Defaults(t *testing.T) {
	env := newTestEnv(t)
	home := NewHomeController(signedIn(), env.deps)

	view, err := home.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryAll, view.Category)
	assert.Equal(t, catalog.DefaultRadiusKm, view.RadiusKm)
	assert.Equal(t, "Within 5km", view.RadiusLabel)
	assert.False(t, view.HasLocation)
	assert.False(t, view.ShowFilters)
	assert.Equal(t, catalog.RadiusOptions, view.RadiusOptions)
	assert.Len(t, view.FoodItems, len(env.catalog.FoodItems))
	assert.Len(t, view.LiveStreams, 2)
}

func TestHomeController_Filters(t *testing.T) {
	env := newTestEnv(t)
	home := NewHomeController(signedIn(), env.deps)

	home.SetSearch("  sourdough ")
	require.NoError(t, home.SetCategory("bread"))
	require.NoError(t, home.SetRadius(2))

	view, err := home.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sourdough", view.Search)
	require.Len(t, view.FoodItems, 1)
	assert.Equal(t, "Fresh Sourdough Loaf", view.FoodItems[0].Title)
	require.Len(t, view.LiveStreams, 1)
	assert.Equal(t, domain.StreamID("2"), view.LiveStreams[0].ID)

	require.NoError(t, home.SetRadius(1))
	view, err = home.View(context.Background())
	require.NoError(t, err)
	assert.Empty(t, view.FoodItems)
	assert.Empty(t, view.LiveStreams)
}

func TestHomeController_RejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	home := NewHomeController(signedIn(), env.deps)

	assert.ErrorIs(t, home.SetCategory("pizza"), domain.ErrUnknownCategory)
	assert.ErrorIs(t, home.SetRadius(3), domain.ErrInvalidRadius)

	view, err := home.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryAll, view.Category)
	assert.Equal(t, catalog.DefaultRadiusKm, view.RadiusKm)
}

func TestHomeController_ToggleFiltersAndLocation(t *testing.T) {
	env := newTestEnv(t)
	app := signedIn()
	app.Location = &domain.Location{Lat: 37.77, Lng: -122.42, AcquiredAt: testNow}
	home := NewHomeController(app, env.deps)

	assert.True(t, home.ToggleFilters())
	view, err := home.View(context.Background())
	require.NoError(t, err)
	assert.True(t, view.ShowFilters)
	assert.True(t, view.HasLocation)
	assert.False(t, home.ToggleFilters())
}
