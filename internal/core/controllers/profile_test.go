package controllers

import (
	"context"
	"testing"

	"locallive/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileController_Buyer(t *testing.T) {
	env := newTestEnv(t)
	profile := NewProfileController(signedIn(), env.deps)

	view, err := profile.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Jamie Rivera", view.Name)
	assert.Equal(t, "J", view.Initial)
	assert.Equal(t, "jamie@example.com", view.Email)
	assert.False(t, view.HasLocation)
	assert.Nil(t, view.Seller)
}

func TestProfileController_Seller(t *testing.T) {
	env := newTestEnv(t)
	app := AppContext{
		User:     &domain.User{ID: "baker1"},
		Location: &domain.Location{Lat: 37.77, Lng: -122.42, AcquiredAt: testNow},
	}
	profile := NewProfileController(app, env.deps)

	view, err := profile.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "User", view.Name)
	assert.Equal(t, "U", view.Initial)
	assert.True(t, view.HasLocation)
	require.NotNil(t, view.Seller)
	assert.Equal(t, "Sarah's Sweet Kitchen", view.Seller.Seller.Name)
	require.NotNil(t, view.Seller.LiveStream)
	assert.Equal(t, domain.StreamID("1"), view.Seller.LiveStream.ID)
}

func TestProfileController_SignedOut(t *testing.T) {
	env := newTestEnv(t)
	profile := NewProfileController(AppContext{}, env.deps)

	_, err := profile.View(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	seller, err := profile.SellerView(context.Background(), "baker2")
	require.NoError(t, err)
	assert.Equal(t, "Mike's Artisan Breads", seller.Seller.Name)

	_, err = profile.SellerView(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrSellerNotFound)
}
