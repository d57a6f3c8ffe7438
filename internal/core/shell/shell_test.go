package shell

import (
	"context"
	"errors"
	"testing"
	"time"

	"locallive/internal/core/controllers"
	"locallive/internal/core/domain"
	"locallive/internal/core/ports"
	"locallive/internal/core/services"
	"locallive/internal/infrastructure/geo"
	"locallive/internal/infrastructure/repositories/memory"
	"locallive/internal/infrastructure/seed"
	"locallive/internal/infrastructure/video"
	"locallive/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

type mockSessions struct{}

func (mockSessions) NewSession() ports.VideoSession {
	return video.NewMockSession(video.MockConfig{JoinDelay: time.Millisecond, HostDelay: time.Millisecond}, video.DeniedDevices{}, nil, logger.Nop())
}

func newTestDeps(t *testing.T) (*controllers.Deps, ports.UserRepository) {
	t.Helper()
	c, err := seed.Default(testNow)
	require.NoError(t, err)

	log := logger.Nop()
	streamRepo := memory.NewMemoryStreamRepository(c.Streams...)
	feed := services.NewFeedService(memory.NewMemoryFeedRepository(0), []float64{5, 10}, log)
	auctions := services.NewAuctionService(memory.NewMemoryAuctionRepository(), feed, nil, services.AuctionSettings{Increment: 2, BuyNowPremium: 5, StartingPrice: 12, Duration: time.Hour}, nil, log)
	catalogService := services.NewCatalogService(memory.NewMemoryCatalogRepository(c.FoodItems, c.Sellers), streamRepo, time.Minute, nil)
	t.Cleanup(catalogService.Close)

	return &controllers.Deps{
		Catalog:  catalogService,
		Streams:  services.NewStreamService(streamRepo, auctions, feed, nil, log),
		Feed:     feed,
		Auctions: auctions,
		Sessions: mockSessions{},
		Logger:   log,
		Now:      func() time.Time { return testNow },
	}, memory.NewMemoryUserRepository()
}

var jamie = &domain.User{ID: "u42", DisplayName: "Jamie", Email: "jamie@example.com"}

func newTestShell(t *testing.T) (*Shell, *services.TokenAuthProvider) {
	t.Helper()
	deps, _ := newTestDeps(t)
	provider := services.NewTokenAuthProvider(nil, "")
	sh := New(provider, deps, Config{LocationTimeout: 50 * time.Millisecond, LocationMaxAge: time.Minute}, logger.Nop())
	sh.now = func() time.Time { return testNow }
	sh.Start()
	t.Cleanup(sh.Close)
	return sh, provider
}

type countingGeo struct {
	calls int
	loc   domain.Location
	err   error
}

func (g *countingGeo) CurrentPosition(ctx context.Context, highAccuracy bool) (domain.Location, error) {
	g.calls++
	return g.loc, g.err
}

func TestParsePage(t *testing.T) {
	assert.Equal(t, PageLive, ParsePage("live"))
	assert.Equal(t, PageKitchen, ParsePage("kitchen"))
	assert.Equal(t, PageHome, ParsePage("settings"))
	assert.Equal(t, PageHome, ParsePage(""))
}

func TestShell_Screens(t *testing.T) {
	sh, provider := newTestShell(t)

	assert.Equal(t, ScreenLoading, sh.View().Screen)

	provider.SetUser(nil)
	view := sh.View()
	assert.Equal(t, ScreenSignIn, view.Screen)
	assert.False(t, view.LocationPrompt.Open)

	provider.SetUser(jamie)
	view = sh.View()
	assert.Equal(t, ScreenPage, view.Screen)
	assert.Equal(t, PageHome, view.Page)
	assert.Equal(t, jamie, view.User)
	assert.True(t, view.LocationPrompt.Open)
}

func TestShell_LocationPromptOfferedOnce(t *testing.T) {
	sh, provider := newTestShell(t)
	provider.SetUser(jamie)
	require.True(t, sh.View().LocationPrompt.Open)

	sh.SkipLocation()
	assert.False(t, sh.View().LocationPrompt.Open)

	provider.SetUser(jamie)
	assert.False(t, sh.View().LocationPrompt.Open)
	assert.Nil(t, sh.View().Location)
}

func TestShell_RequestLocation(t *testing.T) {
	sh, provider := newTestShell(t)
	provider.SetUser(jamie)
	ctx := context.Background()

	home, err := sh.Home()
	require.NoError(t, err)
	home.SetSearch("cookies")
	require.NoError(t, home.SetCategory("cookies"))
	require.NoError(t, home.SetRadius(10))
	profile, err := sh.Profile()
	require.NoError(t, err)
	before, err := home.View(ctx)
	require.NoError(t, err)
	assert.False(t, before.HasLocation)

	g := &countingGeo{loc: domain.Location{Lat: 37.77, Lng: -122.42}}
	loc, err := sh.RequestLocation(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, 37.77, loc.Lat)
	assert.Equal(t, testNow, loc.AcquiredAt)

	view := sh.View()
	assert.False(t, view.LocationPrompt.Open)
	require.NotNil(t, view.Location)

	same, err := sh.Home()
	require.NoError(t, err)
	assert.Same(t, home, same)
	homeView, err := same.View(ctx)
	require.NoError(t, err)
	assert.True(t, homeView.HasLocation)
	assert.Equal(t, "cookies", homeView.Search)
	assert.Equal(t, domain.CategoryCookies, homeView.Category)
	assert.Equal(t, 10.0, homeView.RadiusKm)
	assert.Equal(t, before.RadiusKm, homeView.RadiusKm)

	sameProfile, err := sh.Profile()
	require.NoError(t, err)
	assert.Same(t, profile, sameProfile)
	profileView, err := profile.View(ctx)
	require.NoError(t, err)
	assert.True(t, profileView.HasLocation)

	_, err = sh.RequestLocation(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, 1, g.calls)

	sh.now = func() time.Time { return testNow.Add(2 * time.Minute) }
	_, err = sh.RequestLocation(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, 2, g.calls)
}

func TestShell_RequestLocationFailureKeepsPromptOpen(t *testing.T) {
	sh, provider := newTestShell(t)
	provider.SetUser(jamie)
	ctx := context.Background()

	_, err := sh.RequestLocation(ctx, geo.Denied{Reason: "user denied geolocation"})
	assert.ErrorIs(t, err, domain.ErrLocationUnavailable)

	view := sh.View()
	assert.True(t, view.LocationPrompt.Open)
	assert.Equal(t, LocationErrorMessage, view.LocationPrompt.Error)
	assert.Nil(t, view.Location)

	slow := &geo.Delayed{Source: geo.Fixed{Lat: 1, Lng: 2}, Delay: time.Second}
	_, err = sh.RequestLocation(ctx, slow)
	assert.ErrorIs(t, err, domain.ErrLocationUnavailable)
	assert.True(t, sh.View().LocationPrompt.Open)

	sh.SkipLocation()
	view = sh.View()
	assert.False(t, view.LocationPrompt.Open)
	assert.Empty(t, view.LocationPrompt.Error)
}

func TestShell_ControllersRequireUser(t *testing.T) {
	sh, provider := newTestShell(t)
	provider.SetUser(nil)
	ctx := context.Background()

	_, err := sh.Home()
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = sh.Kitchen()
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = sh.Profile()
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = sh.Live(ctx, "1")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = sh.RequestLocation(ctx, geo.Fixed{})
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	assert.ErrorIs(t, sh.Navigate(ctx, "profile", ""), domain.ErrUnauthenticated)
}

func TestShell_Navigate(t *testing.T) {
	sh, provider := newTestShell(t)
	provider.SetUser(jamie)
	ctx := context.Background()

	require.NoError(t, sh.Navigate(ctx, "profile", ""))
	assert.Equal(t, PageProfile, sh.View().Page)

	require.NoError(t, sh.Navigate(ctx, "live", "1"))
	view := sh.View()
	assert.Equal(t, PageLive, view.Page)
	assert.Equal(t, domain.StreamID("1"), view.StreamID)

	live, err := sh.Live(ctx, "1")
	require.NoError(t, err)
	again, err := sh.Live(ctx, "1")
	require.NoError(t, err)
	assert.Same(t, live, again)

	err = sh.Navigate(ctx, "live", "missing")
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)
	assert.Equal(t, PageLive, sh.View().Page)

	require.NoError(t, sh.Navigate(ctx, "nowhere", ""))
	view = sh.View()
	assert.Equal(t, PageHome, view.Page)
	assert.Empty(t, view.StreamID)
}

func TestShell_SignOutTearsDown(t *testing.T) {
	sh, provider := newTestShell(t)
	provider.SetUser(jamie)
	ctx := context.Background()

	_, err := sh.RequestLocation(ctx, geo.Fixed{Lat: 37.77, Lng: -122.42})
	require.NoError(t, err)
	kitchen, err := sh.Kitchen()
	require.NoError(t, err)
	require.NoError(t, kitchen.SetForm("Brioche", "", "bread"))
	stream, err := kitchen.StartStream(ctx)
	require.NoError(t, err)

	require.NoError(t, sh.SignOut(ctx))

	view := sh.View()
	assert.Equal(t, ScreenSignIn, view.Screen)
	assert.Nil(t, view.Location)
	assert.False(t, view.LocationPrompt.Open)

	assert.Eventually(t, func() bool {
		_, err := sh.deps.Streams.Get(ctx, stream.ID)
		return errors.Is(err, domain.ErrStreamNotFound)
	}, time.Second, 5*time.Millisecond)

	provider.SetUser(jamie)
	view = sh.View()
	assert.True(t, view.LocationPrompt.Open)
	fresh, err := sh.Kitchen()
	require.NoError(t, err)
	assert.NotSame(t, kitchen, fresh)
}

func TestShell_SwitchingUsersResets(t *testing.T) {
	sh, provider := newTestShell(t)
	provider.SetUser(jamie)
	sh.SkipLocation()
	require.NoError(t, sh.Navigate(context.Background(), "profile", ""))

	provider.SetUser(&domain.User{ID: "u7", Email: "sam@example.com"})
	view := sh.View()
	assert.Equal(t, PageHome, view.Page)
	assert.True(t, view.LocationPrompt.Open)
}
