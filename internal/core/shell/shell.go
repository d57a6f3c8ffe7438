// Package shell is the per-user application frame: it follows the auth
// collaborator, owns the location prompt and builds page controllers with
// an explicit AppContext.
package shell

import (
	"context"
	"fmt"
	"sync"
	"time"

	"locallive/internal/core/controllers"
	"locallive/internal/core/domain"
	"locallive/internal/core/ports"

	"go.uber.org/zap"
)

// LocationErrorMessage is shown in the location prompt after a failed fix.
const LocationErrorMessage = "Unable to get your location. Please try again or skip for now."

type Screen string

const (
	ScreenLoading Screen = "loading"
	ScreenSignIn  Screen = "sign_in"
	ScreenPage    Screen = "page"
)

type Page string

const (
	PageHome    Page = "home"
	PageLive    Page = "live"
	PageProfile Page = "profile"
	PageKitchen Page = "kitchen"
)

// ParsePage maps unknown page names to home.
func ParsePage(name string) Page {
	switch p := Page(name); p {
	case PageHome, PageLive, PageProfile, PageKitchen:
		return p
	}
	return PageHome
}

type Config struct {
	LocationTimeout time.Duration
	LocationMaxAge  time.Duration
	HighAccuracy    bool
}

type LocationPrompt struct {
	Open  bool   `json:"open"`
	Error string `json:"error,omitempty"`
}

type View struct {
	Screen         Screen           `json:"screen"`
	Page           Page             `json:"page,omitempty"`
	StreamID       domain.StreamID  `json:"stream_id,omitempty"`
	User           *domain.User     `json:"user,omitempty"`
	Location       *domain.Location `json:"location,omitempty"`
	LocationPrompt LocationPrompt   `json:"location_prompt"`
}

// Shell is one user's application session.
type Shell struct {
	auth   ports.AuthProvider
	deps   *controllers.Deps
	cfg    Config
	logger *zap.SugaredLogger
	now    func() time.Time

	mu            sync.Mutex
	authState     domain.AuthState
	page          Page
	streamID      domain.StreamID
	location      *domain.Location
	promptOffered bool
	promptOpen    bool
	locationErr   string
	unsubscribe   func()

	home    *controllers.HomeController
	live    *controllers.LiveStreamController
	kitchen *controllers.KitchenController
	profile *controllers.ProfileController
}

func New(auth ports.AuthProvider, deps *controllers.Deps, cfg Config, logger *zap.SugaredLogger) *Shell {
	if cfg.LocationTimeout <= 0 {
		cfg.LocationTimeout = 10 * time.Second
	}
	if cfg.LocationMaxAge <= 0 {
		cfg.LocationMaxAge = 5 * time.Minute
	}
	return &Shell{
		auth:      auth,
		deps:      deps,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		authState: domain.AuthState{IsLoading: true},
		page:      PageHome,
	}
}

// Start subscribes to auth state changes. The provider reports its current
// state immediately.
func (s *Shell) Start() {
	unsubscribe := s.auth.OnAuthStateChanged(s.handleAuth)
	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
}

func (s *Shell) handleAuth(state domain.AuthState) {
	s.mu.Lock()
	prev := s.authState.User
	s.authState = state

	var stale []controllers.Controller
	switch {
	case state.User == nil && prev != nil:
		stale = s.resetLocked()
	case state.User != nil && prev != nil && state.User.ID != prev.ID:
		stale = s.resetLocked()
		s.offerPromptLocked()
	case state.User != nil:
		s.offerPromptLocked()
	}
	s.mu.Unlock()

	closeAll(stale)
	if state.User == nil && prev != nil {
		s.logger.Infow("signed out, session torn down", "user_id", prev.ID)
	}
}

// offerPromptLocked shows the location prompt once per signed-in session.
func (s *Shell) offerPromptLocked() {
	if s.location == nil && !s.promptOffered {
		s.promptOffered = true
		s.promptOpen = true
	}
}

// resetLocked forgets everything tied to the signed-in user and returns the
// controllers to close.
func (s *Shell) resetLocked() []controllers.Controller {
	stale := s.controllersLocked()
	s.home, s.live, s.kitchen, s.profile = nil, nil, nil, nil
	s.page = PageHome
	s.streamID = ""
	s.location = nil
	s.promptOffered = false
	s.promptOpen = false
	s.locationErr = ""
	return stale
}

func (s *Shell) controllersLocked() []controllers.Controller {
	var out []controllers.Controller
	if s.home != nil {
		out = append(out, s.home)
	}
	if s.live != nil {
		out = append(out, s.live)
	}
	if s.kitchen != nil {
		out = append(out, s.kitchen)
	}
	if s.profile != nil {
		out = append(out, s.profile)
	}
	return out
}

func closeAll(cs []controllers.Controller) {
	for _, c := range cs {
		c.Close()
	}
}

func (s *Shell) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		User:     s.authState.User,
		Location: s.location,
		LocationPrompt: LocationPrompt{
			Open:  s.promptOpen,
			Error: s.locationErr,
		},
	}
	switch {
	case s.authState.IsLoading:
		v.Screen = ScreenLoading
	case s.authState.User == nil:
		v.Screen = ScreenSignIn
	default:
		v.Screen = ScreenPage
		v.Page = s.page
		if s.page == PageLive {
			v.StreamID = s.streamID
		}
	}
	return v
}

func (s *Shell) User() *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authState.User
}

func (s *Shell) appContextLocked() (controllers.AppContext, error) {
	if s.authState.User == nil {
		return controllers.AppContext{}, domain.ErrUnauthenticated
	}
	return controllers.AppContext{User: s.authState.User, Location: s.location}, nil
}

// Navigate switches the current page. Leaving a live page closes its
// controller; live requires a stream id.
func (s *Shell) Navigate(ctx context.Context, name string, streamID domain.StreamID) error {
	page := ParsePage(name)
	if page == PageLive {
		if _, err := s.Live(ctx, streamID); err != nil {
			return err
		}
	}

	s.mu.Lock()
	if s.authState.User == nil {
		s.mu.Unlock()
		return domain.ErrUnauthenticated
	}
	var stale []controllers.Controller
	if page != PageLive && s.live != nil {
		stale = append(stale, s.live)
		s.live = nil
		s.streamID = ""
	}
	s.page = page
	s.mu.Unlock()

	closeAll(stale)
	return nil
}

func (s *Shell) Home() (*controllers.HomeController, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, err := s.appContextLocked()
	if err != nil {
		return nil, err
	}
	if s.home == nil {
		s.home = controllers.NewHomeController(app, s.deps)
	}
	return s.home, nil
}

// Live returns the controller for streamID, replacing one for another stream.
func (s *Shell) Live(ctx context.Context, streamID domain.StreamID) (*controllers.LiveStreamController, error) {
	s.mu.Lock()
	if _, err := s.appContextLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.live != nil && s.streamID == streamID {
		live := s.live
		s.mu.Unlock()
		return live, nil
	}
	s.mu.Unlock()

	if streamID == "" {
		return nil, domain.ErrStreamNotFound
	}
	stream, err := s.deps.Streams.Get(ctx, streamID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	app, err := s.appContextLocked()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.live != nil && s.streamID == streamID {
		live := s.live
		s.mu.Unlock()
		return live, nil
	}
	prev := s.live
	live := controllers.NewLiveStreamController(app, s.deps, *stream)
	s.live = live
	s.streamID = streamID
	s.page = PageLive
	s.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return live, nil
}

func (s *Shell) Kitchen() (*controllers.KitchenController, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, err := s.appContextLocked()
	if err != nil {
		return nil, err
	}
	if s.kitchen == nil {
		s.kitchen = controllers.NewKitchenController(app, s.deps)
	}
	return s.kitchen, nil
}

func (s *Shell) Profile() (*controllers.ProfileController, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, err := s.appContextLocked()
	if err != nil {
		return nil, err
	}
	if s.profile == nil {
		s.profile = controllers.NewProfileController(app, s.deps)
	}
	return s.profile, nil
}

// RequestLocation asks geo for a fix, bounded by the configured timeout. A
// location younger than the max age is reused without asking. On failure
// the prompt stays open with LocationErrorMessage.
func (s *Shell) RequestLocation(ctx context.Context, geo ports.Geolocator) (domain.Location, error) {
	s.mu.Lock()
	if s.authState.User == nil {
		s.mu.Unlock()
		return domain.Location{}, domain.ErrUnauthenticated
	}
	if s.location.Fresh(s.now(), s.cfg.LocationMaxAge) {
		loc := *s.location
		s.promptOpen = false
		s.locationErr = ""
		s.mu.Unlock()
		return loc, nil
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.LocationTimeout)
	defer cancel()

	loc, err := geo.CurrentPosition(ctx, s.cfg.HighAccuracy)
	if err != nil {
		s.mu.Lock()
		s.promptOpen = true
		s.locationErr = LocationErrorMessage
		s.mu.Unlock()

		s.logger.Warnw("failed to get location", "error", err)
		return domain.Location{}, fmt.Errorf("%w: %v", domain.ErrLocationUnavailable, err)
	}
	if loc.AcquiredAt.IsZero() {
		loc.AcquiredAt = s.now()
	}

	s.mu.Lock()
	s.location = &loc
	s.promptOpen = false
	s.locationErr = ""
	app, err := s.appContextLocked()
	home, profile := s.home, s.profile
	s.mu.Unlock()

	// signed out while the fix was pending
	if err != nil {
		return loc, nil
	}
	if home != nil {
		home.SetContext(app)
	}
	if profile != nil {
		profile.SetContext(app)
	}
	return loc, nil
}

// SkipLocation dismisses the prompt without a location.
func (s *Shell) SkipLocation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.promptOpen = false
	s.locationErr = ""
}

func (s *Shell) SignOut(ctx context.Context) error {
	return s.auth.SignOut(ctx)
}

// Close unsubscribes from auth and closes every controller.
func (s *Shell) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	stale := s.controllersLocked()
	s.home, s.live, s.kitchen, s.profile = nil, nil, nil, nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	closeAll(stale)
}
