package controllers

import (
	"context"
	"errors"
	"sync"

	"locallive/internal/core/domain"
	"locallive/internal/core/services"
)

type ProfileController struct {
	deps *Deps

	mu  sync.Mutex
	app AppContext
}

type ProfileView struct {
	Name        string                  `json:"name"`
	Initial     string                  `json:"initial"`
	Email       string                  `json:"email,omitempty"`
	PhotoURL    string                  `json:"photo_url,omitempty"`
	HasLocation bool                    `json:"has_location"`
	Seller      *services.SellerProfile `json:"seller,omitempty"`
}

func NewProfileController(app AppContext, deps *Deps) *ProfileController {
	return &ProfileController{app: app, deps: deps}
}

func (p *ProfileController) SetContext(app AppContext) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.app = app
}

// View describes the signed-in user, with seller stats when the user also
// sells.
func (p *ProfileController) View(ctx context.Context) (*ProfileView, error) {
	p.mu.Lock()
	app := p.app
	p.mu.Unlock()

	user := app.User
	if user == nil {
		return nil, domain.ErrUnauthenticated
	}
	view := &ProfileView{
		Name:        user.ProfileName(),
		Initial:     user.Initial(),
		Email:       user.Email,
		PhotoURL:    user.PhotoURL,
		HasLocation: app.HasLocation(),
	}

	seller, err := p.deps.Catalog.SellerProfile(ctx, domain.SellerID(user.ID))
	switch {
	case err == nil:
		view.Seller = seller
	case !errors.Is(err, domain.ErrSellerNotFound):
		return nil, err
	}
	return view, nil
}

func (p *ProfileController) SellerView(ctx context.Context, id domain.SellerID) (*services.SellerProfile, error) {
	return p.deps.Catalog.SellerProfile(ctx, id)
}

func (p *ProfileController) Close() {}
