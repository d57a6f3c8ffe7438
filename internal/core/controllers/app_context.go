// Package controllers holds the per-user page state behind the LocalLive
// screens. Controllers never share state with each other; what they need
// from the session arrives in an AppContext.
package controllers

import (
	"time"

	"locallive/internal/core/catalog"
	"locallive/internal/core/domain"
	"locallive/internal/core/ports"
	"locallive/internal/core/services"

	"go.uber.org/zap"
)

// AppContext is the signed-in identity and the last granted location,
// built by the shell and handed to every controller it creates.
type AppContext struct {
	User     *domain.User
	Location *domain.Location
}

func (a AppContext) HasLocation() bool {
	return a.Location != nil
}

// Actor is the identity stamped on the user's chat events.
func (a AppContext) Actor() domain.Actor {
	if a.User == nil {
		return domain.Actor{Username: "Anonymous"}
	}
	return a.User.Actor()
}

// Deps are the shared services controllers drive.
type Deps struct {
	Catalog  *services.CatalogService
	Streams  *services.StreamService
	Feed     *services.FeedService
	Auctions *services.AuctionService
	Sessions ports.VideoSessionFactory

	RadiusOptions []float64
	DefaultRadius float64

	Logger *zap.SugaredLogger
	Now    func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Deps) radiusOptions() []float64 {
	if len(d.RadiusOptions) > 0 {
		return d.RadiusOptions
	}
	return catalog.RadiusOptions
}

func (d *Deps) defaultRadius() float64 {
	if d.DefaultRadius > 0 {
		return d.DefaultRadius
	}
	return catalog.DefaultRadiusKm
}

// Controller is implemented by every page controller so the shell can tear
// them down uniformly.
type Controller interface {
	Close()
}
