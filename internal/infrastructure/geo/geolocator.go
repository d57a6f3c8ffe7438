// Package geo provides the position sources the shell asks for a location.
// Positions come from the client device, so the server side only relays
// what the client reported.
package geo

import (
	"context"
	"fmt"
	"time"

	"locallive/internal/core/domain"
	"locallive/internal/core/ports"
	"locallive/pkg/validation"
)

var (
	_ ports.Geolocator = Fixed{}
	_ ports.Geolocator = Denied{}
	_ ports.Geolocator = (*Delayed)(nil)
)

// Fixed reports a position the client already acquired.
type Fixed struct {
	Lat, Lng float64
	Now      func() time.Time
}

// NewFixed validates the coordinates.
func NewFixed(lat, lng float64) (Fixed, error) {
	if err := validation.ValidateCoordinates(lat, lng); err != nil {
		return Fixed{}, fmt.Errorf("%w: %v", domain.ErrLocationUnavailable, err)
	}
	return Fixed{Lat: lat, Lng: lng}, nil
}

func (f Fixed) CurrentPosition(ctx context.Context, highAccuracy bool) (domain.Location, error) {
	if err := ctx.Err(); err != nil {
		return domain.Location{}, err
	}
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	return domain.Location{Lat: f.Lat, Lng: f.Lng, AcquiredAt: now()}, nil
}

// Denied is a client that refused or failed to share its position.
type Denied struct {
	Reason string
}

func (d Denied) CurrentPosition(ctx context.Context, highAccuracy bool) (domain.Location, error) {
	if d.Reason == "" {
		return domain.Location{}, domain.ErrLocationUnavailable
	}
	return domain.Location{}, fmt.Errorf("%w: %s", domain.ErrLocationUnavailable, d.Reason)
}

// Delayed answers with Source after Delay, honouring ctx. It stands in for
// a slow device fix.
type Delayed struct {
	Source ports.Geolocator
	Delay  time.Duration
}

func (d *Delayed) CurrentPosition(ctx context.Context, highAccuracy bool) (domain.Location, error) {
	t := time.NewTimer(d.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return domain.Location{}, ctx.Err()
	case <-t.C:
		return d.Source.CurrentPosition(ctx, highAccuracy)
	}
}
