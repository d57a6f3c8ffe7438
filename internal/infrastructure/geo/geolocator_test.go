package geo

import (
	"context"
	"testing"
	"time"

	"locallive/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixed(t *testing.T) {
	at := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	f, err := NewFixed(37.77, -122.42)
	require.NoError(t, err)
	f.Now = func() time.Time { return at }

	loc, err := f.CurrentPosition(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, domain.Location{Lat: 37.77, Lng: -122.42, AcquiredAt: at}, loc)

	_, err = NewFixed(91, 0)
	assert.ErrorIs(t, err, domain.ErrLocationUnavailable)
}

func TestDenied(t *testing.T) {
	_, err := Denied{}.CurrentPosition(context.Background(), false)
	assert.ErrorIs(t, err, domain.ErrLocationUnavailable)

	_, err = Denied{Reason: "permission denied"}.CurrentPosition(context.Background(), false)
	assert.ErrorIs(t, err, domain.ErrLocationUnavailable)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestDelayed_HonoursDeadline(t *testing.T) {
	d := &Delayed{Source: Fixed{Lat: 1, Lng: 2}, Delay: time.Hour}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := d.CurrentPosition(ctx, true)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	d.Delay = time.Millisecond
	loc, err := d.CurrentPosition(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1.0, loc.Lat)
}
