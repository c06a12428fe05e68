package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/marmat/mapracer/pkg/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassthrough(t *testing.T) {
	location := geo.Coordinate{Lat: 37.42, Lng: -122.08}

	resolved, err := Passthrough{}.Resolve(context.Background(), location, 50)
	require.NoError(t, err)
	assert.Equal(t, location, resolved)
}

func TestPassthroughDelayRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Passthrough{Delay: time.Minute}.Resolve(ctx, geo.Coordinate{}, 50)
	require.ErrorIs(t, err, context.Canceled)
}
