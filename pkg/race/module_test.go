package race

import (
	"testing"
	"time"

	"github.com/marmat/mapracer/pkg/geo"
	"github.com/marmat/mapracer/pkg/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromRequest(t *testing.T) {
	r := New(protocol.Request{
		TargetTitle:    "Brandenburg Gate",
		StartLocation:  &geo.LatLng{Lat: 52.516275, Lng: 13.377704},
		TargetLocation: &geo.LatLng{Lat: 52.520008, Lng: 13.404954},
	})

	require.NotEmpty(t, r.ID)
	assert.Equal(t, "Brandenburg Gate", r.Title)
	assert.True(t, r.Startable())
	assert.True(t, r.StartTime.IsZero())
}

func TestStartable(t *testing.T) {
	r := New(protocol.Request{TargetTitle: "Somewhere"})
	assert.False(t, r.Startable())

	r.Target = &geo.Coordinate{Lat: 1, Lng: 2}
	assert.False(t, r.Startable())

	r.Start = &geo.Coordinate{Lat: 3, Lng: 4}
	assert.True(t, r.Startable())
}

func TestSnapshotRoundTrip(t *testing.T) {
	r := New(protocol.Request{
		TargetTitle:    "Alexanderplatz",
		StartLocation:  &geo.LatLng{Lat: 52.516275, Lng: 13.377704},
		TargetLocation: &geo.LatLng{Lat: 52.521918, Lng: 13.413215},
	})
	r.StartTime = time.Now().Truncate(time.Millisecond)

	restored := FromSnapshot(r.Snapshot())

	assert.Equal(t, r.Title, restored.Title)
	require.NotNil(t, restored.Start)
	require.NotNil(t, restored.Target)
	assert.InDelta(t, r.Start.Lat, restored.Start.Lat, 1e-9)
	assert.InDelta(t, r.Start.Lng, restored.Start.Lng, 1e-9)
	assert.InDelta(t, r.Target.Lat, restored.Target.Lat, 1e-9)
	assert.InDelta(t, r.Target.Lng, restored.Target.Lng, 1e-9)
	assert.True(t, r.StartTime.Equal(restored.StartTime))
}

func TestSnapshotPendingRace(t *testing.T) {
	r := New(protocol.Request{})

	snapshot := r.Snapshot()
	assert.Nil(t, snapshot.StartLocation)
	assert.Nil(t, snapshot.TargetLocation)
	assert.Zero(t, snapshot.StartTime)
}

func TestElapsed(t *testing.T) {
	r := New(protocol.Request{})
	now := time.Now()

	assert.Zero(t, r.Elapsed(now))

	r.StartTime = now.Add(-90 * time.Second)
	assert.Equal(t, 90*time.Second, r.Elapsed(now))
}
