package race

import (
	"time"

	"github.com/marmat/mapracer/pkg/geo"
	"github.com/marmat/mapracer/pkg/protocol"

	"github.com/segmentio/ksuid"
)

// Race describes one race's geography and timing. It is a plain value:
// the session controller replaces it wholesale instead of mutating it,
// except for StartTime, which is stamped exactly once when the race
// begins.
type Race struct {
	ID    string
	Title string

	// Nil until resolved by the location resolver.
	Start  *geo.Coordinate
	Target *geo.Coordinate

	StartTime time.Time
}

// New builds a race from a game request. Locations the request did not
// supply stay nil until a resolver reports back.
func New(request protocol.Request) *Race {
	r := &Race{
		ID:    ksuid.New().String(),
		Title: request.TargetTitle,
	}
	if request.StartLocation != nil {
		start := request.StartLocation.Coordinate()
		r.Start = &start
	}
	if request.TargetLocation != nil {
		target := request.TargetLocation.Coordinate()
		r.Target = &target
	}
	return r
}

// Startable reports whether both endpoints of the race are known.
func (r *Race) Startable() bool {
	return r.Start != nil && r.Target != nil
}

// Elapsed returns the time since the race began, or zero if it has not.
func (r *Race) Elapsed(now time.Time) time.Duration {
	if r.StartTime.IsZero() {
		return 0
	}
	return now.Sub(r.StartTime)
}

// Snapshot produces the transport-safe form of the race.
func (r *Race) Snapshot() protocol.RaceSnapshot {
	snapshot := protocol.RaceSnapshot{
		ID:          r.ID,
		TargetTitle: r.Title,
	}
	if r.Start != nil {
		start := r.Start.LatLng()
		snapshot.StartLocation = &start
	}
	if r.Target != nil {
		target := r.Target.LatLng()
		snapshot.TargetLocation = &target
	}
	if !r.StartTime.IsZero() {
		snapshot.StartTime = r.StartTime.UnixMilli()
	}
	return snapshot
}

// FromSnapshot reconstructs a race from its transport form.
func FromSnapshot(snapshot protocol.RaceSnapshot) *Race {
	r := &Race{
		ID:    snapshot.ID,
		Title: snapshot.TargetTitle,
	}
	if snapshot.StartLocation != nil {
		start := snapshot.StartLocation.Coordinate()
		r.Start = &start
	}
	if snapshot.TargetLocation != nil {
		target := snapshot.TargetLocation.Coordinate()
		r.Target = &target
	}
	if snapshot.StartTime != 0 {
		r.StartTime = time.UnixMilli(snapshot.StartTime)
	}
	return r
}
