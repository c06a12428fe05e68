package resolver

import (
	"context"
	"time"

	"github.com/marmat/mapracer/pkg/geo"
)

// Resolver validates a proposed race location against some source of
// street-level truth and returns a nearby point that is actually usable,
// or an error if no such point exists within the radius. Resolution is
// the only long-latency operation in the system; the session controller
// always calls it off its event loop and feeds the result back in.
type Resolver interface {
	Resolve(ctx context.Context, location geo.Coordinate, radius float64) (geo.Coordinate, error)
}

// Passthrough accepts every coordinate unchanged. It is the default for
// platforms without street-level data. Delay, if set, simulates the
// latency of a real resolution backend so that demo setups exercise the
// same asynchronous paths production would.
type Passthrough struct {
	Delay time.Duration
}

var _ Resolver = Passthrough{}

func (p Passthrough) Resolve(ctx context.Context, location geo.Coordinate, radius float64) (geo.Coordinate, error) {
	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return geo.Coordinate{}, ctx.Err()
		}
	}
	return location, nil
}
