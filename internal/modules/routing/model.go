// README: Routing types: provider interface and display-ready estimates.
package routing

import (
	"context"

	"roadside/internal/maps"
	"roadside/internal/types"
)

var (
	ErrNoRoute  = maps.ErrNoRoute
	ErrUpstream = maps.ErrUpstream
)

// Router returns the driving route between two points.
// Implemented by maps.OSRMClient, maps.RouteService and CachedRouter.
type Router interface {
	Route(ctx context.Context, origin, destination types.Point) (maps.Route, error)
}

type Estimate struct {
	Meters       float64
	Seconds      float64
	DistanceText string
	DurationText string
}
