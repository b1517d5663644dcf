// README: Optional Google Maps Directions ETA refinement.
package maps

import (
	"context"
	"time"

	"go.uber.org/zap"
	gmaps "googlemaps.github.io/maps"

	"sokoni/internal/logger"
	"sokoni/internal/types"
)

// ETARefiner replaces the speed-based ETA with a routed travel time
// when the Directions API is reachable. Any failure keeps the fallback;
// the estimate is advisory and must never block dispatch creation.
type ETARefiner struct {
	client *gmaps.Client
}

func NewETARefiner(apiKey string) (*ETARefiner, error) {
	if apiKey == "" {
		return nil, nil
	}
	c, err := gmaps.NewClient(gmaps.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &ETARefiner{client: c}, nil
}

func (r *ETARefiner) Refine(ctx context.Context, pickup, delivery types.Point, fallback time.Time) time.Time {
	routes, _, err := r.client.Directions(ctx, &gmaps.DirectionsRequest{
		Origin:      latLng(pickup),
		Destination: latLng(delivery),
		Mode:        gmaps.TravelModeDriving,
	})
	if err != nil || len(routes) == 0 || len(routes[0].Legs) == 0 {
		logger.Get().Warn("directions lookup failed, keeping speed-based ETA", zap.Error(err))
		return fallback
	}

	var total time.Duration
	for _, leg := range routes[0].Legs {
		total += leg.Duration
	}
	return time.Now().Add(total)
}

func latLng(p types.Point) string {
	return (&gmaps.LatLng{Lat: p.Lat, Lng: p.Lng}).String()
}
