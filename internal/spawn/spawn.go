// Package spawn derives where an artefact can actually be picked up.
//
// A spawn point is a pure function of the artefact's anchor, its search
// radius, the artefact id and the player identity, so every device computes
// the same hidden location for a given player without coordination.
package spawn

import (
	"math"

	"github.com/playperu/heartlands/internal/geo"
	"github.com/playperu/heartlands/internal/prng"
)

// Separator joins artefact id and player identity into the seed input.
const Separator = ":"

// Options tunes the meters-to-degrees conversion.
type Options struct {
	Scale geo.Scale
}

// Seed returns the PRNG seed for an (artefact, player) pair.
func Seed(artefactID, playerID string) uint32 {
	return prng.HashToSeed(artefactID + Separator + playerID)
}

// Point returns the spawn point using the flat 111 km/degree conversion.
func Point(anchor geo.Coordinate, radiusMeters float64, artefactID, playerID string) geo.Coordinate {
	return PointWith(anchor, radiusMeters, artefactID, playerID, Options{})
}

// PointWith returns the spawn point for the given conversion options. A
// non-positive radius yields the anchor itself.
func PointWith(anchor geo.Coordinate, radiusMeters float64, artefactID, playerID string, opts Options) geo.Coordinate {
	if !(radiusMeters > 0) {
		return anchor
	}

	rng := prng.New(Seed(artefactID, playerID))
	angle := rng.Float64() * 2 * math.Pi
	// sqrt keeps the draw uniform over the disc's area.
	r := math.Sqrt(rng.Float64())

	dLat, dLng := geo.OffsetDegrees(anchor, radiusMeters, opts.Scale)
	return geo.Coordinate{
		Lat: anchor.Lat + r*dLat*math.Cos(angle),
		Lng: anchor.Lng + r*dLng*math.Sin(angle),
	}
}

// Scatter places n points uniformly inside bbox from the given seed. For each
// point latitude is drawn before longitude.
func Scatter(bbox geo.BBox, n int, seed uint32) []geo.Coordinate {
	if n <= 0 {
		return nil
	}
	rng := prng.New(seed)
	pts := make([]geo.Coordinate, n)
	for i := range pts {
		pts[i].Lat = rng.Between(bbox.MinLat, bbox.MaxLat)
		pts[i].Lng = rng.Between(bbox.MinLng, bbox.MaxLng)
	}
	return pts
}
