// Package engine evaluates artefact visibility and collection attempts for a
// player position.
//
// Visibility is recomputed from the current position on every query. The
// only memory is the progress ledger: once an artefact is collected it stays
// Collected until its quest is reset.
package engine

import (
	"github.com/playperu/heartlands/internal/geo"
	"github.com/playperu/heartlands/internal/heartlands"
	"github.com/playperu/heartlands/internal/spawn"
)

type State string

const (
	// Hidden collectibles show only their search circle.
	StateHidden State = "hidden"
	// Discoverable means the player is inside the search radius of the
	// spawn point but not yet close enough to collect.
	StateDiscoverable State = "discoverable"
	StateCollectable  State = "collectable"
	StateCollected    State = "collected"
	// StateVisible is the only state a landmark reports.
	StateVisible State = "visible"
)

// Visibility is the rendered view of one artefact for one position.
type Visibility struct {
	ArtefactID string          `json:"artefactId"`
	Name       string          `json:"name,omitempty"`
	Kind       heartlands.Kind `json:"kind"`
	State      State           `json:"state"`
	SearchArea geo.Circle      `json:"searchArea"`
	// SpawnPoint is set only once the pickup location may be shown.
	SpawnPoint *geo.Coordinate `json:"spawnPoint,omitempty"`
	// DistanceMeters is measured to the spawn point for collectibles and to
	// the anchor for landmarks. Nil without a usable position.
	DistanceMeters *float64 `json:"distanceMeters,omitempty"`
	// Discovered is set for landmarks only.
	Discovered *bool `json:"discovered,omitempty"`
}

// Evaluate computes a collectible's visibility with the flat degree
// conversion. It has no side effects.
func Evaluate(a heartlands.Artefact, pos *heartlands.Position, playerID string, collected bool) Visibility {
	return EvaluateWith(a, pos, playerID, collected, spawn.Options{})
}

// EvaluateWith is Evaluate with explicit spawn options. Landmarks are
// reported Visible with Discovered left unset; use Discovered to derive it.
func EvaluateWith(a heartlands.Artefact, pos *heartlands.Position, playerID string, collected bool, opts spawn.Options) Visibility {
	v := Visibility{
		ArtefactID: a.ID,
		Name:       a.Name,
		Kind:       a.Kind,
		SearchArea: a.SearchArea(),
	}

	if a.IsLandmark() {
		v.State = StateVisible
		if pos.Usable() {
			d := geo.DistanceMeters(pos.Coordinate, a.Anchor)
			v.DistanceMeters = &d
		}
		return v
	}

	sp := spawn.PointWith(a.Anchor, a.SearchRadiusMeters, a.ID, playerID, opts)

	var dist float64
	if pos.Usable() {
		dist = geo.DistanceMeters(pos.Coordinate, sp)
		v.DistanceMeters = &dist
	}

	switch {
	case collected:
		v.State = StateCollected
	case !pos.Usable():
		v.State = StateHidden
	case dist <= a.CollectionRadiusMeters:
		v.State = StateCollectable
	case dist <= a.SearchRadiusMeters:
		v.State = StateDiscoverable
	default:
		v.State = StateHidden
	}

	if v.State == StateCollectable || v.State == StateCollected {
		v.SpawnPoint = &sp
	}
	return v
}

// Discovered reports whether a landmark's linked collectibles are all
// collected. A landmark with no links is never discovered.
func Discovered(a heartlands.Artefact, isCollected func(id string) bool) bool {
	if len(a.Linked) == 0 {
		return false
	}
	for _, id := range a.Linked {
		if !isCollected(id) {
			return false
		}
	}
	return true
}
