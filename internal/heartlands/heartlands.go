// Package heartlands defines the core domain types of the walking game:
// quests, their artefacts, and player positions. No I/O lives here.
package heartlands

import (
	"errors"
	"fmt"

	"github.com/playperu/heartlands/internal/geo"
)

var ErrInvalidArtefact = errors.New("invalid artefact")

type Kind string

const (
	KindCollectible Kind = "collectible"
	KindLandmark    Kind = "landmark"
)

type Rarity string

const (
	RarityCommon   Rarity = "common"
	RarityUncommon Rarity = "uncommon"
	RarityRare     Rarity = "rare"
)

// Artefact is a collectible or a landmark placed in a quest.
type Artefact struct {
	ID     string
	Kind   Kind
	Name   string
	Blurb  string
	Rarity Rarity

	Anchor                 geo.Coordinate
	CollectionRadiusMeters float64
	SearchRadiusMeters     float64
	Points                 int

	// Linked lists the collectibles whose collection discovers a landmark.
	Linked []string
}

func (a Artefact) IsLandmark() bool { return a.Kind == KindLandmark }

// SearchArea is the circle drawn on the map while the artefact is hidden.
func (a Artefact) SearchArea() geo.Circle {
	return geo.Circle{Center: a.Anchor, RadiusMeters: a.SearchRadiusMeters}
}

func (a Artefact) Validate() error {
	switch {
	case a.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidArtefact)
	case a.Kind != KindCollectible && a.Kind != KindLandmark:
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidArtefact, a.ID, a.Kind)
	case !a.Anchor.Valid():
		return fmt.Errorf("%w: %s: anchor %v out of range", ErrInvalidArtefact, a.ID, a.Anchor)
	case a.Points < 0:
		return fmt.Errorf("%w: %s: negative points", ErrInvalidArtefact, a.ID)
	case a.CollectionRadiusMeters < 0:
		return fmt.Errorf("%w: %s: negative collection radius", ErrInvalidArtefact, a.ID)
	case a.CollectionRadiusMeters > a.SearchRadiusMeters:
		return fmt.Errorf("%w: %s: collection radius %.0f m exceeds search radius %.0f m",
			ErrInvalidArtefact, a.ID, a.CollectionRadiusMeters, a.SearchRadiusMeters)
	case len(a.Linked) > 0 && a.Kind != KindLandmark:
		return fmt.Errorf("%w: %s: only landmarks can link artefacts", ErrInvalidArtefact, a.ID)
	}
	return nil
}

// Quest is a walkable area with its artefacts. Templates are already expanded.
type Quest struct {
	ID          string
	Name        string
	Description string
	BBox        geo.BBox
	Artefacts   []Artefact
}

// Artefact looks an artefact up by id.
func (q *Quest) Artefact(id string) (Artefact, bool) {
	for _, a := range q.Artefacts {
		if a.ID == id {
			return a, true
		}
	}
	return Artefact{}, false
}

// Collectibles returns the artefacts that can be collected.
func (q *Quest) Collectibles() []Artefact {
	var out []Artefact
	for _, a := range q.Artefacts {
		if a.Kind == KindCollectible {
			out = append(out, a)
		}
	}
	return out
}

// Validate checks every artefact plus cross-references: unique ids and
// landmark links that point at collectibles of the same quest.
func (q *Quest) Validate() error {
	if q.ID == "" {
		return errors.New("quest has empty id")
	}
	kinds := make(map[string]Kind, len(q.Artefacts))
	for _, a := range q.Artefacts {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("quest %s: %w", q.ID, err)
		}
		if _, dup := kinds[a.ID]; dup {
			return fmt.Errorf("quest %s: duplicate artefact id %q", q.ID, a.ID)
		}
		kinds[a.ID] = a.Kind
	}
	for _, a := range q.Artefacts {
		for _, id := range a.Linked {
			if kinds[id] != KindCollectible {
				return fmt.Errorf("quest %s: landmark %s links %q which is not a collectible", q.ID, a.ID, id)
			}
		}
	}
	return nil
}

// Position is an already-extracted location fix.
type Position struct {
	geo.Coordinate
	AccuracyMeters *float64
	Speed          *float64
}

// Usable reports whether p is present and carries a valid coordinate.
func (p *Position) Usable() bool {
	return p != nil && p.Coordinate.Valid()
}
