package catalog

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"

	"github.com/playperu/heartlands/internal/geo"
	"github.com/playperu/heartlands/internal/heartlands"
)

// pointTolerance gives anchor rectangles a non-zero extent.
const pointTolerance = 1e-9

type indexed struct {
	artefact heartlands.Artefact
	rect     rtreego.Rect
}

func (e *indexed) Bounds() rtreego.Rect { return e.rect }

// Hit is an artefact found by a spatial query with its anchor distance.
type Hit struct {
	Artefact       heartlands.Artefact
	DistanceMeters float64
}

// Index is an R-tree over artefact anchors, in (lng, lat) degree space.
type Index struct {
	tree *rtreego.Rtree
}

func NewIndex(artefacts []heartlands.Artefact) *Index {
	objs := make([]rtreego.Spatial, 0, len(artefacts))
	for _, a := range artefacts {
		objs = append(objs, &indexed{
			artefact: a,
			rect:     rtreego.Point{a.Anchor.Lng, a.Anchor.Lat}.ToRect(pointTolerance),
		})
	}
	return &Index{tree: rtreego.NewTree(2, 25, 50, objs...)}
}

func (ix *Index) Size() int { return ix.tree.Size() }

// Within returns the artefacts anchored within meters of c, nearest first.
func (ix *Index) Within(c geo.Coordinate, meters float64) []Hit {
	if !c.Valid() || !(meters >= 0) {
		return nil
	}

	// The box is widened on both axes so no candidate is cut off; the
	// haversine check below is exact.
	dLat := geo.RadiusDegrees(meters) + pointTolerance
	cos := math.Cos(c.Lat * math.Pi / 180)
	dLng := 360.0
	if cos > 1e-6 {
		dLng = math.Min(dLat/cos, 360)
	}
	box, err := rtreego.NewRect(rtreego.Point{c.Lng - dLng, c.Lat - dLat}, []float64{2 * dLng, 2 * dLat})
	if err != nil {
		return nil
	}

	var hits []Hit
	for _, obj := range ix.tree.SearchIntersect(box) {
		a := obj.(*indexed).artefact
		if d := geo.DistanceMeters(c, a.Anchor); d <= meters {
			hits = append(hits, Hit{Artefact: a, DistanceMeters: d})
		}
	}
	sortHits(hits)
	return hits
}

// Nearest returns up to k artefacts closest to c. Candidates come from the
// tree in degree space and are re-ranked by great-circle distance.
func (ix *Index) Nearest(c geo.Coordinate, k int) []Hit {
	if !c.Valid() || k <= 0 {
		return nil
	}
	// Degree-space and great-circle rankings can disagree near the cut.
	n := min(2*k, ix.tree.Size())
	objs := ix.tree.NearestNeighbors(n, rtreego.Point{c.Lng, c.Lat})

	hits := make([]Hit, 0, len(objs))
	for _, obj := range objs {
		if obj == nil {
			continue
		}
		a := obj.(*indexed).artefact
		hits = append(hits, Hit{Artefact: a, DistanceMeters: geo.DistanceMeters(c, a.Anchor)})
	}
	sortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].DistanceMeters != hits[j].DistanceMeters {
			return hits[i].DistanceMeters < hits[j].DistanceMeters
		}
		return hits[i].Artefact.ID < hits[j].Artefact.ID
	})
}
