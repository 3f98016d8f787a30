package catalog

import (
	"math"
	"testing"

	"github.com/playperu/heartlands/internal/geo"
	"github.com/playperu/heartlands/internal/heartlands"
)

func northOf(c geo.Coordinate, meters float64) geo.Coordinate {
	return geo.Coordinate{Lat: c.Lat + meters/(geo.EarthRadiusMeters*math.Pi/180), Lng: c.Lng}
}

func TestIndexWithin(t *testing.T) {
	origin := geo.Coordinate{Lat: 1.33936, Lng: 103.72579}
	var arts []heartlands.Artefact
	for _, p := range []struct {
		id     string
		meters float64
	}{{"a", 10}, {"b", 150}, {"c", 499}, {"d", 501}, {"e", 5000}} {
		arts = append(arts, heartlands.Artefact{ID: p.id, Anchor: northOf(origin, p.meters)})
	}
	ix := NewIndex(arts)
	if ix.Size() != 5 {
		t.Fatalf("Size = %d", ix.Size())
	}

	hits := ix.Within(origin, 500)
	var ids []string
	for _, h := range hits {
		ids = append(ids, h.Artefact.ID)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Errorf("Within(500) = %v, want [a b c]", ids)
	}
	if math.Abs(hits[1].DistanceMeters-150) > 1e-6 {
		t.Errorf("distance to b = %v", hits[1].DistanceMeters)
	}

	if got := ix.Within(origin, -1); got != nil {
		t.Errorf("negative radius = %v", got)
	}
	if got := ix.Within(geo.Coordinate{Lat: math.NaN()}, 100); got != nil {
		t.Errorf("invalid centre = %v", got)
	}
}

func TestIndexWithinEastWest(t *testing.T) {
	origin := geo.Coordinate{Lat: 60, Lng: 10}
	// 0.01 degrees of longitude at 60N is about 556 m.
	east := heartlands.Artefact{ID: "east", Anchor: geo.Coordinate{Lat: 60, Lng: 10.01}}
	ix := NewIndex([]heartlands.Artefact{east})

	if hits := ix.Within(origin, 600); len(hits) != 1 {
		t.Errorf("Within(600) found %d, want 1", len(hits))
	}
	if hits := ix.Within(origin, 500); len(hits) != 0 {
		t.Errorf("Within(500) found %d, want 0", len(hits))
	}
}

func TestIndexNearest(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	ix, err := c.Index("jurong")
	if err != nil {
		t.Fatal(err)
	}
	arch := geo.Coordinate{Lat: 1.3386, Lng: 103.7300}

	hits := ix.Nearest(arch, 3)
	if len(hits) != 3 {
		t.Fatalf("Nearest(3) returned %d", len(hits))
	}
	// The arch landmark and its postcard share the anchor.
	if hits[0].DistanceMeters != 0 || hits[1].DistanceMeters != 0 {
		t.Errorf("two nearest should sit on the arch, got %+v", hits[:2])
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].DistanceMeters < hits[i-1].DistanceMeters {
			t.Errorf("hits not sorted at %d", i)
		}
	}

	if got := ix.Nearest(arch, 0); got != nil {
		t.Errorf("Nearest(0) = %v", got)
	}
	if _, err := c.Index("atlantis"); err == nil {
		t.Error("Index(atlantis) succeeded")
	}
}
