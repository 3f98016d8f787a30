package engine

import (
	"context"
	"sort"

	"github.com/playperu/heartlands/internal/heartlands"
	"github.com/playperu/heartlands/internal/progress"
)

// Totals summarises a quest's collectibles.
type Totals struct {
	ItemsCollected  int `json:"itemsCollected"`
	ItemsTotal      int `json:"itemsTotal"`
	PointsCollected int `json:"pointsCollected"`
	PointsTotal     int `json:"pointsTotal"`
}

// CollectedItem pairs a collected artefact's view with its record.
type CollectedItem struct {
	Visibility
	Record progress.Record `json:"record"`
}

// Board is everything a map client renders for one quest.
type Board struct {
	QuestID   string          `json:"questId"`
	Hunt      []Visibility    `json:"hunt"`
	Collected []CollectedItem `json:"collected"`
	Landmarks []Visibility    `json:"landmarks"`
	Totals    Totals          `json:"totals"`
}

// Board evaluates every artefact of q against pos. The hunt list is ordered
// nearest first with unknown distances last; the collected list is most
// recent first.
func (e *Engine) Board(ctx context.Context, q *heartlands.Quest, pos *heartlands.Position) (Board, error) {
	records, err := e.ledger.Collected(ctx, q.ID)
	if err != nil {
		return Board{}, err
	}
	isCollected := func(id string) bool {
		_, ok := records[id]
		return ok
	}

	b := Board{
		QuestID:   q.ID,
		Hunt:      []Visibility{},
		Collected: []CollectedItem{},
		Landmarks: []Visibility{},
	}
	for _, a := range q.Artefacts {
		if a.IsLandmark() {
			v := EvaluateWith(a, pos, e.playerID, false, e.spawn)
			d := Discovered(a, isCollected)
			v.Discovered = &d
			b.Landmarks = append(b.Landmarks, v)
			continue
		}

		b.Totals.ItemsTotal++
		b.Totals.PointsTotal += a.Points

		rec, ok := records[a.ID]
		v := EvaluateWith(a, pos, e.playerID, ok, e.spawn)
		if !ok {
			b.Hunt = append(b.Hunt, v)
			continue
		}
		b.Totals.ItemsCollected++
		b.Totals.PointsCollected += rec.PointsAwarded
		b.Collected = append(b.Collected, CollectedItem{Visibility: v, Record: rec})
	}

	sort.SliceStable(b.Hunt, func(i, j int) bool {
		di, dj := b.Hunt[i].DistanceMeters, b.Hunt[j].DistanceMeters
		switch {
		case di == nil && dj == nil:
			return b.Hunt[i].ArtefactID < b.Hunt[j].ArtefactID
		case di == nil:
			return false
		case dj == nil:
			return true
		case *di != *dj:
			return *di < *dj
		}
		return b.Hunt[i].ArtefactID < b.Hunt[j].ArtefactID
	})
	sort.SliceStable(b.Collected, func(i, j int) bool {
		ri, rj := b.Collected[i].Record, b.Collected[j].Record
		if ri.CollectedAtMillis != rj.CollectedAtMillis {
			return ri.CollectedAtMillis > rj.CollectedAtMillis
		}
		return ri.ArtefactID < rj.ArtefactID
	})
	return b, nil
}

// Totals computes a quest's totals without evaluating positions.
func (e *Engine) Totals(ctx context.Context, q *heartlands.Quest) (Totals, error) {
	records, err := e.ledger.Collected(ctx, q.ID)
	if err != nil {
		return Totals{}, err
	}
	var t Totals
	for _, a := range q.Collectibles() {
		t.ItemsTotal++
		t.PointsTotal += a.Points
		if rec, ok := records[a.ID]; ok {
			t.ItemsCollected++
			t.PointsCollected += rec.PointsAwarded
		}
	}
	return t, nil
}
