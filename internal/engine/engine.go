package engine

import (
	"context"
	"fmt"

	"github.com/playperu/heartlands/internal/geo"
	"github.com/playperu/heartlands/internal/heartlands"
	"github.com/playperu/heartlands/internal/progress"
	"github.com/playperu/heartlands/internal/spawn"
)

// CollectResult is the outcome of a collect attempt. Success is false for
// every precondition failure; Fresh marks the attempt that wrote the record.
type CollectResult struct {
	Success bool             `json:"success"`
	Record  *progress.Record `json:"record,omitempty"`
	Fresh   bool             `json:"fresh,omitempty"`
}

// Engine binds the pure evaluation rules to one player and their ledger.
type Engine struct {
	ledger   *progress.Ledger
	playerID string
	spawn    spawn.Options
}

type Option func(*Engine)

// WithScale selects the meters-to-degrees conversion for spawn points.
func WithScale(s geo.Scale) Option {
	return func(e *Engine) { e.spawn.Scale = s }
}

func New(ledger *progress.Ledger, playerID string, opts ...Option) *Engine {
	e := &Engine{ledger: ledger, playerID: playerID}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) PlayerID() string { return e.playerID }

func (e *Engine) Ledger() *progress.Ledger { return e.ledger }

// SpawnPoint returns the player's pickup location for a.
func (e *Engine) SpawnPoint(a heartlands.Artefact) geo.Coordinate {
	return spawn.PointWith(a.Anchor, a.SearchRadiusMeters, a.ID, e.playerID, e.spawn)
}

// VisibleState evaluates a against pos, consulting the ledger for collection
// status and landmark discovery.
func (e *Engine) VisibleState(ctx context.Context, questID string, a heartlands.Artefact, pos *heartlands.Position) (Visibility, error) {
	if a.IsLandmark() {
		v := EvaluateWith(a, pos, e.playerID, false, e.spawn)
		discovered, err := e.discovered(ctx, questID, a)
		if err != nil {
			return Visibility{}, err
		}
		v.Discovered = &discovered
		return v, nil
	}

	collected, err := e.ledger.HasCollected(ctx, questID, a.ID)
	if err != nil {
		return Visibility{}, err
	}
	return EvaluateWith(a, pos, e.playerID, collected, e.spawn), nil
}

func (e *Engine) discovered(ctx context.Context, questID string, a heartlands.Artefact) (bool, error) {
	var lookupErr error
	ok := Discovered(a, func(id string) bool {
		if lookupErr != nil {
			return false
		}
		c, err := e.ledger.HasCollected(ctx, questID, id)
		if err != nil {
			lookupErr = err
		}
		return c
	})
	if lookupErr != nil {
		return false, fmt.Errorf("checking landmark %s: %w", a.ID, lookupErr)
	}
	return ok, nil
}

// AttemptCollect collects a if the player stands within its collection
// radius. Repeated attempts on a collected artefact succeed with the existing
// record. Out-of-range, missing-position and landmark attempts return
// Success false and change nothing.
func (e *Engine) AttemptCollect(ctx context.Context, questID string, a heartlands.Artefact, pos *heartlands.Position) (CollectResult, error) {
	if a.IsLandmark() {
		return CollectResult{}, nil
	}

	collected, err := e.ledger.HasCollected(ctx, questID, a.ID)
	if err != nil {
		return CollectResult{}, err
	}
	if collected {
		rec, err := e.ledger.Lookup(ctx, questID, a.ID)
		if err != nil {
			return CollectResult{}, fmt.Errorf("loading record %s: %w", a.ID, err)
		}
		return CollectResult{Success: true, Record: &rec}, nil
	}

	if v := EvaluateWith(a, pos, e.playerID, false, e.spawn); v.State != StateCollectable {
		return CollectResult{}, nil
	}

	rec, created, err := e.ledger.RecordCollection(ctx, questID, a.ID, a.Points)
	if err != nil {
		return CollectResult{}, err
	}
	return CollectResult{Success: true, Record: &rec, Fresh: created}, nil
}

// Score is the player's running total across all quests.
func (e *Engine) Score(ctx context.Context) (int, error) {
	return e.ledger.TotalScore(ctx)
}

// ResetQuest forgets every collection in the quest.
func (e *Engine) ResetQuest(ctx context.Context, questID string) (int, error) {
	return e.ledger.ResetQuest(ctx, questID)
}
