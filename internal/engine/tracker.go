package engine

import (
	"sync"

	"github.com/playperu/heartlands/internal/heartlands"
)

// DefaultMaxSpeed drops fixes taken from a vehicle.
const DefaultMaxSpeed = 5.0

// FixOutcome says what the tracker did with a GPS fix.
type FixOutcome string

const (
	FixAccepted  FixOutcome = "accepted"
	FixTooFast   FixOutcome = "too_fast"
	FixInvalid   FixOutcome = "invalid"
	FixSimulated FixOutcome = "simulated"
)

// Tracker holds the player's effective position. A simulated position, while
// set, overrides GPS; fixes are still recorded underneath it.
type Tracker struct {
	mu        sync.Mutex
	maxSpeed  float64
	gps       *heartlands.Position
	simulated *heartlands.Position
}

// NewTracker drops fixes whose speed is at or above maxSpeed meters per
// second. A non-positive maxSpeed uses DefaultMaxSpeed.
func NewTracker(maxSpeed float64) *Tracker {
	if !(maxSpeed > 0) {
		maxSpeed = DefaultMaxSpeed
	}
	return &Tracker{maxSpeed: maxSpeed}
}

// Observe records a GPS fix.
func (t *Tracker) Observe(p heartlands.Position) FixOutcome {
	if !p.Usable() {
		return FixInvalid
	}
	if p.Speed != nil && *p.Speed >= t.maxSpeed {
		return FixTooFast
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.gps = &p
	if t.simulated != nil {
		return FixSimulated
	}
	return FixAccepted
}

// Simulate pins the effective position until StopSimulating. It reports
// false for an invalid coordinate.
func (t *Tracker) Simulate(p heartlands.Position) bool {
	if !p.Usable() {
		return false
	}
	t.mu.Lock()
	t.simulated = &p
	t.mu.Unlock()
	return true
}

func (t *Tracker) StopSimulating() {
	t.mu.Lock()
	t.simulated = nil
	t.mu.Unlock()
}

// Simulating reports whether a simulated position is active.
func (t *Tracker) Simulating() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.simulated != nil
}

// Effective returns a copy of the position engine queries should use, or nil
// before the first fix.
func (t *Tracker) Effective() *heartlands.Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.gps
	if t.simulated != nil {
		p = t.simulated
	}
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
