// Package heading turns raw compass readings into a throttled, calibrated
// bearing for rotating the player marker.
package heading

import (
	"math"
	"sync"
	"time"
)

// DefaultMinInterval is the minimum spacing between accepted samples.
const DefaultMinInterval = 100 * time.Millisecond

// Normalize folds raw degrees into [0, 360).
func Normalize(raw float64) float64 {
	h := math.Mod(raw, 360)
	if h < 0 {
		h += 360
	}
	if h >= 360 {
		h = 0
	}
	return h
}

// Update applies the rate limit and calibration offset to one raw sample.
// haveLast is false before the first accepted sample; any timestamp,
// including zero, is a valid lastMillis once it is true. A rejected sample
// returns ok false with lastMillis unchanged.
func Update(raw, offset float64, lastMillis int64, haveLast bool, nowMillis, minIntervalMillis int64) (heading float64, ok bool, newLast int64) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, false, lastMillis
	}
	if haveLast && (nowMillis < lastMillis || nowMillis-lastMillis < minIntervalMillis) {
		return 0, false, lastMillis
	}
	return Normalize(raw + offset), true, nowMillis
}

// Sample is an accepted heading.
type Sample struct {
	Degrees  float64 `json:"degrees"`
	AtMillis int64   `json:"atMillis"`
}

type Options struct {
	MinInterval time.Duration
	// RequireCalibration hides the heading until Calibrate has been called.
	RequireCalibration bool
	// HistorySize bounds History. Zero means 64.
	HistorySize int
}

// Filter is the stateful heading source for one player session. It is safe
// for concurrent use.
type Filter struct {
	mu   sync.Mutex
	opts Options

	granted    bool
	calibrated bool
	offset     float64

	lastMillis int64
	lastRaw    float64
	// haveLast is set by the first accepted sample.
	haveLast bool

	current Sample
	valid   bool

	history []Sample
	next    int
	full    bool
}

func NewFilter(opts Options) *Filter {
	if opts.MinInterval <= 0 {
		opts.MinInterval = DefaultMinInterval
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = 64
	}
	return &Filter{opts: opts, history: make([]Sample, opts.HistorySize)}
}

// Grant records that the sensor permission was given. Samples observed
// before Grant are dropped.
func (f *Filter) Grant() {
	f.mu.Lock()
	f.granted = true
	f.mu.Unlock()
}

func (f *Filter) Granted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.granted
}

// Observe feeds a raw reading taken at nowMillis and reports the accepted
// heading, if any.
func (f *Filter) Observe(raw float64, nowMillis int64) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.granted {
		return 0, false
	}
	h, ok, last := Update(raw, f.offset, f.lastMillis, f.haveLast, nowMillis, f.opts.MinInterval.Milliseconds())
	if !ok {
		return 0, false
	}
	f.lastMillis = last
	f.haveLast = true
	f.lastRaw = raw
	f.current = Sample{Degrees: h, AtMillis: nowMillis}
	f.valid = true

	f.history[f.next] = f.current
	f.next = (f.next + 1) % len(f.history)
	if f.next == 0 {
		f.full = true
	}
	return h, true
}

// Calibrate sets the offset so the last accepted raw reading maps to
// trueBearing. It reports false before any reading was accepted.
func (f *Filter) Calibrate(trueBearing float64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.haveLast || math.IsNaN(trueBearing) || math.IsInf(trueBearing, 0) {
		return false
	}
	f.offset = Normalize(trueBearing - f.lastRaw)
	f.calibrated = true
	f.current.Degrees = Normalize(f.lastRaw + f.offset)
	return true
}

// Offset returns the calibration offset in degrees.
func (f *Filter) Offset() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offset
}

// Current returns the heading, or ok false when none is available: before
// permission, before the first accepted sample, or before calibration when
// it is required.
func (f *Filter) Current() (Sample, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.granted || !f.valid {
		return Sample{}, false
	}
	if f.opts.RequireCalibration && !f.calibrated {
		return Sample{}, false
	}
	return f.current, true
}

// History returns the retained accepted samples, oldest first.
func (f *Filter) History() []Sample {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.full {
		return append([]Sample(nil), f.history[:f.next]...)
	}
	out := make([]Sample, 0, len(f.history))
	out = append(out, f.history[f.next:]...)
	return append(out, f.history[:f.next]...)
}
