package server

import (
	"net/http"

	"github.com/playperu/heartlands/internal/engine"
	"github.com/playperu/heartlands/internal/geo"
	"github.com/playperu/heartlands/internal/heartlands"
)

// PositionRequest is an already-extracted location fix.
type PositionRequest struct {
	Lat            float64  `json:"lat"`
	Lng            float64  `json:"lng"`
	AccuracyMeters *float64 `json:"accuracyMeters,omitempty"`
	Speed          *float64 `json:"speed,omitempty"`
}

func (p PositionRequest) position() heartlands.Position {
	return heartlands.Position{
		Coordinate:     geo.Coordinate{Lat: p.Lat, Lng: p.Lng},
		AccuracyMeters: p.AccuracyMeters,
		Speed:          p.Speed,
	}
}

type PositionView struct {
	Lat            float64  `json:"lat"`
	Lng            float64  `json:"lng"`
	AccuracyMeters *float64 `json:"accuracyMeters,omitempty"`
}

func positionView(p *heartlands.Position) *PositionView {
	if p == nil {
		return nil
	}
	return &PositionView{Lat: p.Lat, Lng: p.Lng, AccuracyMeters: p.AccuracyMeters}
}

type PositionResponse struct {
	Outcome    engine.FixOutcome `json:"outcome,omitempty"`
	Position   *PositionView     `json:"position"`
	Simulating bool              `json:"simulating"`
}

// handlePosition feeds a GPS fix to the tracker. Dropped fixes are not
// errors; the outcome says why.
func handlePosition(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PositionRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		outcome := app.Tracker.Observe(req.position())
		writeJSON(w, http.StatusOK, PositionResponse{
			Outcome:    outcome,
			Position:   positionView(app.Tracker.Effective()),
			Simulating: app.Tracker.Simulating(),
		})
	}
}

func handleGetPosition(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, PositionResponse{
			Position:   positionView(app.Tracker.Effective()),
			Simulating: app.Tracker.Simulating(),
		})
	}
}

func handleSimulate(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PositionRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if !app.Tracker.Simulate(req.position()) {
			writeError(w, http.StatusBadRequest, "invalid coordinate")
			return
		}
		writeJSON(w, http.StatusOK, PositionResponse{
			Outcome:    engine.FixSimulated,
			Position:   positionView(app.Tracker.Effective()),
			Simulating: true,
		})
	}
}

func handleStopSimulating(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		app.Tracker.StopSimulating()
		w.WriteHeader(http.StatusNoContent)
	}
}
