package server

import (
	"net/http"
	"strconv"

	"github.com/playperu/heartlands/internal/heading"
)

type HeadingSampleRequest struct {
	Degrees float64 `json:"degrees"`
	// AtMillis is the sensor's monotonic timestamp. Zero is a valid stamp;
	// a missing one is rejected.
	AtMillis *int64 `json:"atMillis"`
}

type CalibrateRequest struct {
	TrueBearing float64 `json:"trueBearing"`
}

// HeadingResponse carries a null heading whenever none is available.
type HeadingResponse struct {
	Heading  *heading.Sample `json:"heading"`
	Accepted *bool           `json:"accepted,omitempty"`
	Granted  bool            `json:"granted"`
	Offset   float64         `json:"offset"`
	// History is included on GET /api/heading?history=true, oldest first.
	History []heading.Sample `json:"history,omitempty"`
}

func currentHeading(f *heading.Filter) HeadingResponse {
	resp := HeadingResponse{Granted: f.Granted(), Offset: f.Offset()}
	if s, ok := f.Current(); ok {
		resp.Heading = &s
	}
	return resp
}

// observeHeading feeds one sample to the filter. It reports false when the
// request carries no timestamp.
func observeHeading(f *heading.Filter, req HeadingSampleRequest) (accepted, valid bool) {
	if req.AtMillis == nil {
		return false, false
	}
	_, accepted = f.Observe(req.Degrees, *req.AtMillis)
	return accepted, true
}

func handleGetHeading(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := currentHeading(app.Heading)
		if raw := r.URL.Query().Get("history"); raw != "" {
			want, err := strconv.ParseBool(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "history must be a boolean")
				return
			}
			if want {
				resp.History = app.Heading.History()
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleHeadingSample(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req HeadingSampleRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		ok, valid := observeHeading(app.Heading, req)
		if !valid {
			writeError(w, http.StatusBadRequest, "atMillis is required")
			return
		}

		resp := currentHeading(app.Heading)
		resp.Accepted = &ok
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleHeadingGrant(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		app.Heading.Grant()
		writeJSON(w, http.StatusOK, currentHeading(app.Heading))
	}
}

// handleHeadingCalibrate reports accepted false when no reading exists yet.
func handleHeadingCalibrate(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CalibrateRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		ok := app.Heading.Calibrate(req.TrueBearing)

		resp := currentHeading(app.Heading)
		resp.Accepted = &ok
		writeJSON(w, http.StatusOK, resp)
	}
}
