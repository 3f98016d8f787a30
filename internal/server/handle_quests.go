package server

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/playperu/heartlands/internal/engine"
	"github.com/playperu/heartlands/internal/geo"
	"github.com/playperu/heartlands/internal/heartlands"
)

const (
	defaultNearbyMeters = 500.0
	maxNearbyMeters     = 5000.0
	maxNearestK         = 50
)

type QuestSummary struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	BBox        geo.BBox      `json:"bbox"`
	Totals      engine.Totals `json:"totals"`
}

type BoardResponse struct {
	engine.Board
	Position *PositionView `json:"position"`
}

type ArtefactResponse struct {
	engine.Visibility
	Blurb        string `json:"blurb,omitempty"`
	Rarity       string `json:"rarity,omitempty"`
	Points       int    `json:"points"`
	DistanceText string `json:"distanceText"`
}

type NearbyHit struct {
	ArtefactResponse
	AnchorDistanceMeters float64 `json:"anchorDistanceMeters"`
}

// NearbyResponse carries RadiusMeters for a radius query and K for a
// nearest-k query.
type NearbyResponse struct {
	RadiusMeters float64     `json:"radiusMeters,omitempty"`
	K            int         `json:"k,omitempty"`
	Hits         []NearbyHit `json:"hits"`
}

type ResetResponse struct {
	Removed int `json:"removed"`
	Score   int `json:"score"`
}

func artefactView(a heartlands.Artefact, v engine.Visibility) ArtefactResponse {
	text := geo.FormatMeters(math.NaN())
	if v.DistanceMeters != nil {
		text = geo.FormatMeters(*v.DistanceMeters)
	}
	return ArtefactResponse{
		Visibility:   v,
		Blurb:        a.Blurb,
		Rarity:       string(a.Rarity),
		Points:       a.Points,
		DistanceText: text,
	}
}

func handleListQuests(logger *slog.Logger, app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quests := app.Catalog.Current().Quests()
		out := make([]QuestSummary, 0, len(quests))
		for _, q := range quests {
			totals, err := app.Engine.Totals(r.Context(), q)
			if err != nil {
				logger.Error("computing totals", "quest", q.ID, "error", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			out = append(out, QuestSummary{
				ID:          q.ID,
				Name:        q.Name,
				Description: q.Description,
				BBox:        q.BBox,
				Totals:      totals,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleBoard(logger *slog.Logger, app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := questFrom(r)
		pos := app.Tracker.Effective()
		board, err := app.Engine.Board(r.Context(), q, pos)
		if err != nil {
			logger.Error("building board", "quest", q.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, BoardResponse{Board: board, Position: positionView(pos)})
	}
}

func handleArtefact(logger *slog.Logger, app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, a := questFrom(r), artefactFrom(r)
		v, err := app.Engine.VisibleState(r.Context(), q.ID, a, app.Tracker.Effective())
		if err != nil {
			logger.Error("evaluating artefact", "quest", q.ID, "artefact", a.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, artefactView(a, v))
	}
}

// handleCollect always answers 200 for precondition failures; the client
// reads success.
func handleCollect(logger *slog.Logger, app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, a := questFrom(r), artefactFrom(r)
		res, err := app.Engine.AttemptCollect(r.Context(), q.ID, a, app.Tracker.Effective())
		if err != nil {
			logger.Error("collecting artefact", "quest", q.ID, "artefact", a.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		if res.Fresh {
			ev := Event{Type: EventCollected, QuestID: q.ID, Record: res.Record}
			if score, err := app.Engine.Score(r.Context()); err == nil {
				ev.Score = &score
			} else {
				logger.Error("reading score", "error", err)
			}
			logger.Info("artefact collected", "quest", q.ID, "artefact", a.ID, "points", res.Record.PointsAwarded)
			app.Broker.Publish(ev)
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleNearby(logger *slog.Logger, app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := questFrom(r)
		query := r.URL.Query()

		k := 0
		if raw := query.Get("k"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v < 1 || v > maxNearestK {
				writeError(w, http.StatusBadRequest, "k must be between 1 and 50")
				return
			}
			if query.Has("radius") {
				writeError(w, http.StatusBadRequest, "k and radius are exclusive")
				return
			}
			k = v
		}

		radius := defaultNearbyMeters
		if raw := query.Get("radius"); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || !(v > 0) || v > maxNearbyMeters {
				writeError(w, http.StatusBadRequest, "radius must be between 0 and 5000 meters")
				return
			}
			radius = v
		}

		pos := app.Tracker.Effective()
		if query.Has("lat") || query.Has("lng") {
			lat, errLat := strconv.ParseFloat(query.Get("lat"), 64)
			lng, errLng := strconv.ParseFloat(query.Get("lng"), 64)
			c := geo.Coordinate{Lat: lat, Lng: lng}
			if errLat != nil || errLng != nil || !c.Valid() {
				writeError(w, http.StatusBadRequest, "invalid lat/lng")
				return
			}
			pos = &heartlands.Position{Coordinate: c}
		}

		resp := NearbyResponse{RadiusMeters: radius, Hits: []NearbyHit{}}
		if k > 0 {
			resp = NearbyResponse{K: k, Hits: []NearbyHit{}}
		}
		if !pos.Usable() {
			writeJSON(w, http.StatusOK, resp)
			return
		}

		ix, err := app.Catalog.Current().Index(q.ID)
		if err != nil {
			// The quest vanished in a reload between middleware and here.
			writeError(w, http.StatusNotFound, "quest not found")
			return
		}
		hits := ix.Within(pos.Coordinate, radius)
		if k > 0 {
			hits = ix.Nearest(pos.Coordinate, k)
		}
		for _, hit := range hits {
			v, err := app.Engine.VisibleState(r.Context(), q.ID, hit.Artefact, pos)
			if err != nil {
				logger.Error("evaluating artefact", "quest", q.ID, "artefact", hit.Artefact.ID, "error", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			resp.Hits = append(resp.Hits, NearbyHit{
				ArtefactResponse:     artefactView(hit.Artefact, v),
				AnchorDistanceMeters: hit.DistanceMeters,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleReset(logger *slog.Logger, app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := questFrom(r)
		n, err := app.Engine.ResetQuest(r.Context(), q.ID)
		if err != nil {
			logger.Error("resetting quest", "quest", q.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		score, err := app.Engine.Score(r.Context())
		if err != nil {
			logger.Error("reading score", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		logger.Info("quest reset", "quest", q.ID, "removed", n)
		app.Broker.Publish(Event{Type: EventQuestReset, QuestID: q.ID, Removed: n, Score: &score})
		writeJSON(w, http.StatusOK, ResetResponse{Removed: n, Score: score})
	}
}
