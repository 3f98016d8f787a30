package server

import (
	"log/slog"
	"net/http"

	"github.com/playperu/heartlands/internal/progress"
)

type MeResponse struct {
	PlayerID   string `json:"playerId"`
	Score      int    `json:"score"`
	Simulating bool   `json:"simulating"`
}

type ScoreResponse struct {
	Score int `json:"score"`
}

type ImportResponse struct {
	Added int `json:"added"`
	Score int `json:"score"`
}

func handleMe(logger *slog.Logger, app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		score, err := app.Engine.Score(r.Context())
		if err != nil {
			logger.Error("reading score", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, MeResponse{
			PlayerID:   app.Engine.PlayerID(),
			Score:      score,
			Simulating: app.Tracker.Simulating(),
		})
	}
}

func handleScore(logger *slog.Logger, app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		score, err := app.Engine.Score(r.Context())
		if err != nil {
			logger.Error("reading score", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, ScoreResponse{Score: score})
	}
}

// handleProgressExport returns the flat "{quest}:{artefact}" -> entry map.
func handleProgressExport(logger *slog.Logger, app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := app.Engine.Ledger().Export(r.Context())
		if err != nil {
			logger.Error("exporting progress", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// handleProgressImport merges an exported map. Existing records win.
func handleProgressImport(logger *slog.Logger, app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var snap progress.Snapshot
		if err := readJSON(w, r, &snap); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		for key := range snap {
			if _, _, ok := progress.SplitKey(key); !ok {
				writeError(w, http.StatusBadRequest, "malformed progress key")
				return
			}
		}

		added, err := app.Engine.Ledger().Import(r.Context(), snap)
		if err != nil {
			logger.Error("importing progress", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		score, err := app.Engine.Score(r.Context())
		if err != nil {
			logger.Error("reading score", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		logger.Info("progress imported", "added", added)
		writeJSON(w, http.StatusOK, ImportResponse{Added: added, Score: score})
	}
}
