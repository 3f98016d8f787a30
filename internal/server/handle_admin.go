package server

import (
	"log/slog"
	"net/http"
)

type ReloadResponse struct {
	Quests    int    `json:"quests"`
	Artefacts int    `json:"artefacts"`
	Source    string `json:"source"`
}

// handleCatalogReload re-reads the catalogue. On failure the previous
// catalogue stays live and the error is returned to the admin.
func handleCatalogReload(logger *slog.Logger, app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := app.Catalog.Reload()
		if err != nil {
			logger.Warn("catalogue reload failed", "path", app.Catalog.Path(), "error", err)
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		resp := ReloadResponse{Quests: len(c.Quests()), Source: app.Catalog.Path()}
		if resp.Source == "" {
			resp.Source = "embedded"
		}
		for _, q := range c.Quests() {
			resp.Artefacts += len(q.Artefacts)
		}

		logger.Info("catalogue reloaded", "quests", resp.Quests, "artefacts", resp.Artefacts, "source", resp.Source)
		app.Broker.Publish(Event{Type: EventCatalogReloaded})
		writeJSON(w, http.StatusOK, resp)
	}
}
