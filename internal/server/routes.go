package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/playperu/heartlands/internal/handler/health"
)

func addRoutes(r chi.Router, logger *slog.Logger, app *App) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Heartlands API", "/openapi.json", "/docs"))
	r.Mount("/healthz", health.NewHandler(logger, app.Checks).Routes())
	r.Get("/ws/track", handleTrack(logger, app))

	r.Route("/api", func(r chi.Router) {
		r.Get("/me", handleMe(logger, app))
		r.Get("/score", handleScore(logger, app))
		r.Get("/progress", handleProgressExport(logger, app))
		r.Put("/progress", handleProgressImport(logger, app))
		r.Get("/events", handleEvents(app.Broker))

		r.Post("/position", handlePosition(app))
		r.Get("/position", handleGetPosition(app))
		r.Put("/position/simulated", handleSimulate(app))
		r.Delete("/position/simulated", handleStopSimulating(app))

		r.Get("/heading", handleGetHeading(app))
		r.Post("/heading", handleHeadingSample(app))
		r.Post("/heading/grant", handleHeadingGrant(app))
		r.Post("/heading/calibrate", handleHeadingCalibrate(app))

		r.Get("/quests", handleListQuests(logger, app))
		r.Route("/quests/{questID}", func(r chi.Router) {
			r.Use(questMiddleware(app.Catalog))
			r.Get("/", handleBoard(logger, app))
			r.Get("/nearby", handleNearby(logger, app))
			r.Post("/reset", handleReset(logger, app))
			r.Route("/artefacts/{artefactID}", func(r chi.Router) {
				r.Use(artefactMiddleware)
				r.Get("/", handleArtefact(logger, app))
				r.Post("/collect", handleCollect(logger, app))
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(adminAuthMiddleware(app.Admin))
			r.Post("/catalog/reload", handleCatalogReload(logger, app))
		})
	})

	if app.ClientDir != "" {
		r.Get("/*", handleClient(app.ClientDir))
	}
}
