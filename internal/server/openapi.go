package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/heartlands/internal/engine"
	"github.com/playperu/heartlands/internal/progress"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse maps each checker name to its status.
type HealthResponse map[string]struct {
	Status string `json:"status"`
}

type questPath struct {
	QuestID string `path:"questID"`
}

type artefactPath struct {
	QuestID    string `path:"questID"`
	ArtefactID string `path:"artefactID"`
}

type nearbyQuery struct {
	QuestID string   `path:"questID"`
	Radius  *float64 `query:"radius" description:"Search radius in meters, default 500, at most 5000."`
	K       *int     `query:"k" description:"Return the k nearest artefacts (1-50) instead of a radius search."`
	Lat     *float64 `query:"lat" description:"Centre latitude; defaults to the tracked position."`
	Lng     *float64 `query:"lng" description:"Centre longitude; defaults to the tracked position."`
}

type headingQuery struct {
	History bool `query:"history" description:"Include the retained accepted samples, oldest first."`
}

type eventsQuery struct {
	Quest string `query:"quest" description:"Only stream events for this quest."`
}

type trackQuery struct {
	Quest string `query:"quest" description:"Quest whose board is pushed after each position."`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Heartlands API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Local host for the Heartlands walking collection game.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /ws/track
	getTrack, _ := r.NewOperationContext(http.MethodGet, "/ws/track")
	getTrack.SetSummary("Live tracking")
	getTrack.SetDescription("Upgrades to a WebSocket. Send {type, payload} messages of type position, heading or quest; " +
		"receive board, position, heading, event and error messages.")
	getTrack.AddReqStructure(trackQuery{})
	getTrack.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getTrack)

	// GET /api/me
	getMe, _ := r.NewOperationContext(http.MethodGet, "/api/me")
	getMe.SetSummary("Current player")
	getMe.SetDescription("Returns the installation's player identity and running score.")
	getMe.AddRespStructure(MeResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getMe)

	// GET /api/score
	getScore, _ := r.NewOperationContext(http.MethodGet, "/api/score")
	getScore.SetSummary("Total score")
	getScore.AddRespStructure(ScoreResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getScore)

	// GET /api/progress
	getProgress, _ := r.NewOperationContext(http.MethodGet, "/api/progress")
	getProgress.SetSummary("Export progress")
	getProgress.SetDescription(`Flat map from "{questId}:{artefactId}" to {when, points}.`)
	getProgress.AddRespStructure(map[string]progress.Entry{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getProgress)

	// PUT /api/progress
	putProgress, _ := r.NewOperationContext(http.MethodPut, "/api/progress")
	putProgress.SetSummary("Import progress")
	putProgress.SetDescription("Merges an exported progress map. Records that already exist are kept.")
	putProgress.AddReqStructure(map[string]progress.Entry{})
	putProgress.AddRespStructure(ImportResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	putProgress.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(putProgress)

	// GET /api/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/events")
	getEvents.SetSummary("SSE event stream")
	getEvents.SetDescription("Server-Sent Events for collections, quest resets and catalogue reloads.")
	getEvents.AddReqStructure(eventsQuery{})
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// POST /api/position
	postPosition, _ := r.NewOperationContext(http.MethodPost, "/api/position")
	postPosition.SetSummary("Report GPS fix")
	postPosition.SetDescription("Fixes at or above the speed limit, or with invalid coordinates, are dropped.")
	postPosition.AddReqStructure(PositionRequest{})
	postPosition.AddRespStructure(PositionResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postPosition.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postPosition)

	// GET /api/position
	getPosition, _ := r.NewOperationContext(http.MethodGet, "/api/position")
	getPosition.SetSummary("Effective position")
	getPosition.AddRespStructure(PositionResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getPosition)

	// PUT /api/position/simulated
	putSim, _ := r.NewOperationContext(http.MethodPut, "/api/position/simulated")
	putSim.SetSummary("Simulate position")
	putSim.SetDescription("Pins the effective position, overriding GPS until removed.")
	putSim.AddReqStructure(PositionRequest{})
	putSim.AddRespStructure(PositionResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	putSim.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(putSim)

	// DELETE /api/position/simulated
	deleteSim, _ := r.NewOperationContext(http.MethodDelete, "/api/position/simulated")
	deleteSim.SetSummary("Stop simulating")
	deleteSim.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	_ = r.AddOperation(deleteSim)

	// GET /api/heading
	getHeading, _ := r.NewOperationContext(http.MethodGet, "/api/heading")
	getHeading.SetSummary("Current heading")
	getHeading.SetDescription("heading is null before permission, before the first sample, or before a required calibration.")
	getHeading.AddReqStructure(headingQuery{})
	getHeading.AddRespStructure(HeadingResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHeading.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(getHeading)

	// POST /api/heading
	postHeading, _ := r.NewOperationContext(http.MethodPost, "/api/heading")
	postHeading.SetSummary("Report heading sample")
	postHeading.SetDescription("atMillis is the sensor clock and is required. Samples closer together than the minimum interval, or out of order, are rejected.")
	postHeading.AddReqStructure(HeadingSampleRequest{})
	postHeading.AddRespStructure(HeadingResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postHeading.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postHeading)

	// POST /api/heading/grant
	postGrant, _ := r.NewOperationContext(http.MethodPost, "/api/heading/grant")
	postGrant.SetSummary("Grant sensor permission")
	postGrant.AddRespStructure(HeadingResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(postGrant)

	// POST /api/heading/calibrate
	postCalibrate, _ := r.NewOperationContext(http.MethodPost, "/api/heading/calibrate")
	postCalibrate.SetSummary("Calibrate heading")
	postCalibrate.SetDescription("Sets the offset so the last raw reading points at trueBearing.")
	postCalibrate.AddReqStructure(CalibrateRequest{})
	postCalibrate.AddRespStructure(HeadingResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postCalibrate.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postCalibrate)

	// GET /api/quests
	listQuests, _ := r.NewOperationContext(http.MethodGet, "/api/quests")
	listQuests.SetSummary("List quests")
	listQuests.AddRespStructure([]QuestSummary{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(listQuests)

	// GET /api/quests/{questID}
	getBoard, _ := r.NewOperationContext(http.MethodGet, "/api/quests/{questID}")
	getBoard.SetSummary("Quest board")
	getBoard.SetDescription("Hunt list nearest first, collected list newest first, landmarks and totals.")
	getBoard.AddReqStructure(questPath{})
	getBoard.AddRespStructure(BoardResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getBoard.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getBoard)

	// GET /api/quests/{questID}/nearby
	getNearby, _ := r.NewOperationContext(http.MethodGet, "/api/quests/{questID}/nearby")
	getNearby.SetSummary("Nearby artefacts")
	getNearby.SetDescription("Artefacts anchored within the radius, or the k nearest, nearest first.")
	getNearby.AddReqStructure(nearbyQuery{})
	getNearby.AddRespStructure(NearbyResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getNearby.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	getNearby.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getNearby)

	// POST /api/quests/{questID}/reset
	postReset, _ := r.NewOperationContext(http.MethodPost, "/api/quests/{questID}/reset")
	postReset.SetSummary("Reset quest")
	postReset.SetDescription("Removes every collection record of the quest.")
	postReset.AddReqStructure(questPath{})
	postReset.AddRespStructure(ResetResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postReset.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(postReset)

	// GET /api/quests/{questID}/artefacts/{artefactID}
	getArtefact, _ := r.NewOperationContext(http.MethodGet, "/api/quests/{questID}/artefacts/{artefactID}")
	getArtefact.SetSummary("Artefact state")
	getArtefact.SetDescription("Visibility for the effective position. The spawn point appears only once collectable.")
	getArtefact.AddReqStructure(artefactPath{})
	getArtefact.AddRespStructure(ArtefactResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getArtefact.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getArtefact)

	// POST /api/quests/{questID}/artefacts/{artefactID}/collect
	postCollect, _ := r.NewOperationContext(http.MethodPost, "/api/quests/{questID}/artefacts/{artefactID}/collect")
	postCollect.SetSummary("Collect artefact")
	postCollect.SetDescription("success is false when out of range or without a position; repeats return the existing record.")
	postCollect.AddReqStructure(artefactPath{})
	postCollect.AddRespStructure(engine.CollectResult{}, openapi.WithHTTPStatus(http.StatusOK))
	postCollect.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(postCollect)

	// POST /api/admin/catalog/reload
	postReload, _ := r.NewOperationContext(http.MethodPost, "/api/admin/catalog/reload")
	postReload.SetSummary("Reload catalogue")
	postReload.SetDescription("Re-reads the quest catalogue. Requires HTTP basic auth.")
	postReload.AddRespStructure(ReloadResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postReload.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	postReload.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnprocessableEntity))
	_ = r.AddOperation(postReload)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
