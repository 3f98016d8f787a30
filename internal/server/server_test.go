package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/playperu/heartlands/internal/catalog"
	"github.com/playperu/heartlands/internal/database"
	"github.com/playperu/heartlands/internal/engine"
	"github.com/playperu/heartlands/internal/geo"
	"github.com/playperu/heartlands/internal/heading"
	"github.com/playperu/heartlands/internal/migrations"
	"github.com/playperu/heartlands/internal/progress"
)

const testPlayer = "user_abc"

func newTestApp(t *testing.T) *App {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Memory)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Run(db); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	ledger := progress.NewLedger(progress.NewSQLiteStore(db))
	return &App{
		Engine:  engine.New(ledger, testPlayer),
		Catalog: catalog.NewStaticHolder(cat),
		Tracker: engine.NewTracker(engine.DefaultMaxSpeed),
		Heading: heading.NewFilter(heading.Options{}),
		Broker:  NewBroker(),
	}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func north(c geo.Coordinate, meters float64) geo.Coordinate {
	return geo.Coordinate{Lat: c.Lat + meters/(geo.EarthRadiusMeters*math.Pi/180), Lng: c.Lng}
}

func moveTo(t *testing.T, h http.Handler, c geo.Coordinate) {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/position", PositionRequest{Lat: c.Lat, Lng: c.Lng})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/position status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCollectFlow(t *testing.T) {
	app := newTestApp(t)
	h := NewHandler(slog.Default(), app)

	q, _ := app.Catalog.Current().Quest("jurong")
	postcard, _ := q.Artefact("arch-postcard")
	sp := app.Engine.SpawnPoint(postcard)
	collectPath := "/api/quests/jurong/artefacts/arch-postcard/collect"

	// No fix yet: hidden and not collectable.
	rec := doJSON(t, h, http.MethodGet, "/api/quests/jurong/artefacts/arch-postcard", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	art := decode[ArtefactResponse](t, rec)
	if art.State != engine.StateHidden || art.SpawnPoint != nil || art.DistanceText != "—" {
		t.Errorf("without fix = %+v", art)
	}
	if res := decode[engine.CollectResult](t, doJSON(t, h, http.MethodPost, collectPath, nil)); res.Success {
		t.Error("collect without a fix succeeded")
	}

	moveTo(t, h, north(sp, 1200))
	rec = doJSON(t, h, http.MethodPost, collectPath, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("out-of-range collect status = %d, want 200", rec.Code)
	}
	if res := decode[engine.CollectResult](t, rec); res.Success || res.Record != nil {
		t.Errorf("out-of-range collect = %+v", res)
	}

	moveTo(t, h, north(sp, 10))
	art = decode[ArtefactResponse](t, doJSON(t, h, http.MethodGet, "/api/quests/jurong/artefacts/arch-postcard", nil))
	if art.State != engine.StateCollectable || art.SpawnPoint == nil || art.DistanceText != "10 m" {
		t.Errorf("in range = %+v", art)
	}

	events := app.Broker.Subscribe("jurong")
	defer app.Broker.Unsubscribe(events)

	first := decode[engine.CollectResult](t, doJSON(t, h, http.MethodPost, collectPath, nil))
	second := decode[engine.CollectResult](t, doJSON(t, h, http.MethodPost, collectPath, nil))
	if !first.Success || !first.Fresh || first.Record.PointsAwarded != 10 {
		t.Errorf("first collect = %+v", first)
	}
	if !second.Success || second.Fresh || *second.Record != *first.Record {
		t.Errorf("second collect = %+v", second)
	}

	select {
	case data := <-events:
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatal(err)
		}
		if ev.Type != EventCollected || ev.Record.ArtefactID != "arch-postcard" || ev.Score == nil || *ev.Score != 10 {
			t.Errorf("event = %+v", ev)
		}
	default:
		t.Error("no collected event published")
	}
	select {
	case <-events:
		t.Error("repeat collect published a second event")
	default:
	}

	if got := decode[ScoreResponse](t, doJSON(t, h, http.MethodGet, "/api/score", nil)); got.Score != 10 {
		t.Errorf("score = %d, want 10", got.Score)
	}
	snap := decode[map[string]progress.Entry](t, doJSON(t, h, http.MethodGet, "/api/progress", nil))
	if e, ok := snap["jurong:arch-postcard"]; !ok || e.Points != 10 || len(snap) != 1 {
		t.Errorf("progress = %v", snap)
	}

	board := decode[BoardResponse](t, doJSON(t, h, http.MethodGet, "/api/quests/jurong", nil))
	if board.Totals.ItemsCollected != 1 || len(board.Collected) != 1 || board.Position == nil {
		t.Errorf("board = %+v", board)
	}
	for _, lm := range board.Landmarks {
		if lm.ArtefactID == "grand-arch" && (lm.Discovered == nil || !*lm.Discovered) {
			t.Error("grand-arch not discovered after its postcard was collected")
		}
	}

	reset := decode[ResetResponse](t, doJSON(t, h, http.MethodPost, "/api/quests/jurong/reset", nil))
	if reset.Removed != 1 || reset.Score != 0 {
		t.Errorf("reset = %+v", reset)
	}
	art = decode[ArtefactResponse](t, doJSON(t, h, http.MethodGet, "/api/quests/jurong/artefacts/arch-postcard", nil))
	if art.State != engine.StateCollectable {
		t.Errorf("after reset state = %s, want collectable", art.State)
	}
}

func TestLandmarkCannotBeCollected(t *testing.T) {
	app := newTestApp(t)
	h := NewHandler(slog.Default(), app)

	moveTo(t, h, geo.Coordinate{Lat: 1.3386, Lng: 103.7300})
	res := decode[engine.CollectResult](t, doJSON(t, h, http.MethodPost, "/api/quests/jurong/artefacts/grand-arch/collect", nil))
	if res.Success {
		t.Error("landmark collect succeeded")
	}
	art := decode[ArtefactResponse](t, doJSON(t, h, http.MethodGet, "/api/quests/jurong/artefacts/grand-arch", nil))
	if art.State != engine.StateVisible || art.Discovered == nil || *art.Discovered {
		t.Errorf("landmark = %+v", art)
	}
}

func TestNotFound(t *testing.T) {
	h := NewHandler(slog.Default(), newTestApp(t))

	tests := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/quests/atlantis"},
		{http.MethodPost, "/api/quests/atlantis/reset"},
		{http.MethodGet, "/api/quests/jurong/artefacts/unicorn"},
		{http.MethodPost, "/api/quests/jurong/artefacts/unicorn/collect"},
	}
	for _, tt := range tests {
		rec := doJSON(t, h, tt.method, tt.path, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s = %d, want 404", tt.method, tt.path, rec.Code)
		}
	}
}

func TestListQuests(t *testing.T) {
	h := NewHandler(slog.Default(), newTestApp(t))

	quests := decode[[]QuestSummary](t, doJSON(t, h, http.MethodGet, "/api/quests", nil))
	if len(quests) != 2 || quests[0].ID != "jurong" || quests[1].ID != "civic" {
		t.Fatalf("quests = %+v", quests)
	}
	if quests[0].Totals.ItemsTotal != 18 || quests[0].Totals.ItemsCollected != 0 {
		t.Errorf("jurong totals = %+v", quests[0].Totals)
	}
}

func TestMe(t *testing.T) {
	h := NewHandler(slog.Default(), newTestApp(t))
	me := decode[MeResponse](t, doJSON(t, h, http.MethodGet, "/api/me", nil))
	if me.PlayerID != testPlayer || me.Score != 0 || me.Simulating {
		t.Errorf("me = %+v", me)
	}
}

func TestPositionTracking(t *testing.T) {
	h := NewHandler(slog.Default(), newTestApp(t))
	here := geo.Coordinate{Lat: 1.3394, Lng: 103.7258}
	fast := 12.0

	got := decode[PositionResponse](t, doJSON(t, h, http.MethodPost, "/api/position",
		PositionRequest{Lat: here.Lat, Lng: here.Lng, Speed: &fast}))
	if got.Outcome != engine.FixTooFast || got.Position != nil {
		t.Errorf("fast fix = %+v", got)
	}

	moveTo(t, h, here)
	pin := geo.Coordinate{Lat: 1.2926, Lng: 103.8537}
	got = decode[PositionResponse](t, doJSON(t, h, http.MethodPut, "/api/position/simulated",
		PositionRequest{Lat: pin.Lat, Lng: pin.Lng}))
	if !got.Simulating || got.Position.Lat != pin.Lat {
		t.Errorf("simulate = %+v", got)
	}

	if rec := doJSON(t, h, http.MethodPut, "/api/position/simulated", PositionRequest{Lat: 95}); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid pin status = %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodDelete, "/api/position/simulated", nil); rec.Code != http.StatusNoContent {
		t.Errorf("DELETE status = %d", rec.Code)
	}
	got = decode[PositionResponse](t, doJSON(t, h, http.MethodGet, "/api/position", nil))
	if got.Simulating || got.Position.Lat != here.Lat {
		t.Errorf("after stop = %+v", got)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/position", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d", rec.Code)
	}
}

func TestNearby(t *testing.T) {
	h := NewHandler(slog.Default(), newTestApp(t))

	empty := decode[NearbyResponse](t, doJSON(t, h, http.MethodGet, "/api/quests/jurong/nearby", nil))
	if len(empty.Hits) != 0 {
		t.Errorf("nearby without a fix = %d hits", len(empty.Hits))
	}

	moveTo(t, h, geo.Coordinate{Lat: 1.3386, Lng: 103.7300})
	got := decode[NearbyResponse](t, doJSON(t, h, http.MethodGet, "/api/quests/jurong/nearby?radius=50", nil))
	ids := map[string]bool{}
	for _, hit := range got.Hits {
		ids[hit.ArtefactID] = true
		if hit.AnchorDistanceMeters > 50 {
			t.Errorf("%s at %.1f m is outside the radius", hit.ArtefactID, hit.AnchorDistanceMeters)
		}
	}
	if !ids["grand-arch"] || !ids["arch-postcard"] {
		t.Errorf("nearby hits = %v", ids)
	}

	explicit := decode[NearbyResponse](t, doJSON(t, h, http.MethodGet, "/api/quests/civic/nearby?lat=1.2926&lng=103.8537&radius=10", nil))
	if len(explicit.Hits) != 2 {
		t.Errorf("civic nearby = %d hits, want landmark and pin", len(explicit.Hits))
	}

	nearest := decode[NearbyResponse](t, doJSON(t, h, http.MethodGet, "/api/quests/jurong/nearby?k=3", nil))
	if nearest.K != 3 || len(nearest.Hits) != 3 {
		t.Fatalf("k=3 = %+v", nearest)
	}
	if nearest.Hits[0].AnchorDistanceMeters != 0 || nearest.Hits[1].AnchorDistanceMeters != 0 {
		t.Errorf("two artefacts sit on the arch anchor, got %+v", nearest.Hits[:2])
	}
	if nearest.Hits[2].AnchorDistanceMeters < nearest.Hits[1].AnchorDistanceMeters {
		t.Error("k nearest not ordered by distance")
	}

	for _, q := range []string{"radius=0", "radius=9000", "radius=x", "lat=1.3", "lat=100&lng=0", "k=0", "k=51", "k=two", "k=2&radius=100"} {
		if rec := doJSON(t, h, http.MethodGet, "/api/quests/jurong/nearby?"+q, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("nearby?%s status = %d, want 400", q, rec.Code)
		}
	}
}

func sample(degrees float64, atMillis int64) HeadingSampleRequest {
	return HeadingSampleRequest{Degrees: degrees, AtMillis: &atMillis}
}

func TestHeadingEndpoints(t *testing.T) {
	h := NewHandler(slog.Default(), newTestApp(t))

	got := decode[HeadingResponse](t, doJSON(t, h, http.MethodGet, "/api/heading", nil))
	if got.Heading != nil || got.Granted {
		t.Errorf("before grant = %+v", got)
	}

	got = decode[HeadingResponse](t, doJSON(t, h, http.MethodPost, "/api/heading", sample(90, 1000)))
	if got.Heading != nil || *got.Accepted {
		t.Errorf("sample before grant = %+v", got)
	}

	doJSON(t, h, http.MethodPost, "/api/heading/grant", nil)
	got = decode[HeadingResponse](t, doJSON(t, h, http.MethodPost, "/api/heading", sample(90, 1000)))
	if !*got.Accepted || got.Heading == nil || got.Heading.Degrees != 90 {
		t.Errorf("first sample = %+v", got)
	}
	got = decode[HeadingResponse](t, doJSON(t, h, http.MethodPost, "/api/heading", sample(180, 1050)))
	if *got.Accepted || got.Heading.Degrees != 90 {
		t.Errorf("throttled sample = %+v", got)
	}

	got = decode[HeadingResponse](t, doJSON(t, h, http.MethodPost, "/api/heading/calibrate", CalibrateRequest{TrueBearing: 100}))
	if !*got.Accepted || got.Heading.Degrees != 100 || got.Offset != 10 {
		t.Errorf("calibrate = %+v", got)
	}

	got = decode[HeadingResponse](t, doJSON(t, h, http.MethodGet, "/api/heading?history=true", nil))
	if len(got.History) != 1 || got.History[0].AtMillis != 1000 {
		t.Errorf("history = %+v", got.History)
	}
	if got = decode[HeadingResponse](t, doJSON(t, h, http.MethodGet, "/api/heading", nil)); got.History != nil {
		t.Errorf("history returned without asking: %+v", got.History)
	}
	if rec := doJSON(t, h, http.MethodGet, "/api/heading?history=maybe", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("history=maybe status = %d, want 400", rec.Code)
	}
}

func TestHeadingSensorClockStartingAtZero(t *testing.T) {
	h := NewHandler(slog.Default(), newTestApp(t))
	doJSON(t, h, http.MethodPost, "/api/heading/grant", nil)

	if rec := doJSON(t, h, http.MethodPost, "/api/heading", map[string]float64{"degrees": 10}); rec.Code != http.StatusBadRequest {
		t.Errorf("sample without atMillis status = %d, want 400", rec.Code)
	}

	var accepted []int64
	for _, at := range []int64{0, 1, 50, 99, 100, 150, 200} {
		got := decode[HeadingResponse](t, doJSON(t, h, http.MethodPost, "/api/heading", sample(float64(at), at)))
		if *got.Accepted {
			accepted = append(accepted, at)
		}
	}
	if len(accepted) != 3 || accepted[0] != 0 || accepted[1] != 100 || accepted[2] != 200 {
		t.Errorf("accepted at %v, want [0 100 200]", accepted)
	}
}
