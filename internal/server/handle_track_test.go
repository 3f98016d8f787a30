package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialTrack(t *testing.T, app *App, query string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(NewHandler(slog.Default(), app))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/track" + query
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteJSON(inboundMessage{Type: typ, Payload: raw}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func receive(t *testing.T, conn *websocket.Conn) trackMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var m trackMessage
	if err := conn.ReadJSON(&m); err != nil {
		t.Fatalf("read: %v", err)
	}
	return m
}

func TestTrackUnknownQuest(t *testing.T) {
	srv := httptest.NewServer(NewHandler(slog.Default(), newTestApp(t)))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/track?quest=atlantis"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 response, got %v", resp)
	}
}

func TestTrackOriginCheck(t *testing.T) {
	srv := httptest.NewServer(NewHandler(slog.Default(), newTestApp(t)))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/track"

	tests := []struct {
		name    string
		origin  string
		wantErr bool
	}{
		{"no origin", "", false},
		{"same origin", srv.URL, false},
		{"foreign page", "https://evil.example", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
			if tt.wantErr {
				if err == nil {
					conn.Close()
					t.Fatal("expected handshake to fail")
				}
				if resp == nil || resp.StatusCode != http.StatusForbidden {
					t.Fatalf("expected 403 response, got %v", resp)
				}
				return
			}
			if err != nil {
				t.Fatalf("dial: %v", err)
			}
			conn.Close()
		})
	}
}

func TestTrackPositionUpdatesBoard(t *testing.T) {
	app := newTestApp(t)
	conn := dialTrack(t, app, "?quest=jurong")

	initial := receive(t, conn)
	if initial.Type != "board" || initial.Board.QuestID != "jurong" || initial.Board.Position != nil {
		t.Fatalf("initial = %+v", initial)
	}

	q, _ := app.Catalog.Current().Quest("jurong")
	postcard, _ := q.Artefact("arch-postcard")
	sp := app.Engine.SpawnPoint(postcard)

	send(t, conn, "position", PositionRequest{Lat: sp.Lat, Lng: sp.Lng})

	pos := receive(t, conn)
	if pos.Type != "position" || pos.Position.Outcome != "accepted" {
		t.Fatalf("position reply = %+v", pos)
	}
	board := receive(t, conn)
	if board.Type != "board" || board.Board.Position == nil {
		t.Fatalf("board reply = %+v", board)
	}
	found := false
	for _, v := range board.Board.Hunt {
		if v.ArtefactID == "arch-postcard" {
			found = true
			if v.State != "collectable" {
				t.Errorf("arch-postcard state = %s", v.State)
			}
		}
	}
	if !found {
		t.Error("arch-postcard missing from hunt")
	}
}

func TestTrackQuestSelectionAndErrors(t *testing.T) {
	conn := dialTrack(t, newTestApp(t), "")

	send(t, conn, "quest", selectQuestPayload{QuestID: "atlantis"})
	if m := receive(t, conn); m.Type != "error" || m.Error != "quest not found" {
		t.Fatalf("unknown quest reply = %+v", m)
	}

	send(t, conn, "quest", selectQuestPayload{QuestID: "civic"})
	if m := receive(t, conn); m.Type != "board" || m.Board.QuestID != "civic" {
		t.Fatalf("quest reply = %+v", m)
	}

	send(t, conn, "teleport", nil)
	if m := receive(t, conn); m.Type != "error" {
		t.Fatalf("unknown type reply = %+v", m)
	}
}

func TestTrackForwardsEvents(t *testing.T) {
	app := newTestApp(t)
	conn := dialTrack(t, app, "")

	// The quest reply proves the session is subscribed.
	send(t, conn, "quest", selectQuestPayload{QuestID: "jurong"})
	if m := receive(t, conn); m.Type != "board" {
		t.Fatalf("quest reply = %+v", m)
	}

	app.Broker.Publish(Event{Type: EventQuestReset, QuestID: "jurong", Removed: 2})
	m := receive(t, conn)
	if m.Type != "event" {
		t.Fatalf("expected event, got %+v", m)
	}
	var ev Event
	if err := json.Unmarshal(m.Event, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != EventQuestReset || ev.Removed != 2 {
		t.Errorf("event = %+v", ev)
	}
}

func TestTrackHeading(t *testing.T) {
	app := newTestApp(t)
	app.Heading.Grant()
	conn := dialTrack(t, app, "")

	send(t, conn, "heading", sample(370, 1000))
	// Too soon: dropped without a reply.
	send(t, conn, "heading", sample(200, 1010))
	send(t, conn, "heading", sample(45, 1200))

	first := receive(t, conn)
	if first.Type != "heading" || first.Heading.Heading.Degrees != 10 {
		t.Fatalf("first heading = %+v", first)
	}
	second := receive(t, conn)
	if second.Heading.Heading.Degrees != 45 {
		t.Fatalf("second heading = %+v", second.Heading.Heading)
	}

	send(t, conn, "heading", map[string]float64{"degrees": 90})
	if m := receive(t, conn); m.Type != "error" || m.Error != "atMillis is required" {
		t.Fatalf("unstamped heading reply = %+v", m)
	}
}
