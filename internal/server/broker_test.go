package server

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestBrokerFiltersByQuest(t *testing.T) {
	b := NewBroker()
	jurong := b.Subscribe("jurong")
	all := b.Subscribe("")
	defer b.Unsubscribe(jurong)
	defer b.Unsubscribe(all)

	b.Publish(Event{Type: EventQuestReset, QuestID: "civic"})
	b.Publish(Event{Type: EventQuestReset, QuestID: "jurong"})
	b.Publish(Event{Type: EventCatalogReloaded})

	if got := len(jurong); got != 2 {
		t.Errorf("jurong subscriber got %d events, want 2", got)
	}
	if got := len(all); got != 3 {
		t.Errorf("unfiltered subscriber got %d events, want 3", got)
	}

	var ev Event
	if err := json.Unmarshal(<-jurong, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.QuestID != "jurong" {
		t.Errorf("first jurong event = %+v", ev)
	}
}

func TestBrokerDropsForSlowSubscriber(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	for i := 0; i < 100; i++ {
		b.Publish(Event{Type: EventCatalogReloaded})
	}
	if got := len(ch); got != cap(ch) {
		t.Errorf("buffered %d events, want %d", got, cap(ch))
	}
}

func TestBrokerUnsubscribe(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("")
	b.Unsubscribe(ch)

	b.Publish(Event{Type: EventCatalogReloaded})
	if len(ch) != 0 {
		t.Error("unsubscribed channel received an event")
	}
}

func TestEventsStream(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(NewHandler(slog.Default(), app))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events?quest=jurong", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/events: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content-type = %q", got)
	}

	app.Broker.Publish(Event{Type: EventQuestReset, QuestID: "civic"})
	app.Broker.Publish(Event{Type: EventQuestReset, QuestID: "jurong", Removed: 3})

	sc := bufio.NewScanner(resp.Body)
	var lines []string
	for sc.Scan() {
		line := sc.Text()
		if line == "" && len(lines) > 0 {
			break
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) != 2 || lines[0] != "event: progress" {
		t.Fatalf("frame = %q", lines)
	}
	var ev Event
	if err := json.Unmarshal([]byte(strings.TrimPrefix(lines[1], "data: ")), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.QuestID != "jurong" || ev.Removed != 3 {
		t.Errorf("event = %+v", ev)
	}
}
