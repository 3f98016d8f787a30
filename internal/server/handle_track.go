package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	trackWriteWait  = 10 * time.Second
	trackPongWait   = 60 * time.Second
	trackPingPeriod = 30 * time.Second
	trackReadLimit  = 64 << 10
)

// upgrader keeps gorilla's default origin check: a browser may only open
// the socket from a page served by this host (the map client under
// CLIENT_DIR). Native clients send no Origin header and are accepted.
var upgrader = websocket.Upgrader{}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectQuestPayload struct {
	QuestID string `json:"questId"`
}

type trackMessage struct {
	Type     string            `json:"type"`
	Board    *BoardResponse    `json:"board,omitempty"`
	Position *PositionResponse `json:"position,omitempty"`
	Heading  *HeadingResponse  `json:"heading,omitempty"`
	Event    json.RawMessage   `json:"event,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// handleTrack streams live tracking over a WebSocket. The client sends
// position, heading and quest messages; the server answers with the
// recomputed board or heading and forwards progress events.
func handleTrack(logger *slog.Logger, app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questID := r.URL.Query().Get("quest")
		if questID != "" {
			if _, err := app.Catalog.Current().Quest(questID); err != nil {
				writeError(w, http.StatusNotFound, "quest not found")
				return
			}
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		s := &trackSession{
			app:     app,
			logger:  logger,
			conn:    conn,
			out:     make(chan trackMessage, 16),
			questID: questID,
		}

		events := app.Broker.Subscribe("")
		defer app.Broker.Unsubscribe(events)

		done := make(chan struct{})
		go func() {
			defer close(done)
			s.writeLoop(ctx, cancel, events)
		}()

		if questID != "" {
			s.sendBoard(ctx)
		}
		s.readLoop(ctx)

		cancel()
		<-done
	}
}

type trackSession struct {
	app    *App
	logger *slog.Logger
	conn   *websocket.Conn
	out    chan trackMessage

	// questID is only touched by the read loop.
	questID string
}

func (s *trackSession) send(ctx context.Context, m trackMessage) {
	select {
	case s.out <- m:
	case <-ctx.Done():
	}
}

// writeLoop is the connection's only writer.
func (s *trackSession) writeLoop(ctx context.Context, cancel context.CancelFunc, events <-chan []byte) {
	ping := time.NewTicker(trackPingPeriod)
	defer ping.Stop()

	write := func(m trackMessage) bool {
		s.conn.SetWriteDeadline(time.Now().Add(trackWriteWait))
		if err := s.conn.WriteJSON(m); err != nil {
			s.logger.Debug("websocket write failed", "error", err)
			cancel()
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(trackWriteWait))
			return
		case m := <-s.out:
			if !write(m) {
				return
			}
		case data := <-events:
			if !write(trackMessage{Type: "event", Event: data}) {
				return
			}
		case <-ping.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(trackWriteWait)); err != nil {
				cancel()
				return
			}
		}
	}
}

func (s *trackSession) readLoop(ctx context.Context) {
	s.conn.SetReadLimit(trackReadLimit)
	s.conn.SetReadDeadline(time.Now().Add(trackPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(trackPongWait))
	})

	for {
		var msg inboundMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				s.logger.Debug("websocket read ended", "error", err)
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(trackPongWait))
		s.handle(ctx, msg)
	}
}

func (s *trackSession) handle(ctx context.Context, msg inboundMessage) {
	switch msg.Type {
	case "position":
		var req PositionRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			s.send(ctx, trackMessage{Type: "error", Error: "invalid position payload"})
			return
		}
		outcome := s.app.Tracker.Observe(req.position())
		s.send(ctx, trackMessage{Type: "position", Position: &PositionResponse{
			Outcome:    outcome,
			Position:   positionView(s.app.Tracker.Effective()),
			Simulating: s.app.Tracker.Simulating(),
		}})
		if s.questID != "" {
			s.sendBoard(ctx)
		}

	case "heading":
		var req HeadingSampleRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			s.send(ctx, trackMessage{Type: "error", Error: "invalid heading payload"})
			return
		}
		ok, valid := observeHeading(s.app.Heading, req)
		if !valid {
			s.send(ctx, trackMessage{Type: "error", Error: "atMillis is required"})
			return
		}
		// Throttled samples produce no reply.
		if ok {
			resp := currentHeading(s.app.Heading)
			s.send(ctx, trackMessage{Type: "heading", Heading: &resp})
		}

	case "quest":
		var req selectQuestPayload
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			s.send(ctx, trackMessage{Type: "error", Error: "invalid quest payload"})
			return
		}
		if _, err := s.app.Catalog.Current().Quest(req.QuestID); err != nil {
			s.send(ctx, trackMessage{Type: "error", Error: "quest not found"})
			return
		}
		s.questID = req.QuestID
		s.sendBoard(ctx)

	default:
		s.send(ctx, trackMessage{Type: "error", Error: "unknown message type"})
	}
}

func (s *trackSession) sendBoard(ctx context.Context) {
	q, err := s.app.Catalog.Current().Quest(s.questID)
	if err != nil {
		s.send(ctx, trackMessage{Type: "error", Error: "quest not found"})
		return
	}
	pos := s.app.Tracker.Effective()
	board, err := s.app.Engine.Board(ctx, q, pos)
	if err != nil {
		s.logger.Error("building board", "quest", q.ID, "error", err)
		s.send(ctx, trackMessage{Type: "error", Error: "internal error"})
		return
	}
	s.send(ctx, trackMessage{Type: "board", Board: &BoardResponse{Board: board, Position: positionView(pos)}})
}
