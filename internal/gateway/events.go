package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/replygate/replygate/internal/bus"
)

// eventFrame is the wire shape of one event on the /ws stream.
type eventFrame struct {
	Event   string      `json:"event"`
	Time    time.Time   `json:"time"`
	Payload interface{} `json:"payload,omitempty"`
}

// handleEventStream upgrades to WebSocket and forwards orchestration events
// (reply.queued, reply.dispatched, event.rejected) until the client goes away.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	clientID := uuid.NewString()
	// The subscriber callback runs on the broadcaster goroutine; buffer so a
	// slow client drops events instead of stalling other subscribers.
	frames := make(chan eventFrame, 64)

	s.events.Subscribe(clientID, func(ev bus.Event) {
		select {
		case frames <- eventFrame{Event: ev.Name, Time: time.Now(), Payload: ev.Payload}:
		default:
			slog.Debug("event stream client lagging, dropping event", "client", clientID, "event", ev.Name)
		}
	})
	defer s.events.Unsubscribe(clientID)

	slog.Info("event stream client connected", "client", clientID)

	// Drain reads so control frames are processed and closure is noticed.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("event stream client disconnected", "client", clientID)
			return
		case frame := <-frames:
			writeCtx, writeCancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, frame)
			writeCancel()
			if err != nil {
				slog.Debug("event stream write failed", "client", clientID, "error", err)
				return
			}
		}
	}
}
