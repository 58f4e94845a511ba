package api

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/supernova/supernova/internal/progress"
)

const (
	eventWriteWait = 10 * time.Second
	eventPongWait  = 60 * time.Second
	eventPingEvery = eventPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     localOrigin,
}

// localOrigin accepts non-browser clients and pages served from this
// machine.
func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// renderEventsHandler streams a render's progress over a WebSocket. The
// current state is sent first, then every event until the render finishes
// or the client goes away.
func renderEventsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render, err := cfg.Service.GetRender(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}

		// subscribe before the snapshot so no transition is lost in between
		events, cancel := cfg.Hub.Subscribe(render.ID)
		defer cancel()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			cfg.Logger.Warn("websocket upgrade failed", "render_id", render.ID, "error", err)
			return
		}
		defer conn.Close()

		log := cfg.Logger.With("render_id", render.ID)

		snapshot := progress.Event{
			RenderID:  render.ID,
			Percent:   render.Progress,
			Stage:     render.Stage,
			Status:    render.Status,
			Error:     render.Error,
			Timestamp: render.UpdatedAt,
		}
		if err := writeEvent(conn, snapshot); err != nil || snapshot.Terminal() {
			closeStream(conn)
			return
		}

		gone := make(chan struct{})
		go readPump(conn, gone)

		ping := time.NewTicker(eventPingEvery)
		defer ping.Stop()

		for {
			select {
			case <-gone:
				log.Debug("event stream client disconnected")
				return
			case ev, ok := <-events:
				if !ok {
					log.Debug("event stream subscription closed")
					closeStream(conn)
					return
				}
				if err := writeEvent(conn, ev); err != nil {
					log.Debug("event stream write failed", "error", err)
					return
				}
				if ev.Terminal() {
					closeStream(conn)
					return
				}
			case <-ping.C:
				conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev progress.Event) error {
	conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
	return conn.WriteJSON(ev)
}

func closeStream(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(eventWriteWait))
}

// readPump drains client frames so control messages are processed, and
// closes gone when the connection drops.
func readPump(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(eventPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
