package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait   = time.Second
	eventBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// EventsHandler streams pipeline snapshots to websocket clients. Slow clients
// miss snapshots rather than holding up the pipeline.
type EventsHandler struct {
	source Controller
	log    *logrus.Entry
}

// NewEventsHandler creates an EventsHandler fed by source.
func NewEventsHandler(source Controller, log *logrus.Entry) *EventsHandler {
	return &EventsHandler{source: source, log: log}
}

// ServeHTTP upgrades the connection and writes one JSON message per
// snapshot until either side closes.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	snapshots, unsubscribe := h.source.Subscribe(eventBuffer)
	defer unsubscribe()

	// The reader only notices the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.log.WithField("remote", r.RemoteAddr).Debug("event subscriber connected")
	defer h.log.WithField("remote", r.RemoteAddr).Debug("event subscriber left")

	for {
		select {
		case <-gone:
			return
		case snap, ok := <-snapshots:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
				return
			}
			msg, err := json.Marshal(snap)
			if err != nil {
				h.log.WithError(err).Error("failed to encode snapshot")
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}
