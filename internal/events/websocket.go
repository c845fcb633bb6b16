package events

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebsocketHandler upgrades an HTTP request to a websocket connection and
// streams every Bus event to it as JSON until the connection closes or
// write fails. Intended for wiring into a dashboard's /ws/events route;
// the core itself never listens on HTTP.
func WebsocketHandler(bus *Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ch, unsub := bus.Subscribe(64)
		defer unsub()

		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		go func() {
			// Drain and discard client frames; we only care about detecting
			// disconnect via read error, per gorilla/websocket's documented
			// "read pump" pattern.
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					conn.Close()
					return
				}
			}
		}()

		for ev := range ch {
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
