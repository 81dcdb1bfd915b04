package spectatorgateway

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const wsWriteWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler streams the same events as EventsHandler as websocket text frames.
// Pings use websocket control frames; anything the client sends is discarded.
func (g *Gateway) WSHandler(param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		sub, err := g.subscribe(ctx, chi.URLParam(r, param))
		if err != nil {
			g.writeError(w, err)
			return
		}
		defer sub.close()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		connID := uuid.NewString()
		logger := log.With().Str("conn_id", connID).Str("stream", g.name).Str("key", sub.key).Logger()
		logger.Debug().Msg("spectator websocket opened")
		metricWSConnectionsTotal.Add(1)
		metricWSConnectionsActive.Add(1)
		defer metricWSConnectionsActive.Add(-1)

		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		send := func(ev Event) error {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			return conn.WriteJSON(ev)
		}
		if err := send(sub.snapshot); err != nil {
			return
		}

		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		updates := sub.watcher.Updates()
		for {
			select {
			case <-ctx.Done():
				logger.Debug().Msg("spectator websocket closed")
				return
			case entry, ok := <-updates:
				if !ok {
					if err := sub.watcher.Err(); err != nil {
						logger.Warn().Err(err).Msg("spectator websocket watch ended")
					}
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "stream ended"),
						time.Now().Add(wsWriteWait))
					return
				}
				ev, fresh := sub.next(ctx, entry)
				if !fresh {
					continue
				}
				if err := send(ev); err != nil {
					return
				}
				metricEventsSent.Add(1)
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}
}
