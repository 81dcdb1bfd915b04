package spectatorgateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

var pingInterval = 15 * time.Second

// EventsHandler streams the entity as server-sent events: a snapshot, then an
// update or deleted event per realtime write, with periodic pings.
func (g *Gateway) EventsHandler(param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		sub, err := g.subscribe(r.Context(), chi.URLParam(r, param))
		if err != nil {
			g.writeError(w, err)
			return
		}
		defer sub.close()

		metricSSEConnectionsTotal.Add(1)
		metricSSEConnectionsActive.Add(1)
		defer metricSSEConnectionsActive.Add(-1)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		if err := writeSSE(w, sub.snapshot); err != nil {
			return
		}
		flusher.Flush()

		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		updates := sub.watcher.Updates()
		for {
			select {
			case <-r.Context().Done():
				return
			case entry, ok := <-updates:
				if !ok {
					if err := sub.watcher.Err(); err != nil {
						log.Warn().Err(err).Str("stream", g.name).Str("key", sub.key).Msg("spectator stream closed")
					}
					return
				}
				ev, fresh := sub.next(r.Context(), entry)
				if !fresh {
					continue
				}
				if err := writeSSE(w, ev); err != nil {
					return
				}
				metricEventsSent.Add(1)
				flusher.Flush()
			case <-ticker.C:
				if err := writeSSE(w, Event{Type: EventPing, Revision: sub.lastRev}); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if ev.Type != EventPing {
		if _, err := fmt.Fprintf(w, "id: %s\n", strconv.FormatUint(ev.Revision, 10)); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", ev.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
