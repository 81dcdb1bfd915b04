// Package spectatorgateway serves the public read side: a JSON view of a match
// or lot, and streams that start from that view and follow every realtime write
// to the entity's key.
package spectatorgateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"courtpulse/internal/app/apperr"
	"courtpulse/internal/realtime"
)

const (
	EventSnapshot = "snapshot"
	EventUpdate   = "update"
	EventDeleted  = "deleted"
	EventPing     = "ping"
)

// Event is the payload of one SSE event or websocket frame.
type Event struct {
	Type     string          `json:"type"`
	Key      string          `json:"key,omitempty"`
	Revision uint64          `json:"revision"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Source resolves an entity id to its current view and realtime key.
// View must apply durable-store precedence; the revision it returns is the
// realtime revision the view already reflects, or zero.
type Source interface {
	View(ctx context.Context, id string) (any, uint64, error)
	Key(ctx context.Context, id string) (string, error)
}

// ErrorWriter renders a coordinator error as an HTTP response.
type ErrorWriter func(w http.ResponseWriter, err error)

// Gateway binds a Source to the realtime store for one entity kind.
type Gateway struct {
	name       string
	src        Source
	rt         realtime.Store
	writeError ErrorWriter
}

func New(name string, src Source, rt realtime.Store, writeError ErrorWriter) *Gateway {
	if writeError == nil {
		writeError = defaultErrorWriter
	}
	return &Gateway{name: name, src: src, rt: rt, writeError: writeError}
}

type subscription struct {
	g        *Gateway
	id       string
	key      string
	lastRev  uint64
	snapshot Event
	watcher  realtime.Watcher
}

// subscribe captures the snapshot before opening the watch. The watch replays
// the current entry, so writes landing in between are delivered, and anything
// the snapshot already covers is dropped by revision.
func (g *Gateway) subscribe(ctx context.Context, id string) (*subscription, error) {
	view, rev, err := g.src.View(ctx, id)
	if err != nil {
		return nil, err
	}
	key, err := g.src.Key(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(view)
	if err != nil {
		return nil, err
	}
	w, err := g.rt.Watch(ctx, key)
	if err != nil {
		return nil, apperr.Transient(apperr.StoreRealtime, err)
	}
	return &subscription{
		g:        g,
		id:       id,
		key:      key,
		lastRev:  rev,
		snapshot: Event{Type: EventSnapshot, Key: key, Revision: rev, Data: data},
		watcher:  w,
	}, nil
}

// next converts a watch entry into an event; ok is false for entries the
// subscriber has already seen.
func (s *subscription) next(ctx context.Context, e realtime.Entry) (Event, bool) {
	if e.Revision <= s.lastRev {
		return Event{}, false
	}
	s.lastRev = e.Revision
	if !e.Deleted() {
		return Event{Type: EventUpdate, Key: s.key, Revision: e.Revision, Data: json.RawMessage(e.Value)}, true
	}
	ev := Event{Type: EventDeleted, Key: s.key, Revision: e.Revision}
	// A delete usually means the entity reached a terminal state; send the
	// durable view along so clients need not refetch.
	if view, _, err := s.g.src.View(ctx, s.id); err == nil {
		if data, err := json.Marshal(view); err == nil {
			ev.Data = data
		}
	} else if !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Str("key", s.key).Msg("refresh view after delete")
	}
	return ev, true
}

func (s *subscription) close() {
	s.watcher.Stop()
}

func defaultErrorWriter(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	if errors.Is(err, apperr.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "not_found"})
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": "internal_error"})
}
