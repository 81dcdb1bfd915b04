package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"courtpulse/internal/app/auction"
	"courtpulse/internal/app/livescore"
	"courtpulse/internal/config"
	"courtpulse/internal/realtime"
	"courtpulse/internal/spectatorgateway"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

// DurableStore is what the admin routes need from Postgres.
type DurableStore interface {
	Pinger
	CleanupLister
}

type Deps struct {
	Config   config.ServerConfig
	Store    DurableStore
	Realtime realtime.Store
	Scores   *livescore.Coordinator
	Auction  *auction.Coordinator
	Sweeper  Sweeper
	// MCP is mounted at /mcp when non-nil.
	MCP http.Handler
}

func NewRouter(d Deps) *chi.Mux {
	matchHandlers := NewMatchHandlers(d.Scores)
	lotHandlers := NewLotHandlers(d.Auction)
	adminHandlers := NewAdminHandlers(d.Store, d.Realtime, d.Store, d.Sweeper)
	matchStreams := spectatorgateway.New("match", spectatorgateway.MatchSource{Scores: d.Scores}, d.Realtime, WriteAppError)
	lotStreams := spectatorgateway.New("lot", spectatorgateway.LotSource{Auction: d.Auction}, d.Realtime, WriteAppError)
	timeout := time.Duration(d.Config.RequestTimeoutMS) * time.Millisecond

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())
	if d.MCP != nil {
		r.With(APILogMiddleware()).MethodFunc(http.MethodOptions, "/mcp", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Allow", "POST, GET, DELETE, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
		})
		r.With(APILogMiddleware(), RequestTimeout(timeout)).Method(http.MethodPost, "/mcp", d.MCP)
		r.With(APILogMiddleware()).Method(http.MethodGet, "/mcp", d.MCP)
		r.With(APILogMiddleware()).Method(http.MethodDelete, "/mcp", d.MCP)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Use(RequestTimeout(timeout))

		r.Post("/matches/{match_id}/score", matchHandlers.UpdateScore())
		r.Post("/matches/{match_id}/finalize", matchHandlers.Finalize())
		r.Post("/lots/{lot_id}/bids", lotHandlers.PlaceBid())
		r.Post("/lots/{lot_id}/sold", lotHandlers.MarkSold())

		r.Route("/public", func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: d.Config.CORSAllowedOrigins,
				AllowedMethods: []string{http.MethodGet, http.MethodOptions},
				AllowedHeaders: []string{"Accept", "Last-Event-ID"},
				MaxAge:         300,
			}))
			r.Get("/matches/{match_id}/live", matchStreams.StateHandler("match_id"))
			r.Get("/matches/{match_id}/events", matchStreams.EventsHandler("match_id"))
			r.Get("/matches/{match_id}/ws", matchStreams.WSHandler("match_id"))
			r.Get("/lots/{lot_id}/live", lotStreams.StateHandler("lot_id"))
			r.Get("/lots/{lot_id}/events", lotStreams.EventsHandler("lot_id"))
			r.Get("/lots/{lot_id}/ws", lotStreams.WSHandler("lot_id"))
			r.Get("/tournaments/{tournament_id}/sales", lotHandlers.RecentSales())
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminAuthMiddleware(d.Config.AdminAPIKey))
			r.Get("/cleanups", adminHandlers.PendingCleanups())
			r.Post("/cleanups/sweep", adminHandlers.Sweep())

			r.Route("/debug", func(r chi.Router) {
				r.Use(BodyCaptureMiddleware(4096))
				r.Get("/vars", expvar.Handler().ServeHTTP)
			})
		})
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 64)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
