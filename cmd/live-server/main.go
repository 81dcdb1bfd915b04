package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"courtpulse/internal/app/auction"
	"courtpulse/internal/app/livescore"
	"courtpulse/internal/cleanup"
	"courtpulse/internal/config"
	"courtpulse/internal/logging"
	"courtpulse/internal/mcpserver"
	"courtpulse/internal/realtime"
	"courtpulse/internal/store"
	httptransport "courtpulse/internal/transport/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	if err := logging.Init(cfg.Log); err != nil {
		panic(err)
	}
	defer func() { _ = logging.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg config.AppConfig) error {
	st, err := store.New(cfg.Server.PostgresDSN,
		store.WithCleanupChannel(cfg.Cleanup.Channel),
		store.WithCleanupGrace(cfg.Cleanup.Grace),
	)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Ping(ctx); err != nil {
		return err
	}

	rt, closeRT, err := openRealtime(ctx, cfg.Realtime)
	if err != nil {
		return err
	}
	defer closeRT()

	clock := clockwork.NewRealClock()
	runner := cleanup.NewRunner(st, rt,
		cleanup.WithFeedMax(cfg.Realtime.RecentSalesMax),
		cleanup.WithCASAttempts(cfg.Realtime.CASAttempts),
		cleanup.WithBackoff(time.Second, cfg.Cleanup.MaxBackoff),
	)
	worker := cleanup.NewWorker(st, runner, cleanup.WorkerConfig{
		Interval:  cfg.Cleanup.Interval,
		BatchSize: cfg.Cleanup.BatchSize,
		Lease:     cfg.Cleanup.Lease,
	}, clock)

	scores := livescore.NewCoordinator(st, rt, runner,
		livescore.WithClock(clock),
		livescore.WithCASAttempts(cfg.Realtime.CASAttempts),
	)
	lots := auction.NewCoordinator(st, rt, runner,
		auction.WithClock(clock),
		auction.WithCASAttempts(cfg.Realtime.CASAttempts),
	)

	deps := httptransport.Deps{
		Config:   cfg.Server,
		Store:    st,
		Realtime: rt,
		Scores:   scores,
		Auction:  lots,
		Sweeper:  worker,
	}
	if cfg.Server.MCPEnabled {
		deps.MCP = mcpserver.New(scores, lots).Handler()
	}
	r := httptransport.NewRouter(deps)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return worker.Run(gctx)
	})
	if cfg.Cleanup.Listen {
		listener, err := cleanup.NewListener(cleanup.ListenerConfig{
			DatabaseURL: cfg.Server.PostgresDSN,
			Channel:     cfg.Cleanup.Channel,
			Grace:       cfg.Cleanup.Grace,
		}, worker, clock)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return listener.Run(gctx)
		})
	}
	return g.Wait()
}

func openRealtime(ctx context.Context, cfg config.RealtimeConfig) (realtime.Store, func(), error) {
	switch cfg.Backend {
	case config.RealtimeBackendNATS:
		kv, err := realtime.DialNATS(ctx, realtime.NATSConfig{
			URL:    cfg.NATSURL,
			Bucket: cfg.Bucket,
			TTL:    cfg.TTL,
			Name:   "courtpulse-live-server",
		})
		if err != nil {
			return nil, nil, err
		}
		return kv, kv.Close, nil
	default:
		log.Warn().Msg("using in-process realtime store; projections are lost on restart")
		return realtime.NewMemory(), func() {}, nil
	}
}
