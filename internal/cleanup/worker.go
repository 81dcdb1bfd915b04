package cleanup

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type WorkerConfig struct {
	Interval  time.Duration
	BatchSize int
	Lease     time.Duration
}

type SweepResult struct {
	Claimed int `json:"claimed"`
	Done    int `json:"done"`
	Failed  int `json:"failed"`
}

// Worker periodically claims due cleanups and runs them. Wake requests an
// immediate sweep.
type Worker struct {
	jobs   JobStore
	runner *Runner
	cfg    WorkerConfig
	clock  clockwork.Clock

	sweepMu sync.Mutex
	wake    chan struct{}
}

func NewWorker(jobs JobStore, runner *Runner, cfg WorkerConfig, clock clockwork.Clock) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 30 * time.Second
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Worker{
		jobs:   jobs,
		runner: runner,
		cfg:    cfg,
		clock:  clock,
		wake:   make(chan struct{}, 1),
	}
}

// Run schedules sweeps until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	sched, err := gocron.NewScheduler(gocron.WithClock(w.clock))
	if err != nil {
		return err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(w.cfg.Interval),
		gocron.NewTask(func() {
			w.sweepLogged(ctx, "interval")
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return err
	}
	sched.Start()
	log.Info().
		Dur("interval", w.cfg.Interval).
		Int("batch_size", w.cfg.BatchSize).
		Dur("lease", w.cfg.Lease).
		Msg("cleanup worker started")

	w.sweepLogged(ctx, "startup")
	for {
		select {
		case <-ctx.Done():
			if err := sched.Shutdown(); err != nil {
				log.Error().Err(err).Msg("cleanup scheduler shutdown")
			}
			log.Info().Msg("cleanup worker stopped")
			return nil
		case <-w.wake:
			w.sweepLogged(ctx, "wake")
		}
	}
}

// Wake asks the running worker for a sweep without blocking. Requests made
// while one is already pending are coalesced.
func (w *Worker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Sweep claims one batch of due cleanups and runs them.
func (w *Worker) Sweep(ctx context.Context) (SweepResult, error) {
	w.sweepMu.Lock()
	defer w.sweepMu.Unlock()

	metricSweeps.Add(1)
	jobs, err := w.jobs.ClaimDueCleanups(ctx, w.cfg.BatchSize, w.cfg.Lease)
	if err != nil {
		metricSweepErrors.Add(1)
		return SweepResult{}, err
	}
	res := SweepResult{Claimed: len(jobs)}
	for _, job := range jobs {
		if err := w.runner.Run(ctx, job); err != nil {
			if errors.Is(err, context.Canceled) {
				return res, err
			}
			res.Failed++
			continue
		}
		res.Done++
	}
	return res, nil
}

func (w *Worker) sweepLogged(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	res, err := w.Sweep(ctx)
	if err != nil {
		log.Error().Err(err).Str("reason", reason).Msg("cleanup sweep failed")
		return
	}
	if res.Claimed > 0 {
		log.Info().
			Str("reason", reason).
			Int("claimed", res.Claimed).
			Int("done", res.Done).
			Int("failed", res.Failed).
			Msg("cleanup sweep")
	}
}
