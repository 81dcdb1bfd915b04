// Package cleanup executes the realtime steps recorded alongside terminal
// durable writes and retries them until they succeed.
package cleanup

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"courtpulse/internal/realtime"
	"courtpulse/internal/store"

	"github.com/rs/zerolog/log"
)

type JobStore interface {
	ClaimDueCleanups(ctx context.Context, limit int, lease time.Duration) ([]store.Cleanup, error)
	MarkCleanupDone(ctx context.Context, id string) error
	MarkCleanupFailed(ctx context.Context, id, reason string, retryIn time.Duration) error
}

const (
	defaultFeedMax     = 20
	defaultCASAttempts = 16
	defaultBaseBackoff = time.Second
	defaultMaxBackoff  = 5 * time.Minute
)

type Runner struct {
	jobs        JobStore
	rt          realtime.Store
	feedMax     int
	casAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

type RunnerOption func(*Runner)

func WithFeedMax(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.feedMax = n
		}
	}
}

func WithCASAttempts(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.casAttempts = n
		}
	}
}

func WithBackoff(base, ceiling time.Duration) RunnerOption {
	return func(r *Runner) {
		if base > 0 {
			r.baseBackoff = base
		}
		if ceiling >= r.baseBackoff {
			r.maxBackoff = ceiling
		}
	}
}

func NewRunner(jobs JobStore, rt realtime.Store, opts ...RunnerOption) *Runner {
	r := &Runner{
		jobs:        jobs,
		rt:          rt,
		feedMax:     defaultFeedMax,
		casAttempts: defaultCASAttempts,
		baseBackoff: defaultBaseBackoff,
		maxBackoff:  defaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run applies every op of job in order. On failure the job is rescheduled with
// exponential backoff and the realtime error is returned. Every op is safe to
// repeat, so a job may run any number of times.
func (r *Runner) Run(ctx context.Context, job store.Cleanup) error {
	if err := r.apply(ctx, job); err != nil {
		delay := r.Backoff(job.Attempts + 1)
		metricCleanupFailed.Add(1)
		if markErr := r.jobs.MarkCleanupFailed(ctx, job.ID, err.Error(), delay); markErr != nil {
			log.Error().Err(markErr).Str("cleanup_id", job.ID).Msg("record cleanup failure")
		}
		log.Warn().
			Err(err).
			Str("cleanup_id", job.ID).
			Str("kind", job.Kind).
			Str("entity_id", job.EntityID).
			Int("attempts", job.Attempts+1).
			Dur("retry_in", delay).
			Msg("cleanup_failed")
		return err
	}
	metricCleanupDone.Add(1)
	if err := r.jobs.MarkCleanupDone(ctx, job.ID); err != nil {
		// The realtime view already converged; the worker repeats the job later.
		log.Error().Err(err).Str("cleanup_id", job.ID).Msg("mark cleanup done")
		return nil
	}
	log.Debug().Str("cleanup_id", job.ID).Str("kind", job.Kind).Str("entity_id", job.EntityID).Msg("cleanup_done")
	return nil
}

// Backoff returns the retry delay after the given number of failed attempts.
func (r *Runner) Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := r.baseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= r.maxBackoff {
			return r.maxBackoff
		}
	}
	return d
}

func (r *Runner) apply(ctx context.Context, job store.Cleanup) error {
	for i, op := range job.Ops {
		var err error
		switch op.Op {
		case store.CleanupOpPut:
			if op.Versioned {
				_, err = realtime.Mutate(ctx, r.rt, op.Key, r.casAttempts, bumpVersion(op.Value))
			} else {
				_, err = r.rt.Put(ctx, op.Key, op.Value)
			}
		case store.CleanupOpDelete:
			err = r.rt.Delete(ctx, op.Key)
		case store.CleanupOpFeedAppend:
			_, err = realtime.AppendFeed(ctx, r.rt, op.Key, op.Value, r.feedMax, r.casAttempts)
		default:
			err = fmt.Errorf("unknown cleanup op %q", op.Op)
		}
		if err != nil {
			return fmt.Errorf("op %d %s %s: %w", i, op.Op, op.Key, err)
		}
	}
	return nil
}

// bumpVersion writes next with its "version" field set one past the version
// of the value currently stored.
func bumpVersion(next json.RawMessage) realtime.MutateFunc {
	return func(current []byte, found bool) ([]byte, error) {
		doc := map[string]json.RawMessage{}
		if err := json.Unmarshal(next, &doc); err != nil {
			return nil, fmt.Errorf("decode versioned value: %w", err)
		}
		var version int64
		if found {
			var cur struct {
				Version int64 `json:"version"`
			}
			if json.Unmarshal(current, &cur) == nil {
				version = cur.Version
			}
		}
		doc["version"] = json.RawMessage(strconv.FormatInt(version+1, 10))
		return json.Marshal(doc)
	}
}
