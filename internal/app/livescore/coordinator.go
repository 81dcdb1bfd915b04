package livescore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"courtpulse/internal/app/apperr"
	"courtpulse/internal/realtime"
	"courtpulse/internal/store"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type MatchStore interface {
	GetMatch(ctx context.Context, id string) (*store.Match, error)
	StartMatch(ctx context.Context, id string) (bool, error)
	FinalizeMatch(ctx context.Context, p store.FinalizeMatchParams) (*store.FinalizeMatchResult, error)
	PendingCleanupForEntity(ctx context.Context, kind, entityID string) (*store.Cleanup, error)
}

type CleanupRunner interface {
	Run(ctx context.Context, job store.Cleanup) error
}

const defaultCASAttempts = 16

var errProjectionFinal = errors.New("projection is final")

// Coordinator keeps live match scores in the broadcast store and commits final
// results to the durable store. It holds no state of its own.
type Coordinator struct {
	matches     MatchStore
	rt          realtime.Store
	cleanup     CleanupRunner
	clock       clockwork.Clock
	casAttempts int
}

type Option func(*Coordinator)

func WithClock(c clockwork.Clock) Option {
	return func(co *Coordinator) { co.clock = c }
}

func WithCASAttempts(n int) Option {
	return func(co *Coordinator) {
		if n > 0 {
			co.casAttempts = n
		}
	}
}

func NewCoordinator(matches MatchStore, rt realtime.Store, cleanup CleanupRunner, opts ...Option) *Coordinator {
	c := &Coordinator{
		matches:     matches,
		rt:          rt,
		cleanup:     cleanup,
		clock:       clockwork.NewRealClock(),
		casAttempts: defaultCASAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UpdateScore adds delta to one side of a live match. Scores never go below
// zero. A completed match rejects the update without touching the broadcast
// store.
func (c *Coordinator) UpdateScore(ctx context.Context, matchID, side string, delta int) (*Projection, error) {
	side = strings.ToUpper(strings.TrimSpace(side))
	if side != SideA && side != SideB {
		return nil, apperr.InvalidRequest("side must be A or B")
	}
	m, err := c.loadMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.Completed() {
		metricScoreConflicts.Add(1)
		return nil, apperr.ErrMatchFinished
	}
	if m.Status == store.MatchStatusScheduled {
		started, err := c.matches.StartMatch(ctx, matchID)
		if err != nil {
			return nil, fromStore(err)
		}
		if started {
			log.Info().Str("match_id", matchID).Msg("match_started")
		}
	}

	now := c.clock.Now().UTC()
	entry, err := realtime.Mutate(ctx, c.rt, realtime.ScoreKey(matchID), c.casAttempts, func(cur []byte, found bool) ([]byte, error) {
		p := synthesize(m)
		if found {
			if err := json.Unmarshal(cur, &p); err != nil {
				return nil, fmt.Errorf("decode projection: %w", err)
			}
		}
		if p.Status == StatusFinal {
			return nil, errProjectionFinal
		}
		if side == SideA {
			p.ScoreA = applyDelta(p.ScoreA, delta)
		} else {
			p.ScoreB = applyDelta(p.ScoreB, delta)
		}
		p.Status = StatusLive
		p.Winner = ""
		p.UpdatedAt = now
		p.Version++
		return json.Marshal(p)
	})
	if err != nil {
		if errors.Is(err, errProjectionFinal) {
			metricScoreConflicts.Add(1)
			return nil, apperr.ErrMatchFinished
		}
		metricRealtimeFailures.Add(1)
		return nil, fromRealtime(err)
	}

	var out Projection
	if err := json.Unmarshal(entry.Value, &out); err != nil {
		return nil, err
	}
	out.Revision = entry.Revision
	metricScoreUpdates.Add(1)
	log.Debug().
		Str("match_id", matchID).
		Str("side", side).
		Int("delta", delta).
		Int64("version", out.Version).
		Msg("score_updated")
	return &out, nil
}

// FinalizeMatch commits the final score once. Repeating the call with the same
// scores succeeds without writing; different scores are a conflict. A
// broadcast store failure after the commit is reported through RealtimeSynced.
func (c *Coordinator) FinalizeMatch(ctx context.Context, matchID string, scoreA, scoreB int) (*FinalizeResult, error) {
	if scoreA < 0 || scoreB < 0 {
		return nil, apperr.InvalidRequest("scores must be non-negative")
	}
	if scoreA > MaxScore || scoreB > MaxScore {
		return nil, apperr.InvalidRequest("score out of range")
	}
	if strings.TrimSpace(matchID) == "" {
		return nil, apperr.InvalidRequest("match_id is required")
	}
	winner := ComputeWinner(scoreA, scoreB)
	final := Projection{
		MatchID:   matchID,
		ScoreA:    scoreA,
		ScoreB:    scoreB,
		Status:    StatusFinal,
		Winner:    winner,
		UpdatedAt: c.clock.Now().UTC(),
	}
	value, err := json.Marshal(final)
	if err != nil {
		return nil, err
	}

	res, err := c.matches.FinalizeMatch(ctx, store.FinalizeMatchParams{
		MatchID: matchID,
		ScoreA:  scoreA,
		ScoreB:  scoreB,
		Winner:  winner,
		Cleanup: []store.CleanupOp{{
			Op:        store.CleanupOpPut,
			Key:       realtime.ScoreKey(matchID),
			Value:     value,
			Versioned: true,
		}},
	})
	if err != nil {
		if errors.Is(err, store.ErrMatchCompleted) {
			metricScoreConflicts.Add(1)
			return nil, apperr.ErrMatchFinished
		}
		return nil, fromStore(err)
	}

	job := res.Cleanup
	if res.AlreadyCompleted {
		job, err = c.matches.PendingCleanupForEntity(ctx, store.CleanupKindMatchFinal, matchID)
		if errors.Is(err, store.ErrNotFound) {
			job, err = nil, nil
		}
		if err != nil {
			log.Warn().Err(err).Str("match_id", matchID).Msg("pending cleanup lookup failed")
		}
	}
	synced := err == nil
	if job != nil {
		if runErr := c.cleanup.Run(ctx, *job); runErr != nil {
			synced = false
			metricFinalizeUnsynced.Add(1)
			log.Warn().Err(runErr).Str("match_id", matchID).Str("cleanup_id", job.ID).Msg("finalize realtime cleanup deferred")
		}
	}

	if !res.AlreadyCompleted {
		metricFinalizations.Add(1)
		log.Info().
			Str("match_id", matchID).
			Int("score_a", scoreA).
			Int("score_b", scoreB).
			Str("winner", winner).
			Bool("realtime_synced", synced).
			Msg("match_finalized")
	}
	return &FinalizeResult{
		MatchID:        res.Match.ID,
		ScoreA:         res.Match.ScoreA,
		ScoreB:         res.Match.ScoreB,
		Winner:         res.Match.Winner,
		Status:         StatusFinal,
		CompletedAt:    res.Match.CompletedAt,
		AlreadyFinal:   res.AlreadyCompleted,
		RealtimeSynced: synced,
	}, nil
}

// LiveScore returns the spectator view of a match. A completed match is always
// reported from the durable store, whatever the broadcast store holds.
func (c *Coordinator) LiveScore(ctx context.Context, matchID string) (*Projection, error) {
	m, err := c.loadMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	entry, rtErr := c.rt.Get(ctx, realtime.ScoreKey(matchID))
	if m.Completed() {
		p := fromCompleted(m)
		if rtErr == nil {
			var cached Projection
			if json.Unmarshal(entry.Value, &cached) == nil {
				p.Version = cached.Version
			}
			p.Revision = entry.Revision
		}
		return &p, nil
	}
	if errors.Is(rtErr, realtime.ErrKeyNotFound) {
		p := synthesize(m)
		return &p, nil
	}
	if rtErr != nil {
		return nil, fromRealtime(rtErr)
	}
	var p Projection
	if err := json.Unmarshal(entry.Value, &p); err != nil {
		return nil, fmt.Errorf("decode projection: %w", err)
	}
	p.Revision = entry.Revision
	return &p, nil
}

func (c *Coordinator) loadMatch(ctx context.Context, matchID string) (*store.Match, error) {
	if !realtime.ValidID(matchID) {
		return nil, apperr.ErrNotFound
	}
	m, err := c.matches.GetMatch(ctx, matchID)
	if err != nil {
		return nil, fromStore(err)
	}
	return m, nil
}

func synthesize(m *store.Match) Projection {
	return Projection{
		MatchID:   m.ID,
		ScoreA:    m.ScoreA,
		ScoreB:    m.ScoreB,
		Status:    StatusLive,
		UpdatedAt: m.UpdatedAt,
	}
}

func fromCompleted(m *store.Match) Projection {
	p := Projection{
		MatchID:   m.ID,
		ScoreA:    m.ScoreA,
		ScoreB:    m.ScoreB,
		Status:    StatusFinal,
		Winner:    m.Winner,
		UpdatedAt: m.UpdatedAt,
	}
	if m.CompletedAt != nil {
		p.UpdatedAt = *m.CompletedAt
	}
	return p
}

func fromStore(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.ErrNotFound
	case store.IsTransient(err):
		return apperr.Transient(apperr.StoreDurable, err)
	default:
		return err
	}
}

func fromRealtime(err error) error {
	switch {
	case errors.Is(err, realtime.ErrUnavailable),
		errors.Is(err, realtime.ErrContended),
		errors.Is(err, context.DeadlineExceeded):
		return apperr.Transient(apperr.StoreRealtime, err)
	default:
		return err
	}
}
