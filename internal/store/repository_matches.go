package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const matchColumns = `id, tournament_id, kind, team_a, team_b, team_a_score, team_b_score,
	winner, status, created_at, updated_at, started_at, completed_at`

func scanMatch(row pgx.Row) (*Match, error) {
	var (
		m           Match
		tournament  pgtype.Text
		winner      pgtype.Text
		startedAt   pgtype.Timestamptz
		completedAt pgtype.Timestamptz
	)
	if err := row.Scan(
		&m.ID, &tournament, &m.Kind, &m.TeamA, &m.TeamB, &m.ScoreA, &m.ScoreB,
		&winner, &m.Status, &m.CreatedAt, &m.UpdatedAt, &startedAt, &completedAt,
	); err != nil {
		return nil, mapNotFound(err)
	}
	m.TournamentID = textVal(tournament)
	m.Winner = textVal(winner)
	m.StartedAt = timePtrVal(startedAt)
	m.CompletedAt = timePtrVal(completedAt)
	return &m, nil
}

func (s *Store) GetMatch(ctx context.Context, id string) (*Match, error) {
	return scanMatch(s.Pool.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id))
}

// StartMatch moves a scheduled match to IN_PROGRESS. It only touches the
// status columns and reports whether this call made the transition.
func (s *Store) StartMatch(ctx context.Context, id string) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE matches
		SET status = 'IN_PROGRESS', started_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'SCHEDULED'`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

type FinalizeMatchParams struct {
	MatchID string
	ScoreA  int
	ScoreB  int
	Winner  string
	Cleanup []CleanupOp
}

type FinalizeMatchResult struct {
	Match *Match
	// Cleanup is nil when the match was already completed with the same scores.
	Cleanup          *Cleanup
	AlreadyCompleted bool
}

// FinalizeMatch writes the final score and records the realtime cleanup in one
// transaction. Finalizing again with identical scores is a no-op; different
// scores return ErrMatchCompleted.
func (s *Store) FinalizeMatch(ctx context.Context, p FinalizeMatchParams) (*FinalizeMatchResult, error) {
	var out *FinalizeMatchResult
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		current, err := scanMatch(tx.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1 FOR UPDATE`, p.MatchID))
		if err != nil {
			return err
		}
		if current.Completed() {
			if current.ScoreA == p.ScoreA && current.ScoreB == p.ScoreB {
				out = &FinalizeMatchResult{Match: current, AlreadyCompleted: true}
				return nil
			}
			return ErrMatchCompleted
		}

		updated, err := scanMatch(tx.QueryRow(ctx, `
			UPDATE matches
			SET team_a_score = $2, team_b_score = $3, winner = $4, status = 'COMPLETED',
				started_at = COALESCE(started_at, now()), completed_at = now(), updated_at = now()
			WHERE id = $1 AND status <> 'COMPLETED'
			RETURNING `+matchColumns, p.MatchID, p.ScoreA, p.ScoreB, p.Winner))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrMatchCompleted
			}
			return err
		}
		cleanup, err := s.insertCleanup(ctx, tx, CleanupKindMatchFinal, p.MatchID, p.Cleanup)
		if err != nil {
			return err
		}
		out = &FinalizeMatchResult{Match: updated, Cleanup: cleanup}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type CreateMatchParams struct {
	TournamentID string
	Kind         string
	TeamA        []string
	TeamB        []string
}

func (s *Store) CreateMatch(ctx context.Context, p CreateMatchParams) (*Match, error) {
	kind := p.Kind
	if kind == "" {
		kind = MatchKindPractice
		if p.TournamentID != "" {
			kind = MatchKindTournament
		}
	}
	teamA, teamB := p.TeamA, p.TeamB
	if teamA == nil {
		teamA = []string{}
	}
	if teamB == nil {
		teamB = []string{}
	}
	return scanMatch(s.Pool.QueryRow(ctx, `
		INSERT INTO matches (id, tournament_id, kind, team_a, team_b)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+matchColumns, NewID(), textParam(p.TournamentID), kind, teamA, teamB))
}
