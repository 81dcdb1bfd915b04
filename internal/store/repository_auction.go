package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const lotColumns = `id, tournament_id, player_name, base_price, team_id, sold_price, sold_at, created_at`

func scanLot(row pgx.Row) (*Lot, error) {
	var (
		l         Lot
		teamID    pgtype.Text
		soldPrice pgtype.Int8
		soldAt    pgtype.Timestamptz
	)
	if err := row.Scan(&l.ID, &l.TournamentID, &l.PlayerName, &l.BasePrice, &teamID, &soldPrice, &soldAt, &l.CreatedAt); err != nil {
		return nil, mapNotFound(err)
	}
	l.TeamID = textVal(teamID)
	l.SoldPrice = int64PtrVal(soldPrice)
	l.SoldAt = timePtrVal(soldAt)
	return &l, nil
}

func (s *Store) GetLot(ctx context.Context, id string) (*Lot, error) {
	return scanLot(s.Pool.QueryRow(ctx, `SELECT `+lotColumns+` FROM auction_lots WHERE id = $1`, id))
}

func (s *Store) GetTeamPurse(ctx context.Context, teamID string) (*TeamPurse, error) {
	var p TeamPurse
	err := s.Pool.QueryRow(ctx, `
		SELECT t.id, t.tournament_id, tr.purse_cap, t.purse_spent
		FROM teams t
		JOIN tournaments tr ON tr.id = t.tournament_id
		WHERE t.id = $1`, teamID).Scan(&p.TeamID, &p.TournamentID, &p.Cap, &p.Spent)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &p, nil
}

type SellLotParams struct {
	LotID   string
	TeamID  string
	Amount  int64
	Cleanup []CleanupOp
}

type SellLotResult struct {
	Lot     *Lot
	Purse   TeamPurse
	Entry   PurseEntry
	Cleanup *Cleanup
}

// SellLot assigns the lot to the team and debits the team purse in one
// transaction. The lot row is locked before the team row.
func (s *Store) SellLot(ctx context.Context, p SellLotParams) (*SellLotResult, error) {
	if p.Amount < 0 {
		return nil, errors.New("amount must be non-negative")
	}
	var out *SellLotResult
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		lot, err := scanLot(tx.QueryRow(ctx, `SELECT `+lotColumns+` FROM auction_lots WHERE id = $1 FOR UPDATE`, p.LotID))
		if err != nil {
			return err
		}
		if lot.Sold() {
			return ErrLotSold
		}

		var purse TeamPurse
		err = tx.QueryRow(ctx, `
			SELECT t.id, t.tournament_id, tr.purse_cap, t.purse_spent
			FROM teams t
			JOIN tournaments tr ON tr.id = t.tournament_id
			WHERE t.id = $1
			FOR UPDATE OF t`, p.TeamID).Scan(&purse.TeamID, &purse.TournamentID, &purse.Cap, &purse.Spent)
		if err != nil {
			return mapNotFound(err)
		}
		if purse.TournamentID != lot.TournamentID {
			return ErrTeamMismatch
		}
		if p.Amount > purse.Cap-purse.Spent {
			return &PurseCapError{Cap: purse.Cap, Spent: purse.Spent, Amount: p.Amount}
		}

		if err := tx.QueryRow(ctx, `
			UPDATE teams SET purse_spent = purse_spent + $2, updated_at = now()
			WHERE id = $1
			RETURNING purse_spent`, p.TeamID, p.Amount).Scan(&purse.Spent); err != nil {
			return err
		}

		entry := PurseEntry{
			ID:           NewID(),
			TeamID:       p.TeamID,
			LotID:        p.LotID,
			Amount:       -p.Amount,
			BalanceAfter: purse.Remaining(),
		}
		if err := tx.QueryRow(ctx, `
			INSERT INTO purse_entries (id, team_id, lot_id, amount, balance_after)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at`, entry.ID, entry.TeamID, entry.LotID, entry.Amount, entry.BalanceAfter).Scan(&entry.CreatedAt); err != nil {
			return err
		}

		sold, err := scanLot(tx.QueryRow(ctx, `
			UPDATE auction_lots SET team_id = $2, sold_price = $3, sold_at = now()
			WHERE id = $1 AND team_id IS NULL
			RETURNING `+lotColumns, p.LotID, p.TeamID, p.Amount))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrLotSold
			}
			return err
		}

		cleanup, err := s.insertCleanup(ctx, tx, CleanupKindLotSold, p.LotID, p.Cleanup)
		if err != nil {
			return err
		}
		out = &SellLotResult{Lot: sold, Purse: purse, Entry: entry, Cleanup: cleanup}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListPurseEntries(ctx context.Context, teamID string, limit int) ([]PurseEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, team_id, lot_id, amount, balance_after, created_at
		FROM purse_entries
		WHERE team_id = $1
		ORDER BY created_at, id
		LIMIT $2`, teamID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]PurseEntry, 0)
	for rows.Next() {
		var e PurseEntry
		if err := rows.Scan(&e.ID, &e.TeamID, &e.LotID, &e.Amount, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
