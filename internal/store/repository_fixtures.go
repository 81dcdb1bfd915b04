package store

import "context"

func (s *Store) CreateTournament(ctx context.Context, name string, purseCap int64) (*Tournament, error) {
	t := Tournament{ID: NewID(), Name: name, PurseCap: purseCap}
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO tournaments (id, name, purse_cap) VALUES ($1, $2, $3)
		RETURNING created_at`, t.ID, t.Name, t.PurseCap).Scan(&t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) CreateTeam(ctx context.Context, tournamentID, name string) (*Team, error) {
	t := Team{ID: NewID(), TournamentID: tournamentID, Name: name}
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO teams (id, tournament_id, name) VALUES ($1, $2, $3)
		RETURNING purse_spent, created_at`, t.ID, t.TournamentID, t.Name).Scan(&t.PurseSpent, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) CreateLot(ctx context.Context, tournamentID, playerName string, basePrice int64) (*Lot, error) {
	return scanLot(s.Pool.QueryRow(ctx, `
		INSERT INTO auction_lots (id, tournament_id, player_name, base_price) VALUES ($1, $2, $3, $4)
		RETURNING `+lotColumns, NewID(), tournamentID, playerName, basePrice))
}
