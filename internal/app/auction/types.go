package auction

import "time"

const (
	LotStatusOpen = "OPEN"
	LotStatusSold = "SOLD"
)

// BidProjection is stored under bid.<tournament_id>.<lot_id> while a lot is open.
type BidProjection struct {
	LotID               string    `json:"lot_id"`
	TournamentID        string    `json:"tournament_id"`
	CurrentBid          int64     `json:"current_bid"`
	CurrentBidderTeamID string    `json:"current_bidder_team_id"`
	LastBidTime         time.Time `json:"last_bid_time"`
	BidCount            int64     `json:"bid_count"`

	Revision uint64 `json:"-"`
}

// LotView is what spectators see. A sold lot is always described from the
// durable store.
type LotView struct {
	LotID               string     `json:"lot_id"`
	TournamentID        string     `json:"tournament_id"`
	PlayerName          string     `json:"player_name"`
	BasePrice           int64      `json:"base_price"`
	Status              string     `json:"status"`
	CurrentBid          int64      `json:"current_bid,omitempty"`
	CurrentBidderTeamID string     `json:"current_bidder_team_id,omitempty"`
	LastBidTime         *time.Time `json:"last_bid_time,omitempty"`
	BidCount            int64      `json:"bid_count"`
	SoldToTeamID        string     `json:"sold_to_team_id,omitempty"`
	SoldPrice           *int64     `json:"sold_price,omitempty"`
	SoldAt              *time.Time `json:"sold_at,omitempty"`

	Revision uint64 `json:"-"`
}

// SaleEvent is one entry of the recent sales feed.
type SaleEvent struct {
	ID           string    `json:"id"`
	TournamentID string    `json:"tournament_id"`
	LotID        string    `json:"lot_id"`
	PlayerName   string    `json:"player_name"`
	TeamID       string    `json:"team_id"`
	Amount       int64     `json:"amount"`
	SoldAt       time.Time `json:"sold_at"`
}

type SaleResult struct {
	LotID          string    `json:"lot_id"`
	TournamentID   string    `json:"tournament_id"`
	TeamID         string    `json:"team_id"`
	Amount         int64     `json:"amount"`
	PurseSpent     int64     `json:"purse_spent"`
	PurseRemaining int64     `json:"purse_remaining"`
	SoldAt         time.Time `json:"sold_at"`
	RealtimeSynced bool      `json:"realtime_synced"`
}
