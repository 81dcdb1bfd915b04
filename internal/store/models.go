package store

import (
	"encoding/json"
	"time"
)

const (
	MatchKindPractice   = "PRACTICE"
	MatchKindTournament = "TOURNAMENT"

	MatchStatusScheduled  = "SCHEDULED"
	MatchStatusInProgress = "IN_PROGRESS"
	MatchStatusCompleted  = "COMPLETED"
)

type Tournament struct {
	ID        string
	Name      string
	PurseCap  int64
	CreatedAt time.Time
}

type Team struct {
	ID           string
	TournamentID string
	Name         string
	PurseSpent   int64
	CreatedAt    time.Time
}

type Match struct {
	ID           string
	TournamentID string
	Kind         string
	TeamA        []string
	TeamB        []string
	ScoreA       int
	ScoreB       int
	Winner       string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

func (m *Match) Completed() bool {
	return m.Status == MatchStatusCompleted
}

type Lot struct {
	ID           string
	TournamentID string
	PlayerName   string
	BasePrice    int64
	TeamID       string
	SoldPrice    *int64
	SoldAt       *time.Time
	CreatedAt    time.Time
}

func (l *Lot) Sold() bool {
	return l.TeamID != ""
}

type TeamPurse struct {
	TeamID       string
	TournamentID string
	Cap          int64
	Spent        int64
}

func (p TeamPurse) Remaining() int64 {
	return p.Cap - p.Spent
}

// PurseEntry is one row of the append-only money ledger written by a sale.
type PurseEntry struct {
	ID           string
	TeamID       string
	LotID        string
	Amount       int64
	BalanceAfter int64
	CreatedAt    time.Time
}

const (
	CleanupKindMatchFinal = "match_final"
	CleanupKindLotSold    = "lot_sold"

	CleanupOpPut        = "put"
	CleanupOpDelete     = "delete"
	CleanupOpFeedAppend = "feed_append"
)

// CleanupOp is one realtime step recorded alongside a terminal DS write.
// Versioned puts bump the "version" field of whatever value is current.
type CleanupOp struct {
	Op        string          `json:"op"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value,omitempty"`
	Versioned bool            `json:"versioned,omitempty"`
	EventID   string          `json:"event_id,omitempty"`
}

type Cleanup struct {
	ID            string      `json:"id"`
	Kind          string      `json:"kind"`
	EntityID      string      `json:"entity_id"`
	Ops           []CleanupOp `json:"ops"`
	Attempts      int         `json:"attempts"`
	LastError     string      `json:"last_error,omitempty"`
	NextAttemptAt time.Time   `json:"next_attempt_at"`
	CreatedAt     time.Time   `json:"created_at"`
	DoneAt        *time.Time  `json:"done_at,omitempty"`
}
