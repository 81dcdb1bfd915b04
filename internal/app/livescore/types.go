package livescore

import "time"

const (
	SideA = "A"
	SideB = "B"

	StatusLive  = "LIVE"
	StatusFinal = "FINAL"

	WinnerA    = "A"
	WinnerB    = "B"
	WinnerDraw = "DRAW"
)

// Projection is the realtime view of a match stored under score.<match_id>.
type Projection struct {
	MatchID   string    `json:"match_id"`
	ScoreA    int       `json:"score_a"`
	ScoreB    int       `json:"score_b"`
	Status    string    `json:"status"`
	Winner    string    `json:"winner,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`

	// Revision is the broadcast store revision the projection was read at.
	Revision uint64 `json:"-"`
}

type FinalizeResult struct {
	MatchID     string     `json:"match_id"`
	ScoreA      int        `json:"score_a"`
	ScoreB      int        `json:"score_b"`
	Winner      string     `json:"winner"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// AlreadyFinal is set when an identical finalize had already committed.
	AlreadyFinal bool `json:"already_final"`
	// RealtimeSynced is false when the broadcast store could not be updated
	// yet; the recorded cleanup will converge it.
	RealtimeSynced bool `json:"realtime_synced"`
}
