package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"courtpulse/internal/store"
)

// FakeStore is an in-memory stand-in for the Postgres store with the same
// locking and error semantics, used by coordinator and handler tests.
type FakeStore struct {
	mu sync.Mutex

	tournaments map[string]store.Tournament
	teams       map[string]store.Team
	matches     map[string]store.Match
	lots        map[string]store.Lot
	cleanups    map[string]store.Cleanup
	entries     []store.PurseEntry

	// Err, when set, is returned by every durable call.
	Err error
	// Grace delays the first background attempt of new cleanups.
	Grace time.Duration
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		tournaments: map[string]store.Tournament{},
		teams:       map[string]store.Team{},
		matches:     map[string]store.Match{},
		lots:        map[string]store.Lot{},
		cleanups:    map[string]store.Cleanup{},
	}
}

func (f *FakeStore) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Err = err
}

func (f *FakeStore) AddTournament(purseCap int64) store.Tournament {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := store.Tournament{ID: store.NewID(), Name: "tournament", PurseCap: purseCap, CreatedAt: time.Now()}
	f.tournaments[t.ID] = t
	return t
}

func (f *FakeStore) AddTeam(tournamentID string) store.Team {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := store.Team{ID: store.NewID(), TournamentID: tournamentID, Name: "team", CreatedAt: time.Now()}
	f.teams[t.ID] = t
	return t
}

func (f *FakeStore) SetPurseSpent(teamID string, spent int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.teams[teamID]
	t.PurseSpent = spent
	f.teams[teamID] = t
}

func (f *FakeStore) AddLot(tournamentID string, basePrice int64) store.Lot {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := store.Lot{ID: store.NewID(), TournamentID: tournamentID, PlayerName: "player", BasePrice: basePrice, CreatedAt: time.Now()}
	f.lots[l.ID] = l
	return l
}

func (f *FakeStore) AddMatch(tournamentID string) store.Match {
	f.mu.Lock()
	defer f.mu.Unlock()
	kind := store.MatchKindPractice
	if tournamentID != "" {
		kind = store.MatchKindTournament
	}
	now := time.Now().UTC()
	m := store.Match{
		ID:           store.NewID(),
		TournamentID: tournamentID,
		Kind:         kind,
		TeamA:        []string{"a1"},
		TeamB:        []string{"b1"},
		Status:       store.MatchStatusScheduled,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.matches[m.ID] = m
	return m
}

func (f *FakeStore) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Err
}

func (f *FakeStore) GetMatch(_ context.Context, id string) (*store.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	m, ok := f.matches[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &m, nil
}

func (f *FakeStore) StartMatch(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return false, f.Err
	}
	m, ok := f.matches[id]
	if !ok || m.Status != store.MatchStatusScheduled {
		return false, nil
	}
	now := time.Now().UTC()
	m.Status = store.MatchStatusInProgress
	m.StartedAt = &now
	m.UpdatedAt = now
	f.matches[id] = m
	return true, nil
}

func (f *FakeStore) FinalizeMatch(_ context.Context, p store.FinalizeMatchParams) (*store.FinalizeMatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	m, ok := f.matches[p.MatchID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if m.Completed() {
		if m.ScoreA == p.ScoreA && m.ScoreB == p.ScoreB {
			return &store.FinalizeMatchResult{Match: &m, AlreadyCompleted: true}, nil
		}
		return nil, store.ErrMatchCompleted
	}
	now := time.Now().UTC()
	m.ScoreA, m.ScoreB, m.Winner = p.ScoreA, p.ScoreB, p.Winner
	m.Status = store.MatchStatusCompleted
	if m.StartedAt == nil {
		m.StartedAt = &now
	}
	m.CompletedAt = &now
	m.UpdatedAt = now
	f.matches[m.ID] = m
	c := f.insertCleanupLocked(store.CleanupKindMatchFinal, m.ID, p.Cleanup)
	return &store.FinalizeMatchResult{Match: &m, Cleanup: &c}, nil
}

func (f *FakeStore) GetLot(_ context.Context, id string) (*store.Lot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	l, ok := f.lots[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &l, nil
}

func (f *FakeStore) GetTeamPurse(_ context.Context, teamID string) (*store.TeamPurse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	p, err := f.purseLocked(teamID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (f *FakeStore) SellLot(_ context.Context, p store.SellLotParams) (*store.SellLotResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	l, ok := f.lots[p.LotID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if l.Sold() {
		return nil, store.ErrLotSold
	}
	purse, err := f.purseLocked(p.TeamID)
	if err != nil {
		return nil, err
	}
	if purse.TournamentID != l.TournamentID {
		return nil, store.ErrTeamMismatch
	}
	if p.Amount > purse.Cap-purse.Spent {
		return nil, &store.PurseCapError{Cap: purse.Cap, Spent: purse.Spent, Amount: p.Amount}
	}

	now := time.Now().UTC()
	team := f.teams[p.TeamID]
	team.PurseSpent += p.Amount
	f.teams[team.ID] = team
	purse.Spent = team.PurseSpent

	entry := store.PurseEntry{
		ID:           store.NewID(),
		TeamID:       p.TeamID,
		LotID:        p.LotID,
		Amount:       -p.Amount,
		BalanceAfter: purse.Remaining(),
		CreatedAt:    now,
	}
	f.entries = append(f.entries, entry)

	price := p.Amount
	l.TeamID = p.TeamID
	l.SoldPrice = &price
	l.SoldAt = &now
	f.lots[l.ID] = l

	c := f.insertCleanupLocked(store.CleanupKindLotSold, l.ID, p.Cleanup)
	return &store.SellLotResult{Lot: &l, Purse: purse, Entry: entry, Cleanup: &c}, nil
}

func (f *FakeStore) PurseEntries(teamID string) []store.PurseEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.PurseEntry, 0)
	for _, e := range f.entries {
		if e.TeamID == teamID {
			out = append(out, e)
		}
	}
	return out
}

func (f *FakeStore) ClaimDueCleanups(_ context.Context, limit int, lease time.Duration) ([]store.Cleanup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	now := time.Now()
	out := make([]store.Cleanup, 0)
	for _, c := range f.sortedPendingLocked() {
		if len(out) >= limit {
			break
		}
		if c.NextAttemptAt.After(now) {
			continue
		}
		c.NextAttemptAt = now.Add(lease)
		f.cleanups[c.ID] = c
		out = append(out, c)
	}
	return out, nil
}

func (f *FakeStore) MarkCleanupDone(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	c, ok := f.cleanups[id]
	if !ok || c.DoneAt != nil {
		return nil
	}
	now := time.Now()
	c.DoneAt = &now
	c.LastError = ""
	f.cleanups[id] = c
	return nil
}

func (f *FakeStore) MarkCleanupFailed(_ context.Context, id, reason string, retryIn time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	c, ok := f.cleanups[id]
	if !ok || c.DoneAt != nil {
		return nil
	}
	c.Attempts++
	c.LastError = reason
	c.NextAttemptAt = time.Now().Add(retryIn)
	f.cleanups[id] = c
	return nil
}

func (f *FakeStore) PendingCleanupForEntity(_ context.Context, kind, entityID string) (*store.Cleanup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	for _, c := range f.sortedPendingLocked() {
		if c.Kind == kind && c.EntityID == entityID {
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *FakeStore) ListPendingCleanups(_ context.Context, limit int) ([]store.Cleanup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	out := f.sortedPendingLocked()
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AddCleanup records a cleanup directly, as if a terminal write had committed it.
func (f *FakeStore) AddCleanup(kind, entityID string, ops []store.CleanupOp) store.Cleanup {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertCleanupLocked(kind, entityID, ops)
}

// MakeDue moves every pending cleanup's next attempt to now.
func (f *FakeStore) MakeDue() {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for id, c := range f.cleanups {
		if c.DoneAt == nil {
			c.NextAttemptAt = now
			f.cleanups[id] = c
		}
	}
}

func (f *FakeStore) purseLocked(teamID string) (store.TeamPurse, error) {
	team, ok := f.teams[teamID]
	if !ok {
		return store.TeamPurse{}, store.ErrNotFound
	}
	tour, ok := f.tournaments[team.TournamentID]
	if !ok {
		return store.TeamPurse{}, fmt.Errorf("team %s has no tournament", teamID)
	}
	return store.TeamPurse{TeamID: team.ID, TournamentID: team.TournamentID, Cap: tour.PurseCap, Spent: team.PurseSpent}, nil
}

func (f *FakeStore) insertCleanupLocked(kind, entityID string, ops []store.CleanupOp) store.Cleanup {
	now := time.Now()
	c := store.Cleanup{
		ID:            store.NewID(),
		Kind:          kind,
		EntityID:      entityID,
		Ops:           append([]store.CleanupOp(nil), ops...),
		NextAttemptAt: now.Add(f.Grace),
		CreatedAt:     now,
	}
	f.cleanups[c.ID] = c
	return c
}

func (f *FakeStore) sortedPendingLocked() []store.Cleanup {
	out := make([]store.Cleanup, 0, len(f.cleanups))
	for _, c := range f.cleanups {
		if c.DoneAt == nil {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
