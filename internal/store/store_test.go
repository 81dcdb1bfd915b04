package store_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"courtpulse/internal/store"
	"courtpulse/internal/testutil"
)

func TestFinalizeMatchIsIdempotent(t *testing.T) {
	st := testutil.OpenTestStore(t, store.WithCleanupGrace(0))
	ctx := context.Background()

	m, err := st.CreateMatch(ctx, store.CreateMatchParams{TeamA: []string{"p1"}, TeamB: []string{"p2"}})
	if err != nil {
		t.Fatalf("create match: %v", err)
	}
	if m.Kind != store.MatchKindPractice || m.Status != store.MatchStatusScheduled {
		t.Fatalf("unexpected new match: %+v", m)
	}
	started, err := st.StartMatch(ctx, m.ID)
	if err != nil || !started {
		t.Fatalf("StartMatch() = %v, %v", started, err)
	}
	started, err = st.StartMatch(ctx, m.ID)
	if err != nil || started {
		t.Fatalf("second StartMatch() = %v, %v, want false", started, err)
	}

	ops := []store.CleanupOp{{Op: store.CleanupOpPut, Key: "score." + m.ID, Value: []byte(`{"status":"FINAL"}`)}}
	res, err := st.FinalizeMatch(ctx, store.FinalizeMatchParams{MatchID: m.ID, ScoreA: 11, ScoreB: 7, Winner: "A", Cleanup: ops})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if res.AlreadyCompleted || res.Cleanup == nil || res.Match.Winner != "A" || !res.Match.Completed() {
		t.Fatalf("unexpected finalize result: %+v", res)
	}
	if len(res.Cleanup.Ops) != 1 || res.Cleanup.Ops[0].Key != "score."+m.ID {
		t.Fatalf("cleanup ops = %+v", res.Cleanup.Ops)
	}

	again, err := st.FinalizeMatch(ctx, store.FinalizeMatchParams{MatchID: m.ID, ScoreA: 11, ScoreB: 7, Winner: "A", Cleanup: ops})
	if err != nil {
		t.Fatalf("finalize again: %v", err)
	}
	if !again.AlreadyCompleted || again.Cleanup != nil {
		t.Fatalf("second finalize = %+v, want already completed", again)
	}

	_, err = st.FinalizeMatch(ctx, store.FinalizeMatchParams{MatchID: m.ID, ScoreA: 3, ScoreB: 7, Winner: "B"})
	if !errors.Is(err, store.ErrMatchCompleted) {
		t.Fatalf("finalize with new scores err = %v, want ErrMatchCompleted", err)
	}

	got, err := st.GetMatch(ctx, m.ID)
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if got.ScoreA != 11 || got.ScoreB != 7 {
		t.Fatalf("scores = %d-%d, want 11-7", got.ScoreA, got.ScoreB)
	}

	pending, err := st.PendingCleanupForEntity(ctx, store.CleanupKindMatchFinal, m.ID)
	if err != nil || pending.ID != res.Cleanup.ID {
		t.Fatalf("pending cleanup = %+v, %v", pending, err)
	}
}

func TestGetMatchNotFound(t *testing.T) {
	st := testutil.OpenTestStore(t)
	if _, err := st.GetMatch(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSellLotConcurrentExactlyOneWinner(t *testing.T) {
	st := testutil.OpenTestStore(t)
	ctx := context.Background()

	tour, err := st.CreateTournament(ctx, "spring", 1000)
	if err != nil {
		t.Fatalf("create tournament: %v", err)
	}
	lot, err := st.CreateLot(ctx, tour.ID, "Player One", 50)
	if err != nil {
		t.Fatalf("create lot: %v", err)
	}
	teams := make([]*store.Team, 4)
	for i := range teams {
		teams[i], err = st.CreateTeam(ctx, tour.ID, "team")
		if err != nil {
			t.Fatalf("create team: %v", err)
		}
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
		sold    int
	)
	for _, team := range teams {
		wg.Add(1)
		go func(teamID string) {
			defer wg.Done()
			_, err := st.SellLot(ctx, store.SellLotParams{LotID: lot.ID, TeamID: teamID, Amount: 100})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, store.ErrLotSold):
				sold++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(team.ID)
	}
	wg.Wait()
	if winners != 1 || sold != len(teams)-1 {
		t.Fatalf("winners=%d sold=%d, want 1 and %d", winners, sold, len(teams)-1)
	}

	total := int64(0)
	for _, team := range teams {
		p, err := st.GetTeamPurse(ctx, team.ID)
		if err != nil {
			t.Fatalf("purse: %v", err)
		}
		total += p.Spent
	}
	if total != 100 {
		t.Fatalf("total spent = %d, want 100", total)
	}
}

func TestSellLotNeverExceedsCap(t *testing.T) {
	st := testutil.OpenTestStore(t)
	ctx := context.Background()

	tour, err := st.CreateTournament(ctx, "cap", 100)
	if err != nil {
		t.Fatalf("create tournament: %v", err)
	}
	team, err := st.CreateTeam(ctx, tour.ID, "alpha")
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	lots := make([]*store.Lot, 5)
	for i := range lots {
		lots[i], err = st.CreateLot(ctx, tour.ID, "player", 10)
		if err != nil {
			t.Fatalf("create lot: %v", err)
		}
	}

	var wg sync.WaitGroup
	for _, lot := range lots {
		wg.Add(1)
		go func(lotID string) {
			defer wg.Done()
			_, err := st.SellLot(ctx, store.SellLotParams{LotID: lotID, TeamID: team.ID, Amount: 30})
			var capErr *store.PurseCapError
			if err != nil && !errors.As(err, &capErr) {
				t.Errorf("unexpected error: %v", err)
			}
		}(lot.ID)
	}
	wg.Wait()

	p, err := st.GetTeamPurse(ctx, team.ID)
	if err != nil {
		t.Fatalf("purse: %v", err)
	}
	if p.Spent != 90 {
		t.Fatalf("spent = %d, want 90", p.Spent)
	}
	entries, err := st.ListPurseEntries(ctx, team.ID, 10)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("ledger entries = %d, want 3", len(entries))
	}
}

func TestSellLotHugeAmountLeavesPurseUntouched(t *testing.T) {
	st := testutil.OpenTestStore(t)
	ctx := context.Background()

	tour, err := st.CreateTournament(ctx, "overflow", 1000)
	if err != nil {
		t.Fatalf("create tournament: %v", err)
	}
	team, err := st.CreateTeam(ctx, tour.ID, "alpha")
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	first, err := st.CreateLot(ctx, tour.ID, "first", 10)
	if err != nil {
		t.Fatalf("create lot: %v", err)
	}
	if _, err := st.SellLot(ctx, store.SellLotParams{LotID: first.ID, TeamID: team.ID, Amount: 800}); err != nil {
		t.Fatalf("first sale: %v", err)
	}
	lot, err := st.CreateLot(ctx, tour.ID, "second", 10)
	if err != nil {
		t.Fatalf("create lot: %v", err)
	}

	_, err = st.SellLot(ctx, store.SellLotParams{LotID: lot.ID, TeamID: team.ID, Amount: math.MaxInt64})
	var capErr *store.PurseCapError
	if !errors.As(err, &capErr) {
		t.Fatalf("SellLot() err = %v, want PurseCapError", err)
	}
	if capErr.Remaining() != 200 {
		t.Fatalf("remaining = %d, want 200", capErr.Remaining())
	}
	p, err := st.GetTeamPurse(ctx, team.ID)
	if err != nil {
		t.Fatalf("purse: %v", err)
	}
	if p.Spent != 800 {
		t.Fatalf("spent = %d, want 800", p.Spent)
	}
	got, err := st.GetLot(ctx, lot.ID)
	if err != nil {
		t.Fatalf("lot: %v", err)
	}
	if got.Sold() {
		t.Fatalf("lot sold after rejected sale")
	}
}

func TestSellLotRejectsForeignTeam(t *testing.T) {
	st := testutil.OpenTestStore(t)
	ctx := context.Background()

	a, _ := st.CreateTournament(ctx, "a", 100)
	b, _ := st.CreateTournament(ctx, "b", 100)
	lot, err := st.CreateLot(ctx, a.ID, "player", 10)
	if err != nil {
		t.Fatalf("create lot: %v", err)
	}
	team, err := st.CreateTeam(ctx, b.ID, "outsider")
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	if _, err := st.SellLot(ctx, store.SellLotParams{LotID: lot.ID, TeamID: team.ID, Amount: 10}); !errors.Is(err, store.ErrTeamMismatch) {
		t.Fatalf("err = %v, want ErrTeamMismatch", err)
	}
}

func TestClaimAndFailCleanups(t *testing.T) {
	st := testutil.OpenTestStore(t, store.WithCleanupGrace(0))
	ctx := context.Background()

	tour, _ := st.CreateTournament(ctx, "claims", 500)
	team, _ := st.CreateTeam(ctx, tour.ID, "alpha")
	lot, err := st.CreateLot(ctx, tour.ID, "player", 10)
	if err != nil {
		t.Fatalf("create lot: %v", err)
	}
	res, err := st.SellLot(ctx, store.SellLotParams{
		LotID:   lot.ID,
		TeamID:  team.ID,
		Amount:  40,
		Cleanup: []store.CleanupOp{{Op: store.CleanupOpDelete, Key: "bid.x.y"}},
	})
	if err != nil {
		t.Fatalf("sell: %v", err)
	}

	claimed, err := st.ClaimDueCleanups(ctx, 10, time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != 1 || claimed[0].ID != res.Cleanup.ID {
		t.Fatalf("claimed = %+v", claimed)
	}
	again, err := st.ClaimDueCleanups(ctx, 10, time.Minute)
	if err != nil {
		t.Fatalf("claim again: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("leased cleanup claimed twice: %+v", again)
	}

	if err := st.MarkCleanupFailed(ctx, res.Cleanup.ID, "nats down", 0); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	pending, err := st.ListPendingCleanups(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 1 || pending[0].Attempts != 1 || pending[0].LastError != "nats down" {
		t.Fatalf("pending = %+v", pending)
	}

	if err := st.MarkCleanupDone(ctx, res.Cleanup.ID); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	if _, err := st.PendingCleanupForEntity(ctx, store.CleanupKindLotSold, lot.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("pending after done err = %v, want ErrNotFound", err)
	}
}
