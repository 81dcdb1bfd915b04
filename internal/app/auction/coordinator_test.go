package auction

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"courtpulse/internal/app/apperr"
	"courtpulse/internal/cleanup"
	"courtpulse/internal/realtime"
	"courtpulse/internal/store"
	"courtpulse/internal/testutil"

	"github.com/jonboulle/clockwork"
)

type fixture struct {
	ds  *testutil.FakeStore
	mem *realtime.Memory
	rt  *testutil.FlakyRealtime
	co  *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ds := testutil.NewFakeStore()
	mem := realtime.NewMemory()
	rt := testutil.NewFlakyRealtime(mem)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	runner := cleanup.NewRunner(ds, rt, cleanup.WithFeedMax(3))
	return &fixture{ds: ds, mem: mem, rt: rt, co: NewCoordinator(ds, rt, runner, WithClock(clock))}
}

func TestScenarioSaleOverCapIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tour := f.ds.AddTournament(1000)
	team := f.ds.AddTeam(tour.ID)
	f.ds.SetPurseSpent(team.ID, 800)
	lot := f.ds.AddLot(tour.ID, 100)

	_, err := f.co.MarkSold(ctx, lot.ID, team.ID, 300)
	var funds *apperr.InsufficientFundsError
	if !errors.As(err, &funds) {
		t.Fatalf("MarkSold() err = %v, want InsufficientFundsError", err)
	}
	if funds.Remaining != 200 || funds.Requested != 300 {
		t.Fatalf("funds error = %+v", funds)
	}
	purse, _ := f.ds.GetTeamPurse(ctx, team.ID)
	if purse.Spent != 800 {
		t.Fatalf("purse spent = %d, want 800", purse.Spent)
	}
	got, _ := f.ds.GetLot(ctx, lot.ID)
	if got.TeamID != "" {
		t.Fatalf("lot team = %q, want unsold", got.TeamID)
	}
	if pending, _ := f.ds.ListPendingCleanups(ctx, 10); len(pending) != 0 {
		t.Fatalf("pending cleanups after rejected sale = %d", len(pending))
	}
}

func TestMarkSoldHugeAmountIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tour := f.ds.AddTournament(1000)
	team := f.ds.AddTeam(tour.ID)
	f.ds.SetPurseSpent(team.ID, 800)
	lot := f.ds.AddLot(tour.ID, 100)

	_, err := f.co.MarkSold(ctx, lot.ID, team.ID, math.MaxInt64)
	var funds *apperr.InsufficientFundsError
	if !errors.As(err, &funds) {
		t.Fatalf("MarkSold() err = %v, want InsufficientFundsError", err)
	}
	if funds.Remaining != 200 || funds.Requested != math.MaxInt64 {
		t.Fatalf("funds error = %+v", funds)
	}
	purse, _ := f.ds.GetTeamPurse(ctx, team.ID)
	if purse.Spent != 800 {
		t.Fatalf("purse spent = %d, want 800", purse.Spent)
	}
	got, _ := f.ds.GetLot(ctx, lot.ID)
	if got.Sold() {
		t.Fatalf("lot sold to %q, want unsold", got.TeamID)
	}
	if entries := f.ds.PurseEntries(team.ID); len(entries) != 0 {
		t.Fatalf("purse entries = %d, want 0", len(entries))
	}
}

func TestConcurrentMarkSoldExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tour := f.ds.AddTournament(1000)
	lot := f.ds.AddLot(tour.ID, 10)
	teams := []store.Team{f.ds.AddTeam(tour.ID), f.ds.AddTeam(tour.ID), f.ds.AddTeam(tour.ID)}

	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for _, team := range teams {
		wg.Add(1)
		go func(teamID string) {
			defer wg.Done()
			_, err := f.co.MarkSold(ctx, lot.ID, teamID, 250)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, apperr.ErrLotSold):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(team.ID)
	}
	wg.Wait()
	if wins.Load() != 1 || conflicts.Load() != 2 {
		t.Fatalf("wins=%d conflicts=%d, want 1/2", wins.Load(), conflicts.Load())
	}

	sold, _ := f.ds.GetLot(ctx, lot.ID)
	var total int64
	for _, team := range teams {
		p, _ := f.ds.GetTeamPurse(ctx, team.ID)
		total += p.Spent
		if p.Spent > 0 && team.ID != sold.TeamID {
			t.Fatalf("losing team %s was charged %d", team.ID, p.Spent)
		}
	}
	if total != 250 {
		t.Fatalf("total spent = %d, want 250", total)
	}
	if entries := f.ds.PurseEntries(sold.TeamID); len(entries) != 1 || entries[0].Amount != -250 {
		t.Fatalf("ledger = %+v", entries)
	}
}

func TestConcurrentSalesNeverExceedCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tour := f.ds.AddTournament(500)
	team := f.ds.AddTeam(tour.ID)
	lots := make([]store.Lot, 8)
	for i := range lots {
		lots[i] = f.ds.AddLot(tour.ID, 10)
	}

	var wg sync.WaitGroup
	for _, lot := range lots {
		wg.Add(1)
		go func(lotID string) {
			defer wg.Done()
			_, err := f.co.MarkSold(ctx, lotID, team.ID, 120)
			if err != nil && !errors.Is(err, apperr.ErrInsufficientFunds) {
				t.Errorf("unexpected error: %v", err)
			}
		}(lot.ID)
	}
	wg.Wait()

	p, _ := f.ds.GetTeamPurse(ctx, team.ID)
	if p.Spent > p.Cap {
		t.Fatalf("spent %d exceeds cap %d", p.Spent, p.Cap)
	}
	if p.Spent != 480 {
		t.Fatalf("spent = %d, want 480", p.Spent)
	}
}

func TestPlaceBidValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tour := f.ds.AddTournament(300)
	other := f.ds.AddTournament(300)
	team := f.ds.AddTeam(tour.ID)
	outsider := f.ds.AddTeam(other.ID)
	lot := f.ds.AddLot(tour.ID, 10)

	tests := []struct {
		name   string
		lotID  string
		teamID string
		amount int64
		want   error
	}{
		{"zero amount", lot.ID, team.ID, 0, apperr.ErrInvalidRequest},
		{"missing lot", "nope", team.ID, 10, apperr.ErrNotFound},
		{"missing team", lot.ID, "nope", 10, apperr.ErrNotFound},
		{"foreign team", lot.ID, outsider.ID, 10, apperr.ErrInvalidRequest},
		{"over purse", lot.ID, team.ID, 301, apperr.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.co.PlaceBid(ctx, tt.lotID, tt.teamID, tt.amount)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if _, err := f.mem.Get(ctx, realtime.BidKey(tour.ID, lot.ID)); !errors.Is(err, realtime.ErrKeyNotFound) {
		t.Fatalf("rejected bids wrote a projection: %v", err)
	}
}

func TestPlaceBidThenSaleClearsProjectionAndFeedsSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tour := f.ds.AddTournament(1000)
	a := f.ds.AddTeam(tour.ID)
	b := f.ds.AddTeam(tour.ID)
	lot := f.ds.AddLot(tour.ID, 50)

	if _, err := f.co.PlaceBid(ctx, lot.ID, a.ID, 100); err != nil {
		t.Fatalf("bid a: %v", err)
	}
	bid, err := f.co.PlaceBid(ctx, lot.ID, b.ID, 150)
	if err != nil {
		t.Fatalf("bid b: %v", err)
	}
	if bid.BidCount != 2 || bid.CurrentBidderTeamID != b.ID || bid.CurrentBid != 150 {
		t.Fatalf("bid projection = %+v", bid)
	}

	view, err := f.co.LiveBid(ctx, lot.ID)
	if err != nil {
		t.Fatalf("LiveBid() error = %v", err)
	}
	if view.Status != LotStatusOpen || view.CurrentBid != 150 {
		t.Fatalf("open view = %+v", view)
	}

	sale, err := f.co.MarkSold(ctx, lot.ID, a.ID, 120)
	if err != nil {
		t.Fatalf("MarkSold() error = %v", err)
	}
	if !sale.RealtimeSynced || sale.PurseSpent != 120 || sale.PurseRemaining != 880 {
		t.Fatalf("sale = %+v", sale)
	}
	if _, err := f.mem.Get(ctx, realtime.BidKey(tour.ID, lot.ID)); !errors.Is(err, realtime.ErrKeyNotFound) {
		t.Fatalf("bid projection still present: %v", err)
	}
	sales, err := f.co.RecentSales(ctx, tour.ID)
	if err != nil {
		t.Fatalf("RecentSales() error = %v", err)
	}
	if len(sales) != 1 || sales[0].LotID != lot.ID || sales[0].Amount != 120 {
		t.Fatalf("sales feed = %+v", sales)
	}

	view, err = f.co.LiveBid(ctx, lot.ID)
	if err != nil {
		t.Fatalf("LiveBid() after sale error = %v", err)
	}
	if view.Status != LotStatusSold || view.SoldToTeamID != a.ID || *view.SoldPrice != 120 {
		t.Fatalf("sold view = %+v", view)
	}

	if _, err := f.co.PlaceBid(ctx, lot.ID, b.ID, 200); !errors.Is(err, apperr.ErrLotSold) {
		t.Fatalf("bid after sale err = %v, want ErrLotSold", err)
	}
}

func TestMarkSoldRealtimeOutageConvergesOnRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tour := f.ds.AddTournament(1000)
	team := f.ds.AddTeam(tour.ID)
	lot := f.ds.AddLot(tour.ID, 50)
	if _, err := f.co.PlaceBid(ctx, lot.ID, team.ID, 90); err != nil {
		t.Fatalf("bid: %v", err)
	}

	f.rt.SetDown(true)
	sale, err := f.co.MarkSold(ctx, lot.ID, team.ID, 90)
	if err != nil {
		t.Fatalf("MarkSold() error = %v", err)
	}
	if sale.RealtimeSynced {
		t.Fatal("RealtimeSynced = true during outage")
	}
	view, err := f.co.LiveBid(ctx, lot.ID)
	if err != nil || view.Status != LotStatusSold {
		t.Fatalf("view during outage = %+v, %v", view, err)
	}

	f.rt.SetDown(false)
	if _, err := f.co.MarkSold(ctx, lot.ID, team.ID, 90); !errors.Is(err, apperr.ErrLotSold) {
		t.Fatalf("retry err = %v, want ErrLotSold", err)
	}
	if _, err := f.mem.Get(ctx, realtime.BidKey(tour.ID, lot.ID)); !errors.Is(err, realtime.ErrKeyNotFound) {
		t.Fatalf("bid projection not cleared after retry: %v", err)
	}
	if pending, _ := f.ds.ListPendingCleanups(ctx, 10); len(pending) != 0 {
		t.Fatalf("pending cleanups = %d, want 0", len(pending))
	}
	p, _ := f.ds.GetTeamPurse(ctx, team.ID)
	if p.Spent != 90 {
		t.Fatalf("spent = %d, want 90", p.Spent)
	}
}

// soldDuringBid reports the lot unsold on the first read and sold afterwards,
// emulating a sale that commits while a bid is being written.
type soldDuringBid struct {
	*testutil.FakeStore
	reads atomic.Int32
	sold  store.Lot
}

func (s *soldDuringBid) GetLot(ctx context.Context, id string) (*store.Lot, error) {
	if s.reads.Add(1) == 1 {
		return s.FakeStore.GetLot(ctx, id)
	}
	l := s.sold
	return &l, nil
}

func TestPlaceBidWithdrawnWhenSaleRaces(t *testing.T) {
	ds := testutil.NewFakeStore()
	mem := realtime.NewMemory()
	tour := ds.AddTournament(1000)
	team := ds.AddTeam(tour.ID)
	lot := ds.AddLot(tour.ID, 10)
	sold := lot
	sold.TeamID = team.ID
	racing := &soldDuringBid{FakeStore: ds, sold: sold}
	co := NewCoordinator(racing, mem, cleanup.NewRunner(ds, mem))

	if _, err := co.PlaceBid(context.Background(), lot.ID, team.ID, 50); !errors.Is(err, apperr.ErrLotSold) {
		t.Fatalf("err = %v, want ErrLotSold", err)
	}
	if _, err := mem.Get(context.Background(), realtime.BidKey(tour.ID, lot.ID)); !errors.Is(err, realtime.ErrKeyNotFound) {
		t.Fatalf("late bid left in realtime store: %v", err)
	}
}

func TestRecentSalesIsCapped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tour := f.ds.AddTournament(10000)
	team := f.ds.AddTeam(tour.ID)
	for i := 0; i < 5; i++ {
		lot := f.ds.AddLot(tour.ID, 1)
		if _, err := f.co.MarkSold(ctx, lot.ID, team.ID, int64(10+i)); err != nil {
			t.Fatalf("sale %d: %v", i, err)
		}
	}
	sales, err := f.co.RecentSales(ctx, tour.ID)
	if err != nil {
		t.Fatalf("RecentSales() error = %v", err)
	}
	if len(sales) != 3 {
		t.Fatalf("feed length = %d, want 3", len(sales))
	}
	if sales[0].Amount != 14 {
		t.Fatalf("newest sale amount = %d, want 14", sales[0].Amount)
	}
}
