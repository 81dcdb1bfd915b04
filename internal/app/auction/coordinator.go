package auction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"courtpulse/internal/app/apperr"
	"courtpulse/internal/realtime"
	"courtpulse/internal/store"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type LotStore interface {
	GetLot(ctx context.Context, id string) (*store.Lot, error)
	GetTeamPurse(ctx context.Context, teamID string) (*store.TeamPurse, error)
	SellLot(ctx context.Context, p store.SellLotParams) (*store.SellLotResult, error)
	PendingCleanupForEntity(ctx context.Context, kind, entityID string) (*store.Cleanup, error)
}

type CleanupRunner interface {
	Run(ctx context.Context, job store.Cleanup) error
}

const defaultCASAttempts = 16

type Coordinator struct {
	lots        LotStore
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

func NewCoordinator(lots LotStore, rt realtime.Store, cleanup CleanupRunner, opts ...Option) *Coordinator {
	c := &Coordinator{
		lots:        lots,
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

// PlaceBid records a bid on an open lot. The lot is re-read after the write;
// if a sale committed in between, the bid is withdrawn and Conflict returned.
func (c *Coordinator) PlaceBid(ctx context.Context, lotID, teamID string, amount int64) (*BidProjection, error) {
	if amount <= 0 {
		return nil, apperr.InvalidRequest("amount must be positive")
	}
	lot, err := c.loadLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if lot.Sold() {
		metricBidRejections.Add(1)
		return nil, apperr.ErrLotSold
	}
	purse, err := c.loadPurse(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if purse.TournamentID != lot.TournamentID {
		return nil, apperr.InvalidRequest("team is not part of this tournament")
	}
	if amount > purse.Remaining() {
		metricBidRejections.Add(1)
		return nil, &apperr.InsufficientFundsError{Remaining: purse.Remaining(), Requested: amount}
	}

	key := realtime.BidKey(lot.TournamentID, lot.ID)
	now := c.clock.Now().UTC()
	entry, err := realtime.Mutate(ctx, c.rt, key, c.casAttempts, func(cur []byte, found bool) ([]byte, error) {
		p := BidProjection{LotID: lot.ID, TournamentID: lot.TournamentID}
		if found {
			if err := json.Unmarshal(cur, &p); err != nil {
				return nil, fmt.Errorf("decode bid projection: %w", err)
			}
		}
		p.CurrentBid = amount
		p.CurrentBidderTeamID = teamID
		p.LastBidTime = now
		p.BidCount++
		return json.Marshal(p)
	})
	if err != nil {
		return nil, fromRealtime(err)
	}

	recheck, err := c.lots.GetLot(ctx, lot.ID)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("lot_id", lot.ID).Msg("bid recheck failed")
	case recheck.Sold():
		if delErr := c.rt.Delete(ctx, key); delErr != nil {
			log.Warn().Err(delErr).Str("lot_id", lot.ID).Msg("withdraw late bid")
		}
		metricBidsRevoked.Add(1)
		return nil, apperr.ErrLotSold
	}

	var out BidProjection
	if err := json.Unmarshal(entry.Value, &out); err != nil {
		return nil, err
	}
	out.Revision = entry.Revision
	metricBids.Add(1)
	log.Debug().
		Str("lot_id", lot.ID).
		Str("team_id", teamID).
		Int64("amount", amount).
		Int64("bid_count", out.BidCount).
		Msg("bid_placed")
	return &out, nil
}

// MarkSold settles a lot to a team at amount. Exactly one call succeeds per
// lot; the purse cap is enforced inside the sale transaction.
func (c *Coordinator) MarkSold(ctx context.Context, lotID, teamID string, amount int64) (*SaleResult, error) {
	if amount < 0 {
		return nil, apperr.InvalidRequest("amount must be non-negative")
	}
	lot, err := c.loadLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if lot.Sold() {
		return nil, c.conflict(ctx, lot.ID)
	}

	now := c.clock.Now().UTC()
	event := SaleEvent{
		ID:           store.NewID(),
		TournamentID: lot.TournamentID,
		LotID:        lot.ID,
		PlayerName:   lot.PlayerName,
		TeamID:       teamID,
		Amount:       amount,
		SoldAt:       now,
	}
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	res, err := c.lots.SellLot(ctx, store.SellLotParams{
		LotID:  lot.ID,
		TeamID: teamID,
		Amount: amount,
		Cleanup: []store.CleanupOp{
			{Op: store.CleanupOpDelete, Key: realtime.BidKey(lot.TournamentID, lot.ID)},
			{Op: store.CleanupOpFeedAppend, Key: realtime.SalesKey(lot.TournamentID), Value: eventJSON, EventID: event.ID},
		},
	})
	if err != nil {
		var capErr *store.PurseCapError
		switch {
		case errors.Is(err, store.ErrLotSold):
			return nil, c.conflict(ctx, lot.ID)
		case errors.As(err, &capErr):
			metricBidRejections.Add(1)
			return nil, &apperr.InsufficientFundsError{Remaining: capErr.Remaining(), Requested: amount}
		case errors.Is(err, store.ErrTeamMismatch):
			return nil, apperr.InvalidRequest("team is not part of this tournament")
		default:
			return nil, fromStore(err)
		}
	}

	synced := true
	if runErr := c.cleanup.Run(ctx, *res.Cleanup); runErr != nil {
		synced = false
		metricSaleUnsynced.Add(1)
		log.Warn().Err(runErr).Str("lot_id", lot.ID).Str("cleanup_id", res.Cleanup.ID).Msg("sale realtime cleanup deferred")
	}
	metricSales.Add(1)
	log.Info().
		Str("lot_id", lot.ID).
		Str("team_id", teamID).
		Int64("amount", amount).
		Int64("purse_spent", res.Purse.Spent).
		Bool("realtime_synced", synced).
		Msg("lot_sold")

	soldAt := now
	if res.Lot.SoldAt != nil {
		soldAt = *res.Lot.SoldAt
	}
	return &SaleResult{
		LotID:          res.Lot.ID,
		TournamentID:   res.Lot.TournamentID,
		TeamID:         res.Lot.TeamID,
		Amount:         amount,
		PurseSpent:     res.Purse.Spent,
		PurseRemaining: res.Purse.Remaining(),
		SoldAt:         soldAt,
		RealtimeSynced: synced,
	}, nil
}

// LiveBid returns the spectator view of a lot.
func (c *Coordinator) LiveBid(ctx context.Context, lotID string) (*LotView, error) {
	lot, err := c.loadLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	view := &LotView{
		LotID:        lot.ID,
		TournamentID: lot.TournamentID,
		PlayerName:   lot.PlayerName,
		BasePrice:    lot.BasePrice,
		Status:       LotStatusOpen,
	}
	if lot.Sold() {
		view.Status = LotStatusSold
		view.SoldToTeamID = lot.TeamID
		view.SoldPrice = lot.SoldPrice
		view.SoldAt = lot.SoldAt
		return view, nil
	}
	entry, err := c.rt.Get(ctx, realtime.BidKey(lot.TournamentID, lot.ID))
	if errors.Is(err, realtime.ErrKeyNotFound) {
		return view, nil
	}
	if err != nil {
		return nil, fromRealtime(err)
	}
	var p BidProjection
	if err := json.Unmarshal(entry.Value, &p); err != nil {
		return nil, fmt.Errorf("decode bid projection: %w", err)
	}
	view.CurrentBid = p.CurrentBid
	view.CurrentBidderTeamID = p.CurrentBidderTeamID
	view.BidCount = p.BidCount
	if !p.LastBidTime.IsZero() {
		t := p.LastBidTime
		view.LastBidTime = &t
	}
	view.Revision = entry.Revision
	return view, nil
}

// BidKey resolves the broadcast key of a lot for subscribers.
func (c *Coordinator) BidKey(ctx context.Context, lotID string) (string, error) {
	lot, err := c.loadLot(ctx, lotID)
	if err != nil {
		return "", err
	}
	return realtime.BidKey(lot.TournamentID, lot.ID), nil
}

// RecentSales reads the advisory sales feed, newest first.
func (c *Coordinator) RecentSales(ctx context.Context, tournamentID string) ([]SaleEvent, error) {
	if !realtime.ValidID(tournamentID) {
		return nil, apperr.ErrNotFound
	}
	items, err := realtime.ReadFeed(ctx, c.rt, realtime.SalesKey(tournamentID))
	if err != nil {
		return nil, fromRealtime(err)
	}
	out := make([]SaleEvent, 0, len(items))
	for _, raw := range items {
		var ev SaleEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// conflict re-runs any cleanup still pending for the lot so a retried sale
// converges the realtime view, then reports the lot as sold.
func (c *Coordinator) conflict(ctx context.Context, lotID string) error {
	metricSaleConflicts.Add(1)
	job, err := c.lots.PendingCleanupForEntity(ctx, store.CleanupKindLotSold, lotID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		log.Warn().Err(err).Str("lot_id", lotID).Msg("pending cleanup lookup failed")
	default:
		if runErr := c.cleanup.Run(ctx, *job); runErr != nil {
			log.Warn().Err(runErr).Str("lot_id", lotID).Str("cleanup_id", job.ID).Msg("sale cleanup retry failed")
		}
	}
	return apperr.ErrLotSold
}

func (c *Coordinator) loadLot(ctx context.Context, lotID string) (*store.Lot, error) {
	if !realtime.ValidID(lotID) {
		return nil, apperr.ErrNotFound
	}
	lot, err := c.lots.GetLot(ctx, lotID)
	if err != nil {
		return nil, fromStore(err)
	}
	return lot, nil
}

func (c *Coordinator) loadPurse(ctx context.Context, teamID string) (*store.TeamPurse, error) {
	if !realtime.ValidID(teamID) {
		return nil, apperr.ErrNotFound
	}
	p, err := c.lots.GetTeamPurse(ctx, teamID)
	if err != nil {
		return nil, fromStore(err)
	}
	return p, nil
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
