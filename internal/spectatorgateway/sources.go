package spectatorgateway

import (
	"context"

	"courtpulse/internal/app/apperr"
	"courtpulse/internal/app/auction"
	"courtpulse/internal/app/livescore"
	"courtpulse/internal/realtime"
)

type MatchSource struct {
	Scores *livescore.Coordinator
}

func (s MatchSource) View(ctx context.Context, matchID string) (any, uint64, error) {
	p, err := s.Scores.LiveScore(ctx, matchID)
	if err != nil {
		return nil, 0, err
	}
	return p, p.Revision, nil
}

func (s MatchSource) Key(_ context.Context, matchID string) (string, error) {
	if !realtime.ValidID(matchID) {
		return "", apperr.ErrNotFound
	}
	return realtime.ScoreKey(matchID), nil
}

type LotSource struct {
	Auction *auction.Coordinator
}

func (s LotSource) View(ctx context.Context, lotID string) (any, uint64, error) {
	v, err := s.Auction.LiveBid(ctx, lotID)
	if err != nil {
		return nil, 0, err
	}
	return v, v.Revision, nil
}

func (s LotSource) Key(ctx context.Context, lotID string) (string, error) {
	return s.Auction.BidKey(ctx, lotID)
}
