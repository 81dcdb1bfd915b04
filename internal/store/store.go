package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrMatchCompleted = errors.New("match_completed")
	ErrLotSold        = errors.New("lot_sold")
	ErrTeamMismatch   = errors.New("team_not_in_tournament")
)

// PurseCapError is returned when a sale would push a team past its purse cap.
type PurseCapError struct {
	Cap    int64
	Spent  int64
	Amount int64
}

func (e *PurseCapError) Error() string {
	return fmt.Sprintf("purse cap exceeded: spent %d + %d > cap %d", e.Spent, e.Amount, e.Cap)
}

func (e *PurseCapError) Remaining() int64 {
	return e.Cap - e.Spent
}

const (
	defaultCleanupChannel = "realtime_cleanup"
	defaultCleanupGrace   = 5 * time.Second
)

// Store wraps DB access.
type Store struct {
	Pool *pgxpool.Pool

	cleanupChannel string
	cleanupGrace   time.Duration
}

type Option func(*Store)

// WithCleanupChannel sets the NOTIFY channel used when a cleanup is recorded.
// An empty channel disables notifications.
func WithCleanupChannel(channel string) Option {
	return func(s *Store) { s.cleanupChannel = channel }
}

// WithCleanupGrace delays the first background attempt of a freshly recorded
// cleanup so it does not race the inline run of the request that wrote it.
func WithCleanupGrace(d time.Duration) Option {
	return func(s *Store) {
		if d >= 0 {
			s.cleanupGrace = d
		}
	}
}

func New(dsn string, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, err
	}
	s := &Store{
		Pool:           pool,
		cleanupChannel: defaultCleanupChannel,
		cleanupGrace:   defaultCleanupGrace,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.Pool.Ping(ctx)
}
