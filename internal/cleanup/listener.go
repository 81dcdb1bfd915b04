package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

type ListenerConfig struct {
	DatabaseURL  string
	Channel      string
	Grace        time.Duration
	PingInterval time.Duration
}

type Waker interface {
	Wake()
}

// Listener turns cleanup NOTIFY events into worker wake-ups. Each wake-up is
// delayed by the grace period so the inline run of the writing request usually
// finishes first. The worker's interval sweep covers missed notifications.
type Listener struct {
	cfg    ListenerConfig
	notify <-chan *pq.Notification
	ping   func() error
	close  func() error
	waker  Waker
	clock  clockwork.Clock
}

func NewListener(cfg ListenerConfig, waker Waker, clock clockwork.Clock) (*Listener, error) {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 90 * time.Second
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("cleanup listener event")
			}
		},
	)
	if err := l.Listen(cfg.Channel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.Channel, err)
	}
	return &Listener{
		cfg:    cfg,
		notify: l.Notify,
		ping:   l.Ping,
		close:  l.Close,
		waker:  waker,
		clock:  clock,
	}, nil
}

func (l *Listener) Run(ctx context.Context) error {
	log.Info().
		Str("channel", l.cfg.Channel).
		Dur("grace", l.cfg.Grace).
		Msg("cleanup listener started")

	ping := l.clock.NewTicker(l.cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("cleanup listener stopped")
			return l.close()
		case note := <-l.notify:
			if note == nil {
				// Connection was re-established; notifications may have been lost.
				l.schedule("")
				continue
			}
			l.schedule(note.Extra)
		case <-ping.Chan():
			if err := l.ping(); err != nil {
				log.Error().Err(err).Msg("cleanup listener ping")
			}
		}
	}
}

func (l *Listener) schedule(cleanupID string) {
	metricNotifications.Add(1)
	log.Debug().Str("cleanup_id", cleanupID).Msg("cleanup notification")
	l.clock.AfterFunc(l.cfg.Grace, l.waker.Wake)
}
