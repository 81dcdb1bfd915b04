package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

const natsWatchBuffer = 64

type NATSConfig struct {
	URL    string
	Bucket string
	TTL    time.Duration
	Name   string
}

// NATSKV is a Store backed by a JetStream key-value bucket. Keys keep one
// revision of history and expire after the bucket TTL.
type NATSKV struct {
	nc *nats.Conn
	kv jetstream.KeyValue
}

func DialNATS(ctx context.Context, cfg NATSConfig) (*NATSKV, error) {
	name := cfg.Name
	if name == "" {
		name = "courtpulse"
	}
	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("nats error")
		}),
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "live score and bid projections",
		History:     1,
		TTL:         cfg.TTL,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("open kv bucket %s: %w", cfg.Bucket, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Dur("ttl", cfg.TTL).Msg("realtime bucket ready")
	return &NATSKV{nc: nc, kv: kv}, nil
}

func (n *NATSKV) Close() {
	if n.nc != nil {
		n.nc.Close()
	}
}

func (n *NATSKV) Get(ctx context.Context, key string) (Entry, error) {
	e, err := n.kv.Get(ctx, key)
	if err != nil {
		return Entry{}, mapNATSError(err)
	}
	return fromKVEntry(e), nil
}

func (n *NATSKV) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	rev, err := n.kv.Put(ctx, key, value)
	return rev, mapNATSError(err)
}

func (n *NATSKV) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	rev, err := n.kv.Create(ctx, key, value)
	return rev, mapNATSError(err)
}

func (n *NATSKV) Update(ctx context.Context, key string, value []byte, rev uint64) (uint64, error) {
	next, err := n.kv.Update(ctx, key, value, rev)
	return next, mapNATSError(err)
}

func (n *NATSKV) Delete(ctx context.Context, key string) error {
	err := mapNATSError(n.kv.Delete(ctx, key))
	if errors.Is(err, ErrKeyNotFound) {
		return nil
	}
	return err
}

func (n *NATSKV) Watch(ctx context.Context, key string) (Watcher, error) {
	kw, err := n.kv.Watch(ctx, key)
	if err != nil {
		return nil, mapNATSError(err)
	}
	w := &natsWatcher{
		kw:   kw,
		ch:   make(chan Entry, natsWatchBuffer),
		done: make(chan struct{}),
	}
	go w.pump(ctx)
	return w, nil
}

func (n *NATSKV) Ping(ctx context.Context) error {
	if n.nc == nil || n.nc.Status() != nats.CONNECTED {
		return ErrUnavailable
	}
	if _, err := n.kv.Status(ctx); err != nil {
		return mapNATSError(err)
	}
	return nil
}

type natsWatcher struct {
	kw   jetstream.KeyWatcher
	ch   chan Entry
	done chan struct{}
	err  error
}

// pump forwards entries until the watcher stops. The nil marker that ends the
// initial values is skipped.
func (w *natsWatcher) pump(ctx context.Context) {
	defer close(w.ch)
	for {
		select {
		case <-ctx.Done():
			_ = w.kw.Stop()
			return
		case <-w.done:
			_ = w.kw.Stop()
			return
		case e, ok := <-w.kw.Updates():
			if !ok {
				return
			}
			if e == nil {
				continue
			}
			select {
			case w.ch <- fromKVEntry(e):
			default:
				w.err = ErrWatcherLagging
				_ = w.kw.Stop()
				return
			}
		}
	}
}

func (w *natsWatcher) Updates() <-chan Entry {
	return w.ch
}

// Err is only meaningful after Updates is closed.
func (w *natsWatcher) Err() error {
	return w.err
}

func (w *natsWatcher) Stop() {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
}

func fromKVEntry(e jetstream.KeyValueEntry) Entry {
	op := OpPut
	if e.Operation() == jetstream.KeyValueDelete || e.Operation() == jetstream.KeyValuePurge {
		op = OpDelete
	}
	return Entry{Key: e.Key(), Value: e.Value(), Revision: e.Revision(), Op: op}
}

func mapNATSError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, jetstream.ErrKeyNotFound), errors.Is(err, jetstream.ErrKeyDeleted):
		return ErrKeyNotFound
	case errors.Is(err, jetstream.ErrKeyExists):
		return ErrRevisionMismatch
	}
	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence {
		return ErrRevisionMismatch
	}
	if isNATSTransient(err) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

func isNATSTransient(err error) bool {
	return errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrConnectionReconnecting) ||
		errors.Is(err, nats.ErrNoResponders) ||
		errors.Is(err, context.DeadlineExceeded)
}
