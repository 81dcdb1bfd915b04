// Package realtime is the broadcast store that spectators subscribe to. It is a
// revocable cache of the durable store: every key can be rebuilt from Postgres.
//
// Revisions are bucket-wide and strictly increasing, so a compare-and-swap on a
// key's revision detects any write that happened since the read.
package realtime

import (
	"context"
	"errors"
)

var (
	ErrKeyNotFound      = errors.New("realtime: key not found")
	ErrRevisionMismatch = errors.New("realtime: revision mismatch")
	ErrUnavailable      = errors.New("realtime: unavailable")
	ErrContended        = errors.New("realtime: too much contention")
	ErrWatcherLagging   = errors.New("realtime: watcher lagging")
)

type Op string

const (
	OpPut    Op = "put"
	OpDelete Op = "delete"
)

type Entry struct {
	Key      string
	Value    []byte
	Revision uint64
	Op       Op
}

func (e Entry) Deleted() bool {
	return e.Op == OpDelete
}

type Store interface {
	Get(ctx context.Context, key string) (Entry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	// Create writes key only if it does not exist; otherwise ErrRevisionMismatch.
	Create(ctx context.Context, key string, value []byte) (uint64, error)
	// Update writes key only if its current revision equals rev.
	Update(ctx context.Context, key string, value []byte, rev uint64) (uint64, error)
	// Delete is idempotent for missing keys.
	Delete(ctx context.Context, key string) error
	// Watch delivers the current entry, if any, then every later write in order.
	Watch(ctx context.Context, key string) (Watcher, error)
	Ping(ctx context.Context) error
}

type Watcher interface {
	Updates() <-chan Entry
	// Err reports why the update channel closed early, such as ErrWatcherLagging.
	Err() error
	Stop()
}
