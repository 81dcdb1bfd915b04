package testutil

import (
	"context"
	"fmt"
	"sync"

	"courtpulse/internal/realtime"
)

// FlakyRealtime wraps a realtime store and fails every write while Down is set.
// Reads and watches keep working so tests can observe what was written.
type FlakyRealtime struct {
	realtime.Store

	mu   sync.Mutex
	down bool
}

func NewFlakyRealtime(inner realtime.Store) *FlakyRealtime {
	return &FlakyRealtime{Store: inner}
}

func (f *FlakyRealtime) SetDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *FlakyRealtime) fail() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return fmt.Errorf("%w: injected outage", realtime.ErrUnavailable)
	}
	return nil
}

func (f *FlakyRealtime) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	if err := f.fail(); err != nil {
		return 0, err
	}
	return f.Store.Put(ctx, key, value)
}

func (f *FlakyRealtime) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	if err := f.fail(); err != nil {
		return 0, err
	}
	return f.Store.Create(ctx, key, value)
}

func (f *FlakyRealtime) Update(ctx context.Context, key string, value []byte, rev uint64) (uint64, error) {
	if err := f.fail(); err != nil {
		return 0, err
	}
	return f.Store.Update(ctx, key, value, rev)
}

func (f *FlakyRealtime) Delete(ctx context.Context, key string) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.Store.Delete(ctx, key)
}

func (f *FlakyRealtime) Ping(ctx context.Context) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.Store.Ping(ctx)
}
