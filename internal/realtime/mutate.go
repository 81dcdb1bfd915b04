package realtime

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// MutateFunc computes the next value of a key from its current value. found is
// false when the key does not exist. Returning an error aborts the mutation.
type MutateFunc func(current []byte, found bool) ([]byte, error)

// Mutate applies fn under compare-and-swap on the key revision, re-reading and
// retrying up to attempts times when another writer got there first.
func Mutate(ctx context.Context, s Store, key string, attempts int, fn MutateFunc) (Entry, error) {
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := backoff(ctx, attempt); err != nil {
				return Entry{}, err
			}
		}
		cur, err := s.Get(ctx, key)
		found := true
		if errors.Is(err, ErrKeyNotFound) {
			found = false
		} else if err != nil {
			return Entry{}, err
		}

		next, err := fn(cur.Value, found)
		if err != nil {
			return Entry{}, err
		}

		var rev uint64
		if found {
			rev, err = s.Update(ctx, key, next, cur.Revision)
		} else {
			rev, err = s.Create(ctx, key, next)
		}
		if errors.Is(err, ErrRevisionMismatch) {
			continue
		}
		if err != nil {
			return Entry{}, err
		}
		return Entry{Key: key, Value: next, Revision: rev, Op: OpPut}, nil
	}
	return Entry{}, ErrContended
}

func backoff(ctx context.Context, attempt int) error {
	ceiling := time.Duration(attempt) * time.Millisecond
	t := time.NewTimer(time.Duration(rand.Int64N(int64(ceiling) + 1)))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
