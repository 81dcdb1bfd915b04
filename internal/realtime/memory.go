package realtime

import (
	"context"
	"sync"
)

const memoryWatchBuffer = 64

type memoryEntry struct {
	value    []byte
	revision uint64
}

// Memory is an in-process Store for tests and single-node development.
type Memory struct {
	mu       sync.Mutex
	seq      uint64
	entries  map[string]memoryEntry
	watchers map[string]map[*memoryWatcher]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		entries:  map[string]memoryEntry{},
		watchers: map[string]map[*memoryWatcher]struct{}{},
	}
}

func (m *Memory) Get(ctx context.Context, key string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return Entry{}, ErrKeyNotFound
	}
	return Entry{Key: key, Value: cloneBytes(e.value), Revision: e.revision, Op: OpPut}, nil
}

func (m *Memory) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeLocked(key, value), nil
}

func (m *Memory) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; ok {
		return 0, ErrRevisionMismatch
	}
	return m.writeLocked(key, value), nil
}

func (m *Memory) Update(ctx context.Context, key string, value []byte, rev uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || e.revision != rev {
		return 0, ErrRevisionMismatch
	}
	return m.writeLocked(key, value), nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; !ok {
		return nil
	}
	delete(m.entries, key)
	m.seq++
	m.publishLocked(Entry{Key: key, Revision: m.seq, Op: OpDelete})
	return nil
}

func (m *Memory) Watch(ctx context.Context, key string) (Watcher, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w := &memoryWatcher{
		parent: m,
		key:    key,
		ch:     make(chan Entry, memoryWatchBuffer),
		done:   make(chan struct{}),
	}
	m.mu.Lock()
	if e, ok := m.entries[key]; ok {
		w.ch <- Entry{Key: key, Value: cloneBytes(e.value), Revision: e.revision, Op: OpPut}
	}
	set := m.watchers[key]
	if set == nil {
		set = map[*memoryWatcher]struct{}{}
		m.watchers[key] = set
	}
	set[w] = struct{}{}
	m.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			w.Stop()
		case <-w.done:
		}
	}()
	return w, nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *Memory) writeLocked(key string, value []byte) uint64 {
	m.seq++
	v := cloneBytes(value)
	m.entries[key] = memoryEntry{value: v, revision: m.seq}
	m.publishLocked(Entry{Key: key, Value: v, Revision: m.seq, Op: OpPut})
	return m.seq
}

// publishLocked fans an entry out to the key's watchers. A watcher whose buffer
// is full is closed with ErrWatcherLagging instead of silently missing writes.
func (m *Memory) publishLocked(e Entry) {
	for w := range m.watchers[e.Key] {
		out := e
		out.Value = cloneBytes(e.Value)
		select {
		case w.ch <- out:
		default:
			m.dropLocked(w, ErrWatcherLagging)
		}
	}
}

func (m *Memory) dropLocked(w *memoryWatcher, reason error) {
	set := m.watchers[w.key]
	if _, ok := set[w]; !ok {
		return
	}
	delete(set, w)
	if len(set) == 0 {
		delete(m.watchers, w.key)
	}
	w.err = reason
	close(w.ch)
	close(w.done)
}

type memoryWatcher struct {
	parent *Memory
	key    string
	ch     chan Entry
	done   chan struct{}
	err    error
}

func (w *memoryWatcher) Updates() <-chan Entry {
	return w.ch
}

func (w *memoryWatcher) Err() error {
	w.parent.mu.Lock()
	defer w.parent.mu.Unlock()
	return w.err
}

func (w *memoryWatcher) Stop() {
	w.parent.mu.Lock()
	defer w.parent.mu.Unlock()
	w.parent.dropLocked(w, nil)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
