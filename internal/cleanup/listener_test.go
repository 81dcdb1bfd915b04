package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
)

type countingWaker struct {
	ch chan struct{}
}

func (w *countingWaker) Wake() {
	w.ch <- struct{}{}
}

func TestListenerWakesAfterGrace(t *testing.T) {
	clock := clockwork.NewFakeClock()
	notify := make(chan *pq.Notification, 1)
	waker := &countingWaker{ch: make(chan struct{}, 4)}
	closed := make(chan struct{})
	l := &Listener{
		cfg:    ListenerConfig{Channel: "realtime_cleanup", Grace: 5 * time.Second, PingInterval: time.Hour},
		notify: notify,
		ping:   func() error { return nil },
		close:  func() error { close(closed); return nil },
		waker:  waker,
		clock:  clock,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Run(ctx) }()

	notify <- &pq.Notification{Channel: "realtime_cleanup", Extra: "01JCLEANUP"}

	// The wake-up is registered asynchronously; keep moving the clock until it fires.
	woken := false
	for deadline := time.Now().Add(2 * time.Second); time.Now().Before(deadline) && !woken; {
		clock.Advance(5 * time.Second)
		select {
		case <-waker.ch:
			woken = true
		case <-time.After(10 * time.Millisecond):
		}
	}
	if !woken {
		t.Fatal("worker not woken after grace")
	}

	cancel()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("listener not closed on cancel")
	}
}
