package docstore

import (
	"context"
	"log/slog"
	"sync"
)

// Subscription is a live query. C receives the full matching result set
// first and again after every change to the collection. A consumer that falls
// behind only ever sees the newest result set. C is closed once the
// subscription ends.
type Subscription struct {
	C <-chan []Snapshot

	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Close stops delivery and waits for the subscription goroutine to exit.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}

// Err returns the last query error seen by the subscription, if any.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

type queryFunc func(ctx context.Context) ([]Snapshot, error)

// startWatch runs query once and then again on every signal from notify,
// until ctx is cancelled, Close is called or notify is closed. release runs
// when the goroutine exits.
func startWatch(ctx context.Context, notify <-chan struct{}, release func(), query queryFunc, logger *slog.Logger) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan []Snapshot, 1)
	sub := &Subscription{C: out, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		defer close(out)
		defer release()

		for {
			snaps, err := query(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				sub.setErr(err)
				logger.Warn("watch query failed", "error", err)
			} else {
				deliverLatest(out, snaps)
			}

			select {
			case <-ctx.Done():
				return
			case _, ok := <-notify:
				if !ok {
					return
				}
			}
		}
	}()

	return sub
}

// deliverLatest replaces any undelivered result set with snaps.
func deliverLatest(out chan []Snapshot, snaps []Snapshot) {
	for {
		select {
		case out <- snaps:
			return
		default:
		}
		select {
		case <-out:
		default:
		}
	}
}

// broker fans change signals out to watchers of a collection. Signals are
// coalesced: a watcher that has not consumed the previous one gets no second.
type broker struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func newBroker() *broker {
	return &broker{subs: make(map[string]map[chan struct{}]struct{})}
}

func (b *broker) subscribe(collection string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	if b.subs[collection] == nil {
		b.subs[collection] = make(map[chan struct{}]struct{})
	}
	b.subs[collection][ch] = struct{}{}
	b.mu.Unlock()

	release := func() {
		b.mu.Lock()
		delete(b.subs[collection], ch)
		if len(b.subs[collection]) == 0 {
			delete(b.subs, collection)
		}
		b.mu.Unlock()
	}
	return ch, release
}

func (b *broker) publish(collection string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[collection] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (b *broker) watcherCount(collection string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[collection])
}
