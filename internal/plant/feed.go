package plant

import (
	"log/slog"
	"sync"

	"github.com/dukerupert/plantcare/internal/docstore"
	"github.com/dukerupert/plantcare/internal/model"
)

// Feed is a live plant list. C receives the current plants first and again on
// every change; a slow reader only sees the newest list. C closes when the
// feed ends.
type Feed struct {
	C <-chan []model.Plant

	sub  *docstore.Subscription
	done chan struct{}

	mu  sync.Mutex
	err error
}

func newFeed(sub *docstore.Subscription, logger *slog.Logger) *Feed {
	out := make(chan []model.Plant, 1)
	f := &Feed{C: out, sub: sub, done: make(chan struct{})}

	go func() {
		defer close(f.done)
		defer close(out)
		for snaps := range sub.C {
			plants, err := decodePlants(snaps)
			if err != nil {
				logger.Warn("decode plant feed", "error", err)
				f.setErr(err)
				continue
			}
			select {
			case <-out:
			default:
			}
			out <- plants
		}
	}()

	return f
}

// Close stops the feed and waits for it to wind down.
func (f *Feed) Close() {
	f.sub.Close()
	<-f.done
}

// Err returns the last error seen by the feed: a failed query or a plant
// document that could not be decoded.
func (f *Feed) Err() error {
	if err := f.sub.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *Feed) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}
