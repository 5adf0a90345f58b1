package push

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/plantcare/internal/store"
)

// notificationRetention is how long the reminder log is kept.
const notificationRetention = 7 * 24 * time.Hour

// Scheduler periodically runs the due check for every user with a push
// subscription.
type Scheduler struct {
	mu       sync.RWMutex
	checker  *DueChecker
	push     *store.PushStore
	logger   *slog.Logger
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a reminder scheduler.
func NewScheduler(checker *DueChecker, pushStore *store.PushStore, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Scheduler{
		checker:  checker,
		push:     pushStore,
		logger:   logger.With("component", "push_scheduler"),
		interval: interval,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	userIDs, err := s.push.ListUserIDs()
	if err != nil {
		s.logger.Error("list subscribed users", "error", err)
		return
	}

	for _, uid := range userIDs {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.checker.RunDueCheck(ctx, uid); err != nil {
			s.logger.Error("due check", "user_id", uid, "error", err)
		}
	}

	if n, err := s.push.CleanupSent(time.Now().Add(-notificationRetention)); err != nil {
		s.logger.Error("cleanup notification log", "error", err)
	} else if n > 0 {
		s.logger.Debug("cleaned notification log", "removed", n)
	}
}
