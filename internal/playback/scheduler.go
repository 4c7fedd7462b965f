package playback

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Scheduler drives the periodic position-sampling tick. Start always clears
// any previous timer before installing a new one, so switching the active
// item can never leave two tick loops running.
type Scheduler interface {
	Start(interval time.Duration, onTick func())
	Stop()
}

type tickScheduler struct {
	clk    clock.Clock
	mu     sync.Mutex
	cancel chan struct{}
}

func NewTickScheduler(clk clock.Clock) Scheduler {
	return &tickScheduler{clk: clk}
}

func (s *tickScheduler) Start(interval time.Duration, onTick func()) {
	ch := make(chan struct{})

	s.mu.Lock()
	if s.cancel != nil {
		close(s.cancel)
	}
	s.cancel = ch
	s.mu.Unlock()

	go func() {
		t := s.clk.Ticker(interval)
		defer t.Stop()
		for {
			select {
			case <-ch:
				return
			case <-t.C:
				onTick()
			}
		}
	}()
}

func (s *tickScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		close(s.cancel)
		s.cancel = nil
	}
}
