// Package daily accumulates tracked seconds into a rolling per-calendar-day
// total, independent of which item produced them. The in-memory value is
// authoritative for the UI; durable writes lag behind a debounce window.
package daily

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/example/watchtime/internal/store"
)

const flushTimeout = 5 * time.Second

type Aggregator struct {
	store    store.Store
	log      *zap.Logger
	clk      clock.Clock
	loc      *time.Location
	userID   string
	debounce time.Duration

	mu         sync.Mutex
	total      int
	date       string // local date the total belongs to
	pending    int64  // seconds not yet flushed to the lifetime counter
	flushTimer *clock.Timer
	listeners  map[int]func(total int)
	nextID     int
}

// New builds an aggregator for one user. loc nil means time.Local.
func New(st store.Store, log *zap.Logger, clk clock.Clock, loc *time.Location, userID string, debounce time.Duration) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	a := &Aggregator{
		store:     st,
		log:       log,
		clk:       clk,
		loc:       loc,
		userID:    userID,
		debounce:  debounce,
		listeners: make(map[int]func(int)),
	}
	a.date = a.dateOf(clk.Now())
	return a
}

// AddTime adds elapsed seconds to today's total. NaN, infinite and negative
// inputs are dropped with no state change; valid input is floored. Listeners
// are notified synchronously before the durable write is scheduled. The
// returned pair is the total before and after, for threshold-crossing checks.
func (a *Aggregator) AddTime(deltaSeconds float64) (prev, cur int) {
	if math.IsNaN(deltaSeconds) || math.IsInf(deltaSeconds, 0) || deltaSeconds < 0 {
		a.mu.Lock()
		cur = a.total
		a.mu.Unlock()
		return cur, cur
	}
	d := int(math.Floor(deltaSeconds))

	a.mu.Lock()
	a.rolloverLocked(a.clk.Now())
	prev = a.total
	a.total += d
	a.pending += int64(d)
	cur = a.total
	fns := a.listenersLocked()
	a.mu.Unlock()

	for _, fn := range fns {
		fn(cur)
	}
	a.scheduleFlush()
	return prev, cur
}

// Total returns today's in-memory total.
func (a *Aggregator) Total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

// Subscribe registers a listener and returns its removal func.
func (a *Aggregator) Subscribe(fn func(total int)) (unsubscribe func()) {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

// LoadDailyTime recomputes today's total from stored sessions started since
// local midnight. Within one day the in-memory total never decreases, so a
// reload racing un-checkpointed ticks keeps the larger value.
func (a *Aggregator) LoadDailyTime(ctx context.Context) error {
	now := a.clk.Now()
	midnight := a.midnightOf(now)
	sum, err := a.store.SumSessionSeconds(ctx, a.userID, nil, midnight, midnight.Add(24*time.Hour))
	if err != nil {
		return err
	}

	a.mu.Lock()
	today := a.dateOf(now)
	if a.date == today && sum < a.total {
		sum = a.total
	}
	a.total = sum
	a.date = today
	cur := a.total
	fns := a.listenersLocked()
	a.mu.Unlock()

	for _, fn := range fns {
		fn(cur)
	}
	return nil
}

// CheckRollover resets the counter to zero when the local date has changed
// since the last load, then reloads today's sessions.
func (a *Aggregator) CheckRollover(ctx context.Context) {
	a.mu.Lock()
	rolled := a.rolloverLocked(a.clk.Now())
	cur := a.total
	fns := a.listenersLocked()
	a.mu.Unlock()
	if !rolled {
		return
	}

	for _, fn := range fns {
		fn(cur)
	}
	if err := a.LoadDailyTime(ctx); err != nil {
		a.log.Warn("daily reload after rollover failed", zap.String("user_id", a.userID), zap.Error(err))
	}
}

// WatchRollover polls for a local date change until ctx is cancelled.
func (a *Aggregator) WatchRollover(ctx context.Context, every time.Duration) {
	t := a.clk.Ticker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.CheckRollover(ctx)
		}
	}
}

// Flush writes any pending seconds to the lifetime counter immediately.
// Last-chance persistence path for unload; best-effort.
func (a *Aggregator) Flush(ctx context.Context) {
	a.mu.Lock()
	if a.flushTimer != nil {
		a.flushTimer.Stop()
		a.flushTimer = nil
	}
	n := a.pending
	a.pending = 0
	a.mu.Unlock()
	a.write(ctx, n)
}

func (a *Aggregator) scheduleFlush() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending == 0 || a.flushTimer != nil {
		return
	}
	a.flushTimer = a.clk.AfterFunc(a.debounce, func() {
		a.mu.Lock()
		a.flushTimer = nil
		n := a.pending
		a.pending = 0
		a.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		a.write(ctx, n)
	})
}

func (a *Aggregator) write(ctx context.Context, n int64) {
	if n == 0 {
		return
	}
	now := a.clk.Now().UTC()
	patch := store.AggregatePatch{AddTotalSeconds: &n, LastWatchedAt: &now}
	if err := a.store.UpdateUserAggregate(ctx, a.userID, patch); err != nil {
		// In-memory state stays authoritative; the lifetime counter
		// undercounts until the next successful write.
		a.log.Warn("aggregate flush failed",
			zap.String("user_id", a.userID),
			zap.Int64("seconds", n),
			zap.Error(err))
	}
}

// rolloverLocked resets the counter when the date changed. Reports whether
// a reset happened.
func (a *Aggregator) rolloverLocked(now time.Time) bool {
	today := a.dateOf(now)
	if today == a.date {
		return false
	}
	a.date = today
	a.total = 0
	return true
}

func (a *Aggregator) listenersLocked() []func(int) {
	fns := make([]func(int), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	return fns
}

func (a *Aggregator) dateOf(t time.Time) string {
	return t.In(a.loc).Format("2006-01-02")
}

func (a *Aggregator) midnightOf(t time.Time) time.Time {
	lt := t.In(a.loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, a.loc)
}
