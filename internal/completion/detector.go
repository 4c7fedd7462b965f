// Package completion decides when an item counts as finished.
package completion

import (
	"context"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/example/watchtime/internal/media"
	"github.com/example/watchtime/internal/store"
)

// completedRatio is the watch ratio at which an item is marked completed.
const (
	completedRatio = 0.90
	// tailWindowSeconds caps how far from the end the threshold may sit.
	tailWindowSeconds = 60.0
	// minTickDurationSeconds is the floor below which the ticking path never
	// auto-completes; short items complete only via a natural ended event.
	minTickDurationSeconds = 120.0
)

type Detector struct {
	store store.Store
	log   *zap.Logger

	mu   sync.Mutex
	done map[string]bool // userID|itemKey -> known completed
}

func NewDetector(st store.Store, log *zap.Logger) *Detector {
	return &Detector{store: st, log: log, done: make(map[string]bool)}
}

// Observe checks one position sample against the completion threshold and
// reports whether the item transitioned to completed on this call. The mark
// is written at most once; repeated calls past the threshold are no-ops.
func (d *Detector) Observe(ctx context.Context, userID string, item media.Item, position, duration float64) bool {
	if !finite(position) || !finite(duration) || duration < minTickDurationSeconds {
		return false
	}
	threshold := math.Min(duration*completedRatio, duration-tailWindowSeconds)
	if position < threshold {
		return false
	}
	return d.mark(ctx, userID, item)
}

// MarkEnded completes the item on a natural ended event, regardless of
// duration.
func (d *Detector) MarkEnded(ctx context.Context, userID string, item media.Item) bool {
	return d.mark(ctx, userID, item)
}

func (d *Detector) mark(ctx context.Context, userID string, item media.Item) bool {
	key := userID + "|" + item.Key()

	d.mu.Lock()
	if d.done[key] {
		d.mu.Unlock()
		return false
	}
	d.mu.Unlock()

	// Another device may have completed it already; converge without a
	// second event.
	p, err := d.store.GetItemProgress(ctx, userID, item.ID)
	if err != nil {
		d.log.Warn("completion lookup failed", zap.String("media_id", item.ID), zap.Error(err))
		return false
	}
	if p.Completed {
		d.remember(key)
		return false
	}

	completed := true
	if err := d.store.SetItemProgress(ctx, userID, item.ID, store.ItemProgressPatch{Completed: &completed}); err != nil {
		// Left unmarked so the next tick retries.
		d.log.Warn("completion write failed", zap.String("media_id", item.ID), zap.Error(err))
		return false
	}
	d.remember(key)
	d.log.Info("item completed", zap.String("user_id", userID), zap.String("media_id", item.ID))
	return true
}

func (d *Detector) remember(key string) {
	d.mu.Lock()
	d.done[key] = true
	d.mu.Unlock()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
