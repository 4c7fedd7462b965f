package completion

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/example/watchtime/internal/media"
	"github.com/example/watchtime/internal/store"
)

func newDetector() (*Detector, *store.InMemoryStore) {
	st := store.NewInMemoryStore()
	return NewDetector(st, zap.NewNop()), st
}

func TestObserve_ThresholdAt300(t *testing.T) {
	d, st := newDetector()
	ctx := context.Background()
	item := media.Item{Kind: media.KindVideo, ID: "ep-1", DurationSeconds: 300}

	// threshold = min(300*0.9, 300-60) = min(270, 240) = 240
	if d.Observe(ctx, "user-a", item, 239, 300) {
		t.Fatal("below threshold must not complete")
	}
	if !d.Observe(ctx, "user-a", item, 240, 300) {
		t.Fatal("expected completion at threshold")
	}
	if d.Observe(ctx, "user-a", item, 241, 300) {
		t.Fatal("completion must fire exactly once")
	}

	p, _ := st.GetItemProgress(ctx, "user-a", item.ID)
	if !p.Completed {
		t.Fatal("expected stored completed flag")
	}
}

func TestObserve_LongItemUsesRatio(t *testing.T) {
	d, _ := newDetector()
	ctx := context.Background()
	item := media.Item{Kind: media.KindVideo, ID: "ep-2", DurationSeconds: 6000}

	// threshold = min(5400, 5940) = 5400
	if d.Observe(ctx, "user-a", item, 5399, 6000) {
		t.Fatal("below 90% must not complete")
	}
	if !d.Observe(ctx, "user-a", item, 5400, 6000) {
		t.Fatal("expected completion at 90%")
	}
}

func TestObserve_ShortItemNeverTicksComplete(t *testing.T) {
	d, st := newDetector()
	ctx := context.Background()
	item := media.Item{Kind: media.KindAudio, ID: "clip-1", DurationSeconds: 60}

	if d.Observe(ctx, "user-a", item, 60, 60) {
		t.Fatal("items under 120s must not tick-complete")
	}
	p, _ := st.GetItemProgress(ctx, "user-a", item.ID)
	if p.Completed {
		t.Fatal("short item marked completed by ticking path")
	}
}

func TestMarkEnded_CompletesShortItem(t *testing.T) {
	d, st := newDetector()
	ctx := context.Background()
	item := media.Item{Kind: media.KindAudio, ID: "clip-1", DurationSeconds: 60}

	if !d.MarkEnded(ctx, "user-a", item) {
		t.Fatal("ended event must complete the item")
	}
	if d.MarkEnded(ctx, "user-a", item) {
		t.Fatal("second ended event must be a no-op")
	}
	p, _ := st.GetItemProgress(ctx, "user-a", item.ID)
	if !p.Completed {
		t.Fatal("expected stored completed flag")
	}
}

func TestObserve_AlreadyCompletedElsewhere(t *testing.T) {
	d, st := newDetector()
	ctx := context.Background()
	item := media.Item{Kind: media.KindVideo, ID: "ep-1", DurationSeconds: 300}

	done := true
	_ = st.SetItemProgress(ctx, "user-a", item.ID, store.ItemProgressPatch{Completed: &done})

	if d.Observe(ctx, "user-a", item, 300, 300) {
		t.Fatal("item completed on another device must not re-fire")
	}
}

func TestObserve_PerUserIsolation(t *testing.T) {
	d, st := newDetector()
	ctx := context.Background()
	item := media.Item{Kind: media.KindVideo, ID: "ep-1", DurationSeconds: 300}

	if !d.Observe(ctx, "user-a", item, 250, 300) {
		t.Fatal("expected completion for user-a")
	}
	p, _ := st.GetItemProgress(ctx, "user-b", item.ID)
	if p.Completed {
		t.Fatal("user-b progress must be untouched")
	}
}
