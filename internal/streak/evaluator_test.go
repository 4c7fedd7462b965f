package streak

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/example/watchtime/internal/media"
	"github.com/example/watchtime/internal/store"
)

func newEvaluator() (*Evaluator, *store.InMemoryStore, *clock.Mock) {
	st := store.NewInMemoryStore()
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	st.SetNowFunc(func() time.Time { return mock.Now() })
	return NewEvaluator(st, zap.NewNop(), mock, time.UTC), st, mock
}

func TestCrossing_IncrementsOnce(t *testing.T) {
	e, st, _ := newEvaluator()
	ctx := context.Background()

	bumped, err := e.AchieveTodayIfCrossed(ctx, "user-a", 25, 35, 30)
	if err != nil {
		t.Fatalf("achieve: %v", err)
	}
	if !bumped {
		t.Fatal("expected increment on crossing edge")
	}

	bumped, err = e.AchieveTodayIfCrossed(ctx, "user-a", 35, 45, 30)
	if err != nil {
		t.Fatalf("achieve again: %v", err)
	}
	if bumped {
		t.Fatal("already past goal, must not increment again")
	}

	agg, _ := st.GetUserAggregate(ctx, "user-a")
	if agg.StreakDays != 1 {
		t.Fatalf("expected streak 1, got %d", agg.StreakDays)
	}
	if agg.LastAchievedDate != "2026-03-10" {
		t.Fatalf("expected last_achieved_date 2026-03-10, got %q", agg.LastAchievedDate)
	}
}

func TestNoCrossing_BelowGoal(t *testing.T) {
	e, st, _ := newEvaluator()
	ctx := context.Background()

	bumped, _ := e.AchieveTodayIfCrossed(ctx, "user-a", 1500, 1700, 1800)
	if bumped {
		t.Fatal("sub-threshold total must not bump the streak")
	}
	agg, _ := st.GetUserAggregate(ctx, "user-a")
	if agg.StreakDays != 0 {
		t.Fatalf("expected streak 0, got %d", agg.StreakDays)
	}
}

func TestCrossing_SameDayGuardAcrossRestart(t *testing.T) {
	e, st, _ := newEvaluator()
	ctx := context.Background()

	// A previous process already achieved today.
	one := 1
	today := "2026-03-10"
	_ = st.UpdateUserAggregate(ctx, "user-a", store.AggregatePatch{StreakDays: &one, LastAchievedDate: &today})

	bumped, _ := e.AchieveTodayIfCrossed(ctx, "user-a", 25, 35, 30)
	if bumped {
		t.Fatal("same-day re-crossing after restart must not double-count")
	}
}

func TestCrossing_ExtendsWhenYesterdayMet(t *testing.T) {
	e, st, mock := newEvaluator()
	ctx := context.Background()

	// Yesterday: 2000 tracked seconds, goal 1800.
	mock.Set(time.Date(2026, 3, 9, 20, 0, 0, 0, time.UTC))
	item := media.Item{Kind: media.KindVideo, ID: "ep-1", DurationSeconds: 3600}
	sess, _ := st.CreateSession(ctx, "user-a", item, "web")
	_, _ = st.CloseSession(ctx, sess.ID, 2000)

	three := 3
	yesterday := "2026-03-09"
	_ = st.UpdateUserAggregate(ctx, "user-a", store.AggregatePatch{StreakDays: &three, LastAchievedDate: &yesterday})

	mock.Set(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	bumped, err := e.AchieveTodayIfCrossed(ctx, "user-a", 1700, 1900, 1800)
	if err != nil {
		t.Fatalf("achieve: %v", err)
	}
	if !bumped {
		t.Fatal("expected increment")
	}

	agg, _ := st.GetUserAggregate(ctx, "user-a")
	if agg.StreakDays != 4 {
		t.Fatalf("expected streak extended to 4, got %d", agg.StreakDays)
	}
}

func TestCrossing_RestartsWhenYesterdayMissed(t *testing.T) {
	e, st, _ := newEvaluator()
	ctx := context.Background()

	// Streak from further back, but nothing tracked yesterday.
	five := 5
	old := "2026-03-07"
	_ = st.UpdateUserAggregate(ctx, "user-a", store.AggregatePatch{StreakDays: &five, LastAchievedDate: &old})

	bumped, _ := e.AchieveTodayIfCrossed(ctx, "user-a", 0, 1800, 1800)
	if !bumped {
		t.Fatal("expected bump")
	}
	agg, _ := st.GetUserAggregate(ctx, "user-a")
	if agg.StreakDays != 1 {
		t.Fatalf("broken streak must restart at 1, got %d", agg.StreakDays)
	}
}

func TestNoGoalConfigured(t *testing.T) {
	e, _, _ := newEvaluator()
	bumped, _ := e.AchieveTodayIfCrossed(context.Background(), "user-a", 0, 100, 0)
	if bumped {
		t.Fatal("zero goal must never bump")
	}
}
