// Package streak maintains the consecutive-days counter for the daily goal.
package streak

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/example/watchtime/internal/store"
)

type Evaluator struct {
	store store.Store
	log   *zap.Logger
	clk   clock.Clock
	loc   *time.Location
}

// NewEvaluator builds an evaluator. loc nil means time.Local.
func NewEvaluator(st store.Store, log *zap.Logger, clk clock.Clock, loc *time.Location) *Evaluator {
	if loc == nil {
		loc = time.Local
	}
	return &Evaluator{store: st, log: log, clk: clk, loc: loc}
}

// AchieveTodayIfCrossed bumps the streak iff the daily total moved from
// below the goal to at or above it on this call: prev < goal <= new. The
// edge check, plus the stored last-achieved date, makes the bump happen at
// most once per local calendar day no matter how much more time is added.
//
// Increment rule: a zero streak, or a goal also met on the immediately
// preceding day, extends by one; otherwise the streak restarts at 1.
// Nothing here ever decrements.
func (e *Evaluator) AchieveTodayIfCrossed(ctx context.Context, userID string, prevTotal, newTotal, goalSeconds int) (bool, error) {
	if goalSeconds <= 0 {
		return false, nil
	}
	if !(prevTotal < goalSeconds && goalSeconds <= newTotal) {
		return false, nil
	}

	agg, err := e.store.GetUserAggregate(ctx, userID)
	if err != nil {
		return false, err
	}

	now := e.clk.Now().In(e.loc)
	today := now.Format("2006-01-02")
	if agg.LastAchievedDate == today {
		return false, nil
	}

	days := 1
	if agg.StreakDays > 0 {
		metYesterday, err := e.goalMetOn(ctx, userID, now.AddDate(0, 0, -1), goalSeconds)
		if err != nil {
			return false, err
		}
		if metYesterday {
			days = agg.StreakDays + 1
		}
	}

	patch := store.AggregatePatch{StreakDays: &days, LastAchievedDate: &today}
	if err := e.store.UpdateUserAggregate(ctx, userID, patch); err != nil {
		return false, err
	}
	e.log.Info("daily goal achieved",
		zap.String("user_id", userID),
		zap.String("date", today),
		zap.Int("streak_days", days))
	return true, nil
}

// goalMetOn sums tracked seconds over the local calendar day containing t.
func (e *Evaluator) goalMetOn(ctx context.Context, userID string, t time.Time, goalSeconds int) (bool, error) {
	lt := t.In(e.loc)
	dayStart := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, e.loc)
	total, err := e.store.SumSessionSeconds(ctx, userID, nil, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return false, err
	}
	return total >= goalSeconds, nil
}
