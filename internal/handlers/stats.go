package handlers

import (
	"net/http"

	"github.com/example/watchtime/internal/platform/api"
	"github.com/example/watchtime/internal/platform/auth"
	"github.com/example/watchtime/internal/playback"
	"github.com/example/watchtime/internal/store"
)

type statsResponse struct {
	DailyTotalSeconds int    `json:"daily_total_seconds"`
	DailyGoalSeconds  int    `json:"daily_goal_seconds"`
	StreakDays        int    `json:"streak_days"`
	LastAchievedDate  string `json:"last_achieved_date,omitempty"`
	LifetimeSeconds   int64  `json:"lifetime_seconds"`
}

type goalRequest struct {
	DailyGoalSeconds int `json:"daily_goal_seconds"`
}

// GetStats reports today's total alongside the durable aggregate.
func GetStats(m *playback.Manager, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			api.Unauthorized(w, "UNAUTHENTICATED", "Authentication required", "")
			return
		}
		c, err := m.Engine(r.Context(), uid)
		if err != nil {
			api.Internal(w, "")
			return
		}
		agg, err := st.GetUserAggregate(r.Context(), uid)
		if err != nil {
			api.Internal(w, "")
			return
		}
		api.WriteJSON(w, http.StatusOK, statsResponse{
			DailyTotalSeconds: c.DailyTotal(),
			DailyGoalSeconds:  agg.DailyGoalSeconds,
			StreakDays:        agg.StreakDays,
			LastAchievedDate:  agg.LastAchievedDate,
			LifetimeSeconds:   agg.TotalSeconds,
		})
	}
}

// SetGoal writes the daily goal through to the aggregate and the live
// engine, so the next tick evaluates against the new value.
func SetGoal(m *playback.Manager, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			api.Unauthorized(w, "UNAUTHENTICATED", "Authentication required", "")
			return
		}
		var req goalRequest
		if !decode(w, r, &req) {
			return
		}
		if req.DailyGoalSeconds < 0 {
			api.BadRequest(w, "INVALID_GOAL", "daily_goal_seconds must not be negative", "", nil)
			return
		}
		if err := st.UpdateUserAggregate(r.Context(), uid, store.AggregatePatch{
			DailyGoalSeconds: &req.DailyGoalSeconds,
		}); err != nil {
			api.Internal(w, "")
			return
		}
		c, err := m.Engine(r.Context(), uid)
		if err != nil {
			api.Internal(w, "")
			return
		}
		c.SetGoal(req.DailyGoalSeconds)
		api.WriteJSON(w, http.StatusOK, goalRequest{DailyGoalSeconds: req.DailyGoalSeconds})
	}
}
