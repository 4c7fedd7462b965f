// Package handlers exposes the playback engine over HTTP. Every route is
// scoped to the authenticated user; the engine itself never sees tokens.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/example/watchtime/internal/media"
	"github.com/example/watchtime/internal/platform/api"
	"github.com/example/watchtime/internal/platform/auth"
	"github.com/example/watchtime/internal/playback"
	"github.com/example/watchtime/internal/transport"
)

const maxBodyBytes = 1 << 20

type playRequest struct {
	media.Item
	StartAtSeconds *float64 `json:"start_at_seconds,omitempty"`
}

type heartbeatRequest struct {
	PositionSeconds float64 `json:"position_seconds"`
	State           string  `json:"state"`
	Final           bool    `json:"final,omitempty"`
}

type heartbeatResponse struct {
	Commands []transport.Command `json:"commands"`
}

type rateRequest struct {
	Rate float64 `json:"rate"`
}

type seekRequest struct {
	PositionSeconds float64 `json:"position_seconds"`
}

type playbackStateResponse struct {
	State           string       `json:"state"`
	IsPlaying       bool         `json:"is_playing"`
	Current         *media.Item  `json:"current,omitempty"`
	Queue           []media.Item `json:"queue"`
	PositionSeconds float64      `json:"position_seconds"`
	DailyTotal      int          `json:"daily_total_seconds"`
}

// engineFor resolves the caller's controller; writes the error response
// itself and returns nil when the request cannot proceed.
func engineFor(m *playback.Manager, w http.ResponseWriter, r *http.Request) *playback.Controller {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.Unauthorized(w, "UNAUTHENTICATED", "Authentication required", "")
		return nil
	}
	c, err := m.Engine(r.Context(), uid)
	if err != nil {
		api.Internal(w, "")
		return nil
	}
	return c
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		api.BadRequest(w, "INVALID_JSON", "Invalid JSON", "", nil)
		return false
	}
	return true
}

// Play starts (or resumes) playback of the item in the request body.
func Play(m *playback.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := engineFor(m, w, r)
		if c == nil {
			return
		}
		var req playRequest
		if !decode(w, r, &req) {
			return
		}
		if err := req.Item.Validate(); err != nil {
			api.BadRequest(w, "INVALID_ITEM", err.Error(), "", nil)
			return
		}
		if err := c.Play(r.Context(), req.Item, req.StartAtSeconds); err != nil {
			api.Internal(w, "")
			return
		}
		writeState(w, c)
	}
}

func Pause(m *playback.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := engineFor(m, w, r)
		if c == nil {
			return
		}
		if err := c.Pause(); err != nil {
			api.Internal(w, "")
			return
		}
		writeState(w, c)
	}
}

func Resume(m *playback.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := engineFor(m, w, r)
		if c == nil {
			return
		}
		if err := c.Resume(); err != nil {
			api.Internal(w, "")
			return
		}
		writeState(w, c)
	}
}

func Stop(m *playback.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := engineFor(m, w, r)
		if c == nil {
			return
		}
		if err := c.Stop(r.Context()); err != nil {
			api.Internal(w, "")
			return
		}
		writeState(w, c)
	}
}

func Next(m *playback.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := engineFor(m, w, r)
		if c == nil {
			return
		}
		if err := c.Next(r.Context()); err != nil {
			api.Internal(w, "")
			return
		}
		writeState(w, c)
	}
}

func Prev(m *playback.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := engineFor(m, w, r)
		if c == nil {
			return
		}
		if err := c.Prev(r.Context()); err != nil {
			api.Internal(w, "")
			return
		}
		writeState(w, c)
	}
}

// Heartbeat ingests a client position report and returns any pending
// player commands.
func Heartbeat(m *playback.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := engineFor(m, w, r)
		if c == nil {
			return
		}
		var req heartbeatRequest
		if !decode(w, r, &req) {
			return
		}
		c.Heartbeat(r.Context(), req.PositionSeconds, transport.State(req.State), req.Final)
		cmds := c.Commands()
		if cmds == nil {
			cmds = []transport.Command{}
		}
		api.WriteJSON(w, http.StatusOK, heartbeatResponse{Commands: cmds})
	}
}

func SetRate(m *playback.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := engineFor(m, w, r)
		if c == nil {
			return
		}
		var req rateRequest
		if !decode(w, r, &req) {
			return
		}
		if req.Rate <= 0 {
			api.BadRequest(w, "INVALID_RATE", "rate must be positive", "", nil)
			return
		}
		if err := c.SetRate(req.Rate); err != nil {
			api.Internal(w, "")
			return
		}
		writeState(w, c)
	}
}

func Seek(m *playback.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := engineFor(m, w, r)
		if c == nil {
			return
		}
		var req seekRequest
		if !decode(w, r, &req) {
			return
		}
		if req.PositionSeconds < 0 {
			api.BadRequest(w, "INVALID_POSITION", "position_seconds must not be negative", "", nil)
			return
		}
		if err := c.Seek(req.PositionSeconds); err != nil {
			api.Internal(w, "")
			return
		}
		writeState(w, c)
	}
}

// GetPlayback reports the current transport state.
func GetPlayback(m *playback.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := engineFor(m, w, r)
		if c == nil {
			return
		}
		writeState(w, c)
	}
}

func writeState(w http.ResponseWriter, c *playback.Controller) {
	queue := c.QueueItems()
	if queue == nil {
		queue = []media.Item{}
	}
	api.WriteJSON(w, http.StatusOK, playbackStateResponse{
		State:           string(c.State()),
		IsPlaying:       c.IsPlaying(),
		Current:         c.Current(),
		Queue:           queue,
		PositionSeconds: c.PositionSeconds(),
		DailyTotal:      c.DailyTotal(),
	})
}
