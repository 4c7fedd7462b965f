package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/watchtime/internal/media"
	"github.com/example/watchtime/internal/platform/api"
	"github.com/example/watchtime/internal/playback"
)

type queueResponse struct {
	Items []media.Item `json:"items"`
}

type reorderRequest struct {
	Keys []string `json:"keys"`
}

// GetQueue lists the pending items in play order.
func GetQueue(m *playback.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := engineFor(m, w, r)
		if c == nil {
			return
		}
		writeQueue(w, c)
	}
}

// EnqueueNext puts the item at the front of the queue. An item already
// queued is moved, not duplicated.
func EnqueueNext(m *playback.Manager) http.HandlerFunc {
	return enqueue(m, func(c *playback.Controller, it media.Item) error {
		return c.EnqueueNext(it)
	})
}

// EnqueueLast appends the item to the queue, moving it if already present.
func EnqueueLast(m *playback.Manager) http.HandlerFunc {
	return enqueue(m, func(c *playback.Controller, it media.Item) error {
		return c.EnqueueLast(it)
	})
}

func enqueue(m *playback.Manager, add func(*playback.Controller, media.Item) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := engineFor(m, w, r)
		if c == nil {
			return
		}
		var item media.Item
		if !decode(w, r, &item) {
			return
		}
		if err := add(c, item); err != nil {
			api.BadRequest(w, "INVALID_ITEM", err.Error(), "", nil)
			return
		}
		writeQueue(w, c)
	}
}

// RemoveFromQueue deletes one queued item by kind and id.
func RemoveFromQueue(m *playback.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := engineFor(m, w, r)
		if c == nil {
			return
		}
		kind, err := media.ParseKind(chi.URLParam(r, "kind"))
		if err != nil {
			api.BadRequest(w, "INVALID_KIND", err.Error(), "", nil)
			return
		}
		id := chi.URLParam(r, "media_id")
		if !c.RemoveFromQueue(kind, id) {
			api.NotFound(w, "NOT_QUEUED", "item is not in the queue", "")
			return
		}
		writeQueue(w, c)
	}
}

// ReorderQueue applies a new play order. Keys are kind:id; named items
// come first in the given order, the rest keep their relative order.
func ReorderQueue(m *playback.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := engineFor(m, w, r)
		if c == nil {
			return
		}
		var req reorderRequest
		if !decode(w, r, &req) {
			return
		}
		c.ReorderQueue(req.Keys)
		writeQueue(w, c)
	}
}

// ClearQueue empties the queue without touching the current item.
func ClearQueue(m *playback.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := engineFor(m, w, r)
		if c == nil {
			return
		}
		c.ClearQueue()
		writeQueue(w, c)
	}
}

func writeQueue(w http.ResponseWriter, c *playback.Controller) {
	items := c.QueueItems()
	if items == nil {
		items = []media.Item{}
	}
	api.WriteJSON(w, http.StatusOK, queueResponse{Items: items})
}
