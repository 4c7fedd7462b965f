package playback

import "github.com/example/watchtime/internal/media"

// Queue is the ordered list of upcoming items. Not safe for concurrent use;
// the controller serializes access.
type Queue struct {
	items []media.Item
}

// EnqueueNext inserts at the front. An item already queued (same kind+id)
// is removed first, so repeated "play next" calls move it instead of
// duplicating it.
func (q *Queue) EnqueueNext(item media.Item) {
	q.removeKey(item.Key())
	q.items = append([]media.Item{item}, q.items...)
}

// EnqueueLast appends, with the same de-duplication as EnqueueNext.
func (q *Queue) EnqueueLast(item media.Item) {
	q.removeKey(item.Key())
	q.items = append(q.items, item)
}

// Dequeue pops the front item.
func (q *Queue) Dequeue() (media.Item, bool) {
	if len(q.items) == 0 {
		return media.Item{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Remove deletes the item with the given kind and id. Reports whether
// anything was removed.
func (q *Queue) Remove(kind media.Kind, id string) bool {
	return q.removeKey(string(kind) + ":" + id)
}

// Reorder rearranges the queue to match the given key order. Keys that
// match nothing are ignored; queued items not named keep their relative
// order after the named ones.
func (q *Queue) Reorder(keys []string) {
	byKey := make(map[string]media.Item, len(q.items))
	for _, it := range q.items {
		byKey[it.Key()] = it
	}

	next := make([]media.Item, 0, len(q.items))
	for _, k := range keys {
		if it, ok := byKey[k]; ok {
			next = append(next, it)
			delete(byKey, k)
		}
	}
	for _, it := range q.items {
		if _, ok := byKey[it.Key()]; ok {
			next = append(next, it)
			delete(byKey, it.Key())
		}
	}
	q.items = next
}

func (q *Queue) Clear() {
	q.items = nil
}

func (q *Queue) Len() int { return len(q.items) }

// Items returns a copy.
func (q *Queue) Items() []media.Item {
	out := make([]media.Item, len(q.items))
	copy(out, q.items)
	return out
}

func (q *Queue) removeKey(key string) bool {
	for i, it := range q.items {
		if it.Key() == key {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}
