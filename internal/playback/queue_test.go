package playback

import (
	"testing"

	"github.com/example/watchtime/internal/media"
)

func item(id string) media.Item {
	return media.Item{Kind: media.KindVideo, ID: id, Title: id, DurationSeconds: 600}
}

func keys(items []media.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestQueue_EnqueueOrder(t *testing.T) {
	var q Queue
	q.EnqueueLast(item("a"))
	q.EnqueueLast(item("b"))
	q.EnqueueNext(item("c"))

	got := keys(q.Items())
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("queue order = %v, want %v", got, want)
		}
	}
}

func TestQueue_EnqueueMovesExisting(t *testing.T) {
	var q Queue
	q.EnqueueLast(item("a"))
	q.EnqueueLast(item("b"))
	q.EnqueueLast(item("c"))

	// Re-queueing an existing item moves it, never duplicates it.
	q.EnqueueNext(item("c"))
	if q.Len() != 3 {
		t.Fatalf("expected 3 items after move, got %d", q.Len())
	}
	if got := keys(q.Items()); got[0] != "c" || got[1] != "a" || got[2] != "b" {
		t.Fatalf("unexpected order after move: %v", got)
	}

	q.EnqueueLast(item("a"))
	if got := keys(q.Items()); got[2] != "a" {
		t.Fatalf("expected a moved to back, got %v", got)
	}
}

func TestQueue_Dequeue(t *testing.T) {
	var q Queue
	if _, ok := q.Dequeue(); ok {
		t.Fatal("dequeue on empty queue should report false")
	}
	q.EnqueueLast(item("a"))
	q.EnqueueLast(item("b"))

	it, ok := q.Dequeue()
	if !ok || it.ID != "a" {
		t.Fatalf("dequeue = %v %v, want a", it.ID, ok)
	}
	if q.Len() != 1 {
		t.Fatalf("expected 1 item left, got %d", q.Len())
	}
}

func TestQueue_Remove(t *testing.T) {
	var q Queue
	q.EnqueueLast(item("a"))
	q.EnqueueLast(item("b"))

	if !q.Remove(media.KindVideo, "a") {
		t.Fatal("expected remove to report true")
	}
	if q.Remove(media.KindVideo, "a") {
		t.Fatal("second remove should report false")
	}
	if got := keys(q.Items()); len(got) != 1 || got[0] != "b" {
		t.Fatalf("unexpected remainder: %v", got)
	}
}

func TestQueue_Reorder(t *testing.T) {
	var q Queue
	q.EnqueueLast(item("a"))
	q.EnqueueLast(item("b"))
	q.EnqueueLast(item("c"))
	q.EnqueueLast(item("d"))

	// Named keys come first in the given order; the rest keep their
	// relative order. Unknown keys are ignored.
	q.Reorder([]string{item("c").Key(), item("a").Key(), "video:zzz"})

	got := keys(q.Items())
	want := []string{"c", "a", "b", "d"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("reorder = %v, want %v", got, want)
		}
	}
}
