package transport

import (
	"math"
	"testing"

	"github.com/example/watchtime/internal/media"
)

func testItem() media.Item {
	return media.Item{Kind: media.KindVideo, ID: "ep1", Title: "Episode 1", DurationSeconds: 600}
}

func TestRemote_CommandQueue(t *testing.T) {
	r := NewRemote()
	if err := r.Load(testItem(), 30); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := r.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	if err := r.Seek(120); err != nil {
		t.Fatalf("seek: %v", err)
	}

	cmds := r.DrainCommands()
	if len(cmds) != 3 {
		t.Fatalf("expected 3 commands, got %d", len(cmds))
	}
	if cmds[0].Name != "load" || cmds[0].MediaID != "ep1" || cmds[0].Seconds != 30 {
		t.Fatalf("unexpected load command: %+v", cmds[0])
	}
	if cmds[1].Name != "play" {
		t.Fatalf("unexpected second command: %+v", cmds[1])
	}
	if cmds[2].Name != "seek" || cmds[2].Seconds != 120 {
		t.Fatalf("unexpected seek command: %+v", cmds[2])
	}

	if got := r.DrainCommands(); len(got) != 0 {
		t.Fatalf("expected drained queue, got %+v", got)
	}
}

func TestRemote_ReportDropsNonFinite(t *testing.T) {
	r := NewRemote()
	_ = r.Load(testItem(), 0)
	_ = r.Play()

	r.Report(42, StatePlaying)
	if got := r.Position(); got != 42 {
		t.Fatalf("position = %v, want 42", got)
	}

	r.Report(math.NaN(), StatePlaying)
	if got := r.Position(); got != 42 {
		t.Fatalf("NaN position must be dropped, got %v", got)
	}
	r.Report(math.Inf(1), StatePlaying)
	if got := r.Position(); got != 42 {
		t.Fatalf("Inf position must be dropped, got %v", got)
	}
}

func TestRemote_ReportClampsToDuration(t *testing.T) {
	r := NewRemote()
	_ = r.Load(testItem(), 0)

	r.Report(9999, StatePlaying)
	if got := r.Position(); got != 600 {
		t.Fatalf("position = %v, want clamped to 600", got)
	}
	r.Report(-5, StatePlaying)
	if got := r.Position(); got != 0 {
		t.Fatalf("position = %v, want clamped to 0", got)
	}
}

func TestRemote_ReportIgnoresUnknownState(t *testing.T) {
	r := NewRemote()
	_ = r.Load(testItem(), 0)
	_ = r.Play()

	r.Report(10, State("teleporting"))
	if got := r.State(); got != StatePlaying {
		t.Fatalf("state = %v, unknown report must not change it", got)
	}
}

func TestRemote_StateListeners(t *testing.T) {
	r := NewRemote()
	var seen []State
	remove := r.OnStateChange(func(s State) { seen = append(seen, s) })

	_ = r.Load(testItem(), 0)
	_ = r.Play()
	_ = r.Play() // no change, no notification

	if len(seen) != 2 || seen[0] != StateLoading || seen[1] != StatePlaying {
		t.Fatalf("unexpected notifications: %v", seen)
	}

	remove()
	_ = r.Pause()
	if len(seen) != 2 {
		t.Fatalf("removed listener was notified: %v", seen)
	}
}

func TestRemote_SetRateValidation(t *testing.T) {
	r := NewRemote()
	_ = r.SetRate(1.5)
	if got := r.Rate(); got != 1.5 {
		t.Fatalf("rate = %v, want 1.5", got)
	}
	_ = r.SetRate(0)
	_ = r.SetRate(-2)
	_ = r.SetRate(math.NaN())
	if got := r.Rate(); got != 1.5 {
		t.Fatalf("invalid rates must be ignored, got %v", got)
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []State{StateEnded, StateErrored, StateStopped} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	for _, s := range []State{StateIdle, StateLoading, StatePlaying, StatePaused, StateBuffering} {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
}
