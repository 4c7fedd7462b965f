package transport

import (
	"sync"

	"github.com/example/watchtime/internal/media"
)

// Fake is a scripted Transport for tests: position advances only when
// Advance is called, never on its own.
type Fake struct {
	mu        sync.Mutex
	item      media.Item
	position  float64
	duration  float64
	rate      float64
	state     State
	listeners map[int]func(State)
	nextID    int
	failLoad  bool
}

func NewFake() *Fake {
	return &Fake{
		rate:      1.0,
		state:     StateIdle,
		listeners: make(map[int]func(State)),
	}
}

// FailNextLoad makes the next Load report a fatal player error.
func (f *Fake) FailNextLoad() {
	f.mu.Lock()
	f.failLoad = true
	f.mu.Unlock()
}

func (f *Fake) Load(item media.Item, startAtSeconds float64) error {
	f.mu.Lock()
	if f.failLoad {
		f.failLoad = false
		fns := f.setStateLocked(StateErrored)
		f.mu.Unlock()
		notify(fns, StateErrored)
		return nil
	}
	f.item = item
	f.duration = float64(item.DurationSeconds)
	f.position = clamp(startAtSeconds, 0, f.duration)
	fns := f.setStateLocked(StateLoading)
	f.mu.Unlock()
	notify(fns, StateLoading)
	return nil
}

func (f *Fake) Play() error {
	f.mu.Lock()
	fns := f.setStateLocked(StatePlaying)
	f.mu.Unlock()
	notify(fns, StatePlaying)
	return nil
}

func (f *Fake) Pause() error {
	f.mu.Lock()
	fns := f.setStateLocked(StatePaused)
	f.mu.Unlock()
	notify(fns, StatePaused)
	return nil
}

func (f *Fake) Stop() error {
	f.mu.Lock()
	fns := f.setStateLocked(StateStopped)
	f.mu.Unlock()
	notify(fns, StateStopped)
	return nil
}

func (f *Fake) Seek(seconds float64) error {
	if !finite(seconds) {
		return nil
	}
	f.mu.Lock()
	f.position = clamp(seconds, 0, f.duration)
	f.mu.Unlock()
	return nil
}

func (f *Fake) Position() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *Fake) Duration() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duration
}

func (f *Fake) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Fake) Rate() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rate
}

func (f *Fake) SetRate(rate float64) error {
	if !finite(rate) || rate <= 0 {
		return nil
	}
	f.mu.Lock()
	f.rate = rate
	f.mu.Unlock()
	return nil
}

func (f *Fake) Volume() float64         { return 1.0 }
func (f *Fake) SetVolume(float64) error { return nil }
func (f *Fake) SetMuted(bool) error     { return nil }

func (f *Fake) OnStateChange(fn func(State)) (remove func()) {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

// Report implements Reporter so handler tests can feed heartbeats.
func (f *Fake) Report(positionSeconds float64, state State) {
	f.mu.Lock()
	if finite(positionSeconds) {
		f.position = clamp(positionSeconds, 0, f.duration)
	}
	var fns []func(State)
	switch state {
	case StatePlaying, StatePaused, StateBuffering, StateEnded, StateErrored:
		fns = f.setStateLocked(state)
	}
	s := f.state
	f.mu.Unlock()
	notify(fns, s)
}

// Advance moves playback forward by the given media seconds while playing,
// transitioning to ended at the duration.
func (f *Fake) Advance(seconds float64) {
	f.mu.Lock()
	if f.state != StatePlaying {
		f.mu.Unlock()
		return
	}
	f.position = clamp(f.position+seconds, 0, f.duration)
	var fns []func(State)
	s := f.state
	if f.position >= f.duration && f.duration > 0 {
		fns = f.setStateLocked(StateEnded)
		s = StateEnded
	}
	f.mu.Unlock()
	notify(fns, s)
}

func (f *Fake) setStateLocked(s State) []func(State) {
	if f.state == s {
		return nil
	}
	f.state = s
	fns := make([]func(State), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	return fns
}
