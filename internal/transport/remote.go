package transport

import (
	"math"
	"sync"

	"github.com/example/watchtime/internal/media"
)

// Command is a pending instruction for the client player, drained on the
// next heartbeat response.
type Command struct {
	Name    string  `json:"name"` // load | play | pause | stop | seek | rate | volume | mute
	MediaID string  `json:"media_id,omitempty"`
	Kind    string  `json:"kind,omitempty"`
	Seconds float64 `json:"seconds,omitempty"`
	Rate    float64 `json:"rate,omitempty"`
	Volume  float64 `json:"volume,omitempty"`
	Muted   bool    `json:"muted,omitempty"`
}

// Remote adapts a client-side player into a Transport. Commands issued by
// the controller are applied optimistically and queued for the client;
// heartbeats reconcile position and state with what the player actually did.
type Remote struct {
	mu        sync.Mutex
	item      media.Item
	position  float64
	duration  float64
	rate      float64
	volume    float64
	muted     bool
	state     State
	pending   []Command
	listeners map[int]func(State)
	nextID    int
}

func NewRemote() *Remote {
	return &Remote{
		rate:      1.0,
		volume:    1.0,
		state:     StateIdle,
		listeners: make(map[int]func(State)),
	}
}

func (r *Remote) Load(item media.Item, startAtSeconds float64) error {
	r.mu.Lock()
	r.item = item
	r.duration = float64(item.DurationSeconds)
	r.position = clamp(startAtSeconds, 0, r.duration)
	r.pending = append(r.pending, Command{
		Name: "load", MediaID: item.ID, Kind: string(item.Kind), Seconds: r.position,
	})
	fns := r.setStateLocked(StateLoading)
	r.mu.Unlock()
	notify(fns, StateLoading)
	return nil
}

func (r *Remote) Play() error {
	r.mu.Lock()
	r.pending = append(r.pending, Command{Name: "play"})
	fns := r.setStateLocked(StatePlaying)
	r.mu.Unlock()
	notify(fns, StatePlaying)
	return nil
}

func (r *Remote) Pause() error {
	r.mu.Lock()
	r.pending = append(r.pending, Command{Name: "pause"})
	fns := r.setStateLocked(StatePaused)
	r.mu.Unlock()
	notify(fns, StatePaused)
	return nil
}

func (r *Remote) Stop() error {
	r.mu.Lock()
	r.pending = append(r.pending, Command{Name: "stop"})
	fns := r.setStateLocked(StateStopped)
	r.mu.Unlock()
	notify(fns, StateStopped)
	return nil
}

func (r *Remote) Seek(seconds float64) error {
	if !finite(seconds) {
		return nil
	}
	r.mu.Lock()
	r.position = clamp(seconds, 0, r.duration)
	r.pending = append(r.pending, Command{Name: "seek", Seconds: r.position})
	r.mu.Unlock()
	return nil
}

func (r *Remote) Position() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.position
}

func (r *Remote) Duration() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.duration
}

func (r *Remote) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Remote) Rate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rate
}

func (r *Remote) SetRate(rate float64) error {
	if !finite(rate) || rate <= 0 {
		return nil
	}
	r.mu.Lock()
	r.rate = rate
	r.pending = append(r.pending, Command{Name: "rate", Rate: rate})
	r.mu.Unlock()
	return nil
}

func (r *Remote) Volume() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.volume
}

func (r *Remote) SetVolume(volume float64) error {
	if !finite(volume) {
		return nil
	}
	r.mu.Lock()
	r.volume = clamp(volume, 0, 1)
	r.pending = append(r.pending, Command{Name: "volume", Volume: r.volume})
	r.mu.Unlock()
	return nil
}

func (r *Remote) SetMuted(muted bool) error {
	r.mu.Lock()
	r.muted = muted
	r.pending = append(r.pending, Command{Name: "mute", Muted: muted})
	r.mu.Unlock()
	return nil
}

func (r *Remote) OnStateChange(fn func(State)) (remove func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// Report applies a client heartbeat. Non-finite positions are dropped;
// unknown states are ignored.
func (r *Remote) Report(positionSeconds float64, state State) {
	r.mu.Lock()
	if finite(positionSeconds) {
		r.position = clamp(positionSeconds, 0, r.duration)
	}
	var fns []func(State)
	switch state {
	case StatePlaying, StatePaused, StateBuffering, StateEnded, StateErrored:
		fns = r.setStateLocked(state)
	}
	s := r.state
	r.mu.Unlock()
	notify(fns, s)
}

// DrainCommands returns and clears the pending client instructions.
func (r *Remote) DrainCommands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.pending
	r.pending = nil
	return out
}

// setStateLocked records the new state and returns the listeners to notify,
// or nil when the state did not change.
func (r *Remote) setStateLocked(s State) []func(State) {
	if r.state == s {
		return nil
	}
	r.state = s
	fns := make([]func(State), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	return fns
}

func notify(fns []func(State), s State) {
	for _, fn := range fns {
		fn(s)
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}
