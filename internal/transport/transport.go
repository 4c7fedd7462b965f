// Package transport defines the uniform capability surface over whatever
// player backend is currently active, plus the server-side adapters that
// implement it.
package transport

import "github.com/example/watchtime/internal/media"

type State string

const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateBuffering State = "buffering"
	StateEnded     State = "ended"
	StateErrored   State = "errored"
	StateStopped   State = "stopped"
)

// Terminal reports whether the state hands control back for queue advance.
func (s State) Terminal() bool {
	return s == StateEnded || s == StateErrored || s == StateStopped
}

// Transport is the playback capability surface the controller drives.
// Positions and durations are seconds; implementations clamp or drop
// non-finite values rather than erroring, since those arise from timing
// races in the player backend.
type Transport interface {
	Load(item media.Item, startAtSeconds float64) error
	Play() error
	Pause() error
	Stop() error
	Seek(seconds float64) error

	Position() float64
	Duration() float64
	State() State

	Rate() float64
	SetRate(rate float64) error
	Volume() float64
	SetVolume(volume float64) error
	SetMuted(muted bool) error

	// OnStateChange registers a listener and returns its removal func.
	// Listeners are invoked outside any transport-internal lock.
	OnStateChange(fn func(State)) (remove func())
}

// Reporter is implemented by adapters whose position and state are fed by
// an external player (client heartbeats).
type Reporter interface {
	Report(positionSeconds float64, state State)
}
