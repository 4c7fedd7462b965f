package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/example/watchtime/internal/media"
)

// ErrSessionNotFound is returned for updates against an unknown or already
// closed session. Callers on the tick path treat it as a benign race, not a
// failure.
var ErrSessionNotFound = errors.New("session not found or closed")

// Session is one contiguous tracked interval of playback for a single item.
// An open session has a nil EndedAt.
type Session struct {
	ID             uuid.UUID
	UserID         string
	MediaID        string
	Kind           media.Kind
	Source         string
	StartedAt      time.Time
	EndedAt        *time.Time
	SecondsTracked int
	AvgRate        float64
}

func (s Session) Open() bool { return s.EndedAt == nil }

// ItemProgress is the durable per-user, per-item resume state.
type ItemProgress struct {
	LastPositionSeconds int
	Completed           bool
}

// ItemProgressPatch is a partial update; nil fields are left untouched.
// Completed can only transition to true, never back.
type ItemProgressPatch struct {
	LastPositionSeconds *int
	Completed           *bool
}

// UserAggregate is the per-user lifetime rollup.
// LastAchievedDate is a local-calendar date string ("2006-01-02"), empty
// when the daily goal has never been met.
type UserAggregate struct {
	UserID           string
	TotalSeconds     int64
	DailyGoalSeconds int
	StreakDays       int
	LastAchievedDate string
	LastWatchedAt    time.Time
}

// AggregatePatch is a partial update. AddTotalSeconds is a delta applied to
// the lifetime counter; the other fields overwrite when non-nil.
type AggregatePatch struct {
	AddTotalSeconds  *int64
	DailyGoalSeconds *int
	StreakDays       *int
	LastAchievedDate *string
	LastWatchedAt    *time.Time
}

// Store defines the persistence operations the tracking engine requires.
type Store interface {
	// CreateSession is find-or-create: if an open session already exists for
	// (userID, mediaID) it is returned unchanged, so two transports viewing
	// the same item converge on one record.
	CreateSession(ctx context.Context, userID string, item media.Item, source string) (Session, error)
	// FindOpenSession returns nil, nil when no open session exists.
	FindOpenSession(ctx context.Context, userID, mediaID string) (*Session, error)
	// UpdateSession checkpoints an open session. SecondsTracked never
	// decreases. Returns ErrSessionNotFound for unknown or closed ids.
	UpdateSession(ctx context.Context, id uuid.UUID, secondsTracked int, avgRate float64) error
	// CloseSession sets the end time and final seconds and returns the closed
	// record. Returns ErrSessionNotFound for unknown or closed ids.
	CloseSession(ctx context.Context, id uuid.UUID, finalSeconds int) (Session, error)
	// SumSessionSeconds totals seconds_tracked of sessions started within
	// [startedAfter, startedBefore). kind nil means all kinds.
	SumSessionSeconds(ctx context.Context, userID string, kind *media.Kind, startedAfter, startedBefore time.Time) (int, error)

	// GetItemProgress returns the zero value when nothing is stored yet.
	GetItemProgress(ctx context.Context, userID, mediaID string) (ItemProgress, error)
	SetItemProgress(ctx context.Context, userID, mediaID string, patch ItemProgressPatch) error

	// GetUserAggregate returns the zero value when nothing is stored yet.
	GetUserAggregate(ctx context.Context, userID string) (UserAggregate, error)
	UpdateUserAggregate(ctx context.Context, userID string, patch AggregatePatch) error
}
