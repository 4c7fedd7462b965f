// Package session owns the lifecycle of tracked playback sessions:
// find-or-create on start, throttled checkpoints while playing, and a close
// that folds the final position back into the item's durable progress.
package session

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/watchtime/internal/media"
	"github.com/example/watchtime/internal/store"
)

type Recorder struct {
	store store.Store
	log   *zap.Logger
}

func NewRecorder(st store.Store, log *zap.Logger) *Recorder {
	return &Recorder{store: st, log: log}
}

// StartOrResume returns the open session for the item, creating one when
// none exists. Two transports viewing the same item converge on the same
// record; the store's find-or-create enforces that, not an in-process lock.
func (r *Recorder) StartOrResume(ctx context.Context, userID string, item media.Item, source string) (store.Session, error) {
	sess, err := r.store.CreateSession(ctx, userID, item, source)
	if err != nil {
		return store.Session{}, err
	}
	if sess.SecondsTracked > 0 {
		r.log.Debug("resumed open session",
			zap.String("session_id", sess.ID.String()),
			zap.String("media_id", item.ID),
			zap.Int("seconds_tracked", sess.SecondsTracked))
	}
	return sess, nil
}

// Checkpoint upserts in-progress state. A checkpoint against a session that
// was closed in the meantime is a benign race (the transport fired a final
// tick), not an error; persistence failures are logged and swallowed.
func (r *Recorder) Checkpoint(ctx context.Context, id uuid.UUID, secondsTracked int, avgRate float64) {
	err := r.store.UpdateSession(ctx, id, secondsTracked, avgRate)
	if err == nil || errors.Is(err, store.ErrSessionNotFound) {
		return
	}
	r.log.Warn("session checkpoint failed",
		zap.String("session_id", id.String()),
		zap.Int("seconds_tracked", secondsTracked),
		zap.Error(err))
}

// Close ends the session and propagates the last known position into the
// item's durable progress. Closing an unknown or already-closed session is
// a no-op.
func (r *Recorder) Close(ctx context.Context, id uuid.UUID, finalSeconds, lastPositionSeconds int) {
	sess, err := r.store.CloseSession(ctx, id, finalSeconds)
	if errors.Is(err, store.ErrSessionNotFound) {
		return
	}
	if err != nil {
		r.log.Warn("session close failed", zap.String("session_id", id.String()), zap.Error(err))
		return
	}

	if lastPositionSeconds < 0 {
		lastPositionSeconds = 0
	}
	patch := store.ItemProgressPatch{LastPositionSeconds: &lastPositionSeconds}
	if err := r.store.SetItemProgress(ctx, sess.UserID, sess.MediaID, patch); err != nil {
		r.log.Warn("item progress write failed",
			zap.String("media_id", sess.MediaID),
			zap.Int("last_position_seconds", lastPositionSeconds),
			zap.Error(err))
	}
}
