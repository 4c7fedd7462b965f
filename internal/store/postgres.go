package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/watchtime/internal/media"
)

// PostgresStore is the production Postgres-backed implementation.
//
// Expected schema:
//
//	watch_sessions(id uuid pk, user_id text, media_id text, kind text,
//	  source text, started_at timestamptz, ended_at timestamptz null,
//	  seconds_tracked int, avg_rate double precision)
//	  with a partial unique index on (user_id, media_id) where ended_at is null
//	user_item_progress(user_id text, media_id text,
//	  last_position_seconds int, completed bool, updated_at timestamptz,
//	  primary key (user_id, media_id))
//	user_aggregates(user_id text pk, total_seconds bigint,
//	  daily_goal_seconds int, streak_days int, last_achieved_date text,
//	  last_watched_at timestamptz, updated_at timestamptz)
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateSession(ctx context.Context, userID string, item media.Item, source string) (Session, error) {
	q := `
INSERT INTO watch_sessions (id, user_id, media_id, kind, source, started_at, seconds_tracked, avg_rate)
VALUES ($1, $2, $3, $4, $5, $6, 0, 1.0)
ON CONFLICT (user_id, media_id) WHERE ended_at IS NULL DO NOTHING
RETURNING id, started_at, seconds_tracked, avg_rate`

	sess := Session{
		UserID:  userID,
		MediaID: item.ID,
		Kind:    item.Kind,
		Source:  source,
		AvgRate: 1.0,
	}
	err := s.db.QueryRow(ctx, q,
		uuid.New(), userID, item.ID, string(item.Kind), source, time.Now().UTC(),
	).Scan(&sess.ID, &sess.StartedAt, &sess.SecondsTracked, &sess.AvgRate)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Session{}, fmt.Errorf("create session: %w", err)
	}

	// Insert was blocked by an existing open session; reuse it.
	open, err := s.FindOpenSession(ctx, userID, item.ID)
	if err != nil {
		return Session{}, err
	}
	if open == nil {
		return Session{}, fmt.Errorf("create session: open session vanished for media %s", item.ID)
	}
	return *open, nil
}

func (s *PostgresStore) FindOpenSession(ctx context.Context, userID, mediaID string) (*Session, error) {
	q := `SELECT id, kind, source, started_at, seconds_tracked, avg_rate
	      FROM watch_sessions
	      WHERE user_id=$1 AND media_id=$2 AND ended_at IS NULL`

	sess := Session{UserID: userID, MediaID: mediaID}
	var kind string
	err := s.db.QueryRow(ctx, q, userID, mediaID).
		Scan(&sess.ID, &kind, &sess.Source, &sess.StartedAt, &sess.SecondsTracked, &sess.AvgRate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open session: %w", err)
	}
	sess.Kind = media.Kind(kind)
	return &sess, nil
}

func (s *PostgresStore) UpdateSession(ctx context.Context, id uuid.UUID, secondsTracked int, avgRate float64) error {
	q := `UPDATE watch_sessions
	      SET seconds_tracked = GREATEST(seconds_tracked, $2), avg_rate = $3
	      WHERE id=$1 AND ended_at IS NULL`

	ct, err := s.db.Exec(ctx, q, id, secondsTracked, avgRate)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *PostgresStore) CloseSession(ctx context.Context, id uuid.UUID, finalSeconds int) (Session, error) {
	q := `UPDATE watch_sessions
	      SET ended_at = $2, seconds_tracked = GREATEST(seconds_tracked, $3)
	      WHERE id=$1 AND ended_at IS NULL
	      RETURNING user_id, media_id, kind, source, started_at, ended_at, seconds_tracked, avg_rate`

	sess := Session{ID: id}
	var kind string
	err := s.db.QueryRow(ctx, q, id, time.Now().UTC(), finalSeconds).
		Scan(&sess.UserID, &sess.MediaID, &kind, &sess.Source, &sess.StartedAt,
			&sess.EndedAt, &sess.SecondsTracked, &sess.AvgRate)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("close session: %w", err)
	}
	sess.Kind = media.Kind(kind)
	return sess, nil
}

func (s *PostgresStore) SumSessionSeconds(ctx context.Context, userID string, kind *media.Kind, startedAfter, startedBefore time.Time) (int, error) {
	q := `SELECT COALESCE(SUM(seconds_tracked), 0)
	      FROM watch_sessions
	      WHERE user_id=$1 AND started_at >= $2 AND started_at < $3`
	args := []any{userID, startedAfter, startedBefore}

	if kind != nil {
		q += " AND kind = $4"
		args = append(args, string(*kind))
	}

	var total int
	if err := s.db.QueryRow(ctx, q, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum session seconds: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) GetItemProgress(ctx context.Context, userID, mediaID string) (ItemProgress, error) {
	q := `SELECT last_position_seconds, completed
	      FROM user_item_progress WHERE user_id=$1 AND media_id=$2`

	var p ItemProgress
	err := s.db.QueryRow(ctx, q, userID, mediaID).Scan(&p.LastPositionSeconds, &p.Completed)
	if errors.Is(err, pgx.ErrNoRows) {
		return ItemProgress{}, nil
	}
	if err != nil {
		return ItemProgress{}, fmt.Errorf("get item progress: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) SetItemProgress(ctx context.Context, userID, mediaID string, patch ItemProgressPatch) error {
	// completed only ever transitions upward; a nil or false patch value
	// never un-completes an item.
	q := `
INSERT INTO user_item_progress (user_id, media_id, last_position_seconds, completed, updated_at)
VALUES ($1, $2, COALESCE($3, 0), COALESCE($4, false), $5)
ON CONFLICT (user_id, media_id)
DO UPDATE SET
  last_position_seconds = COALESCE($3, user_item_progress.last_position_seconds),
  completed             = user_item_progress.completed OR COALESCE($4, false),
  updated_at            = $5`

	_, err := s.db.Exec(ctx, q, userID, mediaID, patch.LastPositionSeconds, patch.Completed, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set item progress: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserAggregate(ctx context.Context, userID string) (UserAggregate, error) {
	q := `SELECT total_seconds, daily_goal_seconds, streak_days, last_achieved_date, last_watched_at
	      FROM user_aggregates WHERE user_id=$1`

	agg := UserAggregate{UserID: userID}
	err := s.db.QueryRow(ctx, q, userID).
		Scan(&agg.TotalSeconds, &agg.DailyGoalSeconds, &agg.StreakDays, &agg.LastAchievedDate, &agg.LastWatchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserAggregate{UserID: userID}, nil
	}
	if err != nil {
		return UserAggregate{}, fmt.Errorf("get user aggregate: %w", err)
	}
	return agg, nil
}

func (s *PostgresStore) UpdateUserAggregate(ctx context.Context, userID string, patch AggregatePatch) error {
	q := `
INSERT INTO user_aggregates (user_id, total_seconds, daily_goal_seconds, streak_days, last_achieved_date, last_watched_at, updated_at)
VALUES ($1, COALESCE($2, 0), COALESCE($3, 0), COALESCE($4, 0), COALESCE($5, ''), COALESCE($6, to_timestamp(0)), $7)
ON CONFLICT (user_id)
DO UPDATE SET
  total_seconds      = user_aggregates.total_seconds + COALESCE($2, 0),
  daily_goal_seconds = COALESCE($3, user_aggregates.daily_goal_seconds),
  streak_days        = COALESCE($4, user_aggregates.streak_days),
  last_achieved_date = COALESCE($5, user_aggregates.last_achieved_date),
  last_watched_at    = COALESCE($6, user_aggregates.last_watched_at),
  updated_at         = $7`

	_, err := s.db.Exec(ctx, q, userID,
		patch.AddTotalSeconds, patch.DailyGoalSeconds, patch.StreakDays,
		patch.LastAchievedDate, patch.LastWatchedAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update user aggregate: %w", err)
	}
	return nil
}
