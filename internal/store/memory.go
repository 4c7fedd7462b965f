package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/watchtime/internal/media"
)

// InMemoryStore is a development and test implementation.
type InMemoryStore struct {
	mu         sync.RWMutex
	sessions   map[uuid.UUID]Session
	progress   map[string]ItemProgress // userID|mediaID
	aggregates map[string]UserAggregate
	now        func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:   make(map[uuid.UUID]Session),
		progress:   make(map[string]ItemProgress),
		aggregates: make(map[string]UserAggregate),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the clock used for StartedAt/EndedAt stamps in tests.
func (s *InMemoryStore) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func progressKey(userID, mediaID string) string { return userID + "|" + mediaID }

func (s *InMemoryStore) CreateSession(_ context.Context, userID string, item media.Item, source string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.MediaID == item.ID && sess.Open() {
			return sess, nil
		}
	}

	sess := Session{
		ID:        uuid.New(),
		UserID:    userID,
		MediaID:   item.ID,
		Kind:      item.Kind,
		Source:    source,
		StartedAt: s.now(),
		AvgRate:   1.0,
	}
	s.sessions[sess.ID] = sess
	return sess, nil
}

func (s *InMemoryStore) FindOpenSession(_ context.Context, userID, mediaID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.MediaID == mediaID && sess.Open() {
			out := sess
			return &out, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) UpdateSession(_ context.Context, id uuid.UUID, secondsTracked int, avgRate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || !sess.Open() {
		return ErrSessionNotFound
	}
	if secondsTracked > sess.SecondsTracked {
		sess.SecondsTracked = secondsTracked
	}
	sess.AvgRate = avgRate
	s.sessions[id] = sess
	return nil
}

func (s *InMemoryStore) CloseSession(_ context.Context, id uuid.UUID, finalSeconds int) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || !sess.Open() {
		return Session{}, ErrSessionNotFound
	}
	if finalSeconds > sess.SecondsTracked {
		sess.SecondsTracked = finalSeconds
	}
	endedAt := s.now()
	sess.EndedAt = &endedAt
	s.sessions[id] = sess
	return sess, nil
}

func (s *InMemoryStore) SumSessionSeconds(_ context.Context, userID string, kind *media.Kind, startedAfter, startedBefore time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, sess := range s.sessions {
		if sess.UserID != userID {
			continue
		}
		if kind != nil && sess.Kind != *kind {
			continue
		}
		if sess.StartedAt.Before(startedAfter) || !sess.StartedAt.Before(startedBefore) {
			continue
		}
		total += sess.SecondsTracked
	}
	return total, nil
}

func (s *InMemoryStore) GetItemProgress(_ context.Context, userID, mediaID string) (ItemProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress[progressKey(userID, mediaID)], nil
}

func (s *InMemoryStore) SetItemProgress(_ context.Context, userID, mediaID string, patch ItemProgressPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.progress[progressKey(userID, mediaID)]
	if patch.LastPositionSeconds != nil {
		p.LastPositionSeconds = *patch.LastPositionSeconds
	}
	if patch.Completed != nil && *patch.Completed {
		p.Completed = true
	}
	s.progress[progressKey(userID, mediaID)] = p
	return nil
}

func (s *InMemoryStore) GetUserAggregate(_ context.Context, userID string) (UserAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agg, ok := s.aggregates[userID]
	if !ok {
		return UserAggregate{UserID: userID}, nil
	}
	return agg, nil
}

func (s *InMemoryStore) UpdateUserAggregate(_ context.Context, userID string, patch AggregatePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agg, ok := s.aggregates[userID]
	if !ok {
		agg = UserAggregate{UserID: userID}
	}
	if patch.AddTotalSeconds != nil {
		agg.TotalSeconds += *patch.AddTotalSeconds
	}
	if patch.DailyGoalSeconds != nil {
		agg.DailyGoalSeconds = *patch.DailyGoalSeconds
	}
	if patch.StreakDays != nil {
		agg.StreakDays = *patch.StreakDays
	}
	if patch.LastAchievedDate != nil {
		agg.LastAchievedDate = *patch.LastAchievedDate
	}
	if patch.LastWatchedAt != nil {
		agg.LastWatchedAt = *patch.LastWatchedAt
	}
	s.aggregates[userID] = agg
	return nil
}
