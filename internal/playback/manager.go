package playback

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/example/watchtime/internal/completion"
	"github.com/example/watchtime/internal/daily"
	"github.com/example/watchtime/internal/events"
	"github.com/example/watchtime/internal/session"
	"github.com/example/watchtime/internal/store"
	"github.com/example/watchtime/internal/streak"
	"github.com/example/watchtime/internal/transport"
)

// Manager hands out one Controller per user, building the engine lazily on
// first touch and keeping it for the life of the process.
type Manager struct {
	st            store.Store
	ev            *events.Publisher
	log           *zap.Logger
	clk           clock.Clock
	loc           *time.Location
	tickInterval  time.Duration
	flushDebounce time.Duration

	rootCtx    context.Context
	cancelRoot context.CancelFunc

	mu      sync.Mutex
	engines map[string]*Controller
}

type ManagerOptions struct {
	Store         store.Store
	Events        *events.Publisher
	Log           *zap.Logger
	Clock         clock.Clock
	Location      *time.Location
	TickInterval  time.Duration
	FlushDebounce time.Duration
}

func NewManager(opts ManagerOptions) *Manager {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	if opts.FlushDebounce <= 0 {
		opts.FlushDebounce = 2 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		st:            opts.Store,
		ev:            opts.Events,
		log:           opts.Log,
		clk:           opts.Clock,
		loc:           opts.Location,
		tickInterval:  opts.TickInterval,
		flushDebounce: opts.FlushDebounce,
		rootCtx:       ctx,
		cancelRoot:    cancel,
		engines:       make(map[string]*Controller),
	}
}

// Engine returns the user's controller, building and priming it on first
// use. Priming loads today's total and the stored daily goal so stats are
// correct before the first tick.
func (m *Manager) Engine(ctx context.Context, userID string) (*Controller, error) {
	m.mu.Lock()
	if c, ok := m.engines[userID]; ok {
		m.mu.Unlock()
		return c, nil
	}
	m.mu.Unlock()

	agg := daily.New(m.st, m.log, m.clk, m.loc, userID, m.flushDebounce)
	if err := agg.LoadDailyTime(ctx); err != nil {
		return nil, err
	}

	c := NewController(Deps{
		UserID:       userID,
		Store:        m.st,
		Transport:    transport.NewRemote(),
		Recorder:     session.NewRecorder(m.st, m.log),
		Daily:        agg,
		Completion:   completion.NewDetector(m.st, m.log),
		Streak:       streak.NewEvaluator(m.st, m.log, m.clk, m.loc),
		Events:       m.ev,
		Log:          m.log,
		Clock:        m.clk,
		TickInterval: m.tickInterval,
	})
	if ua, err := m.st.GetUserAggregate(ctx, userID); err == nil {
		c.SetGoal(ua.DailyGoalSeconds)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.engines[userID]; ok {
		// Lost the build race; the first one wins.
		c.Shutdown(ctx)
		return existing, nil
	}
	m.engines[userID] = c
	go agg.WatchRollover(m.rootCtx, time.Minute)
	return c, nil
}

// Shutdown flushes every engine and stops rollover watchers. Called once
// on process exit.
func (m *Manager) Shutdown(ctx context.Context) {
	m.cancelRoot()

	m.mu.Lock()
	engines := make([]*Controller, 0, len(m.engines))
	for _, c := range m.engines {
		engines = append(engines, c)
	}
	m.mu.Unlock()

	for _, c := range engines {
		c.Shutdown(ctx)
	}
}
