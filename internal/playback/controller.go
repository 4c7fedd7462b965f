// Package playback owns the play queue and the single current item, issues
// transport commands, and fans each position sample out to the session
// recorder, completion detector and daily aggregator.
package playback

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/watchtime/internal/completion"
	"github.com/example/watchtime/internal/daily"
	"github.com/example/watchtime/internal/events"
	"github.com/example/watchtime/internal/media"
	"github.com/example/watchtime/internal/session"
	"github.com/example/watchtime/internal/store"
	"github.com/example/watchtime/internal/streak"
	"github.com/example/watchtime/internal/transport"
)

const (
	// nearEndWindowSeconds: resuming within this many seconds of the end
	// restarts from zero instead.
	nearEndWindowSeconds = 10

	defaultTickInterval = time.Second
	writeTimeout        = 5 * time.Second
)

// Deps wires a controller for one user. Events may be nil (stub).
type Deps struct {
	UserID       string
	Source       string
	Store        store.Store
	Transport    transport.Transport
	Recorder     *session.Recorder
	Daily        *daily.Aggregator
	Completion   *completion.Detector
	Streak       *streak.Evaluator
	Events       *events.Publisher
	Log          *zap.Logger
	Clock        clock.Clock
	Scheduler    Scheduler
	TickInterval time.Duration
}

type Controller struct {
	userID string
	source string
	st     store.Store
	tr     transport.Transport
	rec    *session.Recorder
	agg    *daily.Aggregator
	det    *completion.Detector
	str    *streak.Evaluator
	ev     *events.Publisher
	log    *zap.Logger
	sched  Scheduler
	tick   time.Duration

	mu          sync.Mutex
	queue       Queue
	history     []media.Item
	current     *media.Item
	sessionID   uuid.UUID
	hasSession  bool
	tracked     int
	rateSum     float64
	rateN       int
	goalSeconds int

	removeState func()
	wg          sync.WaitGroup // outstanding fire-and-forget writes
}

func NewController(d Deps) *Controller {
	if d.TickInterval <= 0 {
		d.TickInterval = defaultTickInterval
	}
	if d.Clock == nil {
		d.Clock = clock.New()
	}
	if d.Scheduler == nil {
		d.Scheduler = NewTickScheduler(d.Clock)
	}
	if d.Source == "" {
		d.Source = "player"
	}
	c := &Controller{
		userID: d.UserID,
		source: d.Source,
		st:     d.Store,
		tr:     d.Transport,
		rec:    d.Recorder,
		agg:    d.Daily,
		det:    d.Completion,
		str:    d.Streak,
		ev:     d.Events,
		log:    d.Log,
		sched:  d.Scheduler,
		tick:   d.TickInterval,
	}
	c.removeState = c.tr.OnStateChange(c.onTransportState)
	return c
}

// Play replaces the current item and begins playback. When startAt is nil
// the item resumes from its stored position; a stored position within 10
// seconds of the end restarts from zero.
func (c *Controller) Play(ctx context.Context, item media.Item, startAt *float64) error {
	return c.play(ctx, item, startAt, true)
}

func (c *Controller) play(ctx context.Context, item media.Item, startAt *float64, pushHistory bool) error {
	if err := item.Validate(); err != nil {
		return err
	}

	resume := c.resolveResume(ctx, item, startAt)

	sess, err := c.rec.StartOrResume(ctx, c.userID, item, c.source)
	if err != nil {
		return err
	}

	goal, goalOK := c.fetchGoal(ctx)

	c.mu.Lock()
	var closeOld func()
	if c.hasSession && c.current != nil && c.current.Key() != item.Key() {
		closeOld = c.closeAsyncLocked(int(c.tr.Position()))
	}
	if pushHistory && c.current != nil && c.current.Key() != item.Key() {
		c.history = append(c.history, *c.current)
	}
	it := item
	c.current = &it
	c.sessionID = sess.ID
	c.hasSession = true
	c.tracked = sess.SecondsTracked
	c.rateSum, c.rateN = 0, 0
	if goalOK {
		c.goalSeconds = goal
	}
	c.mu.Unlock()

	if closeOld != nil {
		// Fire-and-forget: the outgoing flush must not delay the switch.
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			closeOld()
		}()
	}

	_ = c.tr.Load(item, resume)
	_ = c.tr.Play()
	c.sched.Start(c.tick, c.onTick)

	c.log.Info("playback started",
		zap.String("user_id", c.userID),
		zap.String("media_id", item.ID),
		zap.String("kind", string(item.Kind)),
		zap.Float64("start_at", resume))
	return nil
}

func (c *Controller) Pause() error  { return c.tr.Pause() }
func (c *Controller) Resume() error { return c.tr.Play() }

// Stop halts the transport and closes the open session at the last known
// position. The current item stays selected.
func (c *Controller) Stop(ctx context.Context) error {
	c.sched.Stop()

	c.mu.Lock()
	pos := int(c.tr.Position())
	sid, tracked, has := c.sessionID, c.tracked, c.hasSession
	c.hasSession = false
	c.mu.Unlock()

	err := c.tr.Stop()
	if has {
		c.rec.Close(ctx, sid, tracked, pos)
		c.publishSessionClosed(sid, tracked, pos)
	}
	return err
}

// Next plays the front of the queue; with an empty queue it stops.
func (c *Controller) Next(ctx context.Context) error {
	c.mu.Lock()
	item, ok := c.queue.Dequeue()
	c.mu.Unlock()
	if !ok {
		return c.Stop(ctx)
	}
	return c.play(ctx, item, nil, true)
}

// Prev steps back through previously played items. The current item is
// re-queued at the front. With no history it restarts the current item.
func (c *Controller) Prev(ctx context.Context) error {
	c.mu.Lock()
	n := len(c.history)
	if n == 0 {
		cur := c.current
		c.mu.Unlock()
		if cur == nil {
			return nil
		}
		zero := 0.0
		return c.play(ctx, *cur, &zero, false)
	}
	item := c.history[n-1]
	c.history = c.history[:n-1]
	if c.current != nil {
		c.queue.EnqueueNext(*c.current)
	}
	c.mu.Unlock()
	return c.play(ctx, item, nil, false)
}

func (c *Controller) EnqueueNext(item media.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.queue.EnqueueNext(item)
	c.mu.Unlock()
	return nil
}

func (c *Controller) EnqueueLast(item media.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.queue.EnqueueLast(item)
	c.mu.Unlock()
	return nil
}

func (c *Controller) RemoveFromQueue(kind media.Kind, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Remove(kind, id)
}

func (c *Controller) ReorderQueue(keys []string) {
	c.mu.Lock()
	c.queue.Reorder(keys)
	c.mu.Unlock()
}

func (c *Controller) ClearQueue() {
	c.mu.Lock()
	c.queue.Clear()
	c.mu.Unlock()
}

// Seek forwards to the transport; non-finite input is dropped there.
func (c *Controller) Seek(seconds float64) error     { return c.tr.Seek(seconds) }
func (c *Controller) SetRate(rate float64) error     { return c.tr.SetRate(rate) }
func (c *Controller) SetVolume(volume float64) error { return c.tr.SetVolume(volume) }
func (c *Controller) SetMuted(muted bool) error      { return c.tr.SetMuted(muted) }

// Heartbeat feeds a client position report into the transport adapter and,
// when final, flushes pending state (the tab-close path).
func (c *Controller) Heartbeat(ctx context.Context, positionSeconds float64, state transport.State, final bool) {
	if rep, ok := c.tr.(transport.Reporter); ok {
		rep.Report(positionSeconds, state)
	}
	if final {
		c.Flush(ctx)
	}
}

// Commands drains pending instructions for the client player, if the
// transport queues any.
func (c *Controller) Commands() []transport.Command {
	type drainer interface{ DrainCommands() []transport.Command }
	if d, ok := c.tr.(drainer); ok {
		return d.DrainCommands()
	}
	return nil
}

// Flush checkpoints the open session and forces the daily write now.
// Best-effort last-chance persistence; errors are logged downstream.
func (c *Controller) Flush(ctx context.Context) {
	c.mu.Lock()
	sid, tracked, has := c.sessionID, c.tracked, c.hasSession
	avg := c.avgRateLocked()
	c.mu.Unlock()

	if has {
		c.rec.Checkpoint(ctx, sid, tracked, avg)
	}
	c.agg.Flush(ctx)
}

// Shutdown stops ticking, flushes, and waits for in-flight writes.
func (c *Controller) Shutdown(ctx context.Context) {
	c.sched.Stop()
	c.removeState()
	c.Flush(ctx)
	c.wg.Wait()
}

// SetGoal updates the cached daily goal used for streak crossing checks.
func (c *Controller) SetGoal(seconds int) {
	c.mu.Lock()
	c.goalSeconds = seconds
	c.mu.Unlock()
}

func (c *Controller) Current() *media.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	it := *c.current
	return &it
}

func (c *Controller) QueueItems() []media.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Items()
}

func (c *Controller) IsPlaying() bool          { return c.tr.State() == transport.StatePlaying }
func (c *Controller) State() transport.State   { return c.tr.State() }
func (c *Controller) PositionSeconds() float64 { return c.tr.Position() }
func (c *Controller) DailyTotal() int          { return c.agg.Total() }

func (c *Controller) SubscribeDaily(fn func(int)) func() { return c.agg.Subscribe(fn) }

// onTick samples the transport once per interval. Only the playing state
// accumulates time; paused, buffering and hidden-tab states keep the
// session open without counting.
func (c *Controller) onTick() {
	c.mu.Lock()
	if c.current == nil || !c.hasSession || c.tr.State() != transport.StatePlaying {
		c.mu.Unlock()
		return
	}
	pos := c.tr.Position()
	dur := c.tr.Duration()
	c.tracked++
	c.rateSum += c.tr.Rate()
	c.rateN++
	avg := c.avgRateLocked()
	sid := c.sessionID
	item := *c.current
	tracked := c.tracked
	goal := c.goalSeconds
	c.mu.Unlock()

	// Checkpoint off the tick path; the store's monotonic guard makes
	// out-of-order landings harmless.
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		c.rec.Checkpoint(ctx, sid, tracked, avg)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if c.det.Observe(ctx, c.userID, item, pos, dur) {
		c.ev.Publish(events.SubjectItemCompleted, "item_completed", c.userID, map[string]any{
			"media_id": item.ID,
			"kind":     string(item.Kind),
		})
	}

	prev, cur := c.agg.AddTime(1)
	if cur > prev {
		crossed, err := c.str.AchieveTodayIfCrossed(ctx, c.userID, prev, cur, goal)
		if err != nil {
			c.log.Warn("streak evaluation failed", zap.String("user_id", c.userID), zap.Error(err))
		} else if crossed {
			c.ev.Publish(events.SubjectGoalAchieved, "goal_achieved", c.userID, map[string]any{
				"daily_total_seconds": cur,
				"goal_seconds":        goal,
			})
		}
	}
}

func (c *Controller) onTransportState(s transport.State) {
	switch s {
	case transport.StateEnded:
		c.handleEnded()
	case transport.StateErrored:
		c.handleErrored()
	}
}

// handleEnded closes the session at full duration, completes the item, and
// advances the queue.
func (c *Controller) handleEnded() {
	c.mu.Lock()
	if c.current == nil || !c.hasSession {
		c.mu.Unlock()
		return
	}
	item := *c.current
	sid, tracked := c.sessionID, c.tracked
	c.hasSession = false
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if c.det.MarkEnded(ctx, c.userID, item) {
		c.ev.Publish(events.SubjectItemCompleted, "item_completed", c.userID, map[string]any{
			"media_id": item.ID,
			"kind":     string(item.Kind),
		})
	}
	c.rec.Close(ctx, sid, tracked, item.DurationSeconds)
	c.publishSessionClosed(sid, tracked, item.DurationSeconds)

	if err := c.Next(ctx); err != nil {
		c.log.Warn("advance after ended failed", zap.Error(err))
	}
}

// handleErrored closes out a fatally failed load or playback and advances
// rather than leaving a dangling open session.
func (c *Controller) handleErrored() {
	c.mu.Lock()
	if !c.hasSession {
		c.mu.Unlock()
		return
	}
	sid, tracked := c.sessionID, c.tracked
	pos := int(c.tr.Position())
	item := c.current
	c.hasSession = false
	c.mu.Unlock()

	if item != nil {
		c.log.Warn("transport error, advancing queue",
			zap.String("user_id", c.userID),
			zap.String("media_id", item.ID))
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	c.rec.Close(ctx, sid, tracked, pos)
	c.publishSessionClosed(sid, tracked, pos)

	if err := c.Next(ctx); err != nil {
		c.log.Warn("advance after error failed", zap.Error(err))
	}
}

// closeAsyncLocked captures the outgoing session's state for a deferred
// close. Caller holds the lock.
func (c *Controller) closeAsyncLocked(lastPosition int) func() {
	sid, tracked := c.sessionID, c.tracked
	c.hasSession = false
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		c.rec.Close(ctx, sid, tracked, lastPosition)
		c.publishSessionClosed(sid, tracked, lastPosition)
	}
}

// resolveResume applies the near-end clamp to the requested or stored
// start position.
func (c *Controller) resolveResume(ctx context.Context, item media.Item, startAt *float64) float64 {
	var resume float64
	switch {
	case startAt != nil && !math.IsNaN(*startAt) && !math.IsInf(*startAt, 0) && *startAt >= 0:
		resume = *startAt
	default:
		p, err := c.st.GetItemProgress(ctx, c.userID, item.ID)
		if err != nil {
			c.log.Warn("item progress read failed", zap.String("media_id", item.ID), zap.Error(err))
		}
		resume = float64(p.LastPositionSeconds)
	}
	if resume >= float64(item.DurationSeconds)-nearEndWindowSeconds {
		return 0
	}
	return resume
}

func (c *Controller) fetchGoal(ctx context.Context) (int, bool) {
	agg, err := c.st.GetUserAggregate(ctx, c.userID)
	if err != nil {
		c.log.Warn("aggregate read failed", zap.String("user_id", c.userID), zap.Error(err))
		return 0, false
	}
	return agg.DailyGoalSeconds, true
}

func (c *Controller) publishSessionClosed(sid uuid.UUID, tracked, lastPosition int) {
	c.ev.Publish(events.SubjectSessionClosed, "session_closed", c.userID, map[string]any{
		"session_id":            sid.String(),
		"seconds_tracked":       tracked,
		"last_position_seconds": lastPosition,
	})
}

func (c *Controller) avgRateLocked() float64 {
	if c.rateN == 0 {
		return 1.0
	}
	return c.rateSum / float64(c.rateN)
}
