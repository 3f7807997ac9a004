package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hammamikhairi/ottofit/internal/domain"
	"github.com/hammamikhairi/ottofit/internal/logger"
	"github.com/hammamikhairi/ottofit/internal/observe"
	"github.com/hammamikhairi/ottofit/internal/speech"
	"github.com/hammamikhairi/ottofit/internal/timer"
)

// Phase durations and cue timing defaults.
const (
	DefaultGetReady         = 10 * time.Second
	DefaultWork             = 20 * time.Second
	DefaultRest             = 10 * time.Second
	DefaultMotivationOffset = 10 * time.Second
)

// saveTimeout bounds the completion-record write.
const saveTimeout = 10 * time.Second

// Services are the collaborators a session talks to. Only Text and Speech
// are required.
type Services struct {
	Text    domain.TextGenerator
	Speech  domain.SpeechSynthesizer
	Sink    domain.AudioSink       // nil: audio is discarded
	Phrases *speech.PhraseCache    // shared static-line cache; nil: per session
	Ambient domain.Ambient         // optional background loop
	Store   domain.CompletionStore // nil: records are only logged
}

// Option configures a Controller.
type Option func(*Controller)

// WithDurations sets the get-ready, work and rest lengths. Zero keeps the
// default.
func WithDurations(getReady, work, rest time.Duration) Option {
	return func(c *Controller) {
		if getReady > 0 {
			c.getReady = getReady
		}
		if work > 0 {
			c.work = work
		}
		if rest > 0 {
			c.rest = rest
		}
	}
}

// WithMotivationOffset sets when the scheduled motivation cue fires into a
// work phase.
func WithMotivationOffset(d time.Duration) Option {
	return func(c *Controller) { c.motivationAt = d }
}

// WithTickInterval sets the wall-clock length of one counted second.
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) { c.tick = d }
}

// WithUserName sets the name used in coaching lines.
func WithUserName(name string) Option {
	return func(c *Controller) { c.sess.UserName = name }
}

// WithAdHocSpacing sets the minimum gap between ad-hoc cues.
func WithAdHocSpacing(d time.Duration) Option {
	return func(c *Controller) { c.spacing = d }
}

// WithResolveTimeout bounds synchronous generation at delivery time.
func WithResolveTimeout(d time.Duration) Option {
	return func(c *Controller) { c.resolveTimeout = d }
}

// WithMetrics attaches metric instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithClock overrides time.Now for record dates, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// ── Controller ───────────────────────────────────────────────────

// Controller runs one workout session: it sequences the exercises, moves
// through the phases on the PhaseTimer, and decides when cues are
// pre-generated and when they are spoken. It owns the session's cache,
// coordinator and timer; all of them are released by Close.
type Controller struct {
	log     *logger.Logger
	metrics *observe.Metrics
	store   domain.CompletionStore
	cache   *speech.CoachingCache
	coord   *speech.Coordinator
	timer   *timer.PhaseTimer
	obs     observers
	now     func() time.Time

	getReady, work, rest time.Duration
	motivationAt         time.Duration
	tick                 time.Duration
	spacing              time.Duration
	resolveTimeout       time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu                sync.Mutex
	sess              domain.Session
	run               uint64 // timer run of the current phase
	started           bool
	finished          bool // reached Complete
	closed            bool
	counted           bool // included in the active-sessions gauge
	motivationPending bool
	pendingAdvance    bool // expiry arrived while paused
	skipped           bool
	skipWorked        time.Duration
	worked            []time.Duration
	lastKey           domain.CueKey

	stopLoop     chan struct{}
	stopLoopOnce sync.Once
	done         chan struct{}
	doneOnce     sync.Once
	wg           sync.WaitGroup
}

// NewController creates a session for the selected exercises, in order.
// Duplicates are allowed. The session is idle until Start.
func NewController(exercises []domain.Exercise, svc Services, log *logger.Logger, opts ...Option) (*Controller, error) {
	if len(exercises) == 0 {
		return nil, domain.ErrNoExercises
	}
	if svc.Text == nil || svc.Speech == nil {
		return nil, fmt.Errorf("engine: text and speech services are required")
	}

	c := &Controller{
		log:            log,
		store:          svc.Store,
		now:            time.Now,
		getReady:       DefaultGetReady,
		work:           DefaultWork,
		rest:           DefaultRest,
		motivationAt:   DefaultMotivationOffset,
		tick:           time.Second,
		spacing:        speech.DefaultAdHocSpacing,
		resolveTimeout: speech.DefaultResolveTimeout,
		ctx:            context.Background(),
		stopLoop:       make(chan struct{}),
		done:           make(chan struct{}),
		sess: domain.Session{
			ID:        uuid.NewString(),
			Exercises: append([]domain.Exercise(nil), exercises...),
			Phase:     domain.PhaseGetReady,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = observe.Noop()
	}
	c.worked = make([]time.Duration, c.sess.TotalSteps())
	c.log = log.With("session", c.sess.ID)

	c.timer = timer.New(c.log, timer.WithTickInterval(c.tick))
	c.cache = speech.NewCoachingCache(svc.Text, svc.Speech, c.log, speech.WithCacheMetrics(c.metrics))
	c.cache.SetRelevance(c.relevant)

	phrases := svc.Phrases
	if phrases == nil {
		phrases = speech.NewPhraseCache(svc.Speech, speech.DefaultVoice, "", false, c.log)
	}
	sink := svc.Sink
	if sink == nil {
		sink = speech.NewSilentSink(c.log)
	}
	coordOpts := []speech.CoordinatorOption{
		speech.WithAdHocSpacing(c.spacing),
		speech.WithResolveTimeout(c.resolveTimeout),
		speech.WithCoordinatorMetrics(c.metrics),
		speech.WithDeliveryHook(c.onDelivery),
	}
	if svc.Ambient != nil {
		coordOpts = append(coordOpts, speech.WithAmbient(svc.Ambient))
	}
	c.coord = speech.NewCoordinator(c.cache, phrases, sink, c.log, coordOpts...)

	return c, nil
}

// ── Control surface ──────────────────────────────────────────────

// Start enters GetReady and begins the countdown. Cancelling ctx aborts
// pending cue deliveries but does not close the session.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed:
		return domain.ErrSessionClosed
	case c.started:
		return domain.ErrAlreadyStarted
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.sess.StartedAt = c.now()
	c.counted = true
	c.metrics.RecordActiveSession(c.ctx, 1)

	c.wg.Add(1)
	go c.loop()

	c.log.Info("session started: %d exercises, %d steps", len(c.sess.Exercises), c.sess.TotalSteps())
	c.coord.StartAmbient()
	c.enterLocked(domain.PhaseGetReady)
	return nil
}

// Pause freezes the countdown, drops the scheduled motivation cue and
// silences audio.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkActiveLocked(); err != nil {
		return err
	}
	if c.sess.Paused {
		return domain.ErrSessionPaused
	}
	c.timer.Pause()
	c.sess.Paused = true
	c.sess.UpdatedAt = c.now()
	if c.motivationPending {
		c.motivationPending = false
		c.log.Debug("scheduled motivation cue dropped by pause")
	}
	c.coord.Pause()
	c.log.Info("paused in %s at %s", c.sess.Phase, c.timer.Remaining())
	c.publishLocked(Event{Kind: EventPaused})
	return nil
}

// Resume continues the countdown from where it was paused. The dropped
// cues are not replayed.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkActiveLocked(); err != nil {
		return err
	}
	if !c.sess.Paused {
		return domain.ErrNotPaused
	}
	c.sess.Paused = false
	c.sess.UpdatedAt = c.now()
	c.coord.Resume()
	c.log.Info("resumed in %s at %s", c.sess.Phase, c.timer.Remaining())
	c.publishLocked(Event{Kind: EventResumed})

	if c.pendingAdvance {
		c.pendingAdvance = false
		c.advanceLocked()
		return nil
	}
	c.timer.Resume()
	return nil
}

// Skip ends the current phase now. Time not spent in a work phase is not
// counted as worked.
func (c *Controller) Skip() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkActiveLocked(); err != nil {
		return err
	}
	if c.sess.Paused {
		return domain.ErrSessionPaused
	}
	elapsed := c.timer.Elapsed()
	if !c.timer.Expire() {
		return nil // already expiring
	}
	if c.sess.Phase == domain.PhaseWorkout {
		c.skipped = true
		c.skipWorked = elapsed
	}
	c.motivationPending = false
	c.log.Info("skipping %s (step %d)", c.sess.Phase, c.sess.StepIndex)
	return nil
}

// Encourage speaks a motivation line now. It reports false when the cue
// was suppressed by the ad-hoc spacing rule.
func (c *Controller) Encourage() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkActiveLocked(); err != nil {
		return false, err
	}
	if c.sess.Paused {
		return false, domain.ErrSessionPaused
	}
	req := c.cueLocked(domain.CueMotivation, c.sess.StepIndex)
	req.AdHoc = true
	return c.coord.Speak(c.ctx, req), nil
}

// RepeatLast speaks the most recent line again. It reports false when
// nothing was said yet or the spacing rule suppressed it.
func (c *Controller) RepeatLast() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkActiveLocked(); err != nil {
		return false, err
	}
	if c.sess.Paused {
		return false, domain.ErrSessionPaused
	}
	text := c.coord.LastText()
	if text == "" {
		return false, nil
	}
	return c.coord.Speak(c.ctx, speech.CueRequest{Key: c.lastKey, Text: text, AdHoc: true}), nil
}

// Close stops the session and releases the timer, cache, coordinator and
// ambient audio. Safe to call more than once, and after completion.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.motivationPending = false
	c.timer.Close()
	c.stopLoopOnce.Do(func() { close(c.stopLoop) })
	if c.cancel != nil {
		c.cancel()
	}
	c.uncountLocked()
	c.publishLocked(Event{Kind: EventClosed})
	c.mu.Unlock()

	c.coord.Close()
	c.cache.Close()
	c.wg.Wait()
	c.coord.Wait()
	c.cache.Wait()
	c.obs.clear()
	c.doneOnce.Do(func() { close(c.done) })
	c.log.Info("session closed")
}

// Done is closed when the session completes or is closed.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Subscribe registers ch for session events. Sends never block; events
// are dropped for a full channel. The returned func unsubscribes. ch is
// never closed by the controller.
func (c *Controller) Subscribe(ch chan<- Event) func() {
	return c.obs.add(ch)
}

// ── Accessors ────────────────────────────────────────────────────

// ID returns the session ID.
func (c *Controller) ID() string {
	return c.sess.ID
}

// CurrentExercise returns the exercise of the current step.
func (c *Controller) CurrentExercise() domain.Exercise {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exerciseLocked(c.sess.StepIndex)
}

// Phase returns the active phase.
func (c *Controller) Phase() domain.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Phase
}

// Remaining returns the time left in the active phase.
func (c *Controller) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess.Phase == domain.PhaseComplete {
		return 0
	}
	return c.timer.Remaining()
}

// Paused reports whether the session is paused.
func (c *Controller) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Paused
}

// Speaking reports whether a cue is playing. Callers use it to let the
// completion line finish before Close.
func (c *Controller) Speaking() bool {
	return c.coord.Speaking()
}

// Snapshot returns a consistent view of the session for the UI.
func (c *Controller) Snapshot() domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Session returns a copy of the session state.
func (c *Controller) Session() domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.sess
	s.Exercises = append([]domain.Exercise(nil), c.sess.Exercises...)
	return s
}

// ── State machine ────────────────────────────────────────────────

func (c *Controller) loop() {
	defer c.wg.Done()
	events := c.timer.Events()
	for {
		select {
		case <-c.stopLoop:
			return
		case ev := <-events:
			c.handle(ev)
		}
	}
}

func (c *Controller) handle(ev timer.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.finished || ev.Run != c.run {
		return
	}
	switch ev.Kind {
	case timer.EventTick:
		if c.motivationPending && c.sess.Phase == domain.PhaseWorkout && ev.Elapsed >= c.motivationAt {
			c.motivationPending = false
			c.coord.Speak(c.ctx, c.cueLocked(domain.CueMotivation, c.sess.StepIndex))
		}
		c.publishLocked(Event{Kind: EventTick})
	case timer.EventExpired:
		if c.sess.Paused {
			c.pendingAdvance = true
			return
		}
		c.advanceLocked()
	}
}

// advanceLocked leaves the current phase for the next one.
func (c *Controller) advanceLocked() {
	total := c.sess.TotalSteps()

	switch c.sess.Phase {
	case domain.PhaseGetReady:
		c.enterLocked(domain.PhaseWorkout)

	case domain.PhaseWorkout:
		worked := c.timer.Total()
		if c.skipped {
			worked, c.skipped = c.skipWorked, false
		}
		step, err := ClampStep(c.sess.StepIndex, total)
		if err != nil {
			c.log.Error("%v", err)
			c.sess.StepIndex = step
		}
		c.worked[step] = worked
		if step >= total-1 {
			c.completeLocked()
			return
		}
		c.enterLocked(domain.PhaseRest)

	case domain.PhaseRest:
		next, err := ClampStep(c.sess.StepIndex+1, total)
		if err != nil {
			// Rest never follows the last step.
			c.log.Error("%v", err)
			c.completeLocked()
			return
		}
		c.sess.StepIndex = next
		c.enterLocked(domain.PhaseWorkout)

	case domain.PhaseComplete:
		c.log.Error("%v", fmt.Errorf("%w: advance past complete", domain.ErrInvariant))

	default:
		c.log.Error("%v", fmt.Errorf("%w: unknown phase %d, completing", domain.ErrInvariant, c.sess.Phase))
		c.completeLocked()
	}
}

// enterLocked makes phase active, restarts the countdown and applies the
// cue policy.
func (c *Controller) enterLocked(phase domain.Phase) {
	c.sess.Phase = phase
	c.sess.UpdatedAt = c.now()
	c.motivationPending = false

	var d time.Duration
	switch phase {
	case domain.PhaseGetReady:
		d = c.getReady
	case domain.PhaseWorkout:
		d = c.work
	case domain.PhaseRest:
		d = c.rest
	}
	c.run = c.timer.Start(d)
	c.metrics.RecordPhase(c.ctx, phase.String())

	ex := c.exerciseLocked(c.sess.StepIndex)
	c.log.Info("%s: step %d/%d %s (%s)", phase, c.sess.StepIndex+1, c.sess.TotalSteps(), ex.Name, d)

	c.triggerLocked(phase)
	c.publishLocked(Event{Kind: EventPhase})
}

// triggerLocked speaks the cue for a phase entry and pre-generates the
// ones coming up.
func (c *Controller) triggerLocked(phase domain.Phase) {
	step := c.sess.StepIndex
	last := step >= c.sess.TotalSteps()-1

	switch phase {
	case domain.PhaseGetReady:
		ready := c.cueLocked(domain.CueReady, step)
		ready.Text = speech.LineReady(c.exerciseLocked(step).Name)
		c.coord.Speak(c.ctx, ready)
		c.pregenLocked(domain.CueInstruction, step)
		c.pregenLocked(domain.CueMotivation, step)

	case domain.PhaseWorkout:
		c.coord.Speak(c.ctx, c.cueLocked(domain.CueInstruction, step))
		c.motivationPending = c.motivationAt < c.work
		c.pregenLocked(domain.CueMotivation, step)
		if last {
			c.pregenLocked(domain.CueCompletion, step)
		} else {
			c.pregenLocked(domain.CueRestAnnouncement, step)
		}

	case domain.PhaseRest:
		c.coord.Speak(c.ctx, c.cueLocked(domain.CueRestAnnouncement, step))
		c.pregenLocked(domain.CueInstruction, step+1)
		c.pregenLocked(domain.CueMotivation, step+1)
	}
}

// completeLocked enters the terminal phase. The completion cue, the
// record write and the final cleanup run on their own goroutine.
func (c *Controller) completeLocked() {
	c.sess.Phase = domain.PhaseComplete
	c.sess.UpdatedAt = c.now()
	c.finished = true
	c.motivationPending = false
	c.timer.Close()
	c.stopLoopOnce.Do(func() { close(c.stopLoop) })
	c.metrics.RecordPhase(c.ctx, domain.PhaseComplete.String())

	lastStep := c.sess.TotalSteps() - 1
	req := c.cueLocked(domain.CueCompletion, lastStep)
	records := c.recordsLocked()

	c.log.Info("complete: %d steps", len(records))
	c.publishLocked(Event{Kind: EventPhase})

	c.wg.Add(1)
	go c.finish(req, records)
}

func (c *Controller) finish(req speech.CueRequest, records []domain.CompletionRecord) {
	defer c.wg.Done()

	c.coord.PlayImmediate(c.ctx, req)

	var err error
	if c.store != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.ctx), saveTimeout)
		if serr := c.store.SaveCompletions(ctx, records); serr != nil {
			err = fmt.Errorf("saving completions: %w", serr)
			c.log.Error("%v", err)
		} else {
			c.log.Info("saved %d completion records", len(records))
		}
		cancel()
	}
	c.cache.Clear()

	c.mu.Lock()
	c.uncountLocked()
	c.publishLocked(Event{Kind: EventCompleted, Err: err})
	c.mu.Unlock()

	c.doneOnce.Do(func() { close(c.done) })
}

// recordsLocked builds one completion record per step.
func (c *Controller) recordsLocked() []domain.CompletionRecord {
	date := c.now()
	out := make([]domain.CompletionRecord, len(c.worked))
	for i, worked := range c.worked {
		out[i] = domain.CompletionRecord{
			SessionID:      c.sess.ID,
			Date:           date,
			ExerciseID:     c.exerciseLocked(i).ID,
			Step:           i,
			ActualDuration: worked,
		}
	}
	return out
}

// ── Cues ─────────────────────────────────────────────────────────

// cueLocked builds the request for category at step.
func (c *Controller) cueLocked(category domain.CueCategory, step int) speech.CueRequest {
	ex := c.exerciseLocked(step)
	cc := domain.CoachingContext{
		ExerciseName: ex.Name,
		CurrentStep:  step,
		TotalSteps:   c.sess.TotalSteps(),
		UserName:     c.sess.UserName,
		Category:     category,
	}
	switch category {
	case domain.CueReady:
		cc.Phase, cc.TimeRemaining = domain.PhaseGetReady, c.getReady
	case domain.CueInstruction:
		cc.Phase, cc.TimeRemaining = domain.PhaseWorkout, c.work
	case domain.CueMotivation:
		cc.Phase, cc.TimeRemaining = domain.PhaseWorkout, max(0, c.work-c.motivationAt)
	case domain.CueRestAnnouncement:
		cc.Phase, cc.TimeRemaining = domain.PhaseRest, c.rest
		// The rest line announces what comes next.
		if step+1 < c.sess.TotalSteps() {
			cc.ExerciseName = c.exerciseLocked(step + 1).Name
		}
	case domain.CueCompletion:
		cc.Phase = domain.PhaseComplete
	}
	return speech.CueRequest{
		Key:     domain.CueKey{ExerciseID: ex.ID, Step: step, Category: category},
		Context: cc,
	}
}

func (c *Controller) pregenLocked(category domain.CueCategory, step int) {
	if step >= c.sess.TotalSteps() {
		return
	}
	req := c.cueLocked(category, step)
	c.cache.RequestPreGeneration(c.ctx, req.Key, req.Context)
}

// relevant is the cache's staleness check: a finished generation is kept
// only for the current step or a later one of a live session.
func (c *Controller) relevant(key domain.CueKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && !c.finished && key.Step >= c.sess.StepIndex
}

// onDelivery runs on the coordinator's goroutines after every request.
func (c *Controller) onDelivery(d domain.Delivery) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d.Played {
		c.lastKey = d.Key
	}
	if !d.Dropped {
		c.log.Debug("cue %s delivered (%s, played=%t)", d.Key, d.Source, d.Played)
	}
	c.publishLocked(Event{Kind: EventCue, Delivery: &d})
}

// ── Helpers ──────────────────────────────────────────────────────

// exerciseLocked returns the exercise of step, clamping a bad step.
func (c *Controller) exerciseLocked(step int) domain.Exercise {
	ex, err := ExerciseForStep(c.sess.Exercises, step)
	if err != nil {
		c.log.Error("%v", err)
	}
	return ex
}

func (c *Controller) snapshotLocked() domain.Snapshot {
	step := c.sess.StepIndex
	snap := domain.Snapshot{
		SessionID:  c.sess.ID,
		Exercise:   c.exerciseLocked(step),
		Phase:      c.sess.Phase,
		Step:       step,
		TotalSteps: c.sess.TotalSteps(),
		Remaining:  c.timer.Remaining(),
		PhaseTotal: c.timer.Total(),
		Paused:     c.sess.Paused,
		LastCue:    c.coord.LastText(),
	}
	if step+1 < c.sess.TotalSteps() {
		next := c.exerciseLocked(step + 1)
		snap.Next = &next
	}
	if c.sess.Phase == domain.PhaseComplete {
		snap.Remaining = 0
	}
	return snap
}

func (c *Controller) publishLocked(ev Event) {
	ev.Snapshot = c.snapshotLocked()
	c.obs.publish(ev)
}

func (c *Controller) checkActiveLocked() error {
	switch {
	case c.closed || c.finished:
		return domain.ErrSessionClosed
	case !c.started:
		return domain.ErrNotStarted
	}
	return nil
}

func (c *Controller) uncountLocked() {
	if c.counted {
		c.counted = false
		c.metrics.RecordActiveSession(context.WithoutCancel(c.ctx), -1)
	}
}
