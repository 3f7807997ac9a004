package speech

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/hammamikhairi/ottofit/internal/domain"
	"github.com/hammamikhairi/ottofit/internal/logger"
	"github.com/hammamikhairi/ottofit/internal/observe"
)

// CueRequest asks the coordinator to speak one cue.
type CueRequest struct {
	Key     domain.CueKey
	Context domain.CoachingContext

	// Text, when set, is spoken as-is through the phrase cache instead of
	// resolving Key. Used for deterministic lines such as the ready line.
	Text string

	// AdHoc requests are subject to the minimum spacing rule. Phase-bound
	// and scheduled cues leave it false.
	AdHoc bool
}

// CoordinatorOption configures the Coordinator.
type CoordinatorOption func(*Coordinator)

// WithAdHocSpacing sets the minimum gap between ad-hoc cues.
func WithAdHocSpacing(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.spacing = d }
}

// WithResolveTimeout bounds delivery-time generation.
func WithResolveTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.resolveTimeout = d }
}

// WithAmbient attaches background audio that follows pause and resume.
func WithAmbient(a domain.Ambient) CoordinatorOption {
	return func(c *Coordinator) { c.ambient = a }
}

// WithRand sets the source used to pick fallback phrases.
func WithRand(r *rand.Rand) CoordinatorOption {
	return func(c *Coordinator) { c.rng = r }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) { c.now = now }
}

// WithDeliveryHook registers a callback invoked after every request with
// its outcome. It runs on the delivering goroutine; keep it short.
func WithDeliveryHook(fn func(domain.Delivery)) CoordinatorOption {
	return func(c *Coordinator) { c.onDelivery = fn }
}

// WithCoordinatorMetrics attaches metric instruments.
func WithCoordinatorMetrics(m *observe.Metrics) CoordinatorOption {
	return func(c *Coordinator) { c.metrics = m }
}

// Coordinator owns the single "currently speaking" resource. Every request
// resolves its audio (cache hit, synchronous generation, static phrase, or
// silence), then stops whatever is playing and starts the new clip. The
// most recently triggered request always wins; an older request that
// finishes resolving late is dropped. Playback errors are logged and never
// returned to the session.
type Coordinator struct {
	cache          *CoachingCache
	phrases        *PhraseCache
	sink           domain.AudioSink
	ambient        domain.Ambient
	log            *logger.Logger
	metrics        *observe.Metrics
	spacing        time.Duration
	resolveTimeout time.Duration
	now            func() time.Time
	onDelivery     func(domain.Delivery)

	rngMu sync.Mutex
	rng   *rand.Rand

	mu        sync.Mutex
	seq       uint64 // last triggered request
	active    domain.Playback
	activeSeq uint64
	lastAdHoc time.Time
	lastText  string
	closed    bool

	wg sync.WaitGroup
}

// NewCoordinator creates a coordinator for one session.
func NewCoordinator(cache *CoachingCache, phrases *PhraseCache, sink domain.AudioSink, log *logger.Logger, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		cache:          cache,
		phrases:        phrases,
		sink:           sink,
		log:            log,
		spacing:        DefaultAdHocSpacing,
		resolveTimeout: DefaultResolveTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if c.metrics == nil {
		c.metrics = observe.Noop()
	}
	return c
}

// Speak triggers a cue and returns immediately. Resolution and playback
// happen on a separate goroutine. It reports false when the request was
// rejected up front (closed, or inside the ad-hoc spacing window).
func (c *Coordinator) Speak(ctx context.Context, req CueRequest) bool {
	seq, ok := c.trigger(req)
	if !ok {
		return false
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.deliver(ctx, seq, req)
	}()
	return true
}

// PlayImmediate triggers a cue and blocks until it has been resolved and
// playback has started (or the request was dropped). It does not wait for
// playback to finish.
func (c *Coordinator) PlayImmediate(ctx context.Context, req CueRequest) domain.Delivery {
	seq, ok := c.trigger(req)
	if !ok {
		d := domain.Delivery{Key: req.Key, Text: req.Text, Source: domain.SourceSilent, Dropped: true}
		c.report(d)
		return d
	}
	return c.deliver(ctx, seq, req)
}

// trigger claims a sequence number and applies the ad-hoc spacing rule.
func (c *Coordinator) trigger(req CueRequest) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, false
	}
	if req.AdHoc {
		now := c.now()
		if !c.lastAdHoc.IsZero() && now.Sub(c.lastAdHoc) < c.spacing {
			c.log.Debug("coordinator: ad-hoc cue %s suppressed (%s since last)", req.Key, now.Sub(c.lastAdHoc).Round(time.Millisecond))
			return 0, false
		}
		c.lastAdHoc = now
	}
	c.seq++
	return c.seq, true
}

// deliver resolves and plays the request claimed as seq.
func (c *Coordinator) deliver(ctx context.Context, seq uint64, req CueRequest) domain.Delivery {
	d := c.resolve(ctx, req)

	c.mu.Lock()
	if seq != c.seq || c.closed {
		c.mu.Unlock()
		d.Dropped = true
		c.log.Debug("coordinator: %s superseded before playback", req.Key)
		c.report(d.Delivery)
		return d.Delivery
	}

	// Preempt: the previous handle is stopped before the new one starts.
	if c.active != nil {
		c.active.Stop()
		c.active = nil
		c.metrics.RecordPreemption(ctx)
		c.log.Debug("coordinator: preempted cue #%d", c.activeSeq)
	}
	if d.Text != "" {
		c.lastText = d.Text
	}

	if d.Source == domain.SourceSilent {
		c.mu.Unlock()
		c.log.Warn("coordinator: %s is silent (no audio available)", req.Key)
		c.report(d.Delivery)
		return d.Delivery
	}

	pb, err := c.sink.Play(d.audio)
	if err != nil {
		c.mu.Unlock()
		c.log.Error("coordinator: playback of %s failed: %v", req.Key, err)
		c.report(d.Delivery)
		return d.Delivery
	}
	c.active = pb
	c.activeSeq = seq
	c.mu.Unlock()

	d.Played = true
	c.wg.Add(1)
	go c.release(seq, pb)

	c.log.Debug("coordinator: playing #%d %s (%s): %s", seq, req.Key, d.Source, truncate(d.Text, 60))
	c.report(d.Delivery)
	return d.Delivery
}

// release clears the handle when playback ends on its own.
func (c *Coordinator) release(seq uint64, pb domain.Playback) {
	defer c.wg.Done()
	err := <-pb.Done()

	c.mu.Lock()
	if c.active == pb && c.activeSeq == seq {
		c.active = nil
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Warn("coordinator: cue #%d ended with error: %v", seq, err)
	}
}

// resolved carries the delivery plus its audio.
type resolved struct {
	domain.Delivery
	audio []byte
}

// resolve walks the fallback chain: literal text, cache hit, synchronous
// generation, static phrase, silence.
func (c *Coordinator) resolve(ctx context.Context, req CueRequest) resolved {
	out := resolved{Delivery: domain.Delivery{Key: req.Key}}

	if req.Text != "" {
		out.Text = req.Text
		return c.speakStatic(ctx, out)
	}

	if cue, ok := c.cache.Consume(req.Key); ok {
		out.Text, out.audio, out.Source = cue.Text, cue.Audio, domain.SourceCached
		return out
	}

	gctx, cancel := context.WithTimeout(ctx, c.resolveTimeout)
	cue, err := c.cache.GenerateNow(gctx, req.Key, req.Context)
	cancel()
	if err == nil {
		out.Text, out.audio, out.Source = cue.Text, cue.Audio, domain.SourceGenerated
		return out
	}
	c.log.Warn("coordinator: generation for %s failed, using static phrase: %v", req.Key, err)

	c.rngMu.Lock()
	out.Text = PickPhrase(c.rng, req.Key.Category, req.Context.ExerciseName, req.Context.UserName)
	c.rngMu.Unlock()
	if out.Text == "" {
		out.Source = domain.SourceSilent
		return out
	}
	return c.speakStatic(ctx, out)
}

// speakStatic synthesizes out.Text through the phrase cache. It gets its
// own timeout so a slow generation does not leave it without time.
func (c *Coordinator) speakStatic(ctx context.Context, out resolved) resolved {
	sctx, cancel := context.WithTimeout(ctx, c.resolveTimeout)
	defer cancel()
	audio, err := c.phrases.Synthesize(sctx, out.Text)
	if err != nil {
		c.log.Warn("coordinator: static line %q unavailable: %v", truncate(out.Text, 40), err)
		out.Source = domain.SourceSilent
		return out
	}
	out.audio, out.Source = audio, domain.SourceStatic
	return out
}

// report records metrics and invokes the delivery hook.
func (c *Coordinator) report(d domain.Delivery) {
	if !d.Dropped {
		c.metrics.RecordDelivery(context.Background(), d.Source.String())
	}
	if c.onDelivery != nil {
		c.onDelivery(d)
	}
}

// Interrupt stops the current cue and drops every request still resolving.
func (c *Coordinator) Interrupt() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	if c.active != nil {
		c.active.Stop()
		c.active = nil
		c.log.Debug("coordinator: interrupted cue #%d", c.activeSeq)
	}
}

// Pause stops the spoken cue and the ambient audio. The interrupted cue is
// not replayed on resume.
func (c *Coordinator) Pause() {
	c.Interrupt()
	if c.ambient != nil {
		c.ambient.Pause()
	}
}

// Resume restarts the ambient audio only.
func (c *Coordinator) Resume() {
	if c.ambient != nil {
		c.ambient.Resume()
	}
}

// StartAmbient begins the background loop, if one is attached.
func (c *Coordinator) StartAmbient() {
	if c.ambient == nil {
		return
	}
	if err := c.ambient.Start(); err != nil {
		c.log.Warn("coordinator: ambient audio unavailable: %v", err)
	}
}

// Speaking reports whether a cue is playing.
func (c *Coordinator) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// LastText returns the text of the most recently delivered cue.
func (c *Coordinator) LastText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastText
}

// Close stops playback and the ambient loop and rejects further requests.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.Interrupt()
	if c.ambient != nil {
		if err := c.ambient.Close(); err != nil {
			c.log.Warn("coordinator: closing ambient: %v", err)
		}
	}
}

// Wait blocks until every delivery goroutine has returned. Playback handles
// must have finished or been stopped for Wait to return.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}
