package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hammamikhairi/ottofit/internal/domain"
	"github.com/hammamikhairi/ottofit/internal/logger"
	"github.com/hammamikhairi/ottofit/internal/observe"
)

// CacheOption configures the CoachingCache.
type CacheOption func(*CoachingCache)

// WithMaxAge sets how long a generated cue is served before it is treated
// as a miss and regenerated. Zero keeps entries forever.
func WithMaxAge(d time.Duration) CacheOption {
	return func(c *CoachingCache) { c.maxAge = d }
}

// WithGenerationTimeout bounds one text+speech generation.
func WithGenerationTimeout(d time.Duration) CacheOption {
	return func(c *CoachingCache) { c.genTimeout = d }
}

// WithCacheMetrics attaches metric instruments.
func WithCacheMetrics(m *observe.Metrics) CacheOption {
	return func(c *CoachingCache) { c.metrics = m }
}

// WithCacheClock overrides time.Now, for tests.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *CoachingCache) { c.now = now }
}

// CoachingCache pre-generates and stores one audio cue per CueKey.
//
// A key is generated at most once at a time: the in-flight set makes
// RequestPreGeneration idempotent, and GenerateNow joins an in-flight
// generation through a singleflight group instead of starting another.
// Entries are only written and evicted here; readers get copies.
type CoachingCache struct {
	text       domain.TextGenerator
	synth      domain.SpeechSynthesizer
	log        *logger.Logger
	metrics    *observe.Metrics
	maxAge     time.Duration
	genTimeout time.Duration
	now        func() time.Time

	mu       sync.RWMutex
	entries  map[domain.CueKey]domain.CachedCue
	inFlight map[domain.CueKey]struct{}
	relevant func(domain.CueKey) bool
	epoch    uint64 // bumped by Clear; older generations are discarded
	hits     int64
	misses   int64

	group singleflight.Group
	wg    sync.WaitGroup

	// stop aborts every running generation; see Close.
	base context.Context
	stop context.CancelFunc
}

// NewCoachingCache creates an empty cache backed by the two services.
func NewCoachingCache(text domain.TextGenerator, synth domain.SpeechSynthesizer, log *logger.Logger, opts ...CacheOption) *CoachingCache {
	c := &CoachingCache{
		text:       text,
		synth:      synth,
		log:        log,
		maxAge:     DefaultCueMaxAge,
		genTimeout: DefaultGenerationTimeout,
		now:        time.Now,
		entries:    make(map[domain.CueKey]domain.CachedCue),
		inFlight:   make(map[domain.CueKey]struct{}),
	}
	c.base, c.stop = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = observe.Noop()
	}
	return c
}

// SetRelevance installs the staleness check consulted when a generation
// finishes. A result whose key is no longer relevant is discarded.
func (c *CoachingCache) SetRelevance(fn func(domain.CueKey) bool) {
	c.mu.Lock()
	c.relevant = fn
	c.mu.Unlock()
}

// RequestPreGeneration starts a background generation for key unless the
// key is already cached (and fresh) or in flight. It never blocks and
// reports whether a generation was started.
func (c *CoachingCache) RequestPreGeneration(ctx context.Context, key domain.CueKey, cc domain.CoachingContext) bool {
	c.mu.Lock()
	if cue, ok := c.entries[key]; ok && c.freshLocked(cue) {
		c.mu.Unlock()
		c.log.Debug("pregen: %s already cached", key)
		return false
	}
	if _, ok := c.inFlight[key]; ok {
		c.mu.Unlock()
		c.log.Debug("pregen: %s already in flight", key)
		return false
	}
	c.inFlight[key] = struct{}{}
	epoch := c.epoch
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if _, err := c.generate(ctx, epoch, key, cc); err != nil {
			c.log.Warn("pregen: %s failed: %v", key, err)
		}
	}()
	c.log.Debug("pregen: %s started", key)
	return true
}

// Consume returns the cached cue for key. The entry is kept, so a cue can
// be replayed. Entries older than the max age count as a miss.
func (c *CoachingCache) Consume(key domain.CueKey) (domain.CachedCue, bool) {
	c.mu.Lock()
	cue, ok := c.entries[key]
	if ok && !c.freshLocked(cue) {
		delete(c.entries, key)
		ok = false
		c.log.Debug("cache: %s expired", key)
	}
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()

	c.metrics.RecordCacheLookup(context.Background(), ok)
	return cue, ok
}

// GenerateNow generates key synchronously, joining an in-flight generation
// for the same key when there is one. It is the first step of the
// delivery-time fallback chain.
func (c *CoachingCache) GenerateNow(ctx context.Context, key domain.CueKey, cc domain.CoachingContext) (domain.CachedCue, error) {
	c.mu.RLock()
	epoch := c.epoch
	c.mu.RUnlock()

	ch := c.group.DoChan(key.String(), func() (any, error) {
		return c.produce(ctx, epoch, key, cc)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.CachedCue{}, res.Err
		}
		return res.Val.(domain.CachedCue), nil
	case <-ctx.Done():
		return domain.CachedCue{}, fmt.Errorf("%w: %s: %w", domain.ErrGeneration, key, ctx.Err())
	}
}

// generate runs produce through the singleflight group.
func (c *CoachingCache) generate(ctx context.Context, epoch uint64, key domain.CueKey, cc domain.CoachingContext) (domain.CachedCue, error) {
	v, err, shared := c.group.Do(key.String(), func() (any, error) {
		return c.produce(ctx, epoch, key, cc)
	})
	if shared {
		c.log.Debug("cache: %s joined an in-flight generation", key)
	}
	if err != nil {
		return domain.CachedCue{}, err
	}
	return v.(domain.CachedCue), nil
}

// produce calls both services and stores the result unless the cache was
// cleared since epoch. The in-flight marker is always cleared. The caller's
// cancellation does not abort it; only the generation timeout and Close do.
func (c *CoachingCache) produce(ctx context.Context, epoch uint64, key domain.CueKey, cc domain.CoachingContext) (domain.CachedCue, error) {
	c.mu.Lock()
	c.inFlight[key] = struct{}{}
	cached, ok := c.entries[key]
	fresh := ok && epoch == c.epoch && c.freshLocked(cached)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inFlight, key)
		c.mu.Unlock()
	}()

	// A generation that finished between the request and this call has
	// already stored the cue.
	if fresh {
		c.log.Debug("cache: %s already stored, skipping generation", key)
		return cached, nil
	}

	gctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.genTimeout)
	defer cancel()
	unhook := context.AfterFunc(c.base, cancel)
	defer unhook()

	start := c.now()
	text, err := c.text.GenerateCoachingText(gctx, cc)
	c.metrics.RecordGenerationCall(gctx, "text", err)
	if err != nil {
		return domain.CachedCue{}, fmt.Errorf("%w: text for %s: %w", domain.ErrGeneration, key, err)
	}
	text = CleanForSpeech(text)
	if text == "" {
		return domain.CachedCue{}, fmt.Errorf("%w: text for %s: %w", domain.ErrGeneration, key, errEmptyText)
	}

	audio, err := c.synth.SynthesizeSpeech(gctx, text)
	c.metrics.RecordGenerationCall(gctx, "speech", err)
	if err != nil {
		return domain.CachedCue{}, fmt.Errorf("%w: speech for %s: %w", domain.ErrGeneration, key, err)
	}
	c.metrics.RecordGenerationDuration(gctx, c.now().Sub(start))

	cue := domain.CachedCue{Key: key, Text: text, Audio: audio, CreatedAt: c.now()}

	// The relevance check calls back into the session, so it runs unlocked.
	c.mu.RLock()
	relevant := c.relevant
	c.mu.RUnlock()
	irrelevant := relevant != nil && !relevant(key)

	c.mu.Lock()
	stale := irrelevant || epoch != c.epoch
	if !stale {
		c.entries[key] = cue
	}
	size := len(c.entries)
	c.mu.Unlock()

	if stale {
		c.log.Debug("cache: discarded stale result for %s", key)
	} else {
		c.log.Debug("cache: stored %s (%d bytes, %d entries): %s", key, len(audio), size, truncate(text, 50))
	}
	return cue, nil
}

var errEmptyText = errors.New("empty coaching text")

// Has reports whether a fresh cue is cached for key.
func (c *CoachingCache) Has(key domain.CueKey) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cue, ok := c.entries[key]
	return ok && c.freshLocked(cue)
}

// InFlight reports whether key is being generated.
func (c *CoachingCache) InFlight(key domain.CueKey) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.inFlight[key]
	return ok
}

// Len returns the number of stored cues.
func (c *CoachingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit and miss counts of Consume.
func (c *CoachingCache) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Clear drops every entry. Generations still in flight finish, but their
// results are discarded.
func (c *CoachingCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[domain.CueKey]domain.CachedCue)
	c.epoch++
	c.mu.Unlock()
	c.log.Debug("cache cleared")
}

// Close aborts running generations and drops every entry. Later
// generations fail at once. Call Wait to block until the background ones
// have returned.
func (c *CoachingCache) Close() {
	c.stop()
	c.Clear()
}

// Wait blocks until every background pre-generation has returned.
func (c *CoachingCache) Wait() {
	c.wg.Wait()
}

// freshLocked reports whether cue is within the max age. Must be called
// with c.mu held.
func (c *CoachingCache) freshLocked(cue domain.CachedCue) bool {
	return c.maxAge <= 0 || c.now().Sub(cue.CreatedAt) < c.maxAge
}
