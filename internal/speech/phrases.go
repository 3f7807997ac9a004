package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/hammamikhairi/ottofit/internal/domain"
	"github.com/hammamikhairi/ottofit/internal/logger"
)

// PhraseCache holds synthesized audio for static, text-addressed lines (the
// ready line and fallback phrases). It is a two-tier cache: memory first,
// then an optional on-disk directory. The key is sha256(voice + ":" + text)
// so a voice change misses until the voice is switched back.
//
//	diskWrite=true  -> reads from mem, then disk; writes to both.
//	diskWrite=false -> reads from mem, then disk; writes to mem only.
type PhraseCache struct {
	mu        sync.RWMutex
	entries   map[string][]byte // hash -> WAV bytes
	log       *logger.Logger
	synth     domain.SpeechSynthesizer
	voice     string
	cacheDir  string
	diskWrite bool
	hits      int64
	misses    int64
	group     singleflight.Group
}

// NewPhraseCache creates a phrase cache backed by synth.
//
//   - voice:     the TTS voice name baked into every cache key.
//   - cacheDir:  on-disk cache directory. Empty disables the disk layer.
//   - diskWrite: when false, existing files are read but nothing is written.
func NewPhraseCache(synth domain.SpeechSynthesizer, voice, cacheDir string, diskWrite bool, log *logger.Logger) *PhraseCache {
	c := &PhraseCache{
		entries:   make(map[string][]byte),
		log:       log,
		synth:     synth,
		voice:     voice,
		cacheDir:  cacheDir,
		diskWrite: diskWrite,
	}
	if cacheDir != "" && diskWrite {
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			log.Error("phrase cache: failed to create cache dir %s: %v", cacheDir, err)
		}
	}
	return c
}

// Get returns cached audio for text, checking memory then disk.
func (c *PhraseCache) Get(text string) ([]byte, bool) {
	key := c.hashKey(text)

	c.mu.RLock()
	data, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		c.log.Debug("phrase hit (mem): %s (%d bytes)", truncate(text, 40), len(data))
		return data, true
	}

	if c.cacheDir != "" {
		if diskData, diskOK := c.readDisk(key); diskOK {
			c.mu.Lock()
			c.entries[key] = diskData
			c.hits++
			c.mu.Unlock()
			c.log.Debug("phrase hit (disk): %s (%d bytes)", truncate(text, 40), len(diskData))
			return diskData, true
		}
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	return nil, false
}

// Put stores audio for text in memory, and on disk when enabled.
func (c *PhraseCache) Put(text string, audio []byte) {
	key := c.hashKey(text)

	c.mu.Lock()
	c.entries[key] = audio
	size := len(c.entries)
	c.mu.Unlock()

	c.log.Debug("phrase store (mem): %s (%d bytes, %d entries)", truncate(text, 40), len(audio), size)

	if c.cacheDir != "" && c.diskWrite {
		c.writeDisk(key, audio)
	}
}

// Has reports whether audio for text is cached (memory or disk).
func (c *PhraseCache) Has(text string) bool {
	key := c.hashKey(text)

	c.mu.RLock()
	_, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return true
	}
	if c.cacheDir != "" {
		return c.existsOnDisk(key)
	}
	return false
}

// Synthesize returns audio for text, synthesizing and storing it on a miss.
// Concurrent callers for the same text share one synthesis.
func (c *PhraseCache) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if audio, ok := c.Get(text); ok {
		return audio, nil
	}
	v, err, _ := c.group.Do(c.hashKey(text), func() (any, error) {
		audio, err := c.synth.SynthesizeSpeech(ctx, text)
		if err != nil {
			return nil, err
		}
		c.Put(text, audio)
		return audio, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Prefetch synthesizes the given texts in background goroutines. Texts that
// are already cached are skipped. Non-blocking.
func (c *PhraseCache) Prefetch(ctx context.Context, texts ...string) {
	for _, text := range texts {
		if text == "" || c.Has(text) {
			continue
		}
		go func(t string) {
			if _, err := c.Synthesize(ctx, t); err != nil {
				c.log.Warn("phrase prefetch failed for %q: %v", truncate(t, 40), err)
			}
		}(text)
	}
}

// Len returns the number of in-memory entries.
func (c *PhraseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit and miss counts.
func (c *PhraseCache) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Clear empties the in-memory layer. The disk cache is NOT cleared.
func (c *PhraseCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string][]byte)
	c.hits = 0
	c.misses = 0
	c.mu.Unlock()
}

// ── hashing ──────────────────────────────────────────────────────

func (c *PhraseCache) hashKey(text string) string {
	h := sha256.Sum256([]byte(c.voice + ":" + text))
	return hex.EncodeToString(h[:])
}

// ── disk helpers ─────────────────────────────────────────────────

func (c *PhraseCache) diskPath(key string) string {
	return filepath.Join(c.cacheDir, key+".wav")
}

func (c *PhraseCache) readDisk(key string) ([]byte, bool) {
	data, err := os.ReadFile(c.diskPath(key))
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *PhraseCache) writeDisk(key string, audio []byte) {
	path := c.diskPath(key)
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		c.log.Error("phrase cache: disk write failed for %s: %v", path, err)
		return
	}
	c.log.Debug("phrase store (disk): %s (%d bytes)", key[:12], len(audio))
}

func (c *PhraseCache) existsOnDisk(key string) bool {
	_, err := os.Stat(c.diskPath(key))
	return err == nil
}

// truncate shortens a string for logging.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
