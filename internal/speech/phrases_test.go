package speech

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhraseCacheSharesConcurrentSynthesis(t *testing.T) {
	synth := &fakeSynth{}
	c := NewPhraseCache(synth, DefaultVoice, "", false, quietLog())

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			audio, err := c.Synthesize(context.Background(), "Rest.")
			assert.NoError(t, err)
			assert.Equal(t, []byte("Rest."), audio)
		}()
	}
	wg.Wait()

	assert.Positive(t, synth.calls.Load())
	assert.True(t, c.Has("Rest."))
	assert.Equal(t, 1, c.Len())
}

func TestPhraseCacheDiskLayer(t *testing.T) {
	dir := t.TempDir()
	synth := &fakeSynth{}

	writer := NewPhraseCache(synth, DefaultVoice, dir, true, quietLog())
	_, err := writer.Synthesize(context.Background(), "Get ready.")
	require.NoError(t, err)

	// A fresh cache reading the same directory hits disk.
	reader := NewPhraseCache(&fakeSynth{err: errBackend}, DefaultVoice, dir, false, quietLog())
	audio, ok := reader.Get("Get ready.")
	require.True(t, ok)
	assert.Equal(t, []byte("Get ready."), audio)

	// A different voice is a different key.
	other := NewPhraseCache(synth, "en-US-GuyNeural", dir, false, quietLog())
	assert.False(t, other.Has("Get ready."))
}

func TestPhraseCacheSynthesisError(t *testing.T) {
	c := NewPhraseCache(&fakeSynth{err: errBackend}, DefaultVoice, "", false, quietLog())
	_, err := c.Synthesize(context.Background(), "Rest.")
	assert.ErrorIs(t, err, errBackend)
	assert.False(t, c.Has("Rest."))
	_, misses := c.Stats()
	assert.Equal(t, int64(1), misses)
}
