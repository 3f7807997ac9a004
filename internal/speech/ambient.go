package speech

import (
	"fmt"
	"os"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/hammamikhairi/ottofit/internal/domain"
	"github.com/hammamikhairi/ottofit/internal/logger"
)

var _ domain.Ambient = (*AmbientLoop)(nil)

// AmbientLoop plays a WAV clip on repeat underneath the spoken cues. It is
// only paused and resumed; the volume is fixed.
type AmbientLoop struct {
	ctx    *oto.Context
	pcm    []byte
	volume float64
	log    *logger.Logger

	mu     sync.Mutex
	player *oto.Player
	paused bool
	closed bool
}

// NewAmbientLoop prepares a loop on the player's audio context. volume is
// clamped to [0, 1].
func (p *Player) NewAmbientLoop(wav []byte, volume float64) (*AmbientLoop, error) {
	pcm, err := extractPCM(wav)
	if err != nil {
		return nil, fmt.Errorf("%w: ambient track: %w", domain.ErrPlayback, err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("%w: ambient track is empty", domain.ErrPlayback)
	}
	volume = max(0, min(1, volume))
	return &AmbientLoop{ctx: p.ctx, pcm: pcm, volume: volume, log: p.log}, nil
}

// LoadAmbientLoop reads a WAV file and prepares it as a loop.
func (p *Player) LoadAmbientLoop(path string, volume float64) (*AmbientLoop, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ambient track: %w", err)
	}
	return p.NewAmbientLoop(data, volume)
}

// Start begins playback. Calling it again is a no-op.
func (a *AmbientLoop) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return fmt.Errorf("%w: ambient loop closed", domain.ErrPlayback)
	}
	if a.player != nil {
		return nil
	}
	a.player = a.ctx.NewPlayer(&loopReader{data: a.pcm})
	a.player.SetVolume(a.volume)
	a.player.Play()
	a.log.Debug("ambient: started (%d bytes, volume %.2f)", len(a.pcm), a.volume)
	return nil
}

func (a *AmbientLoop) Pause() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.player == nil || a.paused {
		return
	}
	a.player.Pause()
	a.paused = true
	a.log.Debug("ambient: paused")
}

func (a *AmbientLoop) Resume() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.player == nil || !a.paused || a.closed {
		return
	}
	a.player.Play()
	a.paused = false
	a.log.Debug("ambient: resumed")
}

// Close stops the loop and releases the oto player.
func (a *AmbientLoop) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if a.player == nil {
		return nil
	}
	a.player.Pause()
	err := a.player.Close()
	a.player = nil
	return err
}

// loopReader reads data forever, wrapping at the end.
type loopReader struct {
	data []byte
	pos  int
}

func (r *loopReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		c := copy(p[n:], r.data[r.pos:])
		n += c
		r.pos = (r.pos + c) % len(r.data)
	}
	return n, nil
}
