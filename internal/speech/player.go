package speech

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/hammamikhairi/ottofit/internal/domain"
	"github.com/hammamikhairi/ottofit/internal/logger"
)

// Compile-time interface checks.
var (
	_ domain.AudioSink = (*Player)(nil)
	_ domain.Playback  = (*otoPlayback)(nil)
)

// pollInterval is how often a playing clip is checked for completion.
const pollInterval = 10 * time.Millisecond

// Player plays WAV/PCM clips through a single oto context. Each Play call
// returns an independent handle; the coordinator decides which to stop.
type Player struct {
	ctx *oto.Context
	log *logger.Logger
}

// NewPlayer creates an audio player. Initializes the system audio context.
// Returns an error if the audio device is unavailable. oto allows one
// context per process, so create one Player and share it.
func NewPlayer(log *logger.Logger) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: ChannelCount,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("%w: opening audio device: %w", domain.ErrPlayback, err)
	}
	<-readyChan

	log.Debug("audio player initialized (rate=%d, channels=%d)", SampleRate, ChannelCount)
	return &Player{ctx: ctx, log: log}, nil
}

// Play starts a WAV clip and returns immediately.
func (p *Player) Play(wavData []byte) (domain.Playback, error) {
	pcm, err := extractPCM(wavData)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPlayback, err)
	}

	op := p.ctx.NewPlayer(bytes.NewReader(pcm))
	pb := &otoPlayback{
		player: op,
		done:   make(chan error, 1),
		stop:   make(chan struct{}),
	}
	op.Play()
	p.log.Debug("audio player: playing %d bytes of PCM", len(pcm))

	go pb.watch()
	return pb, nil
}

// otoPlayback is one playing clip.
type otoPlayback struct {
	player   *oto.Player
	done     chan error
	stop     chan struct{}
	stopOnce sync.Once
}

// Stop interrupts the clip. Safe to call more than once and after the
// clip has finished.
func (pb *otoPlayback) Stop() {
	pb.stopOnce.Do(func() {
		pb.player.Pause()
		close(pb.stop)
	})
}

// Done is closed once the clip has ended and its resources are released.
func (pb *otoPlayback) Done() <-chan error {
	return pb.done
}

func (pb *otoPlayback) watch() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for pb.player.IsPlaying() {
		select {
		case <-pb.stop:
			pb.finish()
			return
		case <-ticker.C:
		}
	}
	pb.finish()
}

func (pb *otoPlayback) finish() {
	err := pb.player.Err()
	if cerr := pb.player.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		pb.done <- fmt.Errorf("%w: %w", domain.ErrPlayback, err)
	}
	close(pb.done)
}

// extractPCM strips the WAV/RIFF header and returns raw PCM data.
func extractPCM(wav []byte) ([]byte, error) {
	if len(wav) < 44 {
		return nil, errors.New("wav data too short")
	}

	// Verify RIFF header.
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, errors.New("not a valid WAV file")
	}

	// Walk chunks to find the "data" chunk.
	pos := 12
	for pos < len(wav)-8 {
		chunkID := string(wav[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))

		if chunkID == "data" {
			start := pos + 8
			end := start + chunkSize
			if end > len(wav) {
				end = len(wav)
			}
			return wav[start:end], nil
		}

		pos += 8 + chunkSize
		// Chunks are word-aligned.
		if chunkSize%2 != 0 {
			pos++
		}
	}

	return nil, errors.New("data chunk not found in WAV")
}

// EncodeWAV wraps 16-bit mono PCM in a minimal RIFF header matching the
// player's format.
func EncodeWAV(pcm []byte) []byte {
	const headerLen = 44
	byteRate := SampleRate * ChannelCount * BitDepth / 8
	blockAlign := ChannelCount * BitDepth / 8

	buf := make([]byte, headerLen, headerLen+len(pcm))
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], ChannelCount)
	binary.LittleEndian.PutUint32(buf[24:28], SampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], BitDepth)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(pcm)))
	return append(buf, pcm...)
}
