// Package audio plays voice messages through the system audio device.
package audio

import (
	"bytes"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/hammamikhairi/burnchat/internal/logger"
)

// Sink plays WAV data. Player is the real device; Mute discards.
type Sink interface {
	Play(wav []byte) error
	Stop()
}

// Compile-time interface checks.
var (
	_ Sink = (*Player)(nil)
	_ Sink = (*Mute)(nil)
)

// Player handles playback of WAV/PCM data via oto.
type Player struct {
	ctx    *oto.Context
	log    *logger.Logger
	mu     sync.Mutex
	active *oto.Player // currently playing, nil when idle
}

// NewPlayer initializes the system audio context. Returns an error if the
// audio device is unavailable.
func NewPlayer(log *logger.Logger) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: ChannelCount,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-readyChan

	log.Debug("audio player initialized (rate=%d, channels=%d)", SampleRate, ChannelCount)
	return &Player{ctx: ctx, log: log}, nil
}

// Play plays WAV audio synchronously. Blocks until playback finishes or
// Stop is called. A clip already playing is interrupted first.
func (p *Player) Play(wav []byte) error {
	pcm, err := ExtractPCM(wav)
	if err != nil {
		return err
	}

	p.Stop()
	player := p.ctx.NewPlayer(bytes.NewReader(pcm))

	p.mu.Lock()
	p.active = player
	p.mu.Unlock()

	player.Play()
	p.log.Debug("playing %d bytes of PCM", len(pcm))

	for player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}

	p.mu.Lock()
	if p.active == player {
		p.active = nil
	}
	p.mu.Unlock()

	return player.Close()
}

// Stop interrupts the current clip, if any. Safe to call concurrently and
// when nothing is playing.
func (p *Player) Stop() {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()

	if active != nil {
		active.Pause()
		p.log.Debug("playback interrupted")
	}
}

// Mute is the sink used when audio is disabled or no device exists.
type Mute struct {
	log *logger.Logger
}

// NewMute creates a silent sink.
func NewMute(log *logger.Logger) *Mute {
	return &Mute{log: log}
}

// Play validates the clip and discards it.
func (m *Mute) Play(wav []byte) error {
	pcm, err := ExtractPCM(wav)
	if err != nil {
		return err
	}
	m.log.Debug("audio muted: skipping %s clip", PCMDuration(len(pcm)))
	return nil
}

// Stop does nothing.
func (m *Mute) Stop() {}
