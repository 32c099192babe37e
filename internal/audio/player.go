package audio

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PlayerState is the clip player lifecycle state
type PlayerState string

const (
	PlayerIdle    PlayerState = "idle"
	PlayerPlaying PlayerState = "playing"
	PlayerPaused  PlayerState = "paused"
	PlayerStopped PlayerState = "stopped"
)

var (
	ErrPlayerBusy       = errors.New("player is already playing")
	ErrPlayerNotPlaying = errors.New("player is not playing")
	ErrPlayerClosed     = errors.New("player is closed")
)

// Player streams a loaded PCM16 clip to a sink in small chunks, with
// clamped volume and seek controls.
type Player struct {
	sink   Sink
	rate   int
	logger *zap.Logger

	mu       sync.Mutex
	state    PlayerState
	samples  []int16
	position int
	volume   float64
	closed   bool
	resume   chan struct{}
	done     chan struct{}
}

func NewPlayer(sink Sink, sampleRate int, logger *zap.Logger) *Player {
	if sampleRate == 0 {
		sampleRate = DefaultSampleRate
	}
	return &Player{
		sink:   sink,
		rate:   sampleRate,
		logger: logger,
		state:  PlayerIdle,
		volume: 1,
	}
}

// Load replaces the clip. Only legal while idle or stopped.
func (p *Player) Load(pcm []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPlayerClosed
	}
	if p.state == PlayerPlaying || p.state == PlayerPaused {
		return ErrPlayerBusy
	}
	p.samples = BytesToPCM16(pcm)
	p.position = 0
	p.state = PlayerIdle
	return nil
}

// State returns the current lifecycle state
func (p *Player) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Duration is the length of the loaded clip
func (p *Player) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Duration(len(p.samples)) * time.Second / time.Duration(p.rate)
}

// Position is the current playback offset
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Duration(p.position) * time.Second / time.Duration(p.rate)
}

// Volume returns the current gain in [0, 1]
func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// SetVolume clamps the gain to [0, 1]
func (p *Player) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	p.mu.Lock()
	p.volume = v
	p.mu.Unlock()
}

// Seek clamps the offset to [0, duration]
func (p *Player) Seek(offset time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if offset < 0 {
		offset = 0
	}
	pos := int(offset * time.Duration(p.rate) / time.Second)
	if pos > len(p.samples) {
		pos = len(p.samples)
	}
	p.position = pos
}

// Play starts streaming the loaded clip to the sink
func (p *Player) Play() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPlayerClosed
	}
	if p.state == PlayerPlaying {
		p.mu.Unlock()
		return ErrPlayerBusy
	}
	if p.position >= len(p.samples) {
		p.position = 0
	}
	p.state = PlayerPlaying
	p.resume = make(chan struct{})
	close(p.resume)
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	go p.stream(done)
	return nil
}

func (p *Player) stream(done chan struct{}) {
	const chunk = FramesPerBuffer

	for {
		p.mu.Lock()
		if p.closed || p.state == PlayerStopped {
			p.mu.Unlock()
			return
		}
		if p.state == PlayerPaused {
			wait := p.resume
			p.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-done:
				return
			}
		}
		if p.position >= len(p.samples) {
			p.state = PlayerStopped
			p.mu.Unlock()
			return
		}

		end := p.position + chunk
		if end > len(p.samples) {
			end = len(p.samples)
		}
		frame := applyGain(p.samples[p.position:end], p.volume)
		p.position = end
		p.mu.Unlock()

		if err := p.sink.Play(PCM16ToBytes(frame)); err != nil {
			p.logger.Warn("Playback sink rejected chunk", zap.Error(err))
			p.mu.Lock()
			p.state = PlayerStopped
			p.mu.Unlock()
			return
		}
	}
}

// Pause suspends playback, keeping the position
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != PlayerPlaying {
		return ErrPlayerNotPlaying
	}
	p.state = PlayerPaused
	p.resume = make(chan struct{})
	p.sink.Pause()
	return nil
}

// Resume continues paused playback
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != PlayerPaused {
		return ErrPlayerNotPlaying
	}
	p.state = PlayerPlaying
	p.sink.Resume()
	close(p.resume)
	return nil
}

// Stop halts playback and rewinds
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != PlayerPlaying && p.state != PlayerPaused {
		return ErrPlayerNotPlaying
	}
	p.state = PlayerStopped
	p.position = 0
	if p.done != nil {
		select {
		case <-p.done:
		default:
			close(p.done)
		}
	}
	p.sink.Flush()
	return nil
}

// Close releases the player and its sink
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.state = PlayerStopped
	if p.done != nil {
		select {
		case <-p.done:
		default:
			close(p.done)
		}
	}
	return p.sink.Close()
}

func applyGain(samples []int16, gain float64) []int16 {
	if gain == 1 {
		return samples
	}
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = int16(float64(s) * gain)
	}
	return out
}
