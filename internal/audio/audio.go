package audio

import (
	"context"
	"encoding/binary"
	"sync"
)

// Default capture constraints for voice calls: mono PCM at 24 kHz.
const (
	DefaultSampleRate = 24000
	DefaultChannels   = 1

	// FramesPerBuffer is the number of samples delivered per capture frame.
	FramesPerBuffer = 1024
)

// Capture is a live microphone stream delivering PCM16 frames.
type Capture interface {
	// Start begins capturing. It fails when the device cannot be acquired.
	Start(ctx context.Context) error
	// Frames returns the live frame channel. Closed after Stop.
	Frames() <-chan []int16
	SampleRate() int
	// Stop releases the device. Safe to call more than once and before Start.
	Stop() error
}

// Sink is a playback destination for raw PCM audio.
type Sink interface {
	// Play enqueues little-endian PCM16 bytes for playback.
	Play(pcm []byte) error
	Pause()
	Resume()
	// Flush drops any queued audio.
	Flush()
	// Close releases the output device. Safe to call more than once.
	Close() error
}

// PCM16ToBytes converts samples to little-endian byte order
func PCM16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToPCM16 converts little-endian bytes to samples. A trailing odd byte
// is ignored.
func BytesToPCM16(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// Tee fans a capture stream out to several consumers, so the transport and
// the visualizer can read the same microphone without sharing a channel.
type Tee struct {
	source Capture

	mu       sync.Mutex
	branches []chan []int16
	started  bool
	done     chan struct{}
}

// NewTee wraps a capture stream. Branches must be created before Start.
func NewTee(source Capture) *Tee {
	return &Tee{
		source: source,
		done:   make(chan struct{}),
	}
}

// Branch returns a new subscriber channel. Slow subscribers drop frames
// rather than stalling the capture device.
func (t *Tee) Branch() <-chan []int16 {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan []int16, 8)
	t.branches = append(t.branches, ch)
	return ch
}

// Start starts the underlying capture and begins fanning frames out.
func (t *Tee) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = true
	t.mu.Unlock()

	if err := t.source.Start(ctx); err != nil {
		return err
	}

	go t.pump()
	return nil
}

func (t *Tee) pump() {
	defer func() {
		t.mu.Lock()
		for _, ch := range t.branches {
			close(ch)
		}
		t.branches = nil
		t.mu.Unlock()
	}()

	for {
		select {
		case <-t.done:
			return
		case frame, ok := <-t.source.Frames():
			if !ok {
				return
			}
			t.mu.Lock()
			for _, ch := range t.branches {
				select {
				case ch <- frame:
				default:
				}
			}
			t.mu.Unlock()
		}
	}
}

// SampleRate reports the source sample rate
func (t *Tee) SampleRate() int {
	return t.source.SampleRate()
}

// CaptureBranch returns a branch wrapped as a Capture whose lifecycle is
// owned by the tee: Start and Stop on the branch are no-ops.
func (t *Tee) CaptureBranch() Capture {
	return &branchCapture{frames: t.Branch(), rate: t.SampleRate()}
}

type branchCapture struct {
	frames <-chan []int16
	rate   int
}

func (b *branchCapture) Start(ctx context.Context) error { return nil }
func (b *branchCapture) Frames() <-chan []int16          { return b.frames }
func (b *branchCapture) SampleRate() int                 { return b.rate }
func (b *branchCapture) Stop() error                     { return nil }

// Stop stops fan-out and releases the underlying capture
func (t *Tee) Stop() error {
	t.mu.Lock()
	select {
	case <-t.done:
	default:
		close(t.done)
	}
	t.mu.Unlock()
	return t.source.Stop()
}
