package viz

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/mjibson/go-dsp/fft"
)

const (
	// FFTSize is the analysis window length in samples.
	FFTSize = 256

	// Bins is the number of frequency bins exposed per snapshot.
	Bins = FFTSize / 2

	// DefaultPollInterval matches the ~20 Hz sampling of the UI visualizer.
	DefaultPollInterval = 50 * time.Millisecond

	// Byte-frequency scaling range, in decibels.
	minDecibels = -100.0
	maxDecibels = -30.0
)

// Analyser keeps a sliding window over a live PCM16 stream and computes
// byte-frequency and byte-time-domain views of it, one pipeline per
// audio direction.
type Analyser struct {
	mu     sync.Mutex
	window []int16
}

func NewAnalyser() *Analyser {
	return &Analyser{window: make([]int16, FFTSize)}
}

// Push appends samples, keeping only the most recent window
func (a *Analyser) Push(frame []int16) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(frame) >= FFTSize {
		copy(a.window, frame[len(frame)-FFTSize:])
		return
	}
	keep := FFTSize - len(frame)
	copy(a.window, a.window[FFTSize-keep:])
	copy(a.window[keep:], frame)
}

// ByteFrequencyData computes the magnitude spectrum of the current window,
// scaled to 0-255 per bin the way an analyser node reports it.
func (a *Analyser) ByteFrequencyData() []byte {
	a.mu.Lock()
	input := make([]float64, FFTSize)
	for i, s := range a.window {
		input[i] = float64(s) / 32768.0
	}
	a.mu.Unlock()

	// Hann window keeps bin leakage down on speech signals.
	for i := range input {
		input[i] *= 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(FFTSize-1)))
	}

	spectrum := fft.FFTReal(input)

	out := make([]byte, Bins)
	for i := 0; i < Bins; i++ {
		magnitude := cmplxAbs(spectrum[i]) / float64(FFTSize)
		db := minDecibels
		if magnitude > 0 {
			db = 20 * math.Log10(magnitude)
		}
		scaled := (db - minDecibels) / (maxDecibels - minDecibels) * 255
		if scaled < 0 {
			scaled = 0
		}
		if scaled > 255 {
			scaled = 255
		}
		out[i] = byte(scaled)
	}
	return out
}

// ByteTimeDomainData returns the current window as unsigned bytes centered
// on 128, matching the waveform view.
func (a *Analyser) ByteTimeDomainData() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]byte, FFTSize)
	for i, s := range a.window {
		out[i] = byte(int(s>>8) + 128)
	}
	return out
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

// Snapshot is one poll of an analysis pipeline
type Snapshot struct {
	Frequency  []byte
	TimeDomain []byte
	At         time.Time
}

// Pipeline polls an analyser on a fixed interval while active, retaining
// only the latest snapshot. Snapshots are transient and recomputed each
// poll, never persisted.
type Pipeline struct {
	analyser *Analyser
	interval time.Duration

	mu     sync.Mutex
	latest *Snapshot
	cancel context.CancelFunc
}

func NewPipeline(analyser *Analyser, interval time.Duration) *Pipeline {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Pipeline{analyser: analyser, interval: interval}
}

// Push forwards samples to the underlying analyser
func (p *Pipeline) Push(frame []int16) {
	p.analyser.Push(frame)
}

// Start begins periodic sampling. Starting an active pipeline is a no-op.
func (p *Pipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				snap := &Snapshot{
					Frequency:  p.analyser.ByteFrequencyData(),
					TimeDomain: p.analyser.ByteTimeDomainData(),
					At:         now,
				}
				p.mu.Lock()
				p.latest = snap
				p.mu.Unlock()
			}
		}
	}()
}

// Latest returns the most recent snapshot, or nil before the first poll
func (p *Pipeline) Latest() *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest
}

// Stop ceases sampling immediately and clears the last snapshot
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.latest = nil
}
