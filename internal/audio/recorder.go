package audio

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RecorderState is the recorder lifecycle state
type RecorderState string

const (
	RecorderIdle      RecorderState = "idle"
	RecorderRecording RecorderState = "recording"
	RecorderPaused    RecorderState = "paused"
	RecorderStopped   RecorderState = "stopped"
)

var (
	ErrRecorderBusy       = errors.New("recorder is already recording")
	ErrRecorderNotStarted = errors.New("recorder is not recording")
	ErrRecorderFinished   = errors.New("recorder is stopped")
)

// Clip is a finished recording
type Clip struct {
	WAV        []byte
	Duration   time.Duration
	SampleRate int
}

// Recorder accumulates capture frames into a voice clip. Transitions:
// idle -> recording -> (paused <-> recording) -> stopped. A stopped
// recorder cannot be restarted; create a new one per clip.
type Recorder struct {
	capture Capture
	logger  *zap.Logger

	mu      sync.Mutex
	state   RecorderState
	samples []int16
	cancel  context.CancelFunc
	pumped  chan struct{}
}

func NewRecorder(capture Capture, logger *zap.Logger) *Recorder {
	return &Recorder{
		capture: capture,
		logger:  logger,
		state:   RecorderIdle,
	}
}

// State returns the current lifecycle state
func (r *Recorder) State() RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start acquires the capture device and begins accumulating frames
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	switch r.state {
	case RecorderRecording, RecorderPaused:
		r.mu.Unlock()
		return ErrRecorderBusy
	case RecorderStopped:
		r.mu.Unlock()
		return ErrRecorderFinished
	}
	r.state = RecorderRecording
	ctx, r.cancel = context.WithCancel(ctx)
	r.pumped = make(chan struct{})
	r.mu.Unlock()

	if err := r.capture.Start(ctx); err != nil {
		r.mu.Lock()
		r.state = RecorderIdle
		r.mu.Unlock()
		return err
	}

	go r.pump(ctx)
	r.logger.Info("Recording started", zap.Int("sampleRate", r.capture.SampleRate()))
	return nil
}

func (r *Recorder) pump(ctx context.Context) {
	defer close(r.pumped)
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-r.capture.Frames():
			if !ok {
				return
			}
			r.mu.Lock()
			if r.state == RecorderRecording {
				r.samples = append(r.samples, frame...)
			}
			r.mu.Unlock()
		}
	}
}

// Pause suspends accumulation without releasing the device
func (r *Recorder) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RecorderRecording {
		return ErrRecorderNotStarted
	}
	r.state = RecorderPaused
	return nil
}

// Resume continues a paused recording
func (r *Recorder) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RecorderPaused {
		return ErrRecorderNotStarted
	}
	r.state = RecorderRecording
	return nil
}

// Stop releases the device and returns the recorded clip as WAV
func (r *Recorder) Stop() (*Clip, error) {
	r.mu.Lock()
	if r.state != RecorderRecording && r.state != RecorderPaused {
		r.mu.Unlock()
		return nil, ErrRecorderNotStarted
	}
	r.state = RecorderStopped
	cancel := r.cancel
	pumped := r.pumped
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.capture.Stop()
	if pumped != nil {
		<-pumped
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rate := r.capture.SampleRate()
	clip := &Clip{
		WAV:        EncodeWAV(r.samples, rate),
		Duration:   time.Duration(len(r.samples)) * time.Second / time.Duration(rate),
		SampleRate: rate,
	}
	r.logger.Info("Recording stopped",
		zap.Duration("duration", clip.Duration),
		zap.Int("samples", len(r.samples)))
	return clip, nil
}
