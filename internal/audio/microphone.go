//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"
)

// MicrophoneCapture reads mono PCM16 frames from the default input device.
// Constraints follow the voice-call defaults: one channel at 24 kHz.
type MicrophoneCapture struct {
	sampleRate int
	logger     *zap.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	frames  chan []int16
	stopped bool
	done    chan struct{}
}

func NewMicrophoneCapture(sampleRate int, logger *zap.Logger) *MicrophoneCapture {
	if sampleRate == 0 {
		sampleRate = DefaultSampleRate
	}
	return &MicrophoneCapture{
		sampleRate: sampleRate,
		logger:     logger,
		frames:     make(chan []int16, 8),
		done:       make(chan struct{}),
	}
}

func (m *MicrophoneCapture) Start(ctx context.Context) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}

	buffer := make([]int16, FramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(DefaultChannels, 0, float64(m.sampleRate), FramesPerBuffer, buffer)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("opening capture stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("starting capture stream: %w", err)
	}

	m.mu.Lock()
	m.stream = stream
	m.mu.Unlock()

	m.logger.Info("Microphone capture started", zap.Int("sampleRate", m.sampleRate))

	go m.readLoop(ctx, buffer)
	return nil
}

func (m *MicrophoneCapture) readLoop(ctx context.Context, buffer []int16) {
	defer close(m.frames)

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		default:
		}

		if err := m.stream.Read(); err != nil {
			m.logger.Warn("Capture read failed", zap.Error(err))
			return
		}

		frame := make([]int16, len(buffer))
		copy(frame, buffer)

		select {
		case m.frames <- frame:
		default:
			// Consumers lag; drop rather than block the device.
		}
	}
}

func (m *MicrophoneCapture) Frames() <-chan []int16 {
	return m.frames
}

func (m *MicrophoneCapture) SampleRate() int {
	return m.sampleRate
}

func (m *MicrophoneCapture) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil
	}
	m.stopped = true
	close(m.done)

	if m.stream != nil {
		m.stream.Stop()
		m.stream.Close()
		m.stream = nil
	}
	portaudio.Terminate()
	return nil
}

// SpeakerSink plays little-endian PCM16 bytes on the default output device.
type SpeakerSink struct {
	sampleRate int
	logger     *zap.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	queue   chan []int16
	paused  bool
	closed  bool
	done    chan struct{}
	started bool
}

func NewSpeakerSink(sampleRate int, logger *zap.Logger) *SpeakerSink {
	if sampleRate == 0 {
		sampleRate = DefaultSampleRate
	}
	return &SpeakerSink{
		sampleRate: sampleRate,
		logger:     logger,
		queue:      make(chan []int16, 64),
		done:       make(chan struct{}),
	}
}

func (s *SpeakerSink) Play(pcm []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("sink is closed")
	}
	if !s.started {
		if err := s.open(); err != nil {
			s.mu.Unlock()
			return err
		}
		s.started = true
	}
	paused := s.paused
	s.mu.Unlock()

	if paused {
		return nil
	}

	select {
	case s.queue <- BytesToPCM16(pcm):
		return nil
	default:
		s.logger.Warn("Playback queue full, dropping chunk", zap.Int("bytes", len(pcm)))
		return nil
	}
}

// open lazily acquires the output device on first playback. Caller holds mu.
func (s *SpeakerSink) open() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}

	buffer := make([]int16, FramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, DefaultChannels, float64(s.sampleRate), FramesPerBuffer, &buffer)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("opening playback stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("starting playback stream: %w", err)
	}
	s.stream = stream

	go s.writeLoop(buffer)
	return nil
}

func (s *SpeakerSink) writeLoop(buffer []int16) {
	var pending []int16
	for {
		select {
		case <-s.done:
			return
		case chunk, ok := <-s.queue:
			if !ok {
				return
			}
			pending = append(pending, chunk...)
			for len(pending) >= len(buffer) {
				copy(buffer, pending[:len(buffer)])
				pending = pending[len(buffer):]
				if err := s.stream.Write(); err != nil {
					s.logger.Warn("Playback write failed", zap.Error(err))
					return
				}
			}
		}
	}
}

func (s *SpeakerSink) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

func (s *SpeakerSink) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

func (s *SpeakerSink) Flush() {
	for {
		select {
		case <-s.queue:
		default:
			return
		}
	}
}

func (s *SpeakerSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)

	if s.stream != nil {
		s.stream.Stop()
		s.stream.Close()
		s.stream = nil
		portaudio.Terminate()
	}
	return nil
}
