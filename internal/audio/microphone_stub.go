//go:build !portaudio
// +build !portaudio

package audio

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// MicrophoneCapture stub when portaudio is not available
type MicrophoneCapture struct {
	sampleRate int
	frames     chan []int16
}

func NewMicrophoneCapture(sampleRate int, logger *zap.Logger) *MicrophoneCapture {
	if sampleRate == 0 {
		sampleRate = DefaultSampleRate
	}
	return &MicrophoneCapture{sampleRate: sampleRate, frames: make(chan []int16)}
}

func (m *MicrophoneCapture) Start(_ context.Context) error {
	return fmt.Errorf("microphone capture not available: rebuild with -tags portaudio")
}

func (m *MicrophoneCapture) Frames() <-chan []int16 {
	return m.frames
}

func (m *MicrophoneCapture) SampleRate() int {
	return m.sampleRate
}

func (m *MicrophoneCapture) Stop() error {
	return nil
}

// SpeakerSink stub when portaudio is not available
type SpeakerSink struct{}

func NewSpeakerSink(sampleRate int, logger *zap.Logger) *SpeakerSink {
	return &SpeakerSink{}
}

func (s *SpeakerSink) Play(pcm []byte) error {
	return fmt.Errorf("speaker sink not available: rebuild with -tags portaudio")
}

func (s *SpeakerSink) Pause()       {}
func (s *SpeakerSink) Resume()      {}
func (s *SpeakerSink) Flush()       {}
func (s *SpeakerSink) Close() error { return nil }
