package audio

import (
	"context"
	"sync"
)

// FakeCapture is an in-memory capture stream for tests and offline runs
type FakeCapture struct {
	mu      sync.Mutex
	frames  chan []int16
	started bool
	stopped bool
	failure error
}

// NewFakeCapture returns a capture whose frames are pushed by the caller
func NewFakeCapture() *FakeCapture {
	return &FakeCapture{frames: make(chan []int16, 32)}
}

// FailWith makes Start return the given error, simulating a denied device
func (f *FakeCapture) FailWith(err error) {
	f.mu.Lock()
	f.failure = err
	f.mu.Unlock()
}

func (f *FakeCapture) Start(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failure != nil {
		return f.failure
	}
	f.started = true
	return nil
}

// Push delivers a frame to consumers
func (f *FakeCapture) Push(frame []int16) {
	f.mu.Lock()
	stopped := f.stopped
	f.mu.Unlock()
	if stopped {
		return
	}
	f.frames <- frame
}

func (f *FakeCapture) Frames() <-chan []int16 {
	return f.frames
}

func (f *FakeCapture) SampleRate() int {
	return DefaultSampleRate
}

func (f *FakeCapture) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return nil
	}
	f.stopped = true
	close(f.frames)
	return nil
}

// Started reports whether Start succeeded
func (f *FakeCapture) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

// Stopped reports whether Stop was called
func (f *FakeCapture) Stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

// MemorySink collects played audio for tests
type MemorySink struct {
	mu     sync.Mutex
	chunks [][]byte
	paused bool
	closed bool
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Play(pcm []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.paused {
		return nil
	}
	chunk := make([]byte, len(pcm))
	copy(chunk, pcm)
	m.chunks = append(m.chunks, chunk)
	return nil
}

func (m *MemorySink) Pause() {
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
}

func (m *MemorySink) Resume() {
	m.mu.Lock()
	m.paused = false
	m.mu.Unlock()
}

func (m *MemorySink) Flush() {
	m.mu.Lock()
	m.chunks = nil
	m.mu.Unlock()
}

func (m *MemorySink) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Chunks returns a copy of everything played so far
func (m *MemorySink) Chunks() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.chunks))
	copy(out, m.chunks)
	return out
}

// Closed reports whether Close was called
func (m *MemorySink) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
