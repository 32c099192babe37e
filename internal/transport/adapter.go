package transport

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/zinohome/cozychat-voice/internal/audio"
)

// TransportFactory builds a fresh transport for each connection attempt.
type TransportFactory func() Transport

// AgentAdapter sits between the voice agent and the raw transport. It is
// the single authority on connection state: concurrent Connect calls are
// deduplicated, a call during an in-flight attempt awaits that attempt's
// outcome, and handlers registered on the adapter survive reconnects.
type AgentAdapter struct {
	factory TransportFactory
	logger  *zap.Logger
	emitter *emitter

	mu          sync.Mutex
	status      Status
	transport   Transport
	inflight    chan struct{}
	inflightErr error
}

func NewAgentAdapter(factory TransportFactory, logger *zap.Logger) *AgentAdapter {
	return &AgentAdapter{
		factory: factory,
		logger:  logger,
		emitter: newEmitter(),
		status:  StatusDisconnected,
	}
}

// Connect establishes the underlying transport. Already connected is a
// no-op; while another Connect is in flight the call waits for it and
// shares its result; disconnected and error states start a fresh attempt.
func (a *AgentAdapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	switch a.status {
	case StatusConnected:
		a.mu.Unlock()
		return nil
	case StatusConnecting:
		wait := a.inflight
		a.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
		a.mu.Lock()
		err := a.inflightErr
		a.mu.Unlock()
		return err
	}

	tr := a.factory()
	a.transport = tr
	a.status = StatusConnecting
	a.inflight = make(chan struct{})
	a.mu.Unlock()

	a.registerForwarders(tr)

	err := tr.Connect(ctx)

	a.mu.Lock()
	if err != nil {
		a.status = StatusError
		a.transport = nil
	} else {
		a.status = StatusConnected
	}
	a.inflightErr = err
	close(a.inflight)
	a.mu.Unlock()

	if err != nil {
		a.logger.Error("Agent connection failed", zap.Error(err))
	}
	return err
}

// registerForwarders relays transport events to the adapter's own
// listeners and keeps the adapter's state in step with the socket.
func (a *AgentAdapter) registerForwarders(tr Transport) {
	tr.On(EventMessage, func(payload interface{}) {
		a.emitter.emit(EventMessage, payload)
	})
	tr.On(EventAudio, func(payload interface{}) {
		a.emitter.emit(EventAudio, payload)
	})
	tr.On(EventConnected, func(payload interface{}) {
		a.emitter.emit(EventConnected, payload)
	})
	tr.On(EventDisconnected, func(payload interface{}) {
		a.mu.Lock()
		if a.transport == tr {
			a.status = StatusDisconnected
			a.transport = nil
		}
		a.mu.Unlock()
		a.emitter.emit(EventDisconnected, payload)
	})
	tr.On(EventError, func(payload interface{}) {
		a.mu.Lock()
		if a.transport == tr {
			a.status = StatusError
		}
		a.mu.Unlock()
		a.emitter.emit(EventError, payload)
	})
}

// Disconnect tears down the current transport, if any.
func (a *AgentAdapter) Disconnect() {
	a.mu.Lock()
	tr := a.transport
	a.transport = nil
	a.status = StatusDisconnected
	a.mu.Unlock()

	if tr != nil {
		tr.Disconnect()
	}
}

func (a *AgentAdapter) On(event string, handler Handler) HandlerID {
	return a.emitter.on(event, handler)
}

func (a *AgentAdapter) Off(event string, id HandlerID) {
	a.emitter.off(event, id)
}

// Send forwards a payload to the live transport. Without one the payload
// is dropped with a log line, matching the transport's own contract.
func (a *AgentAdapter) Send(payload interface{}) {
	a.mu.Lock()
	tr := a.transport
	a.mu.Unlock()

	if tr == nil {
		a.logger.Warn("Dropping payload, no active transport")
		return
	}
	tr.Send(payload)
}

// LocalStream exposes the live transport's capture, nil when disconnected.
func (a *AgentAdapter) LocalStream() audio.Capture {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.transport == nil {
		return nil
	}
	return a.transport.LocalStream()
}

// RemoteSink exposes the live transport's playback sink, nil when
// disconnected.
func (a *AgentAdapter) RemoteSink() audio.Sink {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.transport == nil {
		return nil
	}
	return a.transport.RemoteSink()
}

func (a *AgentAdapter) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}
